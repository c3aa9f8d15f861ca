package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scoutline/vendorscout/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (id, objective, site, search_phrase, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
	"finish_run": `UPDATE runs SET search_phrase = $1, status = $2, pages_matched = $3,
		pages_done = $4, pages_failed = $5, vendors_added = $6, input_tokens = $7,
		output_tokens = $8, cost_usd = $9, error = $10, finished_at = $11 WHERE id = $12`,
	"insert_page": `INSERT INTO run_pages (run_id, position, url, vendors, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	objective     TEXT NOT NULL,
	site          TEXT NOT NULL,
	search_phrase TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'running',
	pages_matched INTEGER NOT NULL DEFAULT 0,
	pages_done    INTEGER NOT NULL DEFAULT 0,
	pages_failed  INTEGER NOT NULL DEFAULT 0,
	vendors_added INTEGER NOT NULL DEFAULT 0,
	input_tokens  BIGINT NOT NULL DEFAULT 0,
	output_tokens BIGINT NOT NULL DEFAULT 0,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_pages (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	position    INTEGER NOT NULL,
	url         TEXT NOT NULL,
	vendors     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
CREATE INDEX IF NOT EXISTS idx_run_pages_run_id ON run_pages(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, objective, site, search_phrase, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Objective, run.Site, run.SearchPhrase, string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET search_phrase = $1, status = $2, pages_matched = $3,
		pages_done = $4, pages_failed = $5, vendors_added = $6, input_tokens = $7,
		output_tokens = $8, cost_usd = $9, error = $10, finished_at = $11 WHERE id = $12`,
		run.SearchPhrase, string(run.Status), run.PagesMatched, run.PagesDone,
		run.PagesFailed, run.VendorsAdded, run.InputTokens, run.OutputTokens,
		run.CostUSD, run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, objective, site, search_phrase, status, pages_matched, pages_done,
		pages_failed, vendors_added, input_tokens, output_tokens, cost_usd, error,
		started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, objective, site, search_phrase, status, pages_matched, pages_done,
	pages_failed, vendors_added, input_tokens, output_tokens, cost_usd, error,
	started_at, finished_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Site != "" {
		query += fmt.Sprintf(` AND site = $%d`, argIdx)
		args = append(args, filter.Site)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordPage(ctx context.Context, visit *model.PageVisit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_pages (run_id, position, url, vendors, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		visit.RunID, visit.Position, visit.URL, visit.Vendors, visit.Error,
		visit.Duration.Milliseconds(),
	)
	return eris.Wrapf(err, "postgres: record page for run %s", visit.RunID)
}

func (s *PostgresStore) ListPages(ctx context.Context, runID string) ([]model.PageVisit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, position, url, vendors, error, duration_ms
		FROM run_pages WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pages")
	}
	defer rows.Close()

	var visits []model.PageVisit
	for rows.Next() {
		var v model.PageVisit
		var durationMS int64
		if err := rows.Scan(&v.RunID, &v.Position, &v.URL, &v.Vendors, &v.Error, &durationMS); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page")
		}
		v.Duration = time.Duration(durationMS) * time.Millisecond
		visits = append(visits, v)
	}
	return visits, eris.Wrap(rows.Err(), "postgres: list pages iterate")
}
