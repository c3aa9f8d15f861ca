package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scoutline/vendorscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	objective     TEXT NOT NULL,
	site          TEXT NOT NULL,
	search_phrase TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'running',
	pages_matched INTEGER NOT NULL DEFAULT 0,
	pages_done    INTEGER NOT NULL DEFAULT 0,
	pages_failed  INTEGER NOT NULL DEFAULT 0,
	vendors_added INTEGER NOT NULL DEFAULT 0,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME
);

CREATE TABLE IF NOT EXISTS run_pages (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	position    INTEGER NOT NULL,
	url         TEXT NOT NULL,
	vendors     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
CREATE INDEX IF NOT EXISTS idx_run_pages_run_id ON run_pages(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, objective, site, search_phrase, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Objective, run.Site, run.SearchPhrase, string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET search_phrase = ?, status = ?, pages_matched = ?, pages_done = ?,
		 pages_failed = ?, vendors_added = ?, input_tokens = ?, output_tokens = ?,
		 cost_usd = ?, error = ?, finished_at = ? WHERE id = ?`,
		run.SearchPhrase, string(run.Status), run.PagesMatched, run.PagesDone,
		run.PagesFailed, run.VendorsAdded, run.InputTokens, run.OutputTokens,
		run.CostUSD, run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, objective, site, search_phrase, status, pages_matched, pages_done,
		 pages_failed, vendors_added, input_tokens, output_tokens, cost_usd, error,
		 started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, objective, site, search_phrase, status, pages_matched, pages_done,
	 pages_failed, vendors_added, input_tokens, output_tokens, cost_usd, error,
	 started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Site != "" {
		query += ` AND site = ?`
		args = append(args, filter.Site)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordPage(ctx context.Context, visit *model.PageVisit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_pages (run_id, position, url, vendors, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		visit.RunID, visit.Position, visit.URL, visit.Vendors, visit.Error,
		visit.Duration.Milliseconds(),
	)
	return eris.Wrapf(err, "sqlite: record page for run %s", visit.RunID)
}

func (s *SQLiteStore) ListPages(ctx context.Context, runID string) ([]model.PageVisit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, position, url, vendors, error, duration_ms
		 FROM run_pages WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pages")
	}
	defer rows.Close()

	var visits []model.PageVisit
	for rows.Next() {
		var v model.PageVisit
		var durationMS int64
		if err := rows.Scan(&v.RunID, &v.Position, &v.URL, &v.Vendors, &v.Error, &durationMS); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page")
		}
		v.Duration = time.Duration(durationMS) * time.Millisecond
		visits = append(visits, v)
	}
	return visits, eris.Wrap(rows.Err(), "sqlite: list pages iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var finishedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Objective, &r.Site, &r.SearchPhrase, &r.Status,
		&r.PagesMatched, &r.PagesDone, &r.PagesFailed, &r.VendorsAdded,
		&r.InputTokens, &r.OutputTokens, &r.CostUSD, &r.Error,
		&r.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
