package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scoutline/vendorscout/internal/model"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Site   string          `json:"site,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history. Result documents
// live in a plain JSON file; the store only keeps the record of what each
// run did and what it cost.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Pages
	RecordPage(ctx context.Context, visit *model.PageVisit) error
	ListPages(ctx context.Context, runID string) ([]model.PageVisit, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
