package model

import "time"

// RunStatus represents the terminal (or in-flight) state of a research run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed" // sole success state, any vendor count
	RunStatusNoPages   RunStatus = "no_pages"  // ranking failed or matched nothing
	RunStatusTimeout   RunStatus = "timeout"   // run budget spent at a checkpoint
)

// Run is one research run: an objective pointed at a seed site.
type Run struct {
	ID           string     `json:"id"`
	Objective    string     `json:"objective"`
	Site         string     `json:"site"`
	SearchPhrase string     `json:"search_phrase"`
	Status       RunStatus  `json:"status"`
	PagesMatched int        `json:"pages_matched"`
	PagesDone    int        `json:"pages_done"`
	PagesFailed  int        `json:"pages_failed"`
	VendorsAdded int        `json:"vendors_added"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
	CostUSD      float64    `json:"cost_usd"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Duration reports the run's wall-clock time, up to now for unfinished runs.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PageVisit records the outcome of one candidate page within a run.
type PageVisit struct {
	RunID    string        `json:"run_id"`
	Position int           `json:"position"` // rank order, zero-based
	URL      string        `json:"url"`
	Vendors  int           `json:"vendors"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}
