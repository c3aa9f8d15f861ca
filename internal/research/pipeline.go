package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scoutline/vendorscout/internal/cost"
	"github.com/scoutline/vendorscout/internal/model"
	"github.com/scoutline/vendorscout/internal/results"
	"github.com/scoutline/vendorscout/internal/store"
	"github.com/scoutline/vendorscout/pkg/anthropic"
)

// DefaultRunBudget bounds a run's wall-clock time when Options.RunBudget is
// unset. The budget is checked at checkpoints (before ranking and before each
// page), never mid-call.
const DefaultRunBudget = 30 * time.Minute

var (
	// ErrNoPages means the run ended before any page was processed: the map
	// call matched nothing for the chosen search phrase.
	ErrNoPages = eris.New("research: no candidate pages")

	// ErrRunBudget means a checkpoint found the wall-clock budget spent.
	// Vendors persisted before the checkpoint are kept.
	ErrRunBudget = eris.New("research: run budget exhausted")
)

// Options tune a run. Zero values select the defaults.
type Options struct {
	Model     string        // model ID, used for pricing
	MaxPages  int           // cap on pages processed; 0 means all matched pages
	RunBudget time.Duration // wall-clock budget; 0 means DefaultRunBudget
}

// DocumentStore persists the growing vendor document. *results.Store is the
// production implementation.
type DocumentStore interface {
	Load() (*model.ResultSet, error)
	Save(rs *model.ResultSet) error
	Path() string
}

var _ DocumentStore = (*results.Store)(nil)

// PageOutcome is the in-memory record of one candidate page's fate.
type PageOutcome struct {
	URL      string
	Vendors  int
	Err      error
	Duration time.Duration
}

// RunResult is everything a run produced: the run record, the per-page
// outcomes in rank order, and where the vendor document was written.
type RunResult struct {
	Run        *model.Run
	Pages      []PageOutcome
	OutputPath string
}

// Pipeline drives one research run end to end: rank candidate pages, then
// extract vendors from each page in order, saving the result document after
// every page that yields records.
type Pipeline struct {
	ranker    *Ranker
	extractor *Extractor
	doc       DocumentStore
	runs      store.Store // nil disables run history
	calc      *cost.Calculator
	opts      Options
}

// New creates a Pipeline with all dependencies. A nil runs store disables
// run-history recording; a nil calculator falls back to the default rates.
func New(ranker *Ranker, extractor *Extractor, doc DocumentStore, runs store.Store, calc *cost.Calculator, opts Options) *Pipeline {
	if opts.RunBudget <= 0 {
		opts.RunBudget = DefaultRunBudget
	}
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	return &Pipeline{
		ranker:    ranker,
		extractor: extractor,
		doc:       doc,
		runs:      runs,
		calc:      calc,
		opts:      opts,
	}
}

// Run researches one objective against one seed site. It returns a non-nil
// RunResult whenever the run record exists, even alongside an error: callers
// can report partial progress for runs that ended early. Pages are processed
// strictly in rank order and never retried; one page's failure does not stop
// the rest.
func (p *Pipeline) Run(ctx context.Context, objective, site string) (*RunResult, error) {
	log := zap.L().With(zap.String("objective", objective), zap.String("site", site))
	log.Info("research: starting run")

	// Read the existing document before anything else. Appending to a
	// document we could not read would clobber earlier runs on first save.
	doc, err := p.doc.Load()
	if err != nil {
		return nil, err
	}

	run := &model.Run{
		ID:        uuid.NewString(),
		Objective: objective,
		Site:      site,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if p.runs != nil {
		if createErr := p.runs.CreateRun(ctx, run); createErr != nil {
			log.Warn("research: failed to record run", zap.Error(createErr))
		}
	}

	result := &RunResult{Run: run, OutputPath: p.doc.Path()}
	deadline := run.StartedAt.Add(p.opts.RunBudget)

	var usage anthropic.TokenUsage
	credits := 0

	finish := func(status model.RunStatus, runErr error) {
		now := time.Now().UTC()
		run.Status = status
		run.FinishedAt = &now
		if runErr != nil {
			run.Error = runErr.Error()
		}
		run.InputTokens = int(usage.InputTokens)
		run.OutputTokens = int(usage.OutputTokens)
		run.CostUSD = p.calc.Claude(p.opts.Model, usage.InputTokens, usage.OutputTokens) + p.calc.Firecrawl(credits)
		if p.runs != nil {
			if finishErr := p.runs.FinishRun(ctx, run); finishErr != nil {
				log.Warn("research: failed to record run result", zap.Error(finishErr))
			}
		}
	}

	// Budget checkpoint. A canceled context counts as spent: every remaining
	// call would fail anyway, so end the run cleanly here.
	expired := func() bool {
		return ctx.Err() != nil || time.Now().After(deadline)
	}

	if expired() {
		finish(model.RunStatusTimeout, ErrRunBudget)
		return result, ErrRunBudget
	}

	ranking, err := p.ranker.Rank(ctx, objective, site)
	if err != nil {
		log.Error("research: ranking failed", zap.Error(err))
		finish(model.RunStatusNoPages, err)
		return result, err
	}
	usage.Add(ranking.Usage)
	credits++ // one map call
	run.SearchPhrase = ranking.Phrase
	run.PagesMatched = len(ranking.Pages)

	if len(ranking.Pages) == 0 {
		log.Warn("research: map matched no pages",
			zap.String("phrase", ranking.Phrase),
			zap.Bool("empty_list", ranking.Pages != nil),
		)
		finish(model.RunStatusNoPages, ErrNoPages)
		return result, ErrNoPages
	}

	log.Info("research: pages ranked",
		zap.String("phrase", ranking.Phrase),
		zap.Int("pages", len(ranking.Pages)),
	)

	pages := ranking.Pages
	if p.opts.MaxPages > 0 && len(pages) > p.opts.MaxPages {
		pages = pages[:p.opts.MaxPages]
	}

	for i, pageURL := range pages {
		if expired() {
			log.Warn("research: run budget exhausted",
				zap.Int("pages_done", run.PagesDone),
				zap.Int("pages_remaining", len(pages)-i),
			)
			finish(model.RunStatusTimeout, ErrRunBudget)
			return result, ErrRunBudget
		}

		pageLog := log.With(zap.Int("position", i), zap.String("page", pageURL))
		pageLog.Info("research: processing page")

		start := time.Now()
		extraction, extractErr := p.extractor.Extract(ctx, objective, pageURL)
		outcome := PageOutcome{URL: pageURL, Duration: time.Since(start)}
		credits++ // one scrape per page attempt

		if extractErr != nil {
			outcome.Err = extractErr
			run.PagesFailed++
			pageLog.Warn("research: page failed", zap.Error(extractErr))
		} else {
			run.PagesDone++
			usage.Add(extraction.Usage)
			outcome.Vendors = len(extraction.Vendors)

			if outcome.Vendors > 0 {
				doc.Append(extraction.Vendors...)
				run.VendorsAdded += outcome.Vendors
				if saveErr := p.doc.Save(doc); saveErr != nil {
					pageLog.Warn("research: failed to save result document", zap.Error(saveErr))
				} else {
					pageLog.Info("research: vendors saved",
						zap.Int("vendors", outcome.Vendors),
						zap.Int("total", doc.Len()),
					)
				}
			} else {
				pageLog.Info("research: no vendors on page")
			}
		}

		result.Pages = append(result.Pages, outcome)
		if p.runs != nil {
			visit := &model.PageVisit{
				RunID:    run.ID,
				Position: i,
				URL:      pageURL,
				Vendors:  outcome.Vendors,
				Duration: outcome.Duration,
			}
			if outcome.Err != nil {
				visit.Error = outcome.Err.Error()
			}
			if recordErr := p.runs.RecordPage(ctx, visit); recordErr != nil {
				pageLog.Warn("research: failed to record page visit", zap.Error(recordErr))
			}
		}
	}

	finish(model.RunStatusCompleted, nil)
	log.Info("research: run complete",
		zap.Int("pages_done", run.PagesDone),
		zap.Int("pages_failed", run.PagesFailed),
		zap.Int("vendors_added", run.VendorsAdded),
		zap.Float64("cost_usd", run.CostUSD),
	)
	return result, nil
}
