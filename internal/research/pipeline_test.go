package research

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scoutline/vendorscout/internal/cost"
	"github.com/scoutline/vendorscout/internal/model"
	"github.com/scoutline/vendorscout/internal/results"
	"github.com/scoutline/vendorscout/pkg/anthropic"
	"github.com/scoutline/vendorscout/pkg/firecrawl"
)

// onRank stubs the search-phrase completion. The ranking prompt is the only
// one that mentions the map call's search parameter.
func onRank(claude *mockAnthropicClient, phrase string) *mock.Call {
	return claude.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "search parameter")
	})).Return(textResponse(phrase, 40, 3), nil)
}

// onExtract stubs the vendor-extraction completion for the page whose
// markdown contains marker.
func onExtract(claude *mockAnthropicClient, marker, completion string) *mock.Call {
	return claude.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "Scraped content:") &&
			strings.Contains(req.Messages[0].Content, marker)
	})).Return(textResponse(completion, 100, 10), nil)
}

func onMap(fc *mockFirecrawlClient, links []string) *mock.Call {
	return fc.On("Map", mock.Anything, mock.AnythingOfType("firecrawl.MapRequest")).
		Return(&firecrawl.MapResponse{Success: true, Links: links}, nil)
}

func onScrape(fc *mockFirecrawlClient, url, markdown string) *mock.Call {
	return fc.On("Scrape", mock.Anything, firecrawl.ScrapeRequest{URL: url, Formats: []string{"markdown"}}).
		Return(scrapeResponse(url, markdown), nil)
}

func newTestPipeline(fc firecrawl.Client, claude anthropic.Client, doc DocumentStore, opts Options) *Pipeline {
	if opts.Model == "" {
		opts.Model = anthropic.ModelHaiku
	}
	ranker := NewRanker(fc, claude, opts.Model)
	extractor := NewExtractor(fc, claude, opts.Model, 4096, 80000)
	return New(ranker, extractor, doc, nil, nil, opts)
}

// readVendorNames loads the saved result document and returns its vendor
// names in document order.
func readVendorNames(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rs model.ResultSet
	require.NoError(t, json.Unmarshal(data, &rs))
	names := make([]string, 0, len(rs.Vendors))
	for _, v := range rs.Vendors {
		names = append(names, v.Name())
	}
	return names
}

// stubDocStore lets tests force document load/save failures.
type stubDocStore struct {
	set     *model.ResultSet
	loadErr error
	saveErr error
	saves   int
}

func (s *stubDocStore) Load() (*model.ResultSet, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.set != nil {
		return s.set, nil
	}
	return model.NewResultSet(), nil
}

func (s *stubDocStore) Save(*model.ResultSet) error {
	s.saves++
	return s.saveErr
}

func (s *stubDocStore) Path() string { return "stub.json" }

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", `[{"name": "Vendor One"}]`)
	onExtract(claude, "PAGE-TWO", `{"vendors": [{"name": "Vendor Two A"}, {"name": "Vendor Two B"}]}`)
	onExtract(claude, "PAGE-THREE", `[]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1", "https://m.test/2", "https://m.test/3"})
	onScrape(fc, "https://m.test/1", "PAGE-ONE")
	onScrape(fc, "https://m.test/2", "PAGE-TWO")
	onScrape(fc, "https://m.test/3", "PAGE-THREE")

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err)
	require.NotNil(t, res)
	run := res.Run

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, "vendors", run.SearchPhrase)
	assert.Equal(t, 3, run.PagesMatched)
	assert.Equal(t, 3, run.PagesDone)
	assert.Equal(t, 0, run.PagesFailed)
	assert.Equal(t, 3, run.VendorsAdded)
	assert.NotEmpty(t, run.ID)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, outPath, res.OutputPath)

	// One ranking call plus three extractions.
	assert.Equal(t, 40+3*100, run.InputTokens)
	assert.Equal(t, 3+3*10, run.OutputTokens)

	rates := cost.DefaultRates()
	wantCost := float64(run.InputTokens)/1e6*rates.Anthropic[anthropic.ModelHaiku].Input +
		float64(run.OutputTokens)/1e6*rates.Anthropic[anthropic.ModelHaiku].Output +
		4*(rates.Firecrawl.PlanMonthly/rates.Firecrawl.CreditsIncluded) // one map, three scrapes
	assert.InDelta(t, wantCost, run.CostUSD, 1e-9)

	require.Len(t, res.Pages, 3)
	assert.Equal(t, 1, res.Pages[0].Vendors)
	assert.Equal(t, 2, res.Pages[1].Vendors)
	assert.Equal(t, 0, res.Pages[2].Vendors)

	// Document order follows page rank order.
	assert.Equal(t, []string{"Vendor One", "Vendor Two A", "Vendor Two B"}, readVendorNames(t, outPath))
}

func TestPipelineRun_NoPagesMatched(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{})

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	assert.ErrorIs(t, err, ErrNoPages)
	require.NotNil(t, res)
	assert.Equal(t, model.RunStatusNoPages, res.Run.Status)
	assert.Equal(t, 0, res.Run.PagesMatched)
	assert.Empty(t, res.Pages)

	fc.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything)
	assert.NoFileExists(t, outPath, "a run with no pages must not touch the document")
}

func TestPipelineRun_RankingFailure(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	claude.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	fc := &mockFirecrawlClient{}

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "generate search phrase")
	require.NotNil(t, res)
	assert.Equal(t, model.RunStatusNoPages, res.Run.Status)
	assert.NotEmpty(t, res.Run.Error)

	fc.AssertNotCalled(t, "Map", mock.Anything, mock.Anything)
	fc.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything)
	assert.NoFileExists(t, outPath)
}

func TestPipelineRun_PageFailureIsolated(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", `[{"name": "Vendor One"}]`)
	onExtract(claude, "PAGE-THREE", `[{"name": "Vendor Three"}]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1", "https://m.test/2", "https://m.test/3"})
	onScrape(fc, "https://m.test/1", "PAGE-ONE")
	fc.On("Scrape", mock.Anything, firecrawl.ScrapeRequest{URL: "https://m.test/2", Formats: []string{"markdown"}}).
		Return(nil, assert.AnError)
	onScrape(fc, "https://m.test/3", "PAGE-THREE")

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err, "one failing page must not fail the run")
	run := res.Run
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.PagesDone)
	assert.Equal(t, 1, run.PagesFailed)
	assert.Equal(t, 2, run.VendorsAdded)

	require.Len(t, res.Pages, 3)
	assert.Nil(t, res.Pages[0].Err)
	assert.Error(t, res.Pages[1].Err)
	assert.Nil(t, res.Pages[2].Err)

	assert.Equal(t, []string{"Vendor One", "Vendor Three"}, readVendorNames(t, outPath))
}

func TestPipelineRun_MergesWithExistingDocument(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")
	require.NoError(t, os.WriteFile(outPath, []byte(`{"vendors": [{"name": "Existing"}]}`), 0o644))

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", `[{"name": "New"}]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1"})
	onScrape(fc, "https://m.test/1", "PAGE-ONE")

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Run.VendorsAdded, "only newly extracted vendors count")
	assert.Equal(t, []string{"Existing", "New"}, readVendorNames(t, outPath))
}

func TestPipelineRun_NoSaveWhenNothingExtracted(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", `[]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1"})
	onScrape(fc, "https://m.test/1", "PAGE-ONE")

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 0, res.Run.VendorsAdded)
	assert.NoFileExists(t, outPath, "pages that yield nothing must not trigger a save")
}

func TestPipelineRun_MaxPagesCap(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE", `[]`)

	links := []string{
		"https://m.test/1", "https://m.test/2", "https://m.test/3",
		"https://m.test/4", "https://m.test/5",
	}
	fc := &mockFirecrawlClient{}
	onMap(fc, links)
	for _, link := range links {
		onScrape(fc, link, "PAGE")
	}

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{MaxPages: 2})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err)
	assert.Equal(t, 5, res.Run.PagesMatched)
	assert.Len(t, res.Pages, 2)
	fc.AssertNumberOfCalls(t, "Scrape", 2)
}

func TestPipelineRun_BudgetSpentBeforeRanking(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	fc := &mockFirecrawlClient{}

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{RunBudget: time.Nanosecond})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	assert.ErrorIs(t, err, ErrRunBudget)
	require.NotNil(t, res)
	assert.Equal(t, model.RunStatusTimeout, res.Run.Status)
	claude.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestPipelineRun_BudgetSpentMidRun(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", `[{"name": "Vendor One"}]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1", "https://m.test/2"})
	// Sleeping past the budget guarantees the checkpoint before page 2 trips.
	fc.On("Scrape", mock.Anything, firecrawl.ScrapeRequest{URL: "https://m.test/1", Formats: []string{"markdown"}}).
		Run(func(mock.Arguments) { time.Sleep(80 * time.Millisecond) }).
		Return(scrapeResponse("https://m.test/1", "PAGE-ONE"), nil)

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{RunBudget: 40 * time.Millisecond})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	assert.ErrorIs(t, err, ErrRunBudget)
	run := res.Run
	assert.Equal(t, model.RunStatusTimeout, run.Status)
	assert.Equal(t, 1, run.PagesDone)
	assert.Equal(t, 1, run.VendorsAdded)
	require.Len(t, res.Pages, 1)

	fc.AssertNumberOfCalls(t, "Scrape", 1)
	// Work persisted before the checkpoint is kept.
	assert.Equal(t, []string{"Vendor One"}, readVendorNames(t, outPath))
}

func TestPipelineRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	fc := &mockFirecrawlClient{}

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	assert.ErrorIs(t, err, ErrRunBudget)
	assert.Equal(t, model.RunStatusTimeout, res.Run.Status)
}

func TestPipelineRun_DocumentLoadFailure(t *testing.T) {
	ctx := context.Background()

	claude := &mockAnthropicClient{}
	fc := &mockFirecrawlClient{}
	doc := &stubDocStore{loadErr: assert.AnError}

	p := newTestPipeline(fc, claude, doc, Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	assert.Error(t, err)
	assert.Nil(t, res, "an unreadable document must stop the run before any page work")
	claude.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestPipelineRun_SaveFailureContinues(t *testing.T) {
	ctx := context.Background()

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", `[{"name": "Vendor One"}]`)
	onExtract(claude, "PAGE-TWO", `[{"name": "Vendor Two"}]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1", "https://m.test/2"})
	onScrape(fc, "https://m.test/1", "PAGE-ONE")
	onScrape(fc, "https://m.test/2", "PAGE-TWO")

	doc := &stubDocStore{saveErr: assert.AnError}

	p := newTestPipeline(fc, claude, doc, Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err, "save failures are logged, not fatal")
	assert.Equal(t, model.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 2, res.Run.PagesDone)
	assert.Equal(t, 2, res.Run.VendorsAdded)
	assert.Equal(t, 2, doc.saves, "every vendor-bearing page still attempts a save")
}

func TestPipelineRun_RecordsRunHistory(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", `[{"name": "Vendor One"}]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1"})
	onScrape(fc, "https://m.test/1", "PAGE-ONE")

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.MatchedBy(func(r *model.Run) bool {
		return r.Status == model.RunStatusRunning && r.Objective == "find all vendors"
	})).Return(nil).Once()
	st.On("RecordPage", mock.Anything, mock.MatchedBy(func(v *model.PageVisit) bool {
		return v.Position == 0 && v.URL == "https://m.test/1" && v.Vendors == 1 && v.Error == ""
	})).Return(nil).Once()
	st.On("FinishRun", mock.Anything, mock.MatchedBy(func(r *model.Run) bool {
		return r.Status == model.RunStatusCompleted && r.VendorsAdded == 1 && r.FinishedAt != nil
	})).Return(nil).Once()

	ranker := NewRanker(fc, claude, anthropic.ModelHaiku)
	extractor := NewExtractor(fc, claude, anthropic.ModelHaiku, 4096, 80000)
	p := New(ranker, extractor, results.NewStore(outPath), st, nil, Options{Model: anthropic.ModelHaiku})

	_, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestPipelineRun_StoreFailuresAreNonFatal(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", `[{"name": "Vendor One"}]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1"})
	onScrape(fc, "https://m.test/1", "PAGE-ONE")

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything).Return(assert.AnError)
	st.On("RecordPage", mock.Anything, mock.Anything).Return(assert.AnError)
	st.On("FinishRun", mock.Anything, mock.Anything).Return(assert.AnError)

	ranker := NewRanker(fc, claude, anthropic.ModelHaiku)
	extractor := NewExtractor(fc, claude, anthropic.ModelHaiku, 4096, 80000)
	p := New(ranker, extractor, results.NewStore(outPath), st, nil, Options{Model: anthropic.ModelHaiku})

	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err, "run history is best-effort")
	assert.Equal(t, model.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, []string{"Vendor One"}, readVendorNames(t, outPath))
}

func TestPipelineRun_MalformedCompletionIsPageFailure(t *testing.T) {
	ctx := context.Background()
	outPath := filepath.Join(t.TempDir(), "vendors.json")

	claude := &mockAnthropicClient{}
	onRank(claude, "vendors")
	onExtract(claude, "PAGE-ONE", "I couldn't find any structured vendor data.")
	onExtract(claude, "PAGE-TWO", `[{"name": "Vendor Two"}]`)

	fc := &mockFirecrawlClient{}
	onMap(fc, []string{"https://m.test/1", "https://m.test/2"})
	onScrape(fc, "https://m.test/1", "PAGE-ONE")
	onScrape(fc, "https://m.test/2", "PAGE-TWO")

	p := newTestPipeline(fc, claude, results.NewStore(outPath), Options{})
	res, err := p.Run(ctx, "find all vendors", "https://m.test")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Run.PagesFailed)
	assert.Equal(t, 1, res.Run.PagesDone)
	assert.Equal(t, []string{"Vendor Two"}, readVendorNames(t, outPath))
}
