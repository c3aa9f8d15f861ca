package research

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/scoutline/vendorscout/internal/model"
	"github.com/scoutline/vendorscout/internal/store"
	"github.com/scoutline/vendorscout/pkg/anthropic"
	"github.com/scoutline/vendorscout/pkg/firecrawl"
)

// --- Firecrawl Mock ---

type mockFirecrawlClient struct {
	mock.Mock
}

func (m *mockFirecrawlClient) Map(ctx context.Context, req firecrawl.MapRequest) (*firecrawl.MapResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.MapResponse), args.Error(1)
}

func (m *mockFirecrawlClient) Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.ScrapeResponse), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockStore) FinishRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) RecordPage(ctx context.Context, visit *model.PageVisit) error {
	args := m.Called(ctx, visit)
	return args.Error(0)
}

func (m *mockStore) ListPages(ctx context.Context, runID string) ([]model.PageVisit, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PageVisit), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Response builders ---

// textResponse builds a single-text-block message response with token usage.
func textResponse(text string, in, out int64) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:    "msg_test",
		Model: anthropic.ModelHaiku,
		Content: []anthropic.ContentBlock{
			{Type: "text", Text: text},
		},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: in, OutputTokens: out},
	}
}

// scrapeResponse builds a successful scrape response with markdown content.
func scrapeResponse(url, markdown string) *firecrawl.ScrapeResponse {
	return &firecrawl.ScrapeResponse{
		Success: true,
		Data: firecrawl.PageData{
			URL:        url,
			Markdown:   markdown,
			StatusCode: 200,
		},
	}
}

// --- Ensure interface compliance ---
var (
	_ firecrawl.Client = (*mockFirecrawlClient)(nil)
	_ anthropic.Client = (*mockAnthropicClient)(nil)
	_ store.Store      = (*mockStore)(nil)
)
