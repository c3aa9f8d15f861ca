package research

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/scoutline/vendorscout/internal/model"
	"github.com/scoutline/vendorscout/pkg/anthropic"
	"github.com/scoutline/vendorscout/pkg/firecrawl"
)

// Extraction is the outcome of processing one candidate page. A nil or empty
// Vendors slice with a nil error means the page was read successfully but
// held no vendor records.
type Extraction struct {
	Page    string
	Vendors []model.Vendor
	Usage   anthropic.TokenUsage
}

// Extractor scrapes a single page and pulls vendor records out of it.
type Extractor struct {
	fc              firecrawl.Client
	claude          anthropic.Client
	model           string
	maxTokens       int64
	maxContentChars int
}

func NewExtractor(fc firecrawl.Client, claude anthropic.Client, model string, maxTokens int64, maxContentChars int) *Extractor {
	return &Extractor{
		fc:              fc,
		claude:          claude,
		model:           model,
		maxTokens:       maxTokens,
		maxContentChars: maxContentChars,
	}
}

// Extract scrapes pageURL as markdown and asks the model for vendor records
// relevant to the objective. Scrape failures, empty pages, and malformed
// completions all surface as errors; the caller decides whether to continue
// with the remaining pages.
func (e *Extractor) Extract(ctx context.Context, objective, pageURL string) (*Extraction, error) {
	scraped, err := e.fc.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     pageURL,
		Formats: []string{"markdown"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: scrape page")
	}

	content := scraped.Data.Markdown
	if content == "" {
		return nil, eris.New("extract: page returned no markdown content")
	}
	if e.maxContentChars > 0 && len(content) > e.maxContentChars {
		content = content[:e.maxContentChars]
	}

	resp, err := e.claude.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractVendorsPrompt, objective, content)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: create completion")
	}

	vendors, err := decodeVendors(resp.Text())
	if err != nil {
		return nil, err
	}

	return &Extraction{Page: pageURL, Vendors: vendors, Usage: resp.Usage}, nil
}
