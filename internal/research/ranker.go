package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/scoutline/vendorscout/pkg/anthropic"
	"github.com/scoutline/vendorscout/pkg/firecrawl"
)

// Ranking is the outcome of the discovery phase: the search phrase the model
// chose and the candidate pages the site map returned for it, in relevance
// order. Pages is nil when the map response carried no link list at all,
// which callers may want to distinguish from an explicit empty list.
type Ranking struct {
	Phrase string
	Pages  []string
	Usage  anthropic.TokenUsage
}

// Ranker turns a research objective into an ordered list of candidate pages
// on the seed site.
type Ranker struct {
	fc     firecrawl.Client
	claude anthropic.Client
	model  string
}

func NewRanker(fc firecrawl.Client, claude anthropic.Client, model string) *Ranker {
	return &Ranker{fc: fc, claude: claude, model: model}
}

// Rank asks the model for a 1-2 word search phrase for the objective, then
// maps the site with it. The returned page order is the map service's
// relevance order and is preserved verbatim.
func (r *Ranker) Rank(ctx context.Context, objective, site string) (*Ranking, error) {
	resp, err := r.claude.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.model,
		MaxTokens: 64,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(searchPhrasePrompt, objective)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "rank: generate search phrase")
	}

	phrase := strings.Trim(strings.TrimSpace(resp.Text()), `"'`)
	if phrase == "" {
		return nil, eris.New("rank: model returned an empty search phrase")
	}

	ranking := &Ranking{Phrase: phrase, Usage: resp.Usage}

	mapped, err := r.fc.Map(ctx, firecrawl.MapRequest{URL: site, Search: phrase})
	if err != nil {
		return nil, eris.Wrap(err, "rank: map site")
	}
	ranking.Pages = mapped.Links

	return ranking, nil
}
