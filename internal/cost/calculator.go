package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Firecrawl FirecrawlRate        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// FirecrawlRate holds Firecrawl plan pricing. Map and scrape each consume
// one credit per request.
type FirecrawlRate struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for Claude token usage. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output

	return inCost + outCost
}

// Firecrawl computes the effective cost of the given number of credits
// (one per map or scrape request) at the plan's per-credit rate.
func (c *Calculator) Firecrawl(credits int) float64 {
	if c.rates.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	perCredit := c.rates.Firecrawl.PlanMonthly / c.rates.Firecrawl.CreditsIncluded
	return float64(credits) * perCredit
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		Firecrawl: FirecrawlRate{PlanMonthly: 19.00, CreditsIncluded: 3000},
	}
}
