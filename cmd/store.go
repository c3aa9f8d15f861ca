package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/scoutline/vendorscout/internal/config"
	"github.com/scoutline/vendorscout/internal/cost"
	"github.com/scoutline/vendorscout/internal/research"
	"github.com/scoutline/vendorscout/internal/results"
	"github.com/scoutline/vendorscout/internal/store"
	"github.com/scoutline/vendorscout/pkg/anthropic"
	"github.com/scoutline/vendorscout/pkg/firecrawl"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newPipeline wires the Firecrawl and Anthropic clients, the result document
// at outputPath, and the run-history store into a ready pipeline.
func newPipeline(c *config.Config, runs store.Store, outputPath string, maxPages int, budget time.Duration) *research.Pipeline {
	fc := firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
	claude := anthropic.NewClient(c.Anthropic.Key)

	ranker := research.NewRanker(fc, claude, c.Anthropic.Model)
	extractor := research.NewExtractor(fc, claude, c.Anthropic.Model, c.Anthropic.MaxTokens, c.Research.MaxContentChars)
	doc := results.NewStore(outputPath)
	calc := cost.NewCalculator(c.Pricing)

	return research.New(ranker, extractor, doc, runs, calc, research.Options{
		Model:     c.Anthropic.Model,
		MaxPages:  maxPages,
		RunBudget: budget,
	})
}
