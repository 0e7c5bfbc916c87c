package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/crawler"
	"github.com/sells-group/prospector/internal/dedupe"
	"github.com/sells-group/prospector/internal/enrich"
	"github.com/sells-group/prospector/internal/job"
	"github.com/sells-group/prospector/internal/politeness"
	"github.com/sells-group/prospector/internal/scorer"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/claude"
	"github.com/sells-group/prospector/pkg/nominatim"
	"github.com/sells-group/prospector/pkg/places"
	"github.com/sells-group/prospector/pkg/yelp"
)

// env wires the pipeline components for a command invocation.
type env struct {
	Store      store.Store
	Controller *job.Controller
}

// Close releases held resources.
func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// openStore opens the configured database backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildEnv constructs the full pipeline from configuration.
func buildEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	registry := source.NewRegistry()
	if cfg.Places.Key != "" {
		registry.Register(source.NewPlacesSource(
			places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))))
	}
	if cfg.Yelp.Key != "" {
		registry.Register(source.NewYelpSource(
			yelp.NewClient(cfg.Yelp.Key, yelp.WithBaseURL(cfg.Yelp.BaseURL))))
	}
	// Nominatim needs no key and is always available.
	registry.Register(source.NewOSMSource(
		nominatim.NewClient(nominatim.WithBaseURL(cfg.Nominatim.BaseURL))))

	limiter := politeness.New(
		cfg.Politeness.GlobalConcurrency,
		cfg.Politeness.PerDomainConcurrency,
		cfg.Politeness.PerDomainDelay(),
	)

	var llm claude.Extractor
	if cfg.Anthropic.Key != "" {
		llm = claude.NewClient(cfg.Anthropic.Key, cfg.Anthropic.Model)
	} else {
		zap.L().Info("llm extraction disabled, regex extraction only")
	}

	enricher := enrich.New(
		crawler.New(cfg.Crawl, limiter),
		llm,
		scorer.New(scorer.FromConfig(cfg.Scoring)),
		st,
		cfg.Job.CandidateBudget(),
	)

	deduper := dedupe.New(cfg.Dedupe.NameSimilarityThreshold, cfg.Discovery.Priority)

	defaultSources := cfg.Discovery.DefaultSources
	if len(defaultSources) == 0 {
		defaultSources = registry.Names()
	}

	controller := job.NewController(registry, deduper, enricher, st, cfg.Job.Workers, defaultSources)

	return &env{Store: st, Controller: controller}, nil
}
