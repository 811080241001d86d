// Package app wires the engine, its optional collaborators and their stores from
// configuration. Every server binary builds its Components here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/scdaid-mcp-server/internal/config"
	"github.com/scdaid-mcp-server/internal/database"
	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/internal/feedback"
	"github.com/scdaid-mcp-server/internal/repository"
	"github.com/scdaid-mcp-server/internal/service"
	"github.com/scdaid-mcp-server/pkg/external"
)

// Components are the wired collaborators shared by the HTTP, MCP and CLI surfaces
type Components struct {
	Advisor  *service.AdvisorService
	Resolver *service.CachedPhenotypeResolver // nil when prediction is disabled
	Feedback feedback.Store
	Runs     domain.PlanAuditRepository
	Health   map[string]func(ctx context.Context) error // component name -> reachability check

	closers []func() error
}

func newComponents() *Components {
	return &Components{Health: make(map[string]func(ctx context.Context) error)}
}

func (c *Components) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases stores and connections in reverse order of creation
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Build wires the full stack: Postgres audit when the database is enabled, the
// phenotype predictor with an optional Redis tier, and the configured feedback store.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*Components, error) {
	c := newComponents()

	runs, err := c.buildRuns(ctx, cfg.Database, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Runs = runs

	if cfg.Phenotype.Enabled {
		if err := c.buildResolver(cfg.Phenotype, cfg.Cache, logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	store, err := feedback.NewStore(cfg.Feedback)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening feedback store: %w", err)
	}
	c.attachFeedback(store)

	c.Advisor = service.NewAdvisorService(logger, service.NewPlanAssembler(logger), c.Resolver, c.Runs)

	logger.WithFields(logrus.Fields{
		"database":  cfg.Database.Enabled,
		"phenotype": cfg.Phenotype.Enabled,
		"cache":     cfg.Cache.Enabled,
		"feedback":  cfg.Feedback.Driver,
	}).Info("Components initialized")

	return c, nil
}

// BuildLite wires the standalone stack: SQLite feedback under the data directory and an
// in-memory run audit. Prediction is enabled only when a predictor URL is set.
func BuildLite(cfg *config.LiteConfig, logger *logrus.Logger) (*Components, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	c := newComponents()

	runs, err := repository.NewMemoryPlanRunRepository(cfg.AuditMaxRuns)
	if err != nil {
		return nil, err
	}
	c.Runs = runs

	if cfg.PhenotypeURL != "" {
		phenotype := domain.PhenotypeConfig{
			Enabled:   true,
			BaseURL:   cfg.PhenotypeURL,
			CacheSize: cfg.CacheMaxItems,
			CacheTTL:  cfg.CacheTTL,
		}
		if err := c.buildResolver(phenotype, domain.CacheConfig{}, logger); err != nil {
			return nil, err
		}
	}

	store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create feedback store: %w", err)
	}
	c.attachFeedback(store)

	c.Advisor = service.NewAdvisorService(logger, service.NewPlanAssembler(logger), c.Resolver, c.Runs)
	return c, nil
}

// BuildCalculator wires the engine alone, with no feedback store or run audit. A
// non-empty phenotypeURL enables prediction.
func BuildCalculator(phenotypeURL string, logger *logrus.Logger) (*Components, error) {
	c := newComponents()
	if phenotypeURL != "" {
		if err := c.buildResolver(domain.PhenotypeConfig{Enabled: true, BaseURL: phenotypeURL}, domain.CacheConfig{}, logger); err != nil {
			return nil, err
		}
	}
	c.Advisor = service.NewAdvisorService(logger, service.NewPlanAssembler(logger), c.Resolver, nil)
	return c, nil
}

func (c *Components) buildRuns(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (domain.PlanAuditRepository, error) {
	if !cfg.Enabled {
		return repository.NewMemoryPlanRunRepository(0)
	}

	dbConfig := database.ConfigFromDomain(cfg)
	db, err := database.NewConnection(ctx, dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	c.onClose(func() error {
		db.Close()
		return nil
	})
	c.Health["database"] = db.Health

	runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.MigrationsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("preparing migrations: %w", err)
	}
	defer runner.Close()
	if err := runner.Up(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return repository.NewPlanRunRepository(db.Pool, logger), nil
}

func (c *Components) buildResolver(phenotype domain.PhenotypeConfig, cache domain.CacheConfig, logger *logrus.Logger) error {
	client := external.NewPhenotypeClient(external.PhenotypeClientConfig{
		BaseURL:        phenotype.BaseURL,
		Timeout:        phenotype.Timeout,
		RateLimit:      phenotype.RateLimit,
		CircuitBreaker: external.DefaultCircuitBreakerConfig(),
	}, logger)
	c.Health["phenotype"] = client.Health

	var store service.PredictionStore
	if cache.Enabled {
		cacheClient, err := external.NewCacheClient(cache)
		if err != nil {
			return fmt.Errorf("connecting to prediction cache: %w", err)
		}
		c.onClose(cacheClient.Close)
		c.Health["redis"] = cacheClient.Ping
		store = cacheClient
	}

	c.Resolver = service.NewCachedPhenotypeResolver(service.PhenotypeResolverConfig{
		MemoryCacheTTL: phenotype.CacheTTL,
		StoreTTL:       cache.DefaultTTL,
		MaxMemorySize:  phenotype.CacheSize,
	}, client, store, logger)
	return nil
}

func (c *Components) attachFeedback(store feedback.Store) {
	c.Feedback = store
	c.onClose(store.Close)
	c.Health["feedback"] = func(ctx context.Context) error {
		_, err := store.Count(ctx)
		return err
	}
}
