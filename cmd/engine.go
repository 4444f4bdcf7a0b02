package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/ai"
	"github.com/spigell/talent-matcher/internal/ai/gemini"
	"github.com/spigell/talent-matcher/internal/config"
	"github.com/spigell/talent-matcher/internal/db"
	"github.com/spigell/talent-matcher/internal/matchcache"
	"github.com/spigell/talent-matcher/internal/matching"
	"github.com/spigell/talent-matcher/internal/repository"
	"github.com/spigell/talent-matcher/internal/scoring"
	"github.com/spigell/talent-matcher/internal/secrets"
)

// engine bundles the service with the resources that must be released on exit.
type engine struct {
	svc     *matching.Service
	closers []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// newEngine wires storage, the scorer and the optional explainer into a matching service. Postgres
// backs records and matches when a database is configured, Redis replaces the match backend when
// set, and the records file feeds an in-memory repository otherwise.
func newEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*engine, error) {
	e := &engine{}

	scorer, err := scoring.NewScorer(cfg.Weights)
	if err != nil {
		return nil, err
	}

	databaseURL, err := secrets.Load(secrets.Source{
		Name:     "database url",
		Value:    cfg.Database.URL,
		File:     cfg.Database.URLFile,
		Env:      "DATABASE_URL",
		Optional: true,
	})
	if err != nil {
		return nil, err
	}

	var (
		repo    repository.Repository
		backend matchcache.Backend
		decode  = cfg.Records.DecodeOptions()
	)

	if databaseURL != "" {
		pool, err := db.NewPostgresPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, pool.Close)

		if cfg.Database.EnsureSchema {
			if err := db.EnsureSchema(ctx, pool); err != nil {
				e.Close()
				return nil, err
			}
		}
		repo = repository.NewPostgres(pool, decode, logger)
		backend = matchcache.NewPostgresBackend(pool)
	} else {
		mem := repository.NewMemory()
		if cfg.RecordsFile != "" {
			if _, err := mem.LoadFile(cfg.RecordsFile, decode, logger); err != nil {
				return nil, err
			}
		} else {
			logger.Warn("no database or records file configured, starting with an empty repository")
		}
		repo = mem
	}

	if cfg.Redis.URL != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.closers = append(e.closers, func() { _ = rdb.Close() })
		backend = matchcache.NewRedisBackend(rdb, cfg.Redis.Prefix)
	}

	var cacheOpts []matchcache.Option
	if backend != nil {
		cacheOpts = append(cacheOpts, matchcache.WithBackend(backend))
	}

	var explainer ai.Explainer
	if cfg.AI.Enabled {
		explainer, err = newExplainer(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn("ai explainer is disabled", zap.Error(err))
		}
	}

	svc, err := matching.New(cfg.SchedulerConfig(), matching.Deps{
		Repo:      repo,
		Cache:     matchcache.New(logger, cacheOpts...),
		Scorer:    scorer,
		Explainer: explainer,
		Logger:    logger,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.svc = svc

	logger.Info("engine configured",
		zap.String("storage", cfg.Storage()),
		zap.Bool("redis", cfg.Redis.URL != ""),
		zap.Bool("ai", explainer != nil),
	)
	return e, nil
}

func newExplainer(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (ai.Explainer, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, strings.TrimSpace(cfg.Gemini.Model), cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewExplainer(generator, logger, cfg.Gemini.MaxLogLength), nil
}
