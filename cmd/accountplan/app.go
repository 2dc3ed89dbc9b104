package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/config"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/lookup"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/prompts"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/workflows"
)

// app is the wired object graph shared by serve and chat.
type app struct {
	cfg        *config.Config
	llm        *llm.Client
	cache      *lookup.RedisCache
	prompts    *prompts.Store
	acts       *activities.Activities
	pipeline   *workflows.Pipeline
	worker     *workflows.Worker
	controller *workflows.Controller
	store      *session.Store
}

// newApp builds the application. async controls whether confirmed plans are
// handed to a background worker.
func newApp(ctx context.Context, cfg *config.Config, async bool, logger *zap.Logger) (*app, error) {
	provider, err := newProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	client := llm.NewClient(provider, llm.Options{
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Timeout:           cfg.LLM.Timeout,
	}, logger)

	store, err := newPromptStore(cfg.Prompts.OverridePath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, llm: client, prompts: store, store: session.NewStore(logger)}

	var cache lookup.Cache
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		a.cache = lookup.NewRedisCache(rdb, cfg.Cache.TTL, logger)
		if err := a.cache.Ping(ctx); err != nil {
			logger.Warn("Lookup cache unreachable, continuing uncached", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		}
		cache = a.cache
	}

	ep := cfg.Research.Endpoints
	registry := lookup.NewRegistry(lookup.Endpoints{
		DuckDuckGo: ep.DuckDuckGo,
		GoogleNews: ep.GoogleNews,
		Wikipedia:  ep.Wikipedia,
		Finance:    ep.Finance,
	}, lookup.HTTPOptions{
		Timeout:           cfg.Research.LookupTimeout,
		RequestsPerSecond: cfg.Research.RequestsPerSecond,
		MaxResults:        cfg.Research.MaxResults,
	}, cache, logger)

	a.acts = activities.NewActivities(client, store, registry, activities.Config{MaxTasks: cfg.Research.MaxTasks}, logger)
	a.pipeline = workflows.NewPipeline(a.acts, logger)
	if async {
		a.worker = workflows.NewWorker(a.pipeline, cfg.Worker.QueueSize, logger)
	}
	a.controller = workflows.NewController(a.acts, a.pipeline, a.worker, logger)
	return a, nil
}

func (a *app) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}

func newProvider(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	if cfg.Provider == "offline" {
		return llm.OfflineProvider{}, nil
	}
	if cfg.APIKey == "" {
		logger.Warn("No Gemini API key configured, using offline provider")
		return llm.OfflineProvider{}, nil
	}
	p, err := llm.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	if err != nil {
		return nil, fmt.Errorf("init gemini provider: %w", err)
	}
	return p, nil
}

func newPromptStore(overridePath string) (*prompts.Store, error) {
	if overridePath == "" {
		return prompts.NewStore(nil), nil
	}
	c, err := prompts.LoadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("load prompt overrides: %w", err)
	}
	return prompts.NewStore(c), nil
}

var errNoReport = errors.New("no account plan yet; confirm a workplan first")
