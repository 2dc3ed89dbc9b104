package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/config"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/health"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/httpapi"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/logging"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/prompts"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/streaming"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/tracing"
)

const shutdownTimeout = 15 * time.Second

var serveAsync bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, admin endpoints and pipeline worker",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveAsync, "async", false, "Run confirmed plans on the background worker (overrides worker.async)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.Endpoint,
	}, logger)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = shutdownTracing(sctx)
		}()
	}

	async := cfg.Worker.Async || serveAsync
	a, err := newApp(ctx, cfg, async, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	hm := health.NewManager(logger)
	_ = hm.RegisterChecker(health.NewBreakerChecker("llm", a.llm))
	_ = hm.RegisterChecker(health.NewBreakerSetChecker("circuit_breakers", circuitbreaker.GlobalMetricsCollector))
	if a.cache != nil {
		_ = hm.RegisterChecker(health.NewPingChecker("lookup_cache", a.cache, false))
	}

	adminMux := http.NewServeMux()
	adminMux.Handle("GET /metrics", promhttp.Handler())
	health.NewHTTPHandler(hm, logger).RegisterRoutes(adminMux)

	api := httpapi.NewServer(a.store, a.controller, a.acts, streaming.Get(), logger)

	servers := []*http.Server{
		// No write timeout on the API server: progress streams stay open.
		{Addr: ":" + strconv.Itoa(cfg.Server.Port), Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 60 * time.Second},
		{Addr: ":" + strconv.Itoa(cfg.Server.AdminPort), Handler: adminMux, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, IdleTimeout: 60 * time.Second},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("HTTP shutdown", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}
		return nil
	})
	g.Go(func() error {
		circuitbreaker.StartMetricsCollection(gctx, 15*time.Second)
		return nil
	})
	if a.worker != nil {
		g.Go(func() error { return a.worker.Run(gctx) })
	}
	if path := cfg.Prompts.OverridePath; path != "" {
		w, err := prompts.NewWatcher(path, a.prompts, logger)
		if err != nil {
			logger.Warn("Prompt hot reload disabled", zap.Error(err))
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	logger.Info("accountplan started",
		zap.Int("port", cfg.Server.Port),
		zap.Int("admin_port", cfg.Server.AdminPort),
		zap.Bool("async", async),
		zap.Int("max_tasks", a.acts.MaxTasks()),
	)
	err = g.Wait()
	logger.Info("accountplan stopped")
	return err
}
