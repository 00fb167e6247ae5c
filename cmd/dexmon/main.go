package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/deluthium/dexmon/internal/api"
	"github.com/deluthium/dexmon/internal/auth"
	"github.com/deluthium/dexmon/internal/config"
	"github.com/deluthium/dexmon/internal/durable"
	"github.com/deluthium/dexmon/internal/health"
	"github.com/deluthium/dexmon/internal/latency"
	"github.com/deluthium/dexmon/internal/sched"
	"github.com/deluthium/dexmon/internal/store"
	"github.com/deluthium/dexmon/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("dexmon starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	m := cfg.Monitor

	slog.Info("config loaded",
		"http_port", m.HTTPPort,
		"endpoints", len(m.Health.Endpoints),
		"operations", len(m.Latency.Operations),
		"durable", m.Durable.Path != "",
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Durable log is optional; when configured it must be usable at boot —
	// serving with an unverified backend would silently break long-window
	// uptime answers.
	var log *durable.Log
	if m.Durable.Path != "" {
		log, err = durable.Open(m.Durable.Path)
		if err != nil {
			slog.Error("failed to open durable log", "path", m.Durable.Path, "err", err)
			os.Exit(1)
		}
		defer log.Close()
	} else {
		slog.Warn("no durable log configured — uptime queries fall back to bounded in-memory history")
	}

	st := store.New(log)
	metrics := telemetry.New()
	checker := health.New(m.Health, st, metrics)
	tracker := latency.New(m.Latency, st, metrics)

	// Rate limiter with background window purge.
	limiter := auth.NewLimiter(m.RateLimit.Window, m.RateLimit.MaxRequests)
	go limiter.Run(ctx)

	gate := auth.New(
		m.Auth.Key(),
		m.Auth.EffectiveHeader(),
		[]string{"/health", "/metrics", "/api/health"},
		limiter,
		metrics.ObserveRateLimited,
	)

	// Two independent probe jobs; a tick overlapping its predecessor is
	// skipped, not queued.
	scheduler := sched.New(
		sched.Job{Name: "health", Interval: m.Health.Interval, Run: func(ctx context.Context) {
			checker.CheckAll(ctx)
		}},
		sched.Job{Name: "latency", Interval: m.Latency.Interval, Run: func(ctx context.Context) {
			tracker.CheckAll(ctx)
		}},
	)
	go scheduler.Run(ctx)

	// Config changes cannot rebind the probe set; watch only to tell the
	// operator a restart is needed.
	go func() {
		err := config.Watch(ctx, *configPath, func(*config.Config) {
			slog.Warn("config changed on disk — restart dexmon to apply")
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	handler := api.New(st, checker, tracker, m.Health.Endpoints, m.Latency.Operations, metrics.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", m.HTTPPort),
		Handler: gate.Middleware(handler),
	}
	go func() {
		slog.Info("query API listening", "port", m.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("dexmon shutting down")
	srv.Shutdown(context.Background()) //nolint:errcheck
}
