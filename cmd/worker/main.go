package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/libraryhub/internal/config"
	"github.com/geocoder89/libraryhub/internal/db"
	"github.com/geocoder89/libraryhub/internal/notifications"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/geocoder89/libraryhub/internal/queue/worker"
	"github.com/geocoder89/libraryhub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Store != "postgres" {
		return errors.New("the worker needs APP_STORE=postgres")
	}

	log := observability.NewLogger(cfg.Env, "libraryhub-worker")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolConfig{MaxConns: int32(cfg.WorkerConcurrency + 2)})
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom := observability.NewProm(reg)

	logNotifier := notifications.NewLogNotifier(log)
	logNotifier.Delay = cfg.NotifierDelay
	logNotifier.Fail = cfg.NotifierFail

	notifier := notifications.NewProtectedNotifier(logNotifier, notifications.BreakerConfig{
		Timeout:          3 * time.Second,
		FailureThreshold: 3,
		Cooldown:         15 * time.Second,
	}, log)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:     workerID,
		PollInterval: cfg.WorkerPollInterval,
		Concurrency:  cfg.WorkerConcurrency,
	}, postgres.NewJobsRepo(pool, prom), notifier,
		worker.WithLogger(log),
		worker.WithMetrics(prom, observability.NewJobMetrics()),
	)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(pool, notifier, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerHealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	runErr := w.Run(ctx)

	sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(sctx); err != nil {
		log.Error("health server shutdown failed", "err", err)
	}

	log.Info("worker shutdown complete")
	return runErr
}
