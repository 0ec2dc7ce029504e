package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/libraryhub/internal/account"
	"github.com/geocoder89/libraryhub/internal/auth"
	"github.com/geocoder89/libraryhub/internal/catalog"
	"github.com/geocoder89/libraryhub/internal/circulation"
	"github.com/geocoder89/libraryhub/internal/config"
	"github.com/geocoder89/libraryhub/internal/db"
	httpx "github.com/geocoder89/libraryhub/internal/http"
	"github.com/geocoder89/libraryhub/internal/http/handlers"
	"github.com/geocoder89/libraryhub/internal/http/middlewares"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/geocoder89/libraryhub/internal/redisclient"
	"github.com/geocoder89/libraryhub/internal/repo/memory"
	"github.com/geocoder89/libraryhub/internal/repo/postgres"
	"github.com/geocoder89/libraryhub/internal/security"
	"github.com/geocoder89/libraryhub/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := observability.NewLogger(cfg.Env, "libraryhub-api")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer := observability.NoopShutdown
	if cfg.OTelEnabled {
		fn, err := observability.InitTracer(ctx, observability.TracerConfig{
			Service:  "libraryhub-api",
			Env:      cfg.Env,
			Endpoint: cfg.OTelEndpoint,
		})
		if err != nil {
			log.Warn("tracing disabled", "err", err)
		} else {
			shutdownTracer = fn
		}
	}
	defer func() {
		sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	st, closeStore, err := openStore(ctx, cfg, prom, log)
	if err != nil {
		return err
	}
	defer closeStore()

	readyChecks := map[string]handlers.PingFunc{"store": st.Ping}

	accounts := account.NewService(st.Repos().Users, security.NewPasswordHasher(cfg.BcryptCost), account.WithLogger(log))
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if created {
			log.Info("admin user created", "email", cfg.AdminEmail)
		}
	}

	var limits middlewares.LimitStore = middlewares.NewMemoryLimitStore(cfg.LoginRateLimit, cfg.LoginRateWindow)
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		limits = middlewares.NewRedisLimitStore(rdb.Raw(), cfg.LoginRateLimit, cfg.LoginRateWindow)
		readyChecks["redis"] = rdb.Ping
	}

	router := httpx.NewRouter(httpx.Deps{
		Config: cfg,
		Catalog: catalog.NewService(st,
			catalog.WithLogger(log),
			catalog.WithSanitizer(security.NewTextSanitizer()),
		),
		Circulation: circulation.NewService(st,
			circulation.WithLogger(log),
			circulation.WithMetrics(prom),
			circulation.WithJobMaxAttempts(cfg.WorkerMaxAttempts),
		),
		Accounts:    accounts,
		Tokens:      auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL),
		LoginLimits: limits,
		Prom:        prom,
		Gatherer:    reg,
		ReadyChecks: readyChecks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (store.Store, func(), error) {
	if cfg.Store == "memory" {
		log.Warn("using the in-memory store; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	if cfg.MigrateOnStart {
		version, err := db.RunMigrations(cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("migrations applied", "version", version)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolConfig{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		return nil, nil, fmt.Errorf("db connect failed: %w", err)
	}

	return postgres.NewStore(pool, prom), pool.Close, nil
}
