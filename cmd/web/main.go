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

	"github.com/AdamBeresnev/op-tournament/internal/config"
	"github.com/AdamBeresnev/op-tournament/internal/db"
	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/service"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/AdamBeresnev/op-tournament/internal/tracing"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "op-tournament",
		Usage: "double elimination brackets for tournament events",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run migrations and start the HTTP API",
				Action: func(c *cli.Context) error { return serve(c.Context, logger) },
			},
			{
				Name:  "migrate",
				Usage: "apply pending database migrations",
				Action: func(c *cli.Context) error {
					cfg, database, err := open()
					if err != nil {
						return err
					}
					defer database.Close()
					return db.RunMigrations(database, cfg.Migrations())
				},
			},
			{
				Name:      "seed",
				Usage:     "import events and teams from a YAML file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("seed expects exactly one file", 2)
					}
					_, database, err := open()
					if err != nil {
						return err
					}
					defer database.Close()

					data, err := loadSeedFile(c.Args().First())
					if err != nil {
						return err
					}
					return importSeed(c.Context, store.NewEventStore(database), data, logger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func open() (*config.Config, *sqlx.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	database, err := db.InitDB(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, database, nil
}

func serve(ctx context.Context, logger *slog.Logger) error {
	cfg, database, err := open()
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()

	if err := db.RunMigrations(database, cfg.Migrations()); err != nil {
		return err
	}

	middleware.InitAuth(cfg.Auth)

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Auth.SessionLifetime
	if cfg.Database.Driver == "sqlite3" {
		sessionManager.Store = sqlite3store.New(database.DB)
	} else {
		sessionManager.Store = memstore.New()
	}

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(database.DB, "op_tournament"))

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(registry)),
		service.WithRetry(service.RetryConfig(cfg.Retry)),
		service.WithTracer(tp.Tracer("github.com/AdamBeresnev/op-tournament/internal/service")),
	}
	brackets := store.NewBracketStore(database)
	events := store.NewEventStore(database)
	userStore := store.NewUserStore(database)

	router := newRouter(&server{
		db:             database,
		sessionManager: sessionManager,
		registry:       registry,
		allowedOrigins: cfg.HTTP.AllowedOrigins,
		userStore:      userStore,
		brackets:       service.NewBracketService(database, brackets, events, opts...),
		matches:        service.NewMatchService(database, brackets, opts...),
		users:          service.NewUserService(database, userStore, cfg.Auth.AdminEmails),
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return srv.Close()
		}
	}
	logger.Info("server stopped")
	return nil
}
