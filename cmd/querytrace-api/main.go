package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/querytrace/querytrace/internal/agent"
	"github.com/querytrace/querytrace/internal/api"
	"github.com/querytrace/querytrace/internal/auth"
	"github.com/querytrace/querytrace/internal/config"
	"github.com/querytrace/querytrace/internal/database"
	"github.com/querytrace/querytrace/internal/nlquery"
	"github.com/querytrace/querytrace/internal/observability"
	"github.com/querytrace/querytrace/internal/query/sqldb"
	"github.com/querytrace/querytrace/internal/schema"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("querytrace-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	// Connection failures surface per request as a failed connect step.
	db, target, err := database.OpenPool(database.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ReadOnly:        !cfg.Agent.AllowWrites,
	})
	if err != nil {
		logger.Error("failed to open database", slog.String("url", database.Redact(cfg.Database.URL)), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	provider := schema.WithCache(
		schema.NewInspector(db, target.Dialect, cfg.Database.SchemaSampleRows, cfg.Database.Tables()),
		cfg.Database.SchemaCacheTTL,
	)
	engine := sqldb.NewEngine(db, target.Dialect, cfg.Agent.AllowWrites)
	builder := &agent.Builder{
		Logger:        logger,
		NewModel:      agent.NewModelFactory(cfg.AI, nil),
		Tools:         agent.NewSQLToolbox(provider, engine, cfg.Agent.RowLimit),
		Dialect:       string(target.Dialect),
		TopK:          cfg.Agent.TopK,
		MaxIterations: cfg.Agent.MaxIterations,
		RunTimeout:    cfg.Agent.RunTimeout,
	}

	deps := api.Dependencies{
		Logger:   logger,
		Answerer: nlquery.NewService(db, provider, builder, logger),
		Schema:   provider,
		Readiness: api.CombineReadinessChecks(
			api.PingCheck(db),
			api.CheckAIConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		if validator.Len() == 0 {
			logger.Warn("auth required but no static keys configured; every protected request will be rejected")
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dialect", string(target.Dialect)),
			slog.String("provider", cfg.AI.Provider),
			slog.String("model", cfg.AI.Model),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
