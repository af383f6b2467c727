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

	"github.com/sqlscribe/sqlscribe/internal/api"
	"github.com/sqlscribe/sqlscribe/internal/auth"
	"github.com/sqlscribe/sqlscribe/internal/config"
	"github.com/sqlscribe/sqlscribe/internal/loop"
	"github.com/sqlscribe/sqlscribe/internal/model"
	"github.com/sqlscribe/sqlscribe/internal/observability"
	"github.com/sqlscribe/sqlscribe/internal/prompt"
	"github.com/sqlscribe/sqlscribe/internal/schema"
	"github.com/sqlscribe/sqlscribe/internal/schema/postgres"
	"github.com/sqlscribe/sqlscribe/internal/validate"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlscribe-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	registry, err := loadRegistry(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load schema registry", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("schema registry loaded",
		slog.String("source", string(cfg.Schema.Source)),
		slog.Int("tables", registry.TableCount()),
	)

	gate, err := validate.NewSyntaxGate(registry)
	if err != nil {
		logger.Error("failed to initialize syntax gate", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = gate.Close() }()

	client, err := model.NewOpenAIClient(model.OpenAIConfig{
		BaseURL:     cfg.Model.BaseURL,
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		Timeout:     cfg.Model.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}

	engine := &loop.Engine{
		Model:       client,
		Prompts:     prompt.NewBuilder(registry),
		Validator:   validate.New(registry, gate),
		MaxAttempts: cfg.Loop.MaxAttempts,
		Logger:      logger,
	}

	deps := api.Dependencies{
		Logger:            logger,
		Translator:        engine,
		Registry:          registry,
		Readiness:         api.CheckModelConfig(cfg),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
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
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
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

func loadRegistry(ctx context.Context, cfg config.Config) (*schema.Registry, error) {
	switch cfg.Schema.Source {
	case config.SchemaSourceFile:
		return schema.LoadFile(cfg.Schema.Path)
	case config.SchemaSourcePostgres:
		return postgres.Load(ctx, postgres.Config{
			DSN:          cfg.Schema.DSN,
			MaxOpenConns: cfg.Schema.MaxOpenConns,
			MaxIdleConns: cfg.Schema.MaxIdleConns,
		})
	default:
		return schema.Default(), nil
	}
}
