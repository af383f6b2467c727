// Package sqlscribe implements the command line front end. Stdout carries
// nothing but the final SQL statement so the output can be piped straight
// into a database shell; all diagnostics go to stderr.
package sqlscribe

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sqlscribe/sqlscribe/internal/config"
	"github.com/sqlscribe/sqlscribe/internal/loop"
	"github.com/sqlscribe/sqlscribe/internal/model"
	"github.com/sqlscribe/sqlscribe/internal/observability"
	"github.com/sqlscribe/sqlscribe/internal/prompt"
	"github.com/sqlscribe/sqlscribe/internal/schema"
	"github.com/sqlscribe/sqlscribe/internal/schema/postgres"
	"github.com/sqlscribe/sqlscribe/internal/validate"
)

type Options struct {
	Config config.Config
	// Model overrides the HTTP client, used by tests.
	Model  model.Client
	Stdout io.Writer
	Stderr io.Writer
}

// Run parses flags, assembles the engine, and executes one translation.
// Exit codes: 0 on accepted SQL, 1 on failure, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	cfg := defaults.Config

	fs := flag.NewFlagSet("sqlscribe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { writeUsage(stderr, fs) }

	baseURL := fs.String("base-url", cfg.Model.BaseURL, "model server base URL")
	apiKey := fs.String("api-key", cfg.Model.APIKey, "API key for the model server")
	modelName := fs.String("model", cfg.Model.Name, "model identifier")
	temperature := fs.Float64("temperature", cfg.Model.Temperature, "sampling temperature")
	timeout := fs.Duration("timeout", cfg.Model.Timeout, "model request timeout (e.g. 60s)")
	maxAttempts := fs.Int("max-attempts", cfg.Loop.MaxAttempts, "maximum generate-validate rounds")
	schemaFile := fs.String("schema-file", "", "load the table registry from a YAML file")
	schemaDSN := fs.String("schema-dsn", "", "introspect the table registry from a Postgres database")
	bestEffort := fs.Bool("best-effort", cfg.Loop.BestEffort, "print the last failing candidate when attempts run out")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		_, _ = fmt.Fprintln(stderr, "a question is required")
		writeUsage(stderr, fs)
		return 2
	}
	if *schemaFile != "" && *schemaDSN != "" {
		_, _ = fmt.Fprintln(stderr, "-schema-file and -schema-dsn are mutually exclusive")
		return 2
	}
	if *maxAttempts <= 0 {
		_, _ = fmt.Fprintln(stderr, "-max-attempts must be positive")
		return 2
	}

	logger := observability.NewLogger(cfg, stderr)

	registry, err := buildRegistry(ctx, cfg, *schemaFile, *schemaDSN)
	if err != nil {
		logger.Error("schema registry setup failed", slog.String("error", err.Error()))
		return 1
	}

	gate, err := validate.NewSyntaxGate(registry)
	if err != nil {
		logger.Warn("syntax gate unavailable, lexical checks only", slog.String("error", err.Error()))
	} else {
		defer func() { _ = gate.Close() }()
	}

	client := defaults.Model
	if client == nil {
		client, err = model.NewOpenAIClient(model.OpenAIConfig{
			BaseURL:     *baseURL,
			APIKey:      *apiKey,
			Model:       *modelName,
			Temperature: *temperature,
			MaxTokens:   cfg.Model.MaxTokens,
			Timeout:     *timeout,
		})
		if err != nil {
			logger.Error("model client setup failed", slog.String("error", err.Error()))
			return 1
		}
	}

	engine := &loop.Engine{
		Model:       client,
		Prompts:     prompt.NewBuilder(registry),
		Validator:   validate.New(registry, gate),
		MaxAttempts: *maxAttempts,
		Logger:      logger,
	}

	outcome, err := engine.Run(ctx, question)
	if err != nil {
		logger.Error("translation failed", slog.String("error", err.Error()))
		return 1
	}

	if outcome.State == loop.StateAccepted {
		_, _ = fmt.Fprintln(stdout, outcome.SQL)
		return 0
	}

	last := outcome.Attempts[len(outcome.Attempts)-1]
	logger.Error("no valid SQL within the attempt limit",
		slog.String("session_id", outcome.SessionID),
		slog.Int("attempts", len(outcome.Attempts)),
		slog.Any("violations", last.Result.Messages()),
	)
	if *bestEffort && outcome.SQL != "" {
		_, _ = fmt.Fprintln(stdout, outcome.SQL)
	}
	return 1
}

func buildRegistry(ctx context.Context, cfg config.Config, filePath, dsn string) (*schema.Registry, error) {
	switch {
	case filePath != "":
		return schema.LoadFile(filePath)
	case dsn != "":
		return postgres.Load(ctx, postgres.Config{
			DSN:          dsn,
			MaxOpenConns: cfg.Schema.MaxOpenConns,
			MaxIdleConns: cfg.Schema.MaxIdleConns,
		})
	}

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

func writeUsage(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintln(w, "usage: sqlscribe [flags] <question...>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Translates a natural language question into a validated SQL query.")
	_, _ = fmt.Fprintln(w, "The SQL statement is written to stdout; logs go to stderr.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "flags:")
	fs.PrintDefaults()
}
