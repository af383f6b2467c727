package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sqlscribe/sqlscribe/internal/cli/sqlscribe"
	"github.com/sqlscribe/sqlscribe/internal/config"
)

func main() {
	// A missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("sqlscribe")
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := sqlscribe.Run(ctx, os.Args[1:], sqlscribe.Options{
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	os.Exit(code)
}
