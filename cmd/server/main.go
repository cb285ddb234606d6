// Package main is the entry point for the chat wrapper server.
//
// main stays minimal:
//  1. load configuration (.env, then the environment)
//  2. set up logging
//  3. build the completion client and the server
//  4. create the first admin on an empty database
//  5. serve until SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sakif/chat-wrapper/internal/completion"
	"github.com/sakif/chat-wrapper/internal/config"
	"github.com/sakif/chat-wrapper/internal/server"
)

func main() {
	// A missing .env is normal in production; real env vars win either way.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	completer := completion.NewOpenAI(completion.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
	})

	ctx := context.Background()
	srv, err := server.New(ctx, cfg, completer, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	password, err := srv.BootstrapAdmin(ctx)
	if err != nil {
		logger.Error("failed to create initial admin", slog.String("error", err.Error()))
		srv.Close()
		os.Exit(1)
	}
	if password != "" {
		// Printed once; only the hash is stored.
		logger.Warn("created initial admin account; change this password after first login",
			slog.String("loginName", "admin"),
			slog.String("password", password),
		)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
