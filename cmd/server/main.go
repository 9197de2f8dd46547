// Package main is the entry point for the reading challenge server.
//
// main only reads configuration, builds the logger and hands both to
// internal/server. Everything else lives in internal/.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"

	"github.com/sakif/reading-challenge/internal/config"
	"github.com/sakif/reading-challenge/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		// Only reachable outside production; config.Load rejects an empty
		// secret there. Sessions do not survive a restart.
		cfg.JWTSecret = randomSecret()
		logger.Warn("JWT_SECRET not set, using a random secret for this run")
	}

	if !cfg.GitHubEnabled() {
		logger.Info("GITHUB_CLIENT_ID not set, GitHub sign-in is disabled")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger writes JSON in production and human-readable text elsewhere.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
