// Package main is the entry point for the Green Gaming API server.
//
// main stays small: load config, build the logger, make sure the data
// directory exists, then hand everything to internal/server.
//
// Configuration comes from config.yaml, .env and the environment; see
// internal/config for the variable names. The only required setting is
// JWT_SECRET:
//
//	JWT_SECRET=$(openssl rand -hex 32) go run ./cmd/server
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/green-gaming/internal/config"
	"github.com/sakif/green-gaming/internal/server"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (default: ./config.yaml if present)")
	envFile := flag.String("env", ".env", "path to a .env file, ignored when missing")
	flag.Parse()

	// Default level until the config says otherwise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, _ := cfg.Level() // validated by Load
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// modernc's driver will not create missing parent directories.
	if !strings.HasPrefix(cfg.DBPath, ":memory:") && !strings.HasPrefix(cfg.DBPath, "file:") {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if cfg.GitHub.ClientID == "" || cfg.GitHub.ClientSecret == "" {
		logger.Info("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set, GitHub sign-in disabled")
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
