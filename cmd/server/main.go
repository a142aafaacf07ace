// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package main is the entry point for the Promptshelf admin backup server.
//
// The server initializes components in this order:
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Database (DuckDB by default, MySQL with DB_DRIVER=mysql)
//  3. Audit trail (audit_events table in the same database)
//  4. Archive store (local directory or S3) and Badger catalog
//  5. Lifecycle events (in-process channel, NATS with NATS_URL, or embedded NATS
//     with NATS_EMBEDDED=true)
//  6. Backup engine
//  7. Authentication (JWT or none) and Casbin authorization
//  8. HTTP server, run with the audit logger and event listener under a
//     suture supervisor tree
//
// For JWT authentication (default):
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export ADMIN_USERNAME=admin
//	export ADMIN_PASSWORD=secure-password
//	./promptshelf
//
// SIGINT and SIGTERM stop the tree, which drains in-flight requests and
// flushes the audit buffer before the database is closed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/promptshelf/internal/config"
	"github.com/tomtom215/promptshelf/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("backup_storage", cfg.Backup.Storage).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("events", cfg.Events.Enabled).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer app.close()

	logging.Info().Str("addr", app.server.Addr).Msg("Starting Promptshelf with supervisor tree")
	if err := app.run(ctx); err != nil {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}
	logging.Info().Msg("Server stopped")
}
