// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package testinfra starts throwaway containers for integration tests.
//
// Everything here is behind the integration build tag and uses
// testcontainers-go, so the default test run never needs Docker:
//
//	go test -tags integration ./internal/database/...
//
// # MySQL Container
//
// MySQLContainer runs a disposable MySQL server with an empty database
// and exposes a DSN ready for config.DatabaseConfig:
//
//	func TestSomething(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    mysql, err := testinfra.NewMySQLContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, mysql)
//
//	    db, err := database.New(&config.DatabaseConfig{Driver: "mysql", DSN: mysql.DSN})
//	    // ...
//	}
//
// Tests are skipped when the Docker daemon is not reachable. The first run
// pulls the image; later runs use the local cache.
package testinfra
