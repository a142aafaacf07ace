// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package database

import (
	"context"
	"fmt"
)

// schemaStatements create the application tables. The DDL sticks to types
// both DuckDB and MySQL accept. Referential integrity is enforced by the
// application, so restores into a partially populated store do not trip
// over constraint ordering.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		username VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		display_name VARCHAR(128),
		password_hash VARCHAR(255),
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS prompts (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		title VARCHAR(255) NOT NULL,
		body TEXT NOT NULL,
		category VARCHAR(64),
		tags TEXT,
		is_public BOOLEAN NOT NULL DEFAULT TRUE,
		view_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		prompt_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS likes (
		user_id VARCHAR(36) NOT NULL,
		prompt_id VARCHAR(36) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, prompt_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		user_id VARCHAR(36) NOT NULL,
		prompt_id VARCHAR(36) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, prompt_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		user_id VARCHAR(36) NOT NULL,
		prompt_id VARCHAR(36) NOT NULL,
		score INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, prompt_id)
	)`,
}

func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
