// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

//go:build integration

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/config"
	"github.com/tomtom215/promptshelf/internal/testinfra"
)

func setupMySQL(t *testing.T) *DB {
	t.Helper()
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	container, err := testinfra.NewMySQLContainer(ctx,
		testinfra.WithContainerLogger(testinfra.NewContainerLogger(t)))
	if err != nil {
		t.Fatalf("start mysql: %v", err)
	}
	t.Cleanup(func() {
		if t.Failed() {
			testinfra.DumpLogs(t, ctx, container)
		}
		testinfra.CleanupContainer(t, ctx, container)
	})

	db, err := New(&config.DatabaseConfig{Driver: "mysql", DSN: container.DSN})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMySQL_TableOperations(t *testing.T) {
	db := setupMySQL(t)
	ctx := context.Background()

	if db.Driver() != "mysql" {
		t.Fatalf("Driver() = %q", db.Driver())
	}

	users := []Row{
		{"id": "u2", "username": "bob", "email": "bob@example.com", "role": "user", "created_at": "2026-02-01T08:00:00Z"},
		{"id": "u1", "username": "alice", "email": "alice@example.com", "role": "admin", "created_at": "2026-01-01T08:00:00Z"},
	}
	if n, err := db.InsertRows(ctx, "users", users); err != nil || n != 2 {
		t.Fatalf("InsertRows() = %d, %v", n, err)
	}

	got, err := db.ReadTable(ctx, "users", []string{"id"})
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(got) != 2 || got[0]["id"] != "u1" || got[1]["id"] != "u2" {
		t.Fatalf("ReadTable() = %v", got)
	}
	created, ok := got[0]["created_at"].(time.Time)
	if !ok || !created.Equal(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("created_at = %#v", got[0]["created_at"])
	}

	// A row already present is satisfied without being overwritten.
	merge := []Row{
		{"id": "u1", "username": "changed", "email": "x@example.com", "role": "user", "created_at": "2026-01-01T08:00:00Z"},
		{"id": "u3", "username": "carol", "email": "carol@example.com", "role": "user", "created_at": "2026-03-01T08:00:00Z"},
	}
	if n, err := db.MergeRows(ctx, "users", []string{"id"}, merge); err != nil || n != 2 {
		t.Fatalf("MergeRows() = %d, %v", n, err)
	}
	got, err = db.ReadTable(ctx, "users", []string{"id"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0]["username"] != "alice" {
		t.Errorf("after merge = %v", got)
	}

	deleted, err := db.DeleteAll(ctx, "users")
	if err != nil || deleted != 3 {
		t.Fatalf("DeleteAll() = %d, %v", deleted, err)
	}
}

func TestMySQL_TypedColumnsRoundTrip(t *testing.T) {
	db := setupMySQL(t)
	ctx := context.Background()

	prompts := []Row{{
		"id": "p1", "user_id": "u1", "title": "Summarize", "body": "Summarize this text",
		"is_public": false, "view_count": json.Number("12"),
		"created_at": "2026-04-01 10:00:00", "updated_at": nil,
	}}
	if _, err := db.InsertRows(ctx, "prompts", prompts); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}

	got, err := db.ReadTable(ctx, "prompts", []string{"id"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	row := got[0]
	if row["view_count"] != int64(12) {
		t.Errorf("view_count = %#v", row["view_count"])
	}
	// MySQL stores BOOLEAN as TINYINT(1).
	if row["is_public"] != int64(0) && row["is_public"] != false {
		t.Errorf("is_public = %#v", row["is_public"])
	}
	if row["updated_at"] != nil {
		t.Errorf("updated_at = %#v, want nil", row["updated_at"])
	}
}

func TestMySQL_InsertIsAllOrNothing(t *testing.T) {
	db := setupMySQL(t)
	ctx := context.Background()

	rows := []Row{
		{"user_id": "u1", "prompt_id": "p1", "created_at": "2026-01-01T00:00:00Z"},
		{"user_id": "u1", "prompt_id": "p1", "created_at": "2026-01-01T00:00:00Z"},
	}
	if _, err := db.InsertRows(ctx, "likes", rows); err == nil {
		t.Fatal("duplicate primary key accepted")
	}
	if n, _ := db.CountRows(ctx, "likes"); n != 0 {
		t.Errorf("CountRows = %d after failed insert, want 0", n)
	}

	if _, err := db.ReadTable(ctx, "missing_table", nil); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("error = %v, want ErrUnknownTable", err)
	}
}

func TestMySQL_AuditStore(t *testing.T) {
	db := setupMySQL(t)
	ctx := context.Background()

	store := audit.NewSQLStore(db.Conn(), db.Driver())
	if err := store.CreateTable(ctx); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	ev := &audit.Event{
		ID:        "evt-mysql",
		Timestamp: time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		Type:      audit.EventTypeBackupCreate,
		Severity:  audit.SeverityInfo,
		Outcome:   audit.OutcomeSuccess,
		Actor:     audit.Actor{ID: "admin-1", Type: "user", Name: "admin"},
		Action:    "backup.create",
	}
	if err := store.Save(ctx, ev); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, "evt-mysql")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != audit.EventTypeBackupCreate || got.Actor.ID != "admin-1" {
		t.Errorf("event = %+v", got)
	}
}
