// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

func setupSQLStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLStore(db, "duckdb")
	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	// Idempotent.
	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable (second call): %v", err)
	}
	return store
}

func TestSQLStore_SaveGetRoundTrip(t *testing.T) {
	store := setupSQLStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	ev := testEvent("evt-1", EventTypeBackupRestore, OutcomePartial, ts)
	ev.Target = &Target{ID: "backup-full-20260504-103000.zip", Type: "archive"}
	ev.Metadata = MustJSON(map[string]any{"mode": "merge", "tables": []string{"users"}})
	ev.RequestID = "req-1"

	if err := store.Save(ctx, ev); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.Type != EventTypeBackupRestore || got.Outcome != OutcomePartial {
		t.Errorf("type/outcome = %s/%s", got.Type, got.Outcome)
	}
	if got.Target == nil || got.Target.ID != ev.Target.ID {
		t.Errorf("Target = %+v", got.Target)
	}
	if len(got.Actor.Roles) != 1 || got.Actor.Roles[0] != "admin" {
		t.Errorf("Roles = %v", got.Actor.Roles)
	}
	if string(got.Metadata) != string(ev.Metadata) {
		t.Errorf("Metadata = %s, want %s", got.Metadata, ev.Metadata)
	}
	if got.RequestID != "req-1" {
		t.Errorf("RequestID = %q", got.RequestID)
	}

	if _, err := store.Get(ctx, "nope"); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestSQLStore_QueryCountDelete(t *testing.T) {
	store := setupSQLStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, e := range []*Event{
		testEvent("a", EventTypeBackupCreate, OutcomeSuccess, base),
		testEvent("b", EventTypeBackupRestore, OutcomeSuccess, base.Add(time.Hour)),
		testEvent("c", EventTypeBackupRestore, OutcomeFailure, base.Add(2*time.Hour)),
	} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	events, err := store.Query(ctx, QueryFilter{Types: []EventType{EventTypeBackupRestore}, OrderDesc: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 || events[0].ID != "c" || events[1].ID != "b" {
		t.Fatalf("unexpected query result: %+v", events)
	}

	events, err = store.Query(ctx, QueryFilter{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ID != "b" {
		t.Errorf("paged query = %+v", events)
	}

	count, err := store.Count(ctx, QueryFilter{Outcomes: []Outcome{OutcomeSuccess}})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}

	deleted, err := store.Delete(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	count, _ = store.Count(ctx, QueryFilter{})
	if count != 1 {
		t.Errorf("remaining = %d, want 1", count)
	}
}

func TestBuildQuery(t *testing.T) {
	q, args := buildQuery(QueryFilter{ActorID: "admin", Offset: 5}, false)
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
	want := "LIMIT 18446744073709551615 OFFSET 5"
	if len(q) < len(want) || q[len(q)-len(want):] != want {
		t.Errorf("query %q should end with %q", q, want)
	}

	q, _ = buildQuery(QueryFilter{}, true)
	if q != "SELECT COUNT(*) FROM audit_events" {
		t.Errorf("count query = %q", q)
	}
}
