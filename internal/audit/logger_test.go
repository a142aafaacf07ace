// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/promptshelf/internal/logging"
)

type failingStore struct {
	MemoryStore
}

func (f *failingStore) Save(context.Context, *Event) error {
	return errors.New("disk full")
}

func TestLogger_RecordIsSynchronous(t *testing.T) {
	store := NewMemoryStore(100)
	l := NewLogger(store, nil)
	defer l.Close()

	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	ev := &Event{
		Type:     EventTypeBackupCreate,
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		Actor:    SystemActor(),
		Action:   "backup.create",
	}
	if err := l.Record(ctx, ev); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("store has %d events immediately after Record, want 1", store.Len())
	}
	got, _ := store.Get(ctx, ev.ID)
	if got == nil || got.RequestID != "req-42" {
		t.Errorf("request id not propagated: %+v", got)
	}
	if got.Timestamp.IsZero() || got.ID == "" {
		t.Error("ID and Timestamp should be filled in")
	}
}

func TestLogger_RecordReportsStoreFailure(t *testing.T) {
	l := NewLogger(&failingStore{}, nil)
	defer l.Close()

	err := l.Record(context.Background(), &Event{Type: EventTypeBackupRestore, Severity: SeverityInfo})
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if err := l.Record(context.Background(), nil); err == nil {
		t.Error("expected error for nil event")
	}
}

func TestLogger_LogAsyncAndSeverityFilter(t *testing.T) {
	store := NewMemoryStore(100)
	l := NewLogger(store, &Config{LogLevel: SeverityWarning, BufferSize: 10})

	ctx := context.Background()
	l.LogAuthSuccess(ctx, ActorFromUser("u1", "alice", []string{"admin"}, "jwt"), Source{IPAddress: "10.0.0.1"})
	l.LogAuthFailure(ctx, "mallory", Source{IPAddress: "10.0.0.2"}, "invalid credentials")
	l.LogAuthzDenied(ctx, ActorFromUser("u2", "bob", []string{"viewer"}, "jwt"), Source{}, "/api/v1/backups", "POST")

	// Close drains the buffer.
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal("second Close should be a no-op")
	}

	if store.Len() != 2 {
		t.Fatalf("store has %d events, want 2 (info filtered)", store.Len())
	}
	failures, _ := store.Count(ctx, QueryFilter{Types: []EventType{EventTypeAuthFailure}})
	if failures != 1 {
		t.Errorf("auth failures = %d, want 1", failures)
	}
}

func TestLogger_Cleanup(t *testing.T) {
	store := NewMemoryStore(100)
	l := NewLogger(store, &Config{RetentionDays: 1, BufferSize: 1})
	defer l.Close()

	ctx := context.Background()
	_ = store.Save(ctx, testEvent("old", EventTypeAuthSuccess, OutcomeSuccess, time.Now().Add(-72*time.Hour)))
	_ = store.Save(ctx, testEvent("new", EventTypeAuthSuccess, OutcomeSuccess, time.Now()))

	n, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Cleanup removed %d, want 1", n)
	}

	keep := NewLogger(store, &Config{RetentionDays: 0})
	defer keep.Close()
	if n, _ := keep.Cleanup(ctx); n != 0 {
		t.Errorf("zero retention should keep everything, removed %d", n)
	}
}

func TestSourceFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := SourceFromRequest(r).IPAddress; got != tt.want {
				t.Errorf("IPAddress = %q, want %q", got, tt.want)
			}
		})
	}
}
