// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/audit"
)

func seedAuditStore(t *testing.T) *audit.MemoryStore {
	t.Helper()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := audit.NewMemoryStore(100)
	events := []*audit.Event{
		{ID: "e1", Timestamp: base, Type: audit.EventTypeBackupCreate, Actor: audit.Actor{ID: "admin-1"}, Action: "backup.create", Description: "Created backup-full-20260601-120000.zip"},
		{ID: "e2", Timestamp: base.Add(time.Minute), Type: audit.EventTypeAuthSuccess, Actor: audit.Actor{ID: "admin-1"}, Action: "auth.login"},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), Type: audit.EventTypeBackupRestore, Actor: audit.Actor{ID: "admin-2"}, Action: "backup.restore", Metadata: audit.MustJSON(map[string]any{"mode": "merge"})},
		{ID: "e4", Timestamp: base.Add(3 * time.Minute), Type: audit.EventTypeBackupCreate, Actor: audit.Actor{ID: "admin-1"}, Action: "backup.create"},
	}
	for _, ev := range events {
		if err := store.Save(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

type auditPage struct {
	Entries []audit.Entry `json:"entries"`
	Total   int64         `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

func TestListBackupAudit(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    []string // admin ids of the returned entries, in order
		wantTotal  int64
		wantCode   string
	}{
		{name: "defaults to backup actions newest first", query: "", wantStatus: http.StatusOK, wantIDs: []string{"admin-1", "admin-2", "admin-1"}, wantTotal: 3},
		{name: "restore only", query: "?action=backup.restore", wantStatus: http.StatusOK, wantIDs: []string{"admin-2"}, wantTotal: 1},
		{name: "by admin with paging", query: "?admin_id=admin-1&limit=1", wantStatus: http.StatusOK, wantIDs: []string{"admin-1"}, wantTotal: 2},
		{name: "since", query: "?since=2026-06-01T12:02:00Z", wantStatus: http.StatusOK, wantIDs: []string{"admin-1", "admin-2"}, wantTotal: 2},
		{name: "zero limit", query: "?limit=0", wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "limit too large", query: "?limit=5000", wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "negative offset", query: "?offset=-1", wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "non-backup action", query: "?action=auth.success", wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "bad since", query: "?since=yesterday", wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&mockBackupService{})
			h.SetAuditReader(seedAuditStore(t))

			rec := serve(h, withAdmin(httptest.NewRequest(http.MethodGet, "/api/v1/backups/audit"+tt.query, nil)))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			env := decodeEnvelope(t, rec)
			if tt.wantCode != "" {
				if env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
				}
				return
			}

			var page auditPage
			if err := json.Unmarshal(env.Data, &page); err != nil {
				t.Fatal(err)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", page.Total, tt.wantTotal)
			}
			if len(page.Entries) != len(tt.wantIDs) {
				t.Fatalf("entries = %+v, want admins %v", page.Entries, tt.wantIDs)
			}
			for i, id := range tt.wantIDs {
				if page.Entries[i].AdminID != id {
					t.Errorf("entries[%d].adminId = %q, want %q", i, page.Entries[i].AdminID, id)
				}
			}
		})
	}
}

func TestListBackupAudit_EntryShape(t *testing.T) {
	h := newTestHandler(&mockBackupService{})
	h.SetAuditReader(seedAuditStore(t))

	rec := serve(h, withAdmin(httptest.NewRequest(http.MethodGet, "/api/v1/backups/audit?action=backup.restore", nil)))
	env := decodeEnvelope(t, rec)

	var raw struct {
		Entries []map[string]json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw.Entries) != 1 {
		t.Fatalf("entries = %d", len(raw.Entries))
	}
	for _, field := range []string{"adminId", "action", "description", "metadata", "timestamp"} {
		if _, ok := raw.Entries[0][field]; !ok {
			t.Errorf("entry is missing %q: %v", field, raw.Entries[0])
		}
	}
}

func TestListBackupAudit_Unavailable(t *testing.T) {
	h := newTestHandler(&mockBackupService{})

	rec := serve(h, withAdmin(httptest.NewRequest(http.MethodGet, "/api/v1/backups/audit", nil)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
