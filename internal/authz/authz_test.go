// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/auth"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(EnforcerConfig{})
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	return e
}

func TestEnforcer_EmbeddedPolicy(t *testing.T) {
	e := newTestEnforcer(t)

	tests := []struct {
		subject string
		roles   []string
		object  string
		action  string
		want    bool
	}{
		{"alice", []string{"admin"}, "/api/v1/backups", ActionRead, true},
		{"alice", []string{"admin"}, "/api/v1/backups", ActionWrite, true},
		{"alice", []string{"admin"}, "/api/v1/backups/restore", ActionWrite, true},
		{"alice", []string{"admin"}, "/api/v1/backups/x.zip/download", ActionRead, true},
		{"alice", []string{"admin"}, "/api/v1/prompts", ActionRead, false},
		{"bob", []string{"viewer"}, "/api/v1/backups", ActionRead, false},
		{"bob", nil, "/api/v1/backups", ActionRead, false},
		{"admin", nil, "/api/v1/backups", ActionRead, true},
	}
	for _, tt := range tests {
		got, err := e.EnforceWithRoles(tt.subject, tt.roles, tt.object, tt.action)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("EnforceWithRoles(%s, %v, %s, %s) = %v, want %v", tt.subject, tt.roles, tt.object, tt.action, got, tt.want)
		}
	}
}

func TestEnforcer_PolicyFile(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(policy, []byte("p, operator, /api/v1/backups, read\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	e, err := NewEnforcer(EnforcerConfig{PolicyPath: policy})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.Enforce("operator", "/api/v1/backups", ActionRead); !ok {
		t.Error("operator should read backups")
	}
	if ok, _ := e.Enforce("admin", "/api/v1/backups", ActionRead); ok {
		t.Error("file policy should replace the embedded one")
	}
}

func TestLoadPolicy_Malformed(t *testing.T) {
	m := newTestEnforcer(t)
	if err := loadPolicy(m.enforcer, "p, admin, /x\n"); err == nil {
		t.Error("expected error for short policy line")
	}
}

func TestMethodToAction(t *testing.T) {
	for method, want := range map[string]string{
		http.MethodGet:    ActionRead,
		http.MethodHead:   ActionRead,
		http.MethodPost:   ActionWrite,
		http.MethodDelete: ActionWrite,
	} {
		if got := methodToAction(method); got != want {
			t.Errorf("methodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}

type denials struct {
	resources []string
}

func (d *denials) LogAuthzDenied(_ context.Context, _ audit.Actor, _ audit.Source, resource, _ string) {
	d.resources = append(d.resources, resource)
}

func TestMiddleware_AuthorizeRequest(t *testing.T) {
	recorder := &denials{}
	mw := NewMiddleware(newTestEnforcer(t), nil, recorder)
	handler := mw.AuthorizeRequest(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		claims *auth.Claims
		method string
		path   string
		want   int
	}{
		{"admin lists", &auth.Claims{Username: "a", Role: auth.RoleAdmin}, http.MethodGet, "/api/v1/backups", http.StatusNoContent},
		{"admin restores", &auth.Claims{Username: "a", Role: auth.RoleAdmin}, http.MethodPost, "/api/v1/backups/restore", http.StatusNoContent},
		{"viewer denied", &auth.Claims{Username: "v", Role: "viewer"}, http.MethodGet, "/api/v1/backups", http.StatusForbidden},
		{"no claims", nil, http.MethodGet, "/api/v1/backups", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.claims != nil {
				req = req.WithContext(auth.ContextWithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if len(recorder.resources) != 1 || recorder.resources[0] != "/api/v1/backups" {
		t.Errorf("denials = %v", recorder.resources)
	}
}
