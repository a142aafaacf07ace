// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/promptshelf/internal/logging"
)

func serveWithRequestID(t *testing.T, header string) (ctxID, corrID, respID string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
		corrID = logging.CorrelationIDFromContext(r.Context())
		if logging.RequestIDFromContext(r.Context()) != ctxID {
			t.Error("logging context request id differs from middleware id")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/backups", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return ctxID, corrID, rec.Header().Get(RequestIDHeader)
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	t.Parallel()

	ctxID, corrID, respID := serveWithRequestID(t, "")
	if _, err := uuid.Parse(respID); err != nil {
		t.Errorf("response X-Request-ID is not a valid UUID: %v", err)
	}
	if ctxID != respID {
		t.Errorf("context id %q != response id %q", ctxID, respID)
	}
	if corrID == "" {
		t.Error("expected correlation id in context")
	}
}

func TestRequestID_Upstream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		header   string
		preserve bool
	}{
		{"preserves sane id", "upstream-abc-123", true},
		{"replaces control characters", "bad\nid", false},
		{"replaces oversized id", strings.Repeat("a", maxUpstreamRequestID+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctxID, _, respID := serveWithRequestID(t, tt.header)
			if (respID == tt.header) != tt.preserve {
				t.Errorf("response id = %q, preserve = %v", respID, tt.preserve)
			}
			if ctxID != respID {
				t.Errorf("context id %q != response id %q", ctxID, respID)
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}
