// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/logging"
)

func TestRespondError_LogsSanitizedError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		maxSize int
	}{
		{name: "newline injection", err: errors.New("boom\n{\"level\":\"info\"}"), want: "boom {\"level\":\"info\"}"},
		{name: "control bytes dropped", err: errors.New("a\x00b\x1bc"), want: "abc"},
		{name: "long error truncated", err: errors.New(strings.Repeat("x", 1000)), maxSize: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logging.Init(logging.Config{Level: "error", Format: "json", Output: &buf})
			t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })

			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusInternalServerError, ErrCodeInternalError, "failed", tt.err)

			if strings.Contains(rec.Body.String(), tt.err.Error()) {
				t.Error("error detail leaked into the response body")
			}

			var line struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
				t.Fatalf("log output %q: %v", buf.String(), err)
			}
			if tt.want != "" && line.Error != tt.want {
				t.Errorf("logged error = %q, want %q", line.Error, tt.want)
			}
			if tt.maxSize > 0 && len(line.Error) > tt.maxSize {
				t.Errorf("logged error length = %d, want <= %d", len(line.Error), tt.maxSize)
			}
		})
	}
}
