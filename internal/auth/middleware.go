// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/logging"
)

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// FailureRecorder is told about rejected requests.
type FailureRecorder interface {
	LogAuthFailure(ctx context.Context, username string, source audit.Source, reason string)
}

// Middleware authenticates requests.
type Middleware struct {
	service  *Service
	onError  ErrorWriter
	recorder FailureRecorder
}

// NewMiddleware creates the middleware. onError defaults to a plain 401.
// recorder may be nil.
func NewMiddleware(service *Service, onError ErrorWriter, recorder FailureRecorder) *Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}
	return &Middleware{service: service, onError: onError, recorder: recorder}
}

// Authenticate is middleware that enforces authentication
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.service.Authenticate(extractToken(r))
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			if m.recorder != nil {
				m.recorder.LogAuthFailure(r.Context(), "", audit.SourceFromRequest(r), err.Error())
			}
			m.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// extractToken reads a bearer token from the Authorization header, falling
// back to the token cookie.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}
