// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package authz

import (
	"context"
	"net/http"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/auth"
	"github.com/tomtom215/promptshelf/internal/logging"
)

// DenialRecorder is told about refused requests.
type DenialRecorder interface {
	LogAuthzDenied(ctx context.Context, actor audit.Actor, source audit.Source, resource, action string)
}

// ErrorWriter renders a refusal with the given status.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, message string)

// Middleware provides authorization middleware using Casbin.
type Middleware struct {
	enforcer *Enforcer
	onError  ErrorWriter
	recorder DenialRecorder
}

// NewMiddleware creates the middleware. onError defaults to http.Error and
// recorder may be nil.
func NewMiddleware(enforcer *Enforcer, onError ErrorWriter, recorder DenialRecorder) *Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{enforcer: enforcer, onError: onError, recorder: recorder}
}

// AuthorizeRequest derives the action from the HTTP method and the object
// from the request path.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			m.onError(w, r, http.StatusForbidden, "Forbidden: no authentication context")
			return
		}

		action := methodToAction(r.Method)
		object := r.URL.Path

		allowed, err := m.enforcer.EnforceWithRoles(claims.Username, claims.Roles(), object, action)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
			m.onError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		if !allowed {
			if m.recorder != nil {
				actor := audit.ActorFromUser(claims.Username, claims.Username, claims.Roles(), "jwt")
				m.recorder.LogAuthzDenied(r.Context(), actor, audit.SourceFromRequest(r), object, action)
			}
			m.onError(w, r, http.StatusForbidden, "Forbidden: insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}
