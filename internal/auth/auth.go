// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package auth authenticates administrators.
//
// Two modes are supported:
//
//   - jwt (default): POST /api/v1/auth/login checks the configured admin
//     username and bcrypt password hash and returns an HS256 token. Requests
//     carry it as "Authorization: Bearer <token>" or in the token cookie.
//   - none: every request is the local-admin subject with role admin. For
//     development only.
//
// Authorization decisions are made by internal/authz on the claims this
// package puts in the request context.
package auth

import (
	"context"
	"errors"
)

// Authentication modes.
const (
	ModeJWT  = "jwt"
	ModeNone = "none"
)

// RoleAdmin is the role granted to the configured administrator.
const RoleAdmin = "admin"

// LocalAdmin is the subject used when authentication is disabled.
const LocalAdmin = "local-admin"

var (
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrMissingToken is returned when a request carries no token.
	ErrMissingToken = errors.New("missing authentication token")
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid authentication token")
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ContextWithClaims stores claims in ctx.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}
