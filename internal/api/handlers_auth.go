// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/auth"
	"github.com/tomtom215/promptshelf/internal/models"
)

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorWithDetails(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return
	}

	source := audit.SourceFromRequest(r)
	token, err := h.authn.Login(req.Username, req.Password)
	if err != nil {
		if h.auditor != nil {
			h.auditor.LogAuthFailure(r.Context(), req.Username, source, "invalid credentials")
		}
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid username or password", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Login failed", err)
		return
	}

	if h.auditor != nil {
		actor := audit.ActorFromUser(token.Username, token.Username, []string{token.Role}, h.authn.Mode())
		h.auditor.LogAuthSuccess(r.Context(), actor, source)
	}
	respondSuccess(w, r, http.StatusOK, models.LoginResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		Username:  token.Username,
		Role:      token.Role,
	})
}
