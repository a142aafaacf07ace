// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/auth"
	"github.com/tomtom215/promptshelf/internal/backup"
	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/models"
	"github.com/tomtom215/promptshelf/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *models.APIResponse) {
	response.Metadata.Timestamp = time.Now().UTC()
	if r != nil {
		response.Metadata.RequestID = logging.RequestIDFromContext(r.Context())
	}

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, r, status, &models.APIResponse{Status: "success", Data: data})
}

// respondError sends an error response. err is logged, never sent.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	respondErrorWithDetails(w, r, status, code, message, nil, err)
}

func respondErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}, err error) {
	if err != nil {
		log := logging.Error()
		if r != nil {
			log = logging.Ctx(r.Context()).Error()
		}
		log.Str("code", code).Str("error", logging.SanitizeValue(err.Error())).Msg("API error")
	}

	respondJSON(w, r, status, &models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// validateRequest validates a struct using go-playground/validator.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// respondBackupError maps engine errors onto status codes. Precondition
// failures carry their message since they describe the client's input.
func respondBackupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, backup.ErrInvalidType), errors.Is(err, backup.ErrInvalidMode),
		errors.Is(err, backup.ErrUnknownTable):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
	case errors.Is(err, backup.ErrInvalidFileName):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid backup file name", nil)
	case backup.IsPrecondition(err):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, backup.ErrArchiveExists):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "A backup with this name already exists, retry in a second", nil)
	case errors.Is(err, backup.ErrArchiveNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Backup not found", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Backup operation failed", err)
	}
}

// WriteAuthError renders authentication failures in the API envelope.
func WriteAuthError(w http.ResponseWriter, r *http.Request, err error) {
	message := "Authentication required"
	if errors.Is(err, auth.ErrInvalidToken) {
		message = "Invalid or expired token"
	}
	respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, message, nil)
}

// WriteAuthzError renders authorization failures in the API envelope.
func WriteAuthzError(w http.ResponseWriter, r *http.Request, status int, message string) {
	code := ErrCodeForbidden
	if status >= http.StatusInternalServerError {
		code = ErrCodeInternalError
	}
	respondError(w, r, status, code, message, nil)
}

// writeRateLimited is the httprate limit handler.
func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Too many requests", nil)
}
