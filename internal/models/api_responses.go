// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package models holds the JSON shapes shared by API handlers.
package models

import "time"

// APIResponse is the envelope for every JSON API response.
//
// Success:
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//
// Error:
//
//	{"status": "error", "data": null, "metadata": {...},
//	 "error": {"code": "VALIDATION_ERROR", "message": "...", "details": {...}}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata describes the response itself.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError is a machine-readable code plus a human-readable message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RestoreResponse is the body of a restore that got past validation. A
// restore with failed tables is still a 200 with Warnings set.
type RestoreResponse struct {
	Message  string      `json:"message"`
	Result   interface{} `json:"result"`
	Warnings bool        `json:"warnings,omitempty"`
}

// AuditEntriesResponse is one page of the backup audit trail, newest first.
type AuditEntriesResponse struct {
	Entries interface{} `json:"entries"`
	Total   int64       `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

// LoginResponse carries a freshly issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// HealthStatus is the readiness probe body.
type HealthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected"`
	EventsTransport   string  `json:"events_transport,omitempty"`
	EventsBreaker     string  `json:"events_breaker,omitempty"`
	Uptime            float64 `json:"uptime"`
}
