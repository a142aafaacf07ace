// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

// CreateBackupRequest is the body of POST /api/v1/backups. An empty type
// means full. The engine validates the type so rejected requests are
// still audited.
type CreateBackupRequest struct {
	Type string `json:"type"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}
