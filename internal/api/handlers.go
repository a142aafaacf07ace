// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package api serves the admin backup API over chi.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and dependencies
//   - handlers_helpers.go: response envelope and error mapping
//   - handlers_backup.go: create, list, download and restore
//   - handlers_audit.go: the backup audit trail
//   - handlers_auth.go: login
//   - handlers_health.go: liveness and readiness probes
package api

import (
	"context"
	"io"
	"time"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/auth"
	"github.com/tomtom215/promptshelf/internal/backup"
)

// BackupService is the subset of *backup.Engine the handlers call.
type BackupService interface {
	CreateBackup(ctx context.Context, admin backup.Admin, backupType string) (*backup.Archive, error)
	ListBackups(ctx context.Context) ([]backup.Archive, error)
	OpenBackup(ctx context.Context, file string) (io.ReadCloser, backup.ArchiveInfo, error)
	Restore(ctx context.Context, admin backup.Admin, req backup.RestoreRequest) (*backup.RestoreOutcome, error)
}

// Authenticator issues tokens for valid credentials.
type Authenticator interface {
	Login(username, password string) (*auth.Token, error)
	Mode() string
}

// LoginAuditor records login attempts.
type LoginAuditor interface {
	LogAuthSuccess(ctx context.Context, actor audit.Actor, source audit.Source)
	LogAuthFailure(ctx context.Context, username string, source audit.Source, reason string)
}

// AuditReader pages through stored audit events.
type AuditReader interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	Count(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

// Pinger reports database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerStater reports the event publisher's circuit breaker state.
type BreakerStater interface {
	BreakerState() string
}

// Handler contains dependencies for API handlers.
type Handler struct {
	backups        BackupService
	authn          Authenticator
	auditor        LoginAuditor
	auditReader    AuditReader
	db             Pinger
	events         BreakerStater
	transport      string
	maxUploadBytes int64
	startTime      time.Time
}

// NewHandler creates the handler. auditor and events may be nil.
// maxUploadBytes bounds restore uploads; zero uses backup.DefaultMaxUploadBytes.
func NewHandler(backups BackupService, authn Authenticator, db Pinger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = backup.DefaultMaxUploadBytes
	}
	return &Handler{
		backups:        backups,
		authn:          authn,
		db:             db,
		maxUploadBytes: maxUploadBytes,
		startTime:      time.Now(),
	}
}

// SetAuditor records login attempts to the audit log.
func (h *Handler) SetAuditor(auditor LoginAuditor) {
	h.auditor = auditor
}

// SetAuditReader enables GET /api/v1/backups/audit.
func (h *Handler) SetAuditReader(reader AuditReader) {
	h.auditReader = reader
}

// SetEventsStatus exposes the event transport and publisher breaker in the
// readiness probe.
func (h *Handler) SetEventsStatus(transport string, events BreakerStater) {
	h.transport = transport
	h.events = events
}
