// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/models"
)

const maxAuditPageSize = 1000

// backupActions maps the action query value to the audit event type.
var backupActions = map[string]audit.EventType{
	"backup.create":  audit.EventTypeBackupCreate,
	"backup.restore": audit.EventTypeBackupRestore,
}

// ListBackupAudit handles GET /api/v1/backups/audit.
//
// Query parameters:
//   - limit, offset: paging (default 100, at most 1000)
//   - action: backup.create or backup.restore (repeatable, default both)
//   - admin_id: only entries by this administrator
//   - since, until: RFC 3339 bounds on the entry timestamp
func (h *Handler) ListBackupAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditReader == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Audit trail is not available", nil)
		return
	}

	q := r.URL.Query()
	filter := audit.DefaultQueryFilter()

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxAuditPageSize {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and 1000", nil)
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "offset must be a non-negative integer", nil)
			return
		}
		filter.Offset = offset
	}

	actions := q["action"]
	if len(actions) == 0 {
		actions = []string{"backup.create", "backup.restore"}
	}
	for _, a := range actions {
		t, ok := backupActions[a]
		if !ok {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "action must be backup.create or backup.restore", nil)
			return
		}
		filter.Types = append(filter.Types, t)
	}

	filter.ActorID = q.Get("admin_id")

	bounds := []struct {
		param string
		dst   **time.Time
	}{
		{"since", &filter.StartTime},
		{"until", &filter.EndTime},
	}
	for _, b := range bounds {
		v := q.Get(b.param)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, b.param+" must be an RFC 3339 timestamp", nil)
			return
		}
		*b.dst = &ts
	}

	events, err := h.auditReader.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read audit trail", err)
		return
	}

	total, err := h.auditReader.Count(r.Context(), filter)
	if err != nil {
		logging.CtxComponent(r.Context(), "api").Warn().Err(err).Msg("Failed to count audit entries")
		total = int64(filter.Offset + len(events))
	}

	respondSuccess(w, r, http.StatusOK, &models.AuditEntriesResponse{
		Entries: audit.Entries(events),
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}
