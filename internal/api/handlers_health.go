// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/promptshelf/internal/models"
)

// HealthLive answers 200 while the process is up, regardless of
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers 200 only when the database responds. Event
// publishing is best effort and does not affect readiness.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := models.HealthStatus{
		Status:            "ready",
		DatabaseConnected: h.db != nil && h.db.Ping(ctx) == nil,
		EventsTransport:   h.transport,
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.events != nil {
		health.EventsBreaker = h.events.BreakerState()
	}

	status := http.StatusOK
	if !health.DatabaseConnected {
		health.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, r, status, &models.APIResponse{Status: health.Status, Data: health})
}
