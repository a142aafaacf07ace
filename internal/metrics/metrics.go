// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package metrics holds the process-wide Prometheus collectors and small
// Record* helpers so callers never touch label ordering directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// Backup Metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backups_total",
			Help: "Total number of backup attempts by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	BackupRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_rows",
			Help:    "Number of rows captured per backup",
			Buckets: prometheus.ExponentialBuckets(10, 10, 7),
		},
	)

	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_duration_seconds",
			Help:    "Duration of backup creation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Restore Metrics
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restores_total",
			Help: "Total number of restore attempts by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: success, partial, rejected, failed
	)

	RestoreTablesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restore_tables_total",
			Help: "Per-table restore results",
		},
		[]string{"mode", "outcome", "phase"},
	)

	RestoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "restore_duration_seconds",
			Help:    "Duration of restore operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Audit Metrics
	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of audit entries that could not be persisted",
		},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Lifecycle events published by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBackup records one backup attempt. rows is ignored on failure.
func RecordBackup(backupType string, rows int, duration time.Duration, err error) {
	BackupDuration.Observe(duration.Seconds())
	if err != nil {
		BackupsTotal.WithLabelValues(backupType, "failed").Inc()
		return
	}
	BackupsTotal.WithLabelValues(backupType, "success").Inc()
	BackupRows.Observe(float64(rows))
}

// RecordRestore records the overall outcome of one restore attempt.
func RecordRestore(mode, outcome string, duration time.Duration) {
	RestoresTotal.WithLabelValues(mode, outcome).Inc()
	RestoreDuration.Observe(duration.Seconds())
}

// RecordRestoreTable records one table's result. phase is empty on success.
func RecordRestoreTable(mode, phase string) {
	outcome := "restored"
	if phase != "" {
		outcome = "failed"
	}
	RestoreTablesTotal.WithLabelValues(mode, outcome, phase).Inc()
}

// RecordAuditFailure counts an audit entry that could not be stored.
func RecordAuditFailure() {
	AuditWriteFailures.Inc()
}

// RecordEventPublish counts one lifecycle event publish attempt.
func RecordEventPublish(topic string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	EventsPublished.WithLabelValues(topic, outcome).Inc()
}
