// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/logging"
)

// SQLStore implements Store on the application database, DuckDB or MySQL.
type SQLStore struct {
	db     *sql.DB
	driver string
	mu     sync.RWMutex
}

// NewSQLStore creates a store on db. driver is "duckdb" or "mysql" and only
// affects the DDL issued by CreateTable.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

const duckdbAuditDDL = `
	CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR PRIMARY KEY,
		occurred_at TIMESTAMP NOT NULL,
		type VARCHAR NOT NULL,
		severity VARCHAR NOT NULL,
		outcome VARCHAR NOT NULL,
		actor_id VARCHAR NOT NULL,
		actor_type VARCHAR NOT NULL,
		actor_name VARCHAR,
		actor_roles VARCHAR,
		actor_auth_method VARCHAR,
		target_id VARCHAR,
		target_type VARCHAR,
		target_name VARCHAR,
		source_ip VARCHAR NOT NULL,
		source_user_agent VARCHAR,
		source_hostname VARCHAR,
		action VARCHAR NOT NULL,
		description VARCHAR NOT NULL,
		metadata VARCHAR,
		correlation_id VARCHAR,
		request_id VARCHAR
	);
	CREATE INDEX IF NOT EXISTS idx_audit_occurred_at ON audit_events(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type);
	CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_events(actor_id)
`

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
const mysqlAuditDDL = `
	CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR(64) PRIMARY KEY,
		occurred_at DATETIME(6) NOT NULL,
		type VARCHAR(64) NOT NULL,
		severity VARCHAR(16) NOT NULL,
		outcome VARCHAR(16) NOT NULL,
		actor_id VARCHAR(255) NOT NULL,
		actor_type VARCHAR(32) NOT NULL,
		actor_name VARCHAR(255),
		actor_roles TEXT,
		actor_auth_method VARCHAR(32),
		target_id VARCHAR(255),
		target_type VARCHAR(64),
		target_name VARCHAR(255),
		source_ip VARCHAR(255) NOT NULL,
		source_user_agent TEXT,
		source_hostname VARCHAR(255),
		action VARCHAR(128) NOT NULL,
		description TEXT NOT NULL,
		metadata LONGTEXT,
		correlation_id VARCHAR(64),
		request_id VARCHAR(128),
		INDEX idx_audit_occurred_at (occurred_at),
		INDEX idx_audit_type (type),
		INDEX idx_audit_actor_id (actor_id)
	)
`

// CreateTable creates the audit_events table if it doesn't exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	ddl := duckdbAuditDDL
	if s.driver == "mysql" {
		ddl = mysqlAuditDDL
	}

	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute audit schema statement: %w", err)
		}
	}

	logging.Info().Str("driver", s.driver).Msg("Audit events table created/verified")
	return nil
}

const auditColumns = `id, occurred_at, type, severity, outcome,
	actor_id, actor_type, actor_name, actor_roles, actor_auth_method,
	target_id, target_type, target_name,
	source_ip, source_user_agent, source_hostname,
	action, description, metadata,
	correlation_id, request_id`

// Save persists an audit event.
func (s *SQLStore) Save(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := "INSERT INTO audit_events (" + auditColumns + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", 21), ", ") + ")"
	if _, err := s.db.ExecContext(ctx, query, eventParams(event)...); err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

func eventParams(event *Event) []any {
	targetID, targetType, targetName := extractTargetFields(event.Target)
	return []any{
		event.ID,
		event.Timestamp.UTC(),
		string(event.Type),
		string(event.Severity),
		string(event.Outcome),
		event.Actor.ID,
		event.Actor.Type,
		event.Actor.Name,
		marshalActorRoles(event.Actor.Roles),
		event.Actor.AuthMethod,
		targetID,
		targetType,
		targetName,
		event.Source.IPAddress,
		event.Source.UserAgent,
		event.Source.Hostname,
		event.Action,
		event.Description,
		extractMetadata(event.Metadata),
		event.CorrelationID,
		event.RequestID,
	}
}

func marshalActorRoles(roles []string) string {
	if len(roles) == 0 {
		return "[]"
	}
	if data, err := json.Marshal(roles); err == nil {
		return string(data)
	}
	return "[]"
}

func extractTargetFields(target *Target) (*string, *string, *string) {
	if target == nil {
		return nil, nil, nil
	}
	return &target.ID, &target.Type, &target.Name
}

func extractMetadata(metadata json.RawMessage) *string {
	if len(metadata) == 0 {
		return nil
	}
	s := string(metadata)
	return &s
}

// Get retrieves an event by ID.
func (s *SQLStore) Get(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+auditColumns+" FROM audit_events WHERE id = ?", id)
	var data scannedEventData
	if err := row.Scan(data.scanDestinations()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}
	return data.toEvent(), nil
}

// Query retrieves events matching the filter.
func (s *SQLStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var data scannedEventData
		if err := rows.Scan(data.scanDestinations()...); err != nil {
			logging.Warn().Err(err).Msg("Failed to scan audit event row")
			continue
		}
		events = append(events, *data.toEvent())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *SQLStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, true)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// Delete removes events older than the given time.
func (s *SQLStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE occurred_at < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).Msg("Deleted old audit events")
	}
	return count, nil
}

func buildQuery(filter QueryFilter, countOnly bool) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if cond := buildSliceCondition("type", filter.Types, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if cond := buildSliceCondition("outcome", filter.Outcomes, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	conditions, args = appendStringCondition(conditions, args, "actor_id", filter.ActorID)
	conditions, args = appendStringCondition(conditions, args, "target_id", filter.TargetID)
	conditions, args = appendStringCondition(conditions, args, "request_id", filter.RequestID)
	if filter.StartTime != nil {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, filter.StartTime.UTC())
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "occurred_at <= ?")
		args = append(args, filter.EndTime.UTC())
	}

	query := "SELECT " + auditColumns + " FROM audit_events"
	if countOnly {
		query = "SELECT COUNT(*) FROM audit_events"
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if countOnly {
		return query, args
	}

	if filter.OrderDesc {
		query += " ORDER BY occurred_at DESC, id DESC"
	} else {
		query += " ORDER BY occurred_at ASC, id ASC"
	}
	switch {
	case filter.Limit > 0:
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	case filter.Offset > 0:
		// MySQL requires LIMIT before OFFSET.
		query += " LIMIT 18446744073709551615"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query, args
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](column string, values []T, args *[]any) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func appendStringCondition(conditions []string, args []any, column, value string) ([]string, []any) {
	if value != "" {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	return conditions, args
}

// scannedEventData holds raw scanned values from the database.
type scannedEventData struct {
	event         Event
	eventType     string
	severity      string
	outcome       string
	actorName     sql.NullString
	actorRoles    sql.NullString
	authMethod    sql.NullString
	targetID      sql.NullString
	targetType    sql.NullString
	targetName    sql.NullString
	userAgent     sql.NullString
	hostname      sql.NullString
	metadata      sql.NullString
	correlationID sql.NullString
	requestID     sql.NullString
}

func (d *scannedEventData) scanDestinations() []any {
	return []any{
		&d.event.ID,
		&d.event.Timestamp,
		&d.eventType,
		&d.severity,
		&d.outcome,
		&d.event.Actor.ID,
		&d.event.Actor.Type,
		&d.actorName,
		&d.actorRoles,
		&d.authMethod,
		&d.targetID,
		&d.targetType,
		&d.targetName,
		&d.event.Source.IPAddress,
		&d.userAgent,
		&d.hostname,
		&d.event.Action,
		&d.event.Description,
		&d.metadata,
		&d.correlationID,
		&d.requestID,
	}
}

func (d *scannedEventData) toEvent() *Event {
	d.event.Timestamp = d.event.Timestamp.UTC()
	d.event.Type = EventType(d.eventType)
	d.event.Severity = Severity(d.severity)
	d.event.Outcome = Outcome(d.outcome)
	d.event.Actor.Name = d.actorName.String
	d.event.Actor.AuthMethod = d.authMethod.String
	d.event.Source.UserAgent = d.userAgent.String
	d.event.Source.Hostname = d.hostname.String
	d.event.CorrelationID = d.correlationID.String
	d.event.RequestID = d.requestID.String

	if d.actorRoles.Valid && d.actorRoles.String != "" && d.actorRoles.String != "[]" {
		if err := json.Unmarshal([]byte(d.actorRoles.String), &d.event.Actor.Roles); err != nil {
			logging.Debug().Err(err).Str("roles", d.actorRoles.String).Msg("Failed to parse actor roles JSON")
		}
	}
	if d.targetID.Valid {
		d.event.Target = &Target{
			ID:   d.targetID.String,
			Type: d.targetType.String,
			Name: d.targetName.String,
		}
	}
	if d.metadata.Valid && d.metadata.String != "" {
		d.event.Metadata = json.RawMessage(d.metadata.String)
	}
	return &d.event
}
