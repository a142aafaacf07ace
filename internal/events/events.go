// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package events publishes backup lifecycle events over Watermill.
//
// The bus is an in-process Go channel by default, NATS core when
// events.nats_url is configured, or NATS core against a server started
// inside the process when events.embedded is set. Publishing is best effort: failures are
// logged and counted, and a circuit breaker stops hammering a dead broker.
// Nothing in the backup path ever waits on a subscriber.
package events

import (
	"time"

	"github.com/tomtom215/promptshelf/internal/backup"
)

// Topic suffixes. The configured prefix is prepended with a dot.
const (
	TopicBackupCreated  = "backup.created"
	TopicBackupRestored = "backup.restored"
)

// BackupCreatedEvent is the payload of backup.created.
type BackupCreatedEvent struct {
	EventID    string         `json:"eventId"`
	OccurredAt time.Time      `json:"occurredAt"`
	AdminID    string         `json:"adminId"`
	RequestID  string         `json:"requestId,omitempty"`
	Archive    backup.Archive `json:"archive"`
}

// BackupRestoredEvent is the payload of backup.restored.
type BackupRestoredEvent struct {
	EventID    string               `json:"eventId"`
	OccurredAt time.Time            `json:"occurredAt"`
	AdminID    string               `json:"adminId"`
	RequestID  string               `json:"requestId,omitempty"`
	Mode       backup.Mode          `json:"mode"`
	Warnings   bool                 `json:"warnings"`
	Result     backup.RestoreResult `json:"result"`
}

// Topic joins prefix and suffix.
func Topic(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + "." + suffix
}
