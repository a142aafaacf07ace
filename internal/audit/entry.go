// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package audit

import (
	"time"

	"github.com/goccy/go-json"
)

// Entry is the administrator-facing view of an audit event: who did what,
// with which parameters, and when.
type Entry struct {
	AdminID     string          `json:"adminId"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// EntryFromEvent projects an Event onto an Entry.
func EntryFromEvent(e *Event) Entry {
	return Entry{
		AdminID:     e.Actor.ID,
		Action:      e.Action,
		Description: e.Description,
		Metadata:    e.Metadata,
		Timestamp:   e.Timestamp,
	}
}

// Entries projects a slice of events.
func Entries(events []Event) []Entry {
	out := make([]Entry, len(events))
	for i := range events {
		out[i] = EntryFromEvent(&events[i])
	}
	return out
}
