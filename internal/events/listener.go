// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/logging"
)

// Listener writes every lifecycle event to the application log. It runs
// as a supervised service.
type Listener struct {
	subscriber message.Subscriber
	prefix     string
	handled    func(topic string, payload map[string]any)
}

// NewListener subscribes to both lifecycle topics under prefix.
func NewListener(sub message.Subscriber, prefix string) *Listener {
	return &Listener{subscriber: sub, prefix: prefix}
}

// Serve consumes until ctx is done.
func (l *Listener) Serve(ctx context.Context) error {
	created, err := l.subscriber.Subscribe(ctx, Topic(l.prefix, TopicBackupCreated))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicBackupCreated, err)
	}
	restored, err := l.subscriber.Subscribe(ctx, Topic(l.prefix, TopicBackupRestored))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicBackupRestored, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-created:
			if !ok {
				return fmt.Errorf("%s subscription closed", TopicBackupCreated)
			}
			l.handle(TopicBackupCreated, msg)
		case msg, ok := <-restored:
			if !ok {
				return fmt.Errorf("%s subscription closed", TopicBackupRestored)
			}
			l.handle(TopicBackupRestored, msg)
		}
	}
}

func (l *Listener) handle(topic string, msg *message.Message) {
	// Always acked, including unreadable payloads.
	defer msg.Ack()

	payload := map[string]any{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		logging.Warn().Err(err).Str("topic", topic).Str("message_id", msg.UUID).Msg("Unreadable lifecycle event")
		return
	}

	logging.Info().
		Str("topic", topic).
		Str("message_id", msg.UUID).
		Interface("admin_id", payload["adminId"]).
		Str("request_id", msg.Metadata.Get("request_id")).
		Msg("Backup lifecycle event")

	if l.handled != nil {
		l.handled(topic, payload)
	}
}

func (l *Listener) String() string {
	return "event-listener"
}
