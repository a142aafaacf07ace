// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/promptshelf/internal/backup"
	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/metrics"
)

// BreakerConfig tunes the publish circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// DefaultBreakerConfig opens after five consecutive failures and probes
// again after thirty seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second}
}

// NewCircuitBreaker builds the breaker guarding publishes.
func NewCircuitBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Event publisher circuit breaker changed state")
		},
	})
}

// Publisher sends backup lifecycle events. It implements backup.Notifier.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	prefix    string
	now       func() time.Time
}

// NewPublisher wraps pub. A nil breaker publishes unguarded.
func NewPublisher(pub message.Publisher, prefix string, breaker *gobreaker.CircuitBreaker[any]) *Publisher {
	return &Publisher{publisher: pub, breaker: breaker, prefix: prefix, now: time.Now}
}

// BreakerState reports the circuit breaker state for health checks.
func (p *Publisher) BreakerState() string {
	if p.breaker == nil {
		return "disabled"
	}
	return p.breaker.State().String()
}

// BackupCreated publishes backup.created.
func (p *Publisher) BackupCreated(ctx context.Context, admin backup.Admin, archive backup.Archive) {
	ev := BackupCreatedEvent{
		EventID:    uuid.NewString(),
		OccurredAt: p.now().UTC(),
		AdminID:    admin.ID,
		RequestID:  logging.RequestIDFromContext(ctx),
		Archive:    archive,
	}
	p.publish(ctx, TopicBackupCreated, ev.EventID, ev)
}

// BackupRestored publishes backup.restored.
func (p *Publisher) BackupRestored(ctx context.Context, admin backup.Admin, mode backup.Mode, result backup.RestoreResult) {
	ev := BackupRestoredEvent{
		EventID:    uuid.NewString(),
		OccurredAt: p.now().UTC(),
		AdminID:    admin.ID,
		RequestID:  logging.RequestIDFromContext(ctx),
		Mode:       mode,
		Warnings:   !result.OK(),
		Result:     result,
	}
	p.publish(ctx, TopicBackupRestored, ev.EventID, ev)
}

func (p *Publisher) publish(ctx context.Context, suffix, id string, payload any) {
	topic := Topic(p.prefix, suffix)
	err := p.Publish(ctx, topic, id, payload)
	metrics.RecordEventPublish(topic, err)
	if err != nil {
		logging.CtxComponent(ctx, "events").Warn().Err(err).
			Str("topic", topic).
			Str("event_id", id).
			Msg("Failed to publish lifecycle event")
	}
}

// Publish encodes payload as JSON and sends it on topic.
func (p *Publisher) Publish(ctx context.Context, topic, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(id, data)
	msg.Metadata.Set("content_type", "application/json")
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		msg.Metadata.Set("request_id", reqID)
	}

	if p.breaker == nil {
		return p.publisher.Publish(topic, msg)
	}
	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	return err
}
