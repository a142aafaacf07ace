// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/promptshelf/internal/backup"
	"github.com/tomtom215/promptshelf/internal/config"
	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/metrics"
)

var admin = backup.Admin{ID: "admin-1", Name: "admin"}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestTopic(t *testing.T) {
	tests := []struct {
		prefix, suffix, want string
	}{
		{"promptshelf", TopicBackupCreated, "promptshelf.backup.created"},
		{"", TopicBackupRestored, "backup.restored"},
	}
	for _, tt := range tests {
		if got := Topic(tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("Topic(%q, %q) = %q, want %q", tt.prefix, tt.suffix, got, tt.want)
		}
	}
}

func TestNewBus_DefaultsToChannel(t *testing.T) {
	bus, err := NewBus(&config.EventsConfig{Enabled: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()
	if bus.Transport != TransportChannel {
		t.Errorf("Transport = %s", bus.Transport)
	}
}

func TestPublisher_BackupCreated(t *testing.T) {
	bus := NewChannelBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := bus.Subscriber.Subscribe(ctx, "promptshelf.backup.created")
	if err != nil {
		t.Fatal(err)
	}

	pub := NewPublisher(bus.Publisher, "promptshelf", NewCircuitBreaker("test", DefaultBreakerConfig()))
	reqCtx := logging.ContextWithRequestID(context.Background(), "req-42")
	archive := backup.Archive{Name: "backup-full-20260101-000000", File: "backup-full-20260101-000000.zip", Type: backup.TypeFull, Size: 3}
	pub.BackupCreated(reqCtx, admin, archive)

	msg := receive(t, msgs)
	if msg.Metadata.Get("request_id") != "req-42" {
		t.Errorf("request_id metadata = %q", msg.Metadata.Get("request_id"))
	}

	var ev BackupCreatedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.EventID != msg.UUID || ev.AdminID != "admin-1" || ev.Archive.Size != 3 || ev.RequestID != "req-42" {
		t.Errorf("event = %+v", ev)
	}
}

func TestPublisher_BackupRestored(t *testing.T) {
	bus := NewChannelBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := bus.Subscriber.Subscribe(ctx, "backup.restored")
	if err != nil {
		t.Fatal(err)
	}

	pub := NewPublisher(bus.Publisher, "", nil)
	result := backup.RestoreResult{
		RestoredTables: []backup.TableCount{{Table: "users", Count: 2}},
		Errors:         []backup.TableFailure{{Table: "posts", Error: "constraint", Phase: backup.PhaseInsert}},
	}
	pub.BackupRestored(context.Background(), admin, backup.ModeReplace, result)

	var ev BackupRestoredEvent
	if err := json.Unmarshal(receive(t, msgs).Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Mode != backup.ModeReplace || !ev.Warnings || len(ev.Result.Errors) != 1 {
		t.Errorf("event = %+v", ev)
	}
}

// failingPublisher fails every publish.
type failingPublisher struct {
	mu    sync.Mutex
	calls int
}

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestPublisher_BreakerOpensAndFailuresAreCounted(t *testing.T) {
	failing := &failingPublisher{}
	breaker := NewCircuitBreaker("test-open", BreakerConfig{FailureThreshold: 3, Timeout: time.Hour})
	pub := NewPublisher(failing, "breaker-test", breaker)

	topic := Topic("breaker-test", TopicBackupCreated)
	before := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(topic, "failed"))

	for i := 0; i < 5; i++ {
		// Never panics or blocks the caller.
		pub.BackupCreated(context.Background(), admin, backup.Archive{})
	}

	if failing.calls != 3 {
		t.Errorf("underlying publishes = %d, want 3 before the breaker opens", failing.calls)
	}
	if pub.BreakerState() != "open" {
		t.Errorf("breaker state = %s, want open", pub.BreakerState())
	}
	after := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(topic, "failed"))
	if after-before != 5 {
		t.Errorf("error count delta = %v, want 5", after-before)
	}
}

func TestListener_LogsAndAcks(t *testing.T) {
	bus := NewChannelBus(nil)
	defer bus.Close()

	var (
		mu     sync.Mutex
		topics []string
	)
	done := make(chan struct{}, 2)
	l := NewListener(bus.Subscriber, "promptshelf")
	l.handled = func(topic string, payload map[string]any) {
		mu.Lock()
		topics = append(topics, topic)
		mu.Unlock()
		if payload["adminId"] != "admin-1" {
			t.Errorf("payload = %v", payload)
		}
		select {
		case done <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Serve(ctx) }()

	pub := NewPublisher(bus.Publisher, "promptshelf", nil)
	// Subscriptions are registered asynchronously; retry until delivered.
	deadline := time.After(2 * time.Second)
	for delivered := 0; delivered < 2; {
		pub.BackupCreated(context.Background(), admin, backup.Archive{})
		pub.BackupRestored(context.Background(), admin, backup.ModeMerge, backup.RestoreResult{})
		select {
		case <-done:
			delivered++
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("listener did not receive events")
		}
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v", err)
	}
	if l.String() != "event-listener" {
		t.Errorf("String() = %q", l.String())
	}
}
