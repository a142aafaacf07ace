// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/backup"
	"github.com/tomtom215/promptshelf/internal/config"
)

func TestEmbeddedServer_Lifecycle(t *testing.T) {
	srv, err := NewEmbeddedServer("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	if !srv.IsRunning() {
		t.Fatal("server not running after start")
	}
	if srv.ClientURL() == "" {
		t.Fatal("empty client URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if srv.IsRunning() {
		t.Error("server still running after shutdown")
	}
}

// NATS core drops messages published before the subscription reaches the
// server, so publish repeatedly until one arrives.
func publishUntilReceived(t *testing.T, pub *Publisher, msgs <-chan *message.Message, archive backup.Archive) *message.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	pub.BackupCreated(context.Background(), admin, archive)
	for {
		select {
		case msg := <-msgs:
			msg.Ack()
			return msg
		case <-tick.C:
			pub.BackupCreated(context.Background(), admin, archive)
		case <-deadline:
			t.Fatal("timed out waiting for message over NATS")
			return nil
		}
	}
}

func TestNewBus_Embedded(t *testing.T) {
	bus, err := NewBus(&config.EventsConfig{
		Enabled:      true,
		Embedded:     true,
		EmbeddedHost: "127.0.0.1",
		EmbeddedPort: -1,
	}, nil)
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	defer bus.Close()

	if bus.Transport != TransportNATS {
		t.Fatalf("Transport = %s, want %s", bus.Transport, TransportNATS)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := bus.Subscriber.Subscribe(ctx, "promptshelf.backup.created")
	if err != nil {
		t.Fatal(err)
	}

	pub := NewPublisher(bus.Publisher, "promptshelf", NewCircuitBreaker("test-nats", DefaultBreakerConfig()))
	archive := backup.Archive{Name: "backup-data-only-20260101-000000", File: "backup-data-only-20260101-000000.zip", Type: backup.TypeDataOnly, Size: 42}

	msg := publishUntilReceived(t, pub, msgs, archive)

	var ev BackupCreatedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Archive.Name != archive.Name || ev.Archive.Size != 42 {
		t.Errorf("archive = %+v", ev.Archive)
	}
	if msg.Metadata.Get("content_type") != "application/json" {
		t.Errorf("content_type = %q", msg.Metadata.Get("content_type"))
	}
}

func TestNewNATSBus_ExternalServer(t *testing.T) {
	srv, err := NewEmbeddedServer("127.0.0.1", -1)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	bus, err := NewBus(&config.EventsConfig{Enabled: true, NATSURL: srv.ClientURL()}, nil)
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	if bus.Transport != TransportNATS {
		t.Errorf("Transport = %s", bus.Transport)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !srv.IsRunning() {
		t.Error("closing a bus must not stop a server it does not own")
	}
}
