// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/promptshelf/internal/config"
	"github.com/tomtom215/promptshelf/internal/logging"
)

// Transport names reported by Bus.Transport.
const (
	TransportChannel = "channel"
	TransportNATS    = "nats"
)

// Bus is a connected publisher and subscriber pair.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Transport  string

	closers []func() error
}

// NewLogger adapts the process logger for Watermill.
func NewLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// NewBus opens the bus described by cfg.
func NewBus(cfg *config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = NewLogger()
	}
	if cfg.Embedded {
		return newEmbeddedBus(cfg, logger)
	}
	if cfg.NATSURL == "" {
		return NewChannelBus(logger), nil
	}
	return newNATSBus(cfg.NATSURL, logger)
}

// newEmbeddedBus starts an in-process NATS server and connects to it. The
// server is shut down after the subscriber and publisher on Close.
func newEmbeddedBus(cfg *config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	port := cfg.EmbeddedPort
	if port == 0 {
		port = -1
	}
	srv, err := NewEmbeddedServer(cfg.EmbeddedHost, port)
	if err != nil {
		return nil, err
	}
	logger.Info("Embedded NATS server started", watermill.LogFields{"url": srv.ClientURL()})

	bus, err := newNATSBus(srv.ClientURL(), logger)
	if err != nil {
		_ = srv.Close()
		return nil, err
	}
	bus.closers = append(bus.closers, srv.Close)
	return bus, nil
}

// NewChannelBus returns an in-process bus. Messages published with no
// subscriber are dropped.
func NewChannelBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)
	return &Bus{
		Publisher:  ch,
		Subscriber: ch,
		Transport:  TransportChannel,
		closers:    []func() error{ch.Close},
	}
}

func newNATSBus(url string, logger watermill.LoggerAdapter) (*Bus, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("promptshelf"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	// Core NATS: lifecycle events are notifications, not a durable log.
	jetStream := wmNats.JetStreamConfig{Disabled: true}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   jetStream,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: "promptshelf",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        jetStream,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Bus{
		Publisher:  pub,
		Subscriber: sub,
		Transport:  TransportNATS,
		closers:    []func() error{sub.Close, pub.Close},
	}, nil
}

// Close closes the subscriber and publisher.
func (b *Bus) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
