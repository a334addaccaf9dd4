// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/touchlinehq/touchline/internal/logging"
)

// defaultShutdownTimeout bounds graceful stop calls made after the serve
// context is already canceled.
const defaultShutdownTimeout = 10 * time.Second

// Broker is the embedded event broker lifecycle as the service wrapper needs
// it. Satisfied by *eventstream.EmbeddedServer.
type Broker interface {
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// BrokerService supervises the embedded NATS server.
//
// The server is started by its constructor before the tree runs, because the
// publisher and subscribers need its client URL at wiring time. The wrapper
// therefore guards rather than starts: Serve fails fast if the broker is not
// accepting connections, blocks for the supervision lifetime, and shuts the
// broker down when the context ends.
type BrokerService struct {
	broker          Broker
	shutdownTimeout time.Duration
	name            string
}

// NewBrokerService creates a broker service wrapper with the default
// shutdown timeout.
func NewBrokerService(broker Broker) *BrokerService {
	return NewBrokerServiceWithTimeout(broker, defaultShutdownTimeout)
}

// NewBrokerServiceWithTimeout creates a broker service with a custom
// shutdown timeout.
func NewBrokerServiceWithTimeout(broker Broker, shutdownTimeout time.Duration) *BrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &BrokerService{
		broker:          broker,
		shutdownTimeout: shutdownTimeout,
		name:            "event-broker",
	}
}

// Serve implements suture.Service.
func (s *BrokerService) Serve(ctx context.Context) error {
	if !s.broker.IsRunning() {
		return fmt.Errorf("event broker is not running")
	}

	<-ctx.Done()

	// Fresh context: the serve context is already canceled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.broker.Shutdown(shutdownCtx); err != nil {
		logging.Warn().
			Err(err).
			Str("component", "supervisor").
			Msg("Event broker did not shut down cleanly")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor log messages.
func (s *BrokerService) String() string {
	return s.name
}
