// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package services provides suture.Service wrappers for Touchline components.

This package adapts application components to the suture v4 supervision
model, translating their lifecycle patterns (constructor-started servers,
Start/Stop managers, sampling loops) into suture's context-aware Serve
pattern.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (Start/Stop to Serve pattern)
  - Graceful shutdown via context cancellation, with a fresh timeout
    context for the stop call since the serve context is already canceled
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

Broker (BrokerService):
  - Holds the embedded NATS JetStream server for its lifetime
  - Shuts the server down when the supervision context ends

Projections (ProjectionService):
  - Wraps the projection manager's Start/Stop lifecycle
  - Start replays the event log gap and begins the live tail
  - Stop drains the live tail and persists final checkpoints

Lag sampler (LagSamplerService):
  - Periodically refreshes the projection lag gauges
  - Pure observability; failures are logged and the loop continues

Dependencies are accepted as small local interfaces so the wrappers stay
decoupled from the concrete packages and trivial to fake in tests.
*/
package services
