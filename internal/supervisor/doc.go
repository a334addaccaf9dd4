// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package supervisor provides process supervision for Touchline using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running services in the application. It provides
Erlang/OTP-style supervision with automatic restart, failure isolation, and
graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure
isolation:

	RootSupervisor ("touchline")
	├── StreamingSupervisor ("streaming-layer")
	│   └── BrokerService (embedded NATS JetStream)
	├── ProjectionSupervisor ("projection-layer")
	│   └── ProjectionService (catch-up, live tail, DLQ retry worker)
	└── MaintenanceSupervisor ("maintenance-layer")
	    └── LagSamplerService (projection lag gauges)

This hierarchy ensures that:
  - A poisoned projection handler restarts the projection layer while the
    broker keeps accepting publishes
  - Maintenance loops can never take down event delivery
  - Each layer has independent failure counting

The write path (command handling, event store appends) runs on caller
goroutines, not under the tree; a projection restart never delays an append.

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - Exponential backoff prevents restart storms
  - Configurable failure thresholds and decay rates

Failure Isolation:
  - Services are organized into logical groups
  - Child supervisor failures don't propagate upward
  - Each layer has independent failure counting

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Configurable shutdown timeout per service
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Integration with slog for structured events
  - Logs service starts, stops, failures, and restarts
  - Event hooks via the sutureslog adapter; logging.NewSlogLogger bridges
    the events into the global zerolog stream

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/touchlinehq/touchline/internal/logging"
	    "github.com/touchlinehq/touchline/internal/supervisor"
	    "github.com/touchlinehq/touchline/internal/supervisor/services"
	)

	func main() {
	    tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	    if err != nil {
	        logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	    }

	    tree.AddStreamingService(services.NewBrokerService(natsServer))
	    tree.AddProjectionService(services.NewProjectionService(manager))
	    tree.AddMaintenanceService(services.NewLagSamplerService(manager, time.Minute))

	    // Start the tree (blocks until context canceled)
	    if err := tree.Serve(ctx); err != nil {
	        logging.Error().Err(err).Msg("Supervisor stopped")
	    }
	}

Background operation:

	errChan := tree.ServeBackground(ctx)

	// Do other setup...

	if err := <-errChan; err != nil {
	    logging.Error().Err(err).Msg("Supervisor error")
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // Failures before backoff
	    FailureDecay:     30.0,             // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's production-ready defaults:
  - FailureThreshold: 5 failures
  - FailureDecay: 30 seconds
  - FailureBackoff: 15 seconds
  - ShutdownTimeout: 10 seconds

# Failure Handling

The supervisor uses a failure counter with exponential decay:

 1. Each service failure increments the counter
 2. Counter decays exponentially over time (FailureDecay seconds)
 3. When counter exceeds FailureThreshold, supervisor enters backoff
 4. During backoff, restarts are delayed by FailureBackoff duration
 5. If failures continue, the child supervisor may be restarted by parent

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: Service stopped cleanly, will not be restarted
  - Return error: Service crashed, will be restarted
  - Context canceled: Shutdown requested, return promptly

# What Is NOT Supervised

The DuckDB event store and read database are intentionally not supervised:
  - They are embedded libraries, not long-running services
  - Connections are managed by their packages and closed by main
  - A corrupted embedded database requires a process restart anyway

The Badger snapshot store runs its value-log GC on an internal goroutine
owned by the store itself; it stops when the store closes.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", fmt.Sprint(svc)).Msg("Service didn't stop")
	}

Common causes:
  - Goroutines not respecting context cancellation
  - Blocked network I/O without deadlines
  - Mutex deadlocks during shutdown

# Thread Safety

The SupervisorTree is safe for concurrent use:
  - Services can be added from any goroutine
  - Remove operations are synchronized
  - Multiple services can crash simultaneously

# See Also

  - internal/supervisor/services: Service wrappers
  - github.com/thejerf/suture/v4: Underlying library
*/
package supervisor
