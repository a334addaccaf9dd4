// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

// Package main is the entry point for the Touchline server application.
//
// Touchline is a self-hosted football match analytics platform built around
// an event-sourced core: every match fact is an immutable domain event in a
// DuckDB event log, and all analytics views (match summaries, team metrics,
// metric timeseries) are projections rebuilt from that log.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from environment variables and config files (Koanf v2)
//  2. Event store: DuckDB append-only event log with optimistic concurrency
//  3. Snapshot store: BadgerDB aggregate snapshots with value-log GC
//  4. Read model: DuckDB analytics database for projections and queries
//  5. Event stream: NATS JetStream (embedded or external) with a provisioned stream
//  6. Publisher: Watermill JetStream publisher behind a circuit breaker
//  7. Projections: checkpointed catch-up plus live tail through a Watermill router
//  8. Application service: command/query dispatch with validation and timeouts
//  9. Supervisor tree: Suture v4 supervision of broker, projections and maintenance
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (flat names like NATS_URL, EVENT_STORE_PATH)
//   - Config file (config.yaml, path overridable via TOUCHLINE_CONFIG)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Cancels the root context, which winds down the supervisor tree
//   - Projections checkpoint and stop; the broker drains and shuts down
//   - Flushes pending async snapshots, then closes stores
//
// # Example Usage
//
// Embedded NATS (single binary, no external broker):
//
//	export NATS_EMBEDDED=true
//	export EVENT_STORE_PATH=data/events.db
//	export READ_MODELS_PATH=data/analytics.db
//	export SNAPSHOT_DIR=data/snapshots
//	./touchline
//
// External NATS cluster:
//
//	export NATS_EMBEDDED=false
//	export NATS_URL=nats://nats:4222
//	./touchline
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/touchlinehq/touchline/internal/app"
	"github.com/touchlinehq/touchline/internal/config"
	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/eventstream"
	"github.com/touchlinehq/touchline/internal/logging"
	"github.com/touchlinehq/touchline/internal/projection"
	"github.com/touchlinehq/touchline/internal/readmodel"
	"github.com/touchlinehq/touchline/internal/supervisor"
	"github.com/touchlinehq/touchline/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Service.Environment).
		Str("event_store", cfg.EventStore.Path).
		Str("read_models", cfg.ReadModels.Path).
		Bool("nats_embedded", cfg.NATS.EmbeddedServer).
		Msg("Starting Touchline")

	// Event store: the DuckDB append-only log is the system of record.
	store, err := eventstore.NewDuckDBStore(&cfg.EventStore)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()
	logging.Info().Msg("Event store initialized")

	// Snapshot store: BadgerDB, loss only costs replay time.
	snapshots, err := eventstore.NewBadgerSnapshotStore(&cfg.Snapshots)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize snapshot store")
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing snapshot store")
		}
	}()

	// Read model: projections write here, queries read here.
	readDB, err := readmodel.New(&cfg.ReadModels)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize read model database")
	}
	defer func() {
		if err := readDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing read model database")
		}
	}()
	logging.Info().Msg("Read model database initialized")

	// Event stream transport. The embedded server gives a single-binary
	// deployment; an external URL joins an existing NATS cluster.
	var embedded *eventstream.EmbeddedServer
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		serverCfg, err := eventstream.ServerConfigFromNATS(&cfg.NATS)
		if err != nil {
			logging.Fatal().Err(err).Msg("Invalid embedded NATS configuration")
		}
		embedded, err = eventstream.NewEmbeddedServer(serverCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	// Provision the JetStream stream before any publisher or subscriber
	// touches it, so no committed event is published into the void.
	nc, err := nats.Connect(natsURL, nats.Name("touchline-stream-init"))
	if err != nil {
		logging.Fatal().Err(err).Str("url", natsURL).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create JetStream context")
	}
	initializer, err := eventstream.NewStreamInitializer(js, eventstream.StreamConfigFromNATS(&cfg.NATS))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream initializer")
	}
	if _, err := initializer.EnsureStream(context.Background()); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision JetStream stream")
	}
	logging.Info().Str("stream", cfg.NATS.StreamName).Msg("JetStream stream provisioned")

	wmLogger := logging.NewWatermillAdapter()

	publisher, err := eventstream.NewPublisher(eventstream.PublisherConfigFromNATS(&cfg.NATS, natsURL), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event publisher")
	}
	publisher.SetCircuitBreaker(eventstream.NewCircuitBreaker(
		eventstream.DefaultCircuitBreakerConfig("event-publish")))
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}()

	// Projection infrastructure: durable checkpoints and the dead letter
	// queue live in the read model database so a rebuild wipes them with
	// the views they pace.
	checkpoints := projection.NewCheckpointStore(readDB.Conn())
	if err := checkpoints.CreateTable(context.Background()); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create checkpoint table")
	}
	dlqStore := projection.NewDLQStore(readDB.Conn())
	if err := dlqStore.CreateTable(context.Background()); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create dead letter table")
	}

	dlqCfg := projection.DefaultDLQConfig()
	if cfg.Projections.DLQMaxEntries > 0 {
		dlqCfg.MaxEntries = cfg.Projections.DLQMaxEntries
	}
	dlq, err := projection.NewDLQ(dlqCfg, dlqStore)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create dead letter queue")
	}

	router, err := projection.NewRouter(projection.RouterConfigFromNATS(&cfg.NATS),
		publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create projection router")
	}

	subscribers := func(consumer string) (message.Subscriber, error) {
		return eventstream.NewSubscriber(eventstream.SubscriberConfigFor(&cfg.NATS, natsURL, consumer), wmLogger)
	}

	manager, err := projection.NewManager(projection.ManagerOptions{
		Store:       store,
		Checkpoints: checkpoints,
		DLQ:         dlq,
		Router:      router,
		Subscribers: subscribers,
		Topic:       eventstream.SubjectWildcard(cfg.NATS.SubjectPrefix),
		Config:      cfg.Projections,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create projection manager")
	}

	builtins, err := projection.BuiltinsFor(readDB, cfg.Projections.Enabled)
	if err != nil {
		logging.Fatal().Err(err).Msg("Unknown projection in configuration")
	}
	for _, p := range builtins {
		if err := manager.Register(p); err != nil {
			logging.Fatal().Err(err).Str("projection", p.Name()).Msg("Failed to register projection")
		}
		logging.Info().Str("projection", p.Name()).Msg("Projection registered")
	}

	// Application service: the command/query front door.
	svc, err := app.NewService(app.ServiceOptions{
		Store:       store,
		Snapshots:   snapshots,
		Publisher:   publisher,
		ReadDB:      readDB,
		Projections: manager,
		Config:      cfg.Service,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create application service")
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing application service")
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if embedded != nil {
		tree.AddStreamingService(services.NewBrokerService(embedded))
		logging.Info().Msg("Event broker service added to supervisor tree")
	}
	tree.AddProjectionService(services.NewProjectionService(manager))
	logging.Info().Msg("Projection manager service added to supervisor tree")
	tree.AddMaintenanceService(services.NewLagSamplerService(manager, 0))
	logging.Info().Msg("Projection lag sampler added to supervisor tree")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, report := range unstopped {
			logging.Warn().Str("service", report.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
