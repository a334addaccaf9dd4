// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

// Package eventstream carries committed domain events from the event store
// to the projection consumers over NATS JetStream.
//
// The DuckDB event log is the system of record; the stream is a delivery
// buffer. Events enter the stream only after they are durably appended, so
// the stream can run with bounded retention and losing it costs redelivery,
// never data.
//
//	┌──────────────┐  append   ┌──────────────┐  publish  ┌──────────────┐
//	│   Command    │──────────▶│  Event store │──────────▶│  JetStream   │
//	│   pipeline   │           │   (DuckDB)   │           │   (buffer)   │
//	└──────────────┘           └──────────────┘           └──────┬───────┘
//	                                                             │ durable
//	                                                             ▼ consumers
//	                                                      ┌──────────────┐
//	                                                      │ Projections  │
//	                                                      └──────────────┘
//
// # Delivery Semantics
//
// Publishing is at-least-once. Three mechanisms keep that honest:
//
//  1. The event ID rides as Nats-Msg-Id, so the stream's duplicate window
//     collapses publish retries.
//  2. Each projection group gets a durable consumer that remembers its
//     position across restarts.
//  3. Projection checkpoints (per-group last applied global sequence) make
//     any redelivery that survives dedup a no-op.
//
// # Key Components
//
//   - EmbeddedServer: in-process NATS JetStream server so a single binary
//     carries its own transport
//   - StreamInitializer: idempotent stream provisioning before publishers
//     and subscribers start
//   - Publisher: Watermill publisher with circuit breaker protection and
//     reconnection handling
//   - Subscriber: durable queue-group consumer, one per projection group
//   - Envelope codec: RecordedEvent JSON on the wire with routing metadata
//
// # Usage
//
//	srv, err := eventstream.NewEmbeddedServer(serverCfg)
//	if err != nil {
//	    return err
//	}
//	defer srv.Shutdown(ctx)
//
//	nc, _ := nats.Connect(srv.ClientURL())
//	js, _ := jetstream.New(nc)
//
//	init, _ := eventstream.NewStreamInitializer(js, streamCfg)
//	if _, err := init.EnsureStream(ctx); err != nil {
//	    return err
//	}
//
//	pub, _ := eventstream.NewPublisher(pubCfg, logger)
//	pub.SetCircuitBreaker(eventstream.NewCircuitBreaker(
//	    eventstream.DefaultCircuitBreakerConfig("event-publish")))
//	defer pub.Close()
//
//	err = pub.PublishRecorded(ctx, recorded)
package eventstream
