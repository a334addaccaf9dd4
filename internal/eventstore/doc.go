// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package eventstore persists the append-only event log and aggregate
snapshots.

# Event log

DuckDBStore keeps every domain event in a single events table. Rows are
immutable: the log is only ever appended to, and the append carries an
expected stream version that must match the stream's current tail.
Concurrent commands for the same match therefore serialize on the
UNIQUE(stream_id, version) constraint; the loser receives a
ConcurrencyConflictError and retries against fresh state.

Two orderings coexist:

  - version: the 0-based position within one stream, the optimistic
    concurrency token.
  - global_seq: a monotone sequence across all streams, the total order
    projections consume and checkpoint against.

# Snapshots

BadgerSnapshotStore holds aggregate snapshots keyed by stream and version.
Snapshots only shorten replay; the event log stays the source of truth, so
snapshot writes are best effort and losing the Badger directory costs
nothing but rebuild time.

# Test doubles

MemoryStore and MemorySnapshotStore implement the same interfaces with the
same conflict semantics for tests that do not want a database on disk.
*/
package eventstore
