// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package eventstore

import (
	"context"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
)

// RecordedEvent is a domain event as persisted: the envelope plus the stream
// coordinates assigned by the store. Version is the 0-based position within
// the stream; GlobalSeq is the total order across all streams and is what
// projections checkpoint against.
type RecordedEvent struct {
	domain.Event

	Version    int64     `json:"version"`
	GlobalSeq  int64     `json:"global_seq"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store is the append-only event log. Appends are atomic per call and
// guarded by optimistic concurrency: the caller states the stream version it
// last saw and the append fails with ConcurrencyConflictError if the stream
// has moved.
type Store interface {
	// Append atomically persists events to a stream. expectedVersion is
	// the current version of the stream as seen by the caller, or
	// domain.NoStreamVersion to assert the stream does not exist yet.
	// Returns the recorded events with their assigned coordinates.
	Append(ctx context.Context, streamID string, expectedVersion int64, events []domain.Event) ([]RecordedEvent, error)

	// Read returns a stream's events with version >= fromVersion, in
	// version order. Pass 0 for the full stream.
	Read(ctx context.Context, streamID string, fromVersion int64) ([]RecordedEvent, error)

	// ReadAll returns events across all streams with global_seq >
	// afterSeq, in global order, at most limit events (limit <= 0 means
	// unbounded). This is the projection rebuild path.
	ReadAll(ctx context.Context, afterSeq int64, limit int) ([]RecordedEvent, error)

	// CurrentVersion returns the version of a stream's latest event, or
	// domain.NoStreamVersion if the stream does not exist.
	CurrentVersion(ctx context.Context, streamID string) (int64, error)

	// StreamExists reports whether a stream has at least one event.
	StreamExists(ctx context.Context, streamID string) (bool, error)

	// LatestGlobalSeq returns the highest assigned global sequence, 0 when
	// the log is empty. Projection lag is measured against it.
	LatestGlobalSeq(ctx context.Context) (int64, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store.
	Close() error
}

// SnapshotStore persists aggregate snapshots keyed by stream and version.
// Snapshots are a pure read optimization: losing them costs replay time,
// never correctness, so implementations favor speed over ceremony.
type SnapshotStore interface {
	// Save persists a snapshot. Saving the same stream and version twice
	// overwrites idempotently.
	Save(ctx context.Context, snapshot domain.Snapshot) error

	// Latest returns the highest-version snapshot for a stream, or nil if
	// none exists.
	Latest(ctx context.Context, streamID string) (*domain.Snapshot, error)

	// Ping checks the snapshot store is reachable.
	Ping(ctx context.Context) error

	// Close releases the snapshot store.
	Close() error
}
