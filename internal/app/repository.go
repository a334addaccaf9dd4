// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/logging"
	"github.com/touchlinehq/touchline/internal/metrics"
)

// snapshotSaveTimeout bounds the detached background snapshot write.
const snapshotSaveTimeout = 5 * time.Second

// EventPublisher pushes freshly committed events to the stream transport.
// *eventstream.Publisher satisfies it; tests substitute fakes.
type EventPublisher interface {
	PublishRecorded(ctx context.Context, events []eventstore.RecordedEvent) error
}

// Repository loads and saves MatchAnalytics aggregates. Load is snapshot
// plus replay; Save is the append/publish/snapshot tail of the command
// pipeline. The repository holds no aggregate state between calls.
type Repository struct {
	store     eventstore.Store
	snapshots eventstore.SnapshotStore
	publisher EventPublisher
	threshold int

	wg sync.WaitGroup
}

// NewRepository wires the repository. The snapshot store and publisher are
// optional: without snapshots every load replays the full stream, without a
// publisher projections rely on catch-up scans alone. threshold <= 0
// disables automatic snapshots.
func NewRepository(store eventstore.Store, snapshots eventstore.SnapshotStore, publisher EventPublisher, threshold int) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("repository: event store is required")
	}
	return &Repository{
		store:     store,
		snapshots: snapshots,
		publisher: publisher,
		threshold: threshold,
	}, nil
}

// Load reconstructs a match aggregate from the latest snapshot plus the
// events recorded after it. A missing stream is a NotFoundError. Snapshot
// read failures degrade to a full replay, never to a failed load.
func (r *Repository) Load(ctx context.Context, matchID string, opts ...domain.AggregateOption) (*domain.MatchAnalytics, error) {
	var snap *domain.Snapshot
	if r.snapshots != nil {
		loaded, err := r.snapshots.Latest(ctx, matchID)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("component", "repository").
				Str("match_id", matchID).
				Msg("Snapshot load failed, replaying full stream")
		} else {
			snap = loaded
		}
	}

	if snap == nil {
		recorded, err := r.store.Read(ctx, matchID, 0)
		if err != nil {
			return nil, err
		}
		if len(recorded) == 0 {
			return nil, &domain.NotFoundError{Kind: "match", ID: matchID}
		}

		events := make([]domain.Event, len(recorded))
		for i := range recorded {
			events[i] = recorded[i].Event
		}
		metrics.RecordAggregateReplay(len(events))
		return domain.FromEvents(matchID, events, opts...)
	}

	agg, err := domain.FromSnapshot(*snap, opts...)
	if err != nil {
		return nil, err
	}
	metrics.RecordSnapshotLoad()

	recorded, err := r.store.Read(ctx, matchID, snap.Version+1)
	if err != nil {
		return nil, err
	}
	for i := range recorded {
		if err := agg.ApplyEvent(recorded[i].Event); err != nil {
			return nil, err
		}
	}
	metrics.RecordAggregateReplay(len(recorded))
	return agg, nil
}

// Save appends the aggregate's uncommitted events with optimistic
// concurrency, publishes them to the stream, marks them committed and kicks
// off a background snapshot when the stream crossed the threshold. A
// ConcurrencyConflictError propagates with nothing written. Publish
// failures are logged only: the append is durable and projections heal from
// the log.
func (r *Repository) Save(ctx context.Context, agg *domain.MatchAnalytics) ([]eventstore.RecordedEvent, error) {
	uncommitted := agg.UncommittedEvents()
	if len(uncommitted) == 0 {
		return nil, nil
	}

	matchID := agg.MatchID().String()
	expected := agg.Version() - int64(len(uncommitted))

	recorded, err := r.store.Append(ctx, matchID, expected, uncommitted)
	if err != nil {
		return nil, err
	}

	if r.publisher != nil {
		if err := r.publisher.PublishRecorded(ctx, recorded); err != nil {
			logging.Warn().
				Err(err).
				Str("component", "repository").
				Str("match_id", matchID).
				Int("events", len(recorded)).
				Msg("Publish after append failed, projections will catch up from the log")
		}
	}

	agg.MarkEventsAsCommitted()
	r.maybeSnapshot(agg, expected)

	return recorded, nil
}

// Snapshot synchronously snapshots a match's current state. This is the
// admin path; unlike the automatic background snapshot its errors propagate.
func (r *Repository) Snapshot(ctx context.Context, matchID string) (domain.Snapshot, error) {
	if r.snapshots == nil {
		return domain.Snapshot{}, fmt.Errorf("repository: no snapshot store configured")
	}

	agg, err := r.Load(ctx, matchID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	snap := agg.CreateSnapshot()
	if err := r.snapshots.Save(ctx, snap); err != nil {
		metrics.RecordSnapshotSave(err)
		return domain.Snapshot{}, err
	}
	metrics.RecordSnapshotSave(nil)
	return snap, nil
}

// Wait blocks until in-flight background snapshots finish. Called on
// shutdown so a closing Badger store does not race a late write.
func (r *Repository) Wait() {
	r.wg.Wait()
}

// maybeSnapshot starts a detached best-effort snapshot when this append
// moved the stream across a multiple of the threshold. before is the stream
// version prior to the append. The snapshot is taken synchronously (it is a
// pure copy) and persisted in the background so the command never waits on
// Badger.
func (r *Repository) maybeSnapshot(agg *domain.MatchAnalytics, before int64) {
	if r.snapshots == nil || r.threshold <= 0 {
		return
	}

	after := agg.Version()
	n := int64(r.threshold)
	if (after+1)/n == (before+1)/n {
		return
	}

	snap := agg.CreateSnapshot()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), snapshotSaveTimeout)
		defer cancel()

		err := r.snapshots.Save(ctx, snap)
		metrics.RecordSnapshotSave(err)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("component", "repository").
				Str("match_id", snap.MatchID).
				Int64("version", snap.Version).
				Msg("Background snapshot failed")
			return
		}
		logging.Debug().
			Str("component", "repository").
			Str("match_id", snap.MatchID).
			Int64("version", snap.Version).
			Msg("Snapshot saved")
	}()
}
