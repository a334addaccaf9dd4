// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package eventstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
)

// MemoryStore is an in-memory Store with the same concurrency semantics as
// the DuckDB store. It backs unit tests that exercise the command pipeline
// and projections without a database file.
type MemoryStore struct {
	mu        sync.RWMutex
	streams   map[string][]RecordedEvent
	all       []RecordedEvent
	globalSeq int64
	closed    bool

	appendErr error
	readErr   error

	now func() time.Time
}

// NewMemoryStore returns an empty in-memory event log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]RecordedEvent),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetAppendError makes every subsequent Append fail with err. Pass nil to
// clear. Tests use it to exercise storage failure paths.
func (s *MemoryStore) SetAppendError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// SetReadError makes every subsequent Read and ReadAll fail with err.
func (s *MemoryStore) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, streamID string, expectedVersion int64, events []domain.Event) ([]RecordedEvent, error) {
	if streamID == "" {
		return nil, &domain.ValidationError{Field: "stream_id", Message: "required"}
	}
	if len(events) == 0 {
		return nil, nil
	}
	for _, event := range events {
		if err := event.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("event store is closed")
	}
	if s.appendErr != nil {
		return nil, domain.NewStorageError("insert event", s.appendErr)
	}

	stream := s.streams[streamID]
	actual := domain.NoStreamVersion
	if len(stream) > 0 {
		actual = stream[len(stream)-1].Version
	}
	if actual != expectedVersion {
		return nil, &domain.ConcurrencyConflictError{
			StreamID:        streamID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   actual,
		}
	}

	recorded := make([]RecordedEvent, 0, len(events))
	for i, event := range events {
		s.globalSeq++
		re := RecordedEvent{
			Event:      event,
			Version:    expectedVersion + 1 + int64(i),
			GlobalSeq:  s.globalSeq,
			RecordedAt: s.now(),
		}
		s.streams[streamID] = append(s.streams[streamID], re)
		s.all = append(s.all, re)
		recorded = append(recorded, re)
	}
	return recorded, nil
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, streamID string, fromVersion int64) ([]RecordedEvent, error) {
	if streamID == "" {
		return nil, &domain.ValidationError{Field: "stream_id", Message: "required"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("event store is closed")
	}
	if s.readErr != nil {
		return nil, domain.NewStorageError("read stream", s.readErr)
	}

	var events []RecordedEvent
	for _, re := range s.streams[streamID] {
		if re.Version >= fromVersion {
			events = append(events, re)
		}
	}
	return events, nil
}

// ReadAll implements Store.
func (s *MemoryStore) ReadAll(ctx context.Context, afterSeq int64, limit int) ([]RecordedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("event store is closed")
	}
	if s.readErr != nil {
		return nil, domain.NewStorageError("read all events", s.readErr)
	}

	var events []RecordedEvent
	for _, re := range s.all {
		if re.GlobalSeq > afterSeq {
			events = append(events, re)
			if limit > 0 && len(events) >= limit {
				break
			}
		}
	}
	return events, nil
}

// CurrentVersion implements Store.
func (s *MemoryStore) CurrentVersion(ctx context.Context, streamID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[streamID]
	if len(stream) == 0 {
		return domain.NoStreamVersion, nil
	}
	return stream[len(stream)-1].Version, nil
}

// StreamExists implements Store.
func (s *MemoryStore) StreamExists(ctx context.Context, streamID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[streamID]) > 0, nil
}

// LatestGlobalSeq implements Store.
func (s *MemoryStore) LatestGlobalSeq(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globalSeq, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("event store is closed")
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// MemorySnapshotStore is an in-memory SnapshotStore for tests.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]domain.Snapshot
	saveErr   error
	closed    bool
}

// NewMemorySnapshotStore returns an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string][]domain.Snapshot)}
}

// SetSaveError makes every subsequent Save fail with err.
func (s *MemorySnapshotStore) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Save implements SnapshotStore.
func (s *MemorySnapshotStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("snapshot store is closed")
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshots[snapshot.MatchID] = append(s.snapshots[snapshot.MatchID], snapshot)
	return nil
}

// Latest implements SnapshotStore.
func (s *MemorySnapshotStore) Latest(ctx context.Context, streamID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("snapshot store is closed")
	}

	var latest *domain.Snapshot
	for i := range s.snapshots[streamID] {
		snap := s.snapshots[streamID][i]
		if latest == nil || snap.Version > latest.Version {
			latest = &snap
		}
	}
	return latest, nil
}

// Ping implements SnapshotStore.
func (s *MemorySnapshotStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("snapshot store is closed")
	}
	return nil
}

// Close implements SnapshotStore.
func (s *MemorySnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
