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

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/touchlinehq/touchline/internal/config"
	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/logging"
	"github.com/touchlinehq/touchline/internal/metrics"
)

// snapshotKeyPrefix namespaces snapshot keys. The full key is
// "snap:{stream_id}:{version}" with the version zero-padded to 20 digits so
// lexicographic key order matches numeric version order.
const snapshotKeyPrefix = "snap:"

// badgerGCRatio is the value-log rewrite threshold for garbage collection.
const badgerGCRatio = 0.5

// BadgerSnapshotStore persists aggregate snapshots in BadgerDB. Snapshots
// are pure derived state: the store keeps every version it is given and
// Latest picks the highest, so a partially written newer snapshot can never
// shadow a good older one.
type BadgerSnapshotStore struct {
	db  *badger.DB
	cfg *config.SnapshotConfig

	mu     sync.RWMutex
	closed bool

	stopGC chan struct{}
	doneGC chan struct{}
}

// NewBadgerSnapshotStore opens (or creates) the snapshot database.
func NewBadgerSnapshotStore(cfg *config.SnapshotConfig) (*BadgerSnapshotStore, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, &domain.ValidationError{Field: "snapshots.dir", Message: "required"}
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.InMemory = cfg.InMemory
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts.Compression = options.Snappy
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	s := &BadgerSnapshotStore{
		db:     db,
		cfg:    cfg,
		stopGC: make(chan struct{}),
		doneGC: make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop()
	} else {
		close(s.doneGC)
	}

	logging.Info().
		Str("dir", cfg.Dir).
		Bool("in_memory", cfg.InMemory).
		Msg("Snapshot store opened")
	return s, nil
}

// Save implements SnapshotStore.
func (s *BadgerSnapshotStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	var err error
	defer func() {
		metrics.RecordSnapshotSave(err)
	}()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		err = fmt.Errorf("snapshot store is closed")
		return err
	}
	s.mu.RUnlock()

	if err = snapshot.Validate(); err != nil {
		return err
	}

	var data []byte
	data, err = snapshot.Marshal()
	if err != nil {
		err = fmt.Errorf("marshal snapshot: %w", err)
		return err
	}

	key := snapshotKey(snapshot.MatchID, snapshot.Version)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		err = fmt.Errorf("write snapshot: %w", err)
		return err
	}

	logging.Debug().
		Str("stream_id", snapshot.MatchID).
		Int64("version", snapshot.Version).
		Msg("Snapshot saved")
	return nil
}

// Latest implements SnapshotStore. It scans the stream's key range in
// reverse so the first valid key is the highest version.
func (s *BadgerSnapshotStore) Latest(ctx context.Context, streamID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("snapshot store is closed")
	}
	s.mu.RUnlock()

	if streamID == "" {
		return nil, &domain.ValidationError{Field: "stream_id", Message: "required"}
	}

	var snapshot *domain.Snapshot
	prefix := []byte(snapshotKeyPrefix + streamID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the end of the stream's key range; reverse iteration
		// then lands on its highest version.
		seek := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		return it.Item().Value(func(val []byte) error {
			snap, err := domain.UnmarshalSnapshot(val)
			if err != nil {
				return fmt.Errorf("unmarshal snapshot: %w", err)
			}
			snapshot = &snap
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if snapshot != nil {
		metrics.RecordSnapshotLoad()
	}
	return snapshot, nil
}

// Ping implements SnapshotStore.
func (s *BadgerSnapshotStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db.IsClosed() {
		return fmt.Errorf("snapshot store is closed")
	}
	return nil
}

// Close stops garbage collection and closes the database.
func (s *BadgerSnapshotStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopGC)
	<-s.doneGC

	return s.db.Close()
}

// gcLoop periodically rewrites Badger's value log to reclaim space from
// superseded snapshots.
func (s *BadgerSnapshotStore) gcLoop() {
	defer close(s.doneGC)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC rewrites at most one file per call; loop
			// until it reports nothing left to rewrite.
			for {
				if err := s.db.RunValueLogGC(badgerGCRatio); err != nil {
					break
				}
			}
		}
	}
}

func snapshotKey(streamID string, version int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", snapshotKeyPrefix, streamID, version))
}
