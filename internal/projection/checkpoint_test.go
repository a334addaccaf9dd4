// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"testing"
	"time"

	"github.com/touchlinehq/touchline/internal/config"
	"github.com/touchlinehq/touchline/internal/readmodel"
)

// testDuckSemaphore serializes DuckDB creation across this package's tests.
// Concurrent CGO database setup under CI resource pressure can hang, so only
// one test holds an open database at a time.
var testDuckSemaphore = make(chan struct{}, 1)

// newTestReadDB opens an in-memory read model database for store tests.
func newTestReadDB(t *testing.T) *readmodel.DB {
	t.Helper()

	testDuckSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDuckSemaphore
	})

	db, err := readmodel.New(&config.DatabaseConfig{
		Path:                   ":memory:",
		MaxMemory:              "1GB",
		PreserveInsertionOrder: true,
	})
	if err != nil {
		t.Fatalf("readmodel.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func newTestCheckpointStore(t *testing.T) *CheckpointStore {
	t.Helper()

	store := NewCheckpointStore(newTestReadDB(t).Conn())
	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	return store
}

func TestCheckpointSaveAndGet(t *testing.T) {
	store := newTestCheckpointStore(t)
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "match_summary"); err != nil {
		t.Fatalf("Get() error = %v", err)
	} else if found {
		t.Fatal("Get() on empty table reported found")
	}

	cp := Checkpoint{
		Projection:      "match_summary",
		LastGlobalSeq:   42,
		EventsProcessed: 40,
		UpdatedAt:       time.Date(2026, 4, 12, 15, 30, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, found, err := store.Get(ctx, "match_summary")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() did not find the saved checkpoint")
	}
	if got.LastGlobalSeq != 42 {
		t.Errorf("LastGlobalSeq = %d, want 42", got.LastGlobalSeq)
	}
	if got.EventsProcessed != 40 {
		t.Errorf("EventsProcessed = %d, want 40", got.EventsProcessed)
	}
	if !got.UpdatedAt.Equal(cp.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, cp.UpdatedAt)
	}
}

func TestCheckpointSaveOverwrites(t *testing.T) {
	store := newTestCheckpointStore(t)
	ctx := context.Background()

	first := Checkpoint{Projection: "team_metrics", LastGlobalSeq: 10, EventsProcessed: 10, UpdatedAt: time.Now().UTC()}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := first
	second.LastGlobalSeq = 25
	second.EventsProcessed = 24
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, found, err := store.Get(ctx, "team_metrics")
	if err != nil || !found {
		t.Fatalf("Get() = found %v, error %v", found, err)
	}
	if got.LastGlobalSeq != 25 {
		t.Errorf("LastGlobalSeq = %d, want 25", got.LastGlobalSeq)
	}
}

func TestCheckpointList(t *testing.T) {
	store := newTestCheckpointStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, name := range []string{"match_summary", "team_metrics", "metric_timeseries"} {
		cp := Checkpoint{Projection: name, LastGlobalSeq: int64(i + 1), EventsProcessed: int64(i + 1), UpdatedAt: now}
		if err := store.Save(ctx, cp); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() = %d checkpoints, want 3", len(list))
	}

	byName := make(map[string]int64, len(list))
	for _, cp := range list {
		byName[cp.Projection] = cp.LastGlobalSeq
	}
	if byName["metric_timeseries"] != 3 {
		t.Errorf("metric_timeseries seq = %d, want 3", byName["metric_timeseries"])
	}
}

func TestCheckpointReset(t *testing.T) {
	store := newTestCheckpointStore(t)
	ctx := context.Background()

	cp := Checkpoint{Projection: "match_summary", LastGlobalSeq: 99, EventsProcessed: 99, UpdatedAt: time.Now().UTC()}
	if err := store.Save(ctx, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Reset(ctx, "match_summary"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, found, err := store.Get(ctx, "match_summary"); err != nil {
		t.Fatalf("Get() error = %v", err)
	} else if found {
		t.Error("checkpoint should be gone after Reset")
	}

	// Resetting a projection with no checkpoint is a no-op.
	if err := store.Reset(ctx, "never_saved"); err != nil {
		t.Errorf("Reset(missing) error = %v", err)
	}
}
