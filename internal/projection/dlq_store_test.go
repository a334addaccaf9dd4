// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"testing"
	"time"
)

func newTestDLQStore(t *testing.T) *DLQStore {
	t.Helper()

	store := NewDLQStore(newTestReadDB(t).Conn())
	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	return store
}

func makeTestEntry(t *testing.T, projection, streamID string, seq int64) *Entry {
	t.Helper()

	now := time.Date(2026, 4, 12, 16, 0, 0, 0, time.UTC)
	return &Entry{
		Projection:    projection,
		Event:         makeRecordedEvent(t, streamID, seq),
		OriginalError: "database locked",
		LastError:     "database locked",
		RetryCount:    1,
		FirstFailure:  now,
		LastFailure:   now.Add(time.Second),
		NextRetry:     now.Add(2 * time.Second),
		Category:      CategoryStorage,
		Permanent:     false,
	}
}

func TestDLQStoreSaveAndLoadAll(t *testing.T) {
	store := newTestDLQStore(t)
	ctx := context.Background()

	entry := makeTestEntry(t, "match_summary", "m-2026-0412", 7)
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("LoadAll() = %d entries, want 1", len(loaded))
	}

	got := loaded[0]
	if got.Projection != "match_summary" {
		t.Errorf("Projection = %q, want match_summary", got.Projection)
	}
	if got.Event.EventID != entry.Event.EventID {
		t.Errorf("EventID = %q, want %q", got.Event.EventID, entry.Event.EventID)
	}
	if got.Event.GlobalSeq != 7 {
		t.Errorf("GlobalSeq = %d, want 7", got.Event.GlobalSeq)
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if got.Category != CategoryStorage {
		t.Errorf("Category = %v, want %v", got.Category, CategoryStorage)
	}
	if got.Permanent {
		t.Error("Permanent = true, want false")
	}
	if !got.FirstFailure.Equal(entry.FirstFailure) {
		t.Errorf("FirstFailure = %v, want %v", got.FirstFailure, entry.FirstFailure)
	}
}

func TestDLQStoreSaveUpserts(t *testing.T) {
	store := newTestDLQStore(t)
	ctx := context.Background()

	entry := makeTestEntry(t, "team_metrics", "m-1", 3)
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entry.RetryCount = 4
	entry.LastError = "still locked"
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Count() = %d, want 1 (upsert, not insert)", count)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if loaded[0].RetryCount != 4 {
		t.Errorf("RetryCount = %d, want 4", loaded[0].RetryCount)
	}
	if loaded[0].LastError != "still locked" {
		t.Errorf("LastError = %q, want %q", loaded[0].LastError, "still locked")
	}
}

func TestDLQStoreDelete(t *testing.T) {
	store := newTestDLQStore(t)
	ctx := context.Background()

	entry := makeTestEntry(t, "match_summary", "m-1", 1)
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Delete(ctx, entry.Projection, entry.Event.EventID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d after delete, want 0", count)
	}

	// Deleting a missing row is a no-op.
	if err := store.Delete(ctx, "match_summary", "no-such-event"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestDLQStoreDeleteExpired(t *testing.T) {
	store := newTestDLQStore(t)
	ctx := context.Background()

	old := makeTestEntry(t, "match_summary", "m-1", 1)
	old.FirstFailure = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, old); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	fresh := makeTestEntry(t, "match_summary", "m-2", 2)
	fresh.FirstFailure = time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cutoff := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	deleted, err := store.DeleteExpired(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", deleted)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].Event.EventID != fresh.Event.EventID {
		t.Errorf("surviving entry should be the fresh one")
	}
}

func TestDLQLoadPersistedRehydrates(t *testing.T) {
	store := newTestDLQStore(t)
	ctx := context.Background()

	saved := makeTestEntry(t, "metric_timeseries", "m-2026-0412", 11)
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	q, err := NewDLQ(testDLQConfig(), store)
	if err != nil {
		t.Fatalf("NewDLQ() error = %v", err)
	}
	if err := q.LoadPersisted(ctx); err != nil {
		t.Fatalf("LoadPersisted() error = %v", err)
	}

	got := q.Get("metric_timeseries", saved.Event.EventID)
	if got == nil {
		t.Fatal("rehydrated entry not found in queue")
	}
	if got.RetryCount != saved.RetryCount {
		t.Errorf("RetryCount = %d, want %d", got.RetryCount, saved.RetryCount)
	}
	if got.Category != CategoryStorage {
		t.Errorf("Category = %v, want %v", got.Category, CategoryStorage)
	}
}
