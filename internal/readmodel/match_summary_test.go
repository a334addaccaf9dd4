// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package readmodel

import (
	"context"
	"testing"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
)

func seedSummary(t *testing.T, db *DB, matchID string) time.Time {
	t.Helper()
	at := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)
	err := db.UpsertMatchSummary(context.Background(), MatchSummary{
		MatchID:         matchID,
		HomeTeamID:      "arsenal",
		AwayTeamID:      "spurs",
		DurationSeconds: 5400,
		LastVersion:     0,
		LastUpdated:     at,
	})
	if err != nil {
		t.Fatalf("UpsertMatchSummary() error = %v", err)
	}
	return at
}

func TestGetMatchSummaryNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetMatchSummary(context.Background(), "m-missing")
	if !domain.IsNotFound(err) {
		t.Errorf("GetMatchSummary() error = %v, want NotFoundError", err)
	}
}

func TestSummaryXGResolvesSide(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	at := seedSummary(t, db, "m-1")

	if err := db.UpdateSummaryXG(ctx, "m-1", "arsenal", 0.45, 1, at.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateSummaryXG(home) error = %v", err)
	}
	if err := db.UpdateSummaryXG(ctx, "m-1", "spurs", 1.20, 2, at.Add(2*time.Minute)); err != nil {
		t.Fatalf("UpdateSummaryXG(away) error = %v", err)
	}

	got, err := db.GetMatchSummary(ctx, "m-1")
	if err != nil {
		t.Fatalf("GetMatchSummary() error = %v", err)
	}
	if got.HomeXG != 0.45 {
		t.Errorf("HomeXG = %v, want 0.45", got.HomeXG)
	}
	if got.AwayXG != 1.20 {
		t.Errorf("AwayXG = %v, want 1.20", got.AwayXG)
	}
	if got.LastVersion != 2 {
		t.Errorf("LastVersion = %d, want 2", got.LastVersion)
	}
}

func TestSummaryUpdatesAreVersionGuarded(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	at := seedSummary(t, db, "m-1")

	if err := db.UpdateSummaryXG(ctx, "m-1", "arsenal", 0.45, 2, at.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateSummaryXG() error = %v", err)
	}

	// Redelivery of an older event must not move the row backwards, and
	// must not be an error.
	if err := db.UpdateSummaryXG(ctx, "m-1", "arsenal", 0.10, 1, at.Add(30*time.Second)); err != nil {
		t.Fatalf("UpdateSummaryXG(stale) error = %v", err)
	}
	// Exact redelivery of the same version is equally a no-op.
	if err := db.UpdateSummaryXG(ctx, "m-1", "arsenal", 0.99, 2, at.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateSummaryXG(duplicate) error = %v", err)
	}

	got, err := db.GetMatchSummary(ctx, "m-1")
	if err != nil {
		t.Fatalf("GetMatchSummary() error = %v", err)
	}
	if got.HomeXG != 0.45 {
		t.Errorf("HomeXG = %v after stale redeliveries, want 0.45", got.HomeXG)
	}
	if got.LastVersion != 2 {
		t.Errorf("LastVersion = %d, want 2", got.LastVersion)
	}

	// The initial upsert is guarded the same way.
	if err := db.UpsertMatchSummary(ctx, MatchSummary{
		MatchID: "m-1", HomeTeamID: "x", AwayTeamID: "y",
		DurationSeconds: 1, LastVersion: 0, LastUpdated: at,
	}); err != nil {
		t.Fatalf("UpsertMatchSummary(replay) error = %v", err)
	}
	got, err = db.GetMatchSummary(ctx, "m-1")
	if err != nil {
		t.Fatalf("GetMatchSummary() error = %v", err)
	}
	if got.HomeTeamID != "arsenal" {
		t.Errorf("HomeTeamID = %q after created-event replay, want arsenal", got.HomeTeamID)
	}
}

func TestSummaryUpdateMissingMatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"xg", func() error { return db.UpdateSummaryXG(ctx, "m-missing", "arsenal", 0.5, 1, at) }},
		{"possession", func() error { return db.UpdateSummaryPossession(ctx, "m-missing", 55, 45, 1, at) }},
		{"formation", func() error { return db.UpdateSummaryFormation(ctx, "m-missing", "arsenal", "4-3-3", 1, at) }},
		{"duration", func() error { return db.UpdateSummaryDuration(ctx, "m-missing", 5400, 1, at) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !domain.IsNotFound(err) {
				t.Errorf("error = %v, want NotFoundError", err)
			}
		})
	}
}

func TestSummaryPossessionFormationDuration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	at := seedSummary(t, db, "m-1")

	if err := db.UpdateSummaryPossession(ctx, "m-1", 61.5, 38.5, 1, at.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateSummaryPossession() error = %v", err)
	}
	if err := db.UpdateSummaryFormation(ctx, "m-1", "spurs", "5-4-1", 2, at.Add(2*time.Minute)); err != nil {
		t.Fatalf("UpdateSummaryFormation() error = %v", err)
	}
	if err := db.UpdateSummaryDuration(ctx, "m-1", 6300, 3, at.Add(3*time.Minute)); err != nil {
		t.Fatalf("UpdateSummaryDuration() error = %v", err)
	}

	got, err := db.GetMatchSummary(ctx, "m-1")
	if err != nil {
		t.Fatalf("GetMatchSummary() error = %v", err)
	}
	if got.HomePossession != 61.5 || got.AwayPossession != 38.5 {
		t.Errorf("possession = %v/%v, want 61.5/38.5", got.HomePossession, got.AwayPossession)
	}
	if got.HomeFormation != "" {
		t.Errorf("HomeFormation = %q, want empty", got.HomeFormation)
	}
	if got.AwayFormation != "5-4-1" {
		t.Errorf("AwayFormation = %q, want 5-4-1", got.AwayFormation)
	}
	if got.DurationSeconds != 6300 {
		t.Errorf("DurationSeconds = %d, want 6300", got.DurationSeconds)
	}
	if !got.LastUpdated.Equal(at.Add(3 * time.Minute)) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, at.Add(3*time.Minute))
	}
}

func TestTruncateMatchSummary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedSummary(t, db, "m-1")
	seedSummary(t, db, "m-2")

	if err := db.TruncateMatchSummary(ctx); err != nil {
		t.Fatalf("TruncateMatchSummary() error = %v", err)
	}
	if _, err := db.GetMatchSummary(ctx, "m-1"); !domain.IsNotFound(err) {
		t.Errorf("GetMatchSummary() after truncate error = %v, want NotFoundError", err)
	}
}
