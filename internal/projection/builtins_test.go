// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/readmodel"
)

const testMatchID = "m-2026-0412"

// seedMatchHistory appends one realistic match worth of events with pinned
// timestamps so time bucketing is deterministic.
func seedMatchHistory(t *testing.T, store eventstore.Store) {
	t.Helper()

	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)
	mk := func(eventType domain.EventType, payload interface{}, offset time.Duration) domain.Event {
		event, err := domain.NewEvent(eventType, testMatchID, payload, domain.WithTimestamp(base.Add(offset)))
		if err != nil {
			t.Fatalf("NewEvent(%s) error = %v", eventType, err)
		}
		return event
	}

	events := []domain.Event{
		mk(domain.EventTypeMatchAnalyticsCreated, domain.MatchAnalyticsCreatedPayload{
			HomeTeamID:      "arsenal",
			AwayTeamID:      "spurs",
			DurationSeconds: 5400,
		}, 0),
		mk(domain.EventTypeXGCalculated, domain.XGCalculatedPayload{
			TeamID: "arsenal",
			NewXG:  0.8,
		}, 10*time.Minute),
		mk(domain.EventTypeXGCalculated, domain.XGCalculatedPayload{
			TeamID:     "spurs",
			NewXG:      0.4,
			PreviousXG: 0,
		}, 20*time.Minute),
		mk(domain.EventTypePossessionCalculated, domain.PossessionCalculatedPayload{
			HomeTeamID:     "arsenal",
			HomePossession: 58,
			AwayTeamID:     "spurs",
			AwayPossession: 42,
			Method:         "pass_count",
		}, 30*time.Minute),
		mk(domain.EventTypeFormationDetected, domain.FormationDetectedPayload{
			TeamID:     "arsenal",
			Formation:  "4-3-3",
			Confidence: 0.87,
			DetectedAt: base.Add(35 * time.Minute),
		}, 35*time.Minute),
		mk(domain.EventTypeMatchDurationUpdated, domain.MatchDurationUpdatedPayload{
			DurationSeconds:  5700,
			PreviousDuration: 5400,
		}, 40*time.Minute),
		mk(domain.EventTypeXGCalculated, domain.XGCalculatedPayload{
			TeamID:     "arsenal",
			NewXG:      1.3,
			PreviousXG: 0.8,
		}, 50*time.Minute),
	}

	if _, err := store.Append(context.Background(), testMatchID, domain.NoStreamVersion, events); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
}

// newBuiltinsManager wires the built-in projections over an in-memory event
// store and a real read model database.
func newBuiltinsManager(t *testing.T) (*Manager, *eventstore.MemoryStore, *readmodel.DB) {
	t.Helper()

	db := newTestReadDB(t)
	store := eventstore.NewMemoryStore()
	dlq, err := NewDLQ(testDLQConfig(), nil)
	if err != nil {
		t.Fatalf("NewDLQ() error = %v", err)
	}

	m, err := NewManager(ManagerOptions{
		Store:  store,
		DLQ:    dlq,
		Config: testManagerConfig(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	for _, p := range Builtins(db) {
		if err := m.Register(p); err != nil {
			t.Fatalf("Register(%s) error = %v", p.Name(), err)
		}
	}
	return m, store, db
}

func floatsClose(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuiltinNamesMatchRegistry(t *testing.T) {
	t.Parallel()

	want := map[string]bool{
		NameMatchSummary:     true,
		NameTeamMetrics:      true,
		NameMetricTimeseries: true,
	}
	for _, name := range BuiltinNames() {
		if !want[name] {
			t.Errorf("BuiltinNames() includes unexpected %q", name)
		}
		delete(want, name)
	}
	if len(want) != 0 {
		t.Errorf("BuiltinNames() missing %v", want)
	}
}

func TestBuiltinsForSelectsByName(t *testing.T) {
	db := newTestReadDB(t)

	all, err := BuiltinsFor(db, nil)
	if err != nil {
		t.Fatalf("BuiltinsFor(nil) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("BuiltinsFor(nil) = %d projections, want 3", len(all))
	}

	some, err := BuiltinsFor(db, []string{NameTeamMetrics})
	if err != nil {
		t.Fatalf("BuiltinsFor() error = %v", err)
	}
	if len(some) != 1 || some[0].Name() != NameTeamMetrics {
		t.Errorf("BuiltinsFor() = %v, want [team_metrics]", some)
	}

	if _, err := BuiltinsFor(db, []string{"bogus"}); err == nil {
		t.Error("BuiltinsFor(bogus) should fail")
	} else if !domain.IsValidation(err) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}

func TestBuiltinsProjectMatchSummary(t *testing.T) {
	m, store, db := newBuiltinsManager(t)
	ctx := context.Background()

	seedMatchHistory(t, store)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	summary, err := db.GetMatchSummary(ctx, testMatchID)
	if err != nil {
		t.Fatalf("GetMatchSummary() error = %v", err)
	}

	if summary.HomeTeamID != "arsenal" || summary.AwayTeamID != "spurs" {
		t.Errorf("teams = %q vs %q, want arsenal vs spurs", summary.HomeTeamID, summary.AwayTeamID)
	}
	if !floatsClose(summary.HomeXG, 1.3) {
		t.Errorf("HomeXG = %v, want 1.3 (latest value wins)", summary.HomeXG)
	}
	if !floatsClose(summary.AwayXG, 0.4) {
		t.Errorf("AwayXG = %v, want 0.4", summary.AwayXG)
	}
	if !floatsClose(summary.HomePossession, 58) || !floatsClose(summary.AwayPossession, 42) {
		t.Errorf("possession = %v/%v, want 58/42", summary.HomePossession, summary.AwayPossession)
	}
	if summary.HomeFormation != "4-3-3" {
		t.Errorf("HomeFormation = %q, want 4-3-3", summary.HomeFormation)
	}
	if summary.AwayFormation != "" {
		t.Errorf("AwayFormation = %q, want empty (never detected)", summary.AwayFormation)
	}
	if summary.DurationSeconds != 5700 {
		t.Errorf("DurationSeconds = %d, want 5700", summary.DurationSeconds)
	}
	if summary.LastVersion != 6 {
		t.Errorf("LastVersion = %d, want 6", summary.LastVersion)
	}
}

func TestBuiltinsProjectTeamMetrics(t *testing.T) {
	m, store, db := newBuiltinsManager(t)
	ctx := context.Background()

	seedMatchHistory(t, store)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	arsenal, err := db.GetTeamMetrics(ctx, "arsenal", nil, nil)
	if err != nil {
		t.Fatalf("GetTeamMetrics(arsenal) error = %v", err)
	}
	if arsenal.Matches != 1 {
		t.Errorf("Matches = %d, want 1", arsenal.Matches)
	}
	if !floatsClose(arsenal.TotalXG, 1.3) {
		t.Errorf("TotalXG = %v, want 1.3 (latest value per match)", arsenal.TotalXG)
	}
	if !floatsClose(arsenal.AvgPossession, 58) {
		t.Errorf("AvgPossession = %v, want 58", arsenal.AvgPossession)
	}
	if arsenal.Formation != "4-3-3" {
		t.Errorf("Formation = %q, want 4-3-3", arsenal.Formation)
	}

	spurs, err := db.GetTeamMetrics(ctx, "spurs", nil, nil)
	if err != nil {
		t.Fatalf("GetTeamMetrics(spurs) error = %v", err)
	}
	if !floatsClose(spurs.TotalXG, 0.4) {
		t.Errorf("spurs TotalXG = %v, want 0.4", spurs.TotalXG)
	}
	if !floatsClose(spurs.AvgPossession, 42) {
		t.Errorf("spurs AvgPossession = %v, want 42", spurs.AvgPossession)
	}

	if _, err := db.GetTeamMetrics(ctx, "chelsea", nil, nil); !domain.IsNotFound(err) {
		t.Errorf("GetTeamMetrics(chelsea) error = %v, want NotFoundError", err)
	}
}

func TestBuiltinsProjectTimeseries(t *testing.T) {
	m, store, db := newBuiltinsManager(t)
	ctx := context.Background()

	seedMatchHistory(t, store)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)
	buckets, err := db.QueryTimeSeries(ctx, readmodel.TimeSeriesQuery{
		EntityType: readmodel.EntityTypeTeam,
		EntityID:   "arsenal",
		Metric:     readmodel.MetricXG,
		From:       base.Add(-time.Hour),
		To:         base.Add(2 * time.Hour),
		Interval:   readmodel.IntervalHour,
	})
	if err != nil {
		t.Fatalf("QueryTimeSeries() error = %v", err)
	}

	// Both arsenal xG observations land in the 15:00 hour bucket.
	if len(buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(buckets))
	}
	b := buckets[0]
	if b.Count != 2 {
		t.Errorf("Count = %d, want 2", b.Count)
	}
	if !floatsClose(b.Min, 0.8) || !floatsClose(b.Max, 1.3) {
		t.Errorf("Min/Max = %v/%v, want 0.8/1.3", b.Min, b.Max)
	}
	if !floatsClose(b.Avg, 1.05) {
		t.Errorf("Avg = %v, want 1.05", b.Avg)
	}

	// Possession points exist for both teams.
	for _, team := range []string{"arsenal", "spurs"} {
		poss, err := db.QueryTimeSeries(ctx, readmodel.TimeSeriesQuery{
			EntityType: readmodel.EntityTypeTeam,
			EntityID:   team,
			Metric:     readmodel.MetricPossession,
			From:       base.Add(-time.Hour),
			To:         base.Add(2 * time.Hour),
			Interval:   readmodel.IntervalHour,
		})
		if err != nil {
			t.Fatalf("QueryTimeSeries(%s possession) error = %v", team, err)
		}
		if len(poss) != 1 || poss[0].Count != 1 {
			t.Errorf("%s possession buckets = %v, want one bucket with one point", team, poss)
		}
	}

	// Every metric event also feeds the match-entity series: three xG
	// observations across both teams, home-side possession, confidence.
	matchXG, err := db.QueryTimeSeries(ctx, readmodel.TimeSeriesQuery{
		EntityType: readmodel.EntityTypeMatch,
		EntityID:   testMatchID,
		Metric:     readmodel.MetricXG,
		From:       base.Add(-time.Hour),
		To:         base.Add(2 * time.Hour),
		Interval:   readmodel.IntervalHour,
	})
	if err != nil {
		t.Fatalf("QueryTimeSeries(match xg) error = %v", err)
	}
	if len(matchXG) != 1 || matchXG[0].Count != 3 {
		t.Fatalf("match xg buckets = %v, want one bucket with three points", matchXG)
	}
	if !floatsClose(matchXG[0].Min, 0.4) || !floatsClose(matchXG[0].Max, 1.3) {
		t.Errorf("match xg Min/Max = %v/%v, want 0.4/1.3", matchXG[0].Min, matchXG[0].Max)
	}

	matchPoss, err := db.QueryTimeSeries(ctx, readmodel.TimeSeriesQuery{
		EntityType: readmodel.EntityTypeMatch,
		EntityID:   testMatchID,
		Metric:     readmodel.MetricPossession,
		From:       base.Add(-time.Hour),
		To:         base.Add(2 * time.Hour),
		Interval:   readmodel.IntervalHour,
	})
	if err != nil {
		t.Fatalf("QueryTimeSeries(match possession) error = %v", err)
	}
	if len(matchPoss) != 1 || matchPoss[0].Count != 1 || !floatsClose(matchPoss[0].Avg, 58) {
		t.Errorf("match possession buckets = %v, want one 58.0 point", matchPoss)
	}
}

func TestBuiltinsReplayConverges(t *testing.T) {
	m, store, db := newBuiltinsManager(t)
	ctx := context.Background()

	seedMatchHistory(t, store)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	before, err := db.GetMatchSummary(ctx, testMatchID)
	if err != nil {
		t.Fatalf("GetMatchSummary() error = %v", err)
	}

	// A full rebuild of every projection must converge on identical rows.
	for _, name := range BuiltinNames() {
		if err := m.Rebuild(ctx, name); err != nil {
			t.Fatalf("Rebuild(%s) error = %v", name, err)
		}
	}

	after, err := db.GetMatchSummary(ctx, testMatchID)
	if err != nil {
		t.Fatalf("GetMatchSummary() after rebuild error = %v", err)
	}
	if *after != *before {
		t.Errorf("summary diverged after rebuild:\n  before %+v\n  after  %+v", *before, *after)
	}

	arsenal, err := db.GetTeamMetrics(ctx, "arsenal", nil, nil)
	if err != nil {
		t.Fatalf("GetTeamMetrics() after rebuild error = %v", err)
	}
	if arsenal.Matches != 1 || !floatsClose(arsenal.TotalXG, 1.3) {
		t.Errorf("team metrics diverged after rebuild: %+v", arsenal)
	}

	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)
	buckets, err := db.QueryTimeSeries(ctx, readmodel.TimeSeriesQuery{
		EntityType: readmodel.EntityTypeTeam,
		EntityID:   "arsenal",
		Metric:     readmodel.MetricXG,
		From:       base.Add(-time.Hour),
		To:         base.Add(2 * time.Hour),
		Interval:   readmodel.IntervalHour,
	})
	if err != nil {
		t.Fatalf("QueryTimeSeries() after rebuild error = %v", err)
	}
	if len(buckets) != 1 || buckets[0].Count != 2 {
		t.Errorf("timeseries diverged after rebuild: %+v", buckets)
	}
}

func TestBuiltinsStaleRedeliveryIsDropped(t *testing.T) {
	m, store, db := newBuiltinsManager(t)
	ctx := context.Background()

	seedMatchHistory(t, store)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Redeliver an old event straight through the projection, bypassing the
	// manager's checkpoint guard. The row-level version guard must hold.
	all, err := store.ReadAll(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	var stale eventstore.RecordedEvent
	for _, rec := range all {
		if rec.EventType == domain.EventTypeXGCalculated && rec.Version == 1 {
			stale = rec
		}
	}
	if stale.EventID == "" {
		t.Fatal("seed data should contain the first arsenal xG event")
	}

	summaryProjection := NewMatchSummaryProjection(db)
	handler := summaryProjection.Handlers()[domain.EventTypeXGCalculated]
	if err := handler(ctx, stale); err != nil {
		t.Fatalf("stale redelivery error = %v", err)
	}

	summary, err := db.GetMatchSummary(ctx, testMatchID)
	if err != nil {
		t.Fatalf("GetMatchSummary() error = %v", err)
	}
	if !floatsClose(summary.HomeXG, 1.3) {
		t.Errorf("HomeXG = %v after stale redelivery, want 1.3", summary.HomeXG)
	}
	if summary.LastVersion != 6 {
		t.Errorf("LastVersion = %d after stale redelivery, want 6", summary.LastVersion)
	}
}

func TestBuiltinMalformedPayloadIsPermanent(t *testing.T) {
	db := newTestReadDB(t)
	ctx := context.Background()

	event, err := domain.NewEvent(domain.EventTypeXGCalculated, testMatchID, domain.XGCalculatedPayload{
		TeamID: "arsenal",
		NewXG:  1.0,
	})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	event.Payload = []byte(`{"team_id": 12.5`)

	rec := eventstore.RecordedEvent{Event: event, Version: 1, GlobalSeq: 2, RecordedAt: time.Now().UTC()}
	handler := NewMatchSummaryProjection(db).Handlers()[domain.EventTypeXGCalculated]

	applyErr := handler(ctx, rec)
	if applyErr == nil {
		t.Fatal("malformed payload should fail")
	}
	if !IsPermanent(applyErr) {
		t.Errorf("error = %v, want permanent", applyErr)
	}
}
