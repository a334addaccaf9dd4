// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/readmodel"
)

func seedMatchSummary(t *testing.T, db *readmodel.DB, s readmodel.MatchSummary) {
	t.Helper()
	if err := db.UpsertMatchSummary(context.Background(), s); err != nil {
		t.Fatalf("UpsertMatchSummary() error = %v", err)
	}
}

func seedTimeseriesPoint(t *testing.T, db *readmodel.DB, p readmodel.TimeseriesPoint) {
	t.Helper()
	if err := db.InsertTimeseriesPoint(context.Background(), p); err != nil {
		t.Fatalf("InsertTimeseriesPoint(%s) error = %v", p.EventID, err)
	}
}

func TestQueryGetMatchAnalytics(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	updated := time.Date(2026, 4, 12, 15, 50, 0, 0, time.UTC)

	seedMatchSummary(t, db, readmodel.MatchSummary{
		MatchID:         "m-2026-0201",
		HomeTeamID:      "arsenal",
		AwayTeamID:      "spurs",
		HomeXG:          1.3,
		AwayXG:          0.4,
		HomePossession:  58,
		AwayPossession:  42,
		DurationSeconds: 5700,
		LastVersion:     6,
		LastUpdated:     updated,
	})

	raw, err := svc.ExecuteQuery(ctx, GetMatchAnalyticsQuery{MatchID: "m-2026-0201"})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	view, ok := raw.(*MatchAnalyticsView)
	if !ok {
		t.Fatalf("result type = %T, want *MatchAnalyticsView", raw)
	}
	if view.Summary.HomeXG != 1.3 || view.Summary.AwayXG != 0.4 {
		t.Errorf("xG = %v/%v, want 1.3/0.4", view.Summary.HomeXG, view.Summary.AwayXG)
	}
	if view.Summary.HomePossession != 58 {
		t.Errorf("HomePossession = %v, want 58", view.Summary.HomePossession)
	}
	if view.History != nil {
		t.Errorf("History = %v without IncludeHistorical", view.History)
	}
}

func TestQueryGetMatchAnalyticsHistorical(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)

	seedMatchSummary(t, db, readmodel.MatchSummary{
		MatchID:     "m-2026-0202",
		HomeTeamID:  "arsenal",
		AwayTeamID:  "spurs",
		LastVersion: 6,
		LastUpdated: base.Add(50 * time.Minute),
	})
	points := []readmodel.TimeseriesPoint{
		{EventID: "ev-1", EntityType: readmodel.EntityTypeMatch, EntityID: "m-2026-0202", Metric: readmodel.MetricXG, Value: 0.8, RecordedAt: base.Add(10 * time.Minute)},
		{EventID: "ev-2", EntityType: readmodel.EntityTypeMatch, EntityID: "m-2026-0202", Metric: readmodel.MetricPossession, Value: 58, RecordedAt: base.Add(30 * time.Minute)},
		{EventID: "ev-3", EntityType: readmodel.EntityTypeMatch, EntityID: "m-2026-0202", Metric: readmodel.MetricXG, Value: 1.3, RecordedAt: base.Add(50 * time.Minute)},
	}
	for _, p := range points {
		seedTimeseriesPoint(t, db, p)
	}

	raw, err := svc.ExecuteQuery(ctx, GetMatchAnalyticsQuery{MatchID: "m-2026-0202", IncludeHistorical: true})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	view := raw.(*MatchAnalyticsView)

	xg, ok := view.History[readmodel.MetricXG]
	if !ok {
		t.Fatalf("History = %v, missing xg series", view.History)
	}
	if len(xg) != 2 {
		t.Fatalf("xg buckets = %d, want 2", len(xg))
	}
	if xg[0].Avg != 0.8 || xg[1].Avg != 1.3 {
		t.Errorf("xg bucket averages = %v/%v, want 0.8/1.3", xg[0].Avg, xg[1].Avg)
	}

	possession, ok := view.History[readmodel.MetricPossession]
	if !ok || len(possession) != 1 {
		t.Fatalf("possession buckets = %v, want one bucket", possession)
	}
	if possession[0].Avg != 58 {
		t.Errorf("possession Avg = %v, want 58", possession[0].Avg)
	}

	// No formation points were recorded for this match.
	if _, ok := view.History[readmodel.MetricFormationConfidence]; ok {
		t.Error("History carries an empty formation_confidence series")
	}
}

func TestQueryGetMatchAnalyticsMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ExecuteQuery(context.Background(), GetMatchAnalyticsQuery{MatchID: "m-4040-4040"})
	if !domain.IsNotFound(err) {
		t.Errorf("ExecuteQuery() error = %v, want NotFoundError", err)
	}
}

func TestQueryGetTeamAnalytics(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	day1 := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	if err := db.EnsureTeamMetricsRow(ctx, "arsenal", "m-2026-0203", 0, day1); err != nil {
		t.Fatalf("EnsureTeamMetricsRow() error = %v", err)
	}
	if err := db.UpdateTeamXG(ctx, "arsenal", "m-2026-0203", 1.2, 1, day1); err != nil {
		t.Fatalf("UpdateTeamXG() error = %v", err)
	}
	if err := db.UpdateTeamPossession(ctx, "arsenal", "m-2026-0203", 60, 2, day1); err != nil {
		t.Fatalf("UpdateTeamPossession() error = %v", err)
	}
	if err := db.EnsureTeamMetricsRow(ctx, "arsenal", "m-2026-0204", 0, day2); err != nil {
		t.Fatalf("EnsureTeamMetricsRow() error = %v", err)
	}
	if err := db.UpdateTeamXG(ctx, "arsenal", "m-2026-0204", 0.6, 1, day2); err != nil {
		t.Fatalf("UpdateTeamXG() error = %v", err)
	}

	raw, err := svc.ExecuteQuery(ctx, GetTeamAnalyticsQuery{TeamID: "arsenal"})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	tm, ok := raw.(*readmodel.TeamMetrics)
	if !ok {
		t.Fatalf("result type = %T, want *readmodel.TeamMetrics", raw)
	}
	if tm.Matches != 2 {
		t.Errorf("Matches = %d, want 2", tm.Matches)
	}
	if math.Abs(tm.TotalXG-1.8) > 1e-9 {
		t.Errorf("TotalXG = %v, want 1.8", tm.TotalXG)
	}
	if math.Abs(tm.AvgXG-0.9) > 1e-9 {
		t.Errorf("AvgXG = %v, want 0.9", tm.AvgXG)
	}

	// Window selecting only the second match.
	raw, err = svc.ExecuteQuery(ctx, GetTeamAnalyticsQuery{TeamID: "arsenal", From: &day2})
	if err != nil {
		t.Fatalf("windowed query error = %v", err)
	}
	if got := raw.(*readmodel.TeamMetrics).Matches; got != 1 {
		t.Errorf("windowed Matches = %d, want 1", got)
	}

	_, err = svc.ExecuteQuery(ctx, GetTeamAnalyticsQuery{TeamID: "arsenal", From: &day2, To: &day1})
	if !domain.IsValidation(err) {
		t.Errorf("inverted window error = %v, want ValidationError", err)
	}

	_, err = svc.ExecuteQuery(ctx, GetTeamAnalyticsQuery{TeamID: "chelsea"})
	if !domain.IsNotFound(err) {
		t.Errorf("unknown team error = %v, want NotFoundError", err)
	}
}

func TestQueryGetTimeSeries(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)

	points := []readmodel.TimeseriesPoint{
		{EventID: "ev-10", EntityType: readmodel.EntityTypeTeam, EntityID: "arsenal", Metric: readmodel.MetricXG, Value: 0.3, RecordedAt: base.Add(5 * time.Minute)},
		{EventID: "ev-11", EntityType: readmodel.EntityTypeTeam, EntityID: "arsenal", Metric: readmodel.MetricXG, Value: 0.9, RecordedAt: base.Add(65 * time.Minute)},
	}
	for _, p := range points {
		seedTimeseriesPoint(t, db, p)
	}

	raw, err := svc.ExecuteQuery(ctx, GetTimeSeriesAnalyticsQuery{
		EntityType: readmodel.EntityTypeTeam,
		EntityID:   "arsenal",
		Metric:     readmodel.MetricXG,
		From:       base,
		To:         base.Add(2 * time.Hour),
		Interval:   readmodel.IntervalHour,
	})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	buckets, ok := raw.([]readmodel.TimeseriesBucket)
	if !ok {
		t.Fatalf("result type = %T, want []readmodel.TimeseriesBucket", raw)
	}
	if len(buckets) != 2 {
		t.Fatalf("hour buckets = %d, want 2", len(buckets))
	}
	if buckets[0].Avg != 0.3 || buckets[1].Avg != 0.9 {
		t.Errorf("bucket averages = %v/%v, want 0.3/0.9", buckets[0].Avg, buckets[1].Avg)
	}

	raw, err = svc.ExecuteQuery(ctx, GetTimeSeriesAnalyticsQuery{
		EntityType: readmodel.EntityTypeTeam,
		EntityID:   "arsenal",
		Metric:     readmodel.MetricXG,
		From:       base,
		To:         base.Add(24 * time.Hour),
		Interval:   readmodel.IntervalDay,
	})
	if err != nil {
		t.Fatalf("day query error = %v", err)
	}
	if day := raw.([]readmodel.TimeseriesBucket); len(day) != 1 || day[0].Count != 2 {
		t.Errorf("day buckets = %v, want one bucket of two points", day)
	}

	invalid := []GetTimeSeriesAnalyticsQuery{
		{EntityType: "player", EntityID: "arsenal", Metric: readmodel.MetricXG, From: base, To: base.Add(time.Hour), Interval: readmodel.IntervalHour},
		{EntityType: readmodel.EntityTypeTeam, EntityID: "arsenal", Metric: "shots", From: base, To: base.Add(time.Hour), Interval: readmodel.IntervalHour},
		{EntityType: readmodel.EntityTypeTeam, EntityID: "arsenal", Metric: readmodel.MetricXG, From: base, To: base.Add(time.Hour), Interval: "fortnight"},
		{EntityType: readmodel.EntityTypeTeam, EntityID: "arsenal", Metric: readmodel.MetricXG, From: base, To: base, Interval: readmodel.IntervalHour},
	}
	for i, q := range invalid {
		if _, err := svc.ExecuteQuery(ctx, q); !domain.IsValidation(err) {
			t.Errorf("invalid query #%d error = %v, want ValidationError", i, err)
		}
	}
}
