// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/readmodel"
)

// historyFrom is the lower bound of the match history window. Match-entity
// rows exist only for the match's own events, so the window just needs to
// reach every one of them.
var historyFrom = time.Unix(0, 0).UTC()

// QueryHandlers answers every query kind from the read database. The write
// side is never consulted.
type QueryHandlers struct {
	db *readmodel.DB
}

// NewQueryHandlers returns handlers over the read database.
func NewQueryHandlers(db *readmodel.DB) *QueryHandlers {
	return &QueryHandlers{db: db}
}

// Register installs all query handlers.
func (h *QueryHandlers) Register(reg *Registry) error {
	handlers := map[string]QueryHandlerFunc{
		KindGetMatchAnalytics:      h.handleGetMatchAnalytics,
		KindGetTeamAnalytics:       h.handleGetTeamAnalytics,
		KindGetTimeSeriesAnalytics: h.handleGetTimeSeries,
	}
	for kind, handler := range handlers {
		if err := reg.RegisterQuery(kind, handler); err != nil {
			return err
		}
	}
	return nil
}

// queryType asserts the concrete query struct for a kind.
func queryType[T Query](q Query) (T, error) {
	qq, ok := q.(T)
	if !ok {
		return qq, domain.NewValidationError("query",
			fmt.Sprintf("kind %q carried unexpected type %T", q.Kind(), q))
	}
	return qq, nil
}

// handleGetMatchAnalytics returns a *MatchAnalyticsView. With
// IncludeHistorical it attaches the match's minute-bucketed series per
// metric, up to the summary's last update.
func (h *QueryHandlers) handleGetMatchAnalytics(ctx context.Context, q Query) (interface{}, error) {
	query, err := queryType[GetMatchAnalyticsQuery](q)
	if err != nil {
		return nil, err
	}

	summary, err := h.db.GetMatchSummary(ctx, query.MatchID)
	if err != nil {
		return nil, err
	}

	view := &MatchAnalyticsView{Summary: *summary}
	if !query.IncludeHistorical {
		return view, nil
	}

	history := make(map[string][]readmodel.TimeseriesBucket)
	for _, metric := range []string{readmodel.MetricXG, readmodel.MetricPossession, readmodel.MetricFormationConfidence} {
		buckets, err := h.db.QueryTimeSeries(ctx, readmodel.TimeSeriesQuery{
			EntityType: readmodel.EntityTypeMatch,
			EntityID:   query.MatchID,
			Metric:     metric,
			From:       historyFrom,
			To:         summary.LastUpdated,
			Interval:   readmodel.IntervalMinute,
		})
		if err != nil {
			return nil, err
		}
		if len(buckets) > 0 {
			history[metric] = buckets
		}
	}
	if len(history) > 0 {
		view.History = history
	}
	return view, nil
}

// handleGetTeamAnalytics returns a *readmodel.TeamMetrics aggregated over
// the team's matches, optionally windowed.
func (h *QueryHandlers) handleGetTeamAnalytics(ctx context.Context, q Query) (interface{}, error) {
	query, err := queryType[GetTeamAnalyticsQuery](q)
	if err != nil {
		return nil, err
	}
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		return nil, domain.NewValidationError("to", "window end precedes start")
	}

	return h.db.GetTeamMetrics(ctx, query.TeamID, query.From, query.To)
}

// handleGetTimeSeries returns []readmodel.TimeseriesBucket for one
// (entity, metric) pair.
func (h *QueryHandlers) handleGetTimeSeries(ctx context.Context, q Query) (interface{}, error) {
	query, err := queryType[GetTimeSeriesAnalyticsQuery](q)
	if err != nil {
		return nil, err
	}

	return h.db.QueryTimeSeries(ctx, readmodel.TimeSeriesQuery{
		EntityType: query.EntityType,
		EntityID:   query.EntityID,
		Metric:     query.Metric,
		From:       query.From,
		To:         query.To,
		Interval:   query.Interval,
	})
}
