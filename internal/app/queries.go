// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"time"

	"github.com/touchlinehq/touchline/internal/readmodel"
)

// Query kinds known to the registry.
const (
	KindGetMatchAnalytics      = "get_match_analytics"
	KindGetTeamAnalytics       = "get_team_analytics"
	KindGetTimeSeriesAnalytics = "get_time_series_analytics"
)

// Query is a read request answered entirely from the read models. Reads are
// eventually consistent: they may lag the write side by one projection
// cycle.
type Query interface {
	Kind() string
}

// GetMatchAnalyticsQuery fetches the current analytics row for a match.
// IncludeHistorical additionally returns the match's minute-bucketed metric
// series.
type GetMatchAnalyticsQuery struct {
	MatchID           string `json:"match_id" validate:"required,stream_id"`
	IncludeHistorical bool   `json:"include_historical"`
}

func (GetMatchAnalyticsQuery) Kind() string { return KindGetMatchAnalytics }

// MatchAnalyticsView answers GetMatchAnalytics.
type MatchAnalyticsView struct {
	Summary readmodel.MatchSummary `json:"summary"`

	// History maps metric name to the match's minute-bucketed series.
	// Populated only when the query asks for historical data; metrics
	// with no observations are absent.
	History map[string][]readmodel.TimeseriesBucket `json:"history,omitempty"`
}

// GetTeamAnalyticsQuery aggregates a team's metrics across its matches,
// optionally restricted to a time window.
type GetTeamAnalyticsQuery struct {
	TeamID string     `json:"team_id" validate:"required"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
}

func (GetTeamAnalyticsQuery) Kind() string { return KindGetTeamAnalytics }

// GetTimeSeriesAnalyticsQuery returns bucketed history for one
// (entity, metric) pair.
type GetTimeSeriesAnalyticsQuery struct {
	EntityType string    `json:"entity_type" validate:"required,oneof=match team"`
	EntityID   string    `json:"entity_id" validate:"required"`
	Metric     string    `json:"metric" validate:"required,oneof=xg possession formation_confidence"`
	From       time.Time `json:"from" validate:"required"`
	To         time.Time `json:"to" validate:"required,gtfield=From"`
	Interval   string    `json:"interval" validate:"required,oneof=minute hour day week"`
}

func (GetTimeSeriesAnalyticsQuery) Kind() string { return KindGetTimeSeriesAnalytics }
