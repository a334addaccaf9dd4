// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
)

// HandlerFunc applies one recorded event to a read model. Handlers must be
// idempotent: the same event may arrive again through redelivery, catch-up
// or rebuild, and applying it twice must leave the read model unchanged.
type HandlerFunc func(ctx context.Context, rec eventstore.RecordedEvent) error

// Projection is a named read model derivation.
//
// Handlers returns the event types the projection consumes; events of any
// other type are counted and skipped. Reset truncates the projection's
// tables so a rebuild can replay the log from scratch.
type Projection interface {
	Name() string
	Handlers() map[domain.EventType]HandlerFunc
	Reset(ctx context.Context) error
}

// Built-in projection names.
const (
	NameMatchSummary     = "match_summary"
	NameTeamMetrics      = "team_metrics"
	NameMetricTimeseries = "metric_timeseries"
)

// BuiltinNames lists the projections shipped with the service, in
// registration order.
func BuiltinNames() []string {
	return []string{NameMatchSummary, NameTeamMetrics, NameMetricTimeseries}
}
