// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/readmodel"
)

// decodePayload unmarshals a typed event payload. Failures are permanent:
// retrying cannot fix a malformed payload, so the event parks immediately.
func decodePayload(rec eventstore.RecordedEvent, dst interface{}) error {
	if err := json.Unmarshal(rec.Payload, dst); err != nil {
		return NewPermanentError(fmt.Sprintf("decode %s payload", rec.EventType), err)
	}
	return nil
}

// matchSummaryProjection maintains the per-match current-value table. Event
// versions ride along on every write so redelivered events cannot regress a
// row.
type matchSummaryProjection struct {
	db *readmodel.DB
}

// NewMatchSummaryProjection builds the match_summary projection over the
// read database.
func NewMatchSummaryProjection(db *readmodel.DB) Projection {
	return &matchSummaryProjection{db: db}
}

func (p *matchSummaryProjection) Name() string {
	return NameMatchSummary
}

func (p *matchSummaryProjection) Reset(ctx context.Context) error {
	return p.db.TruncateMatchSummary(ctx)
}

func (p *matchSummaryProjection) Handlers() map[domain.EventType]HandlerFunc {
	return map[domain.EventType]HandlerFunc{
		domain.EventTypeMatchAnalyticsCreated: p.onCreated,
		domain.EventTypeXGCalculated:          p.onXG,
		domain.EventTypePossessionCalculated:  p.onPossession,
		domain.EventTypeFormationDetected:     p.onFormation,
		domain.EventTypeMatchDurationUpdated:  p.onDuration,
	}
}

func (p *matchSummaryProjection) onCreated(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.MatchAnalyticsCreatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}

	return p.db.UpsertMatchSummary(ctx, readmodel.MatchSummary{
		MatchID:         rec.AggregateID,
		HomeTeamID:      payload.HomeTeamID,
		AwayTeamID:      payload.AwayTeamID,
		DurationSeconds: payload.DurationSeconds,
		LastVersion:     rec.Version,
		LastUpdated:     rec.Timestamp,
	})
}

func (p *matchSummaryProjection) onXG(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.XGCalculatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}
	return p.db.UpdateSummaryXG(ctx, rec.AggregateID, payload.TeamID, payload.NewXG, rec.Version, rec.Timestamp)
}

func (p *matchSummaryProjection) onPossession(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.PossessionCalculatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}
	return p.db.UpdateSummaryPossession(ctx, rec.AggregateID, payload.HomePossession, payload.AwayPossession, rec.Version, rec.Timestamp)
}

func (p *matchSummaryProjection) onFormation(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.FormationDetectedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}
	return p.db.UpdateSummaryFormation(ctx, rec.AggregateID, payload.TeamID, payload.Formation, rec.Version, rec.Timestamp)
}

func (p *matchSummaryProjection) onDuration(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.MatchDurationUpdatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}
	return p.db.UpdateSummaryDuration(ctx, rec.AggregateID, payload.DurationSeconds, rec.Version, rec.Timestamp)
}

// teamMetricsProjection maintains per-(team, match) metric rows. Cross-match
// aggregation happens at query time, so replays can never double-count a
// match.
type teamMetricsProjection struct {
	db *readmodel.DB
}

// NewTeamMetricsProjection builds the team_metrics projection over the read
// database.
func NewTeamMetricsProjection(db *readmodel.DB) Projection {
	return &teamMetricsProjection{db: db}
}

func (p *teamMetricsProjection) Name() string {
	return NameTeamMetrics
}

func (p *teamMetricsProjection) Reset(ctx context.Context) error {
	return p.db.TruncateTeamMetrics(ctx)
}

func (p *teamMetricsProjection) Handlers() map[domain.EventType]HandlerFunc {
	return map[domain.EventType]HandlerFunc{
		domain.EventTypeMatchAnalyticsCreated: p.onCreated,
		domain.EventTypeXGCalculated:          p.onXG,
		domain.EventTypePossessionCalculated:  p.onPossession,
		domain.EventTypeFormationDetected:     p.onFormation,
	}
}

func (p *teamMetricsProjection) onCreated(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.MatchAnalyticsCreatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}

	if err := p.db.EnsureTeamMetricsRow(ctx, payload.HomeTeamID, rec.AggregateID, rec.Version, rec.Timestamp); err != nil {
		return err
	}
	return p.db.EnsureTeamMetricsRow(ctx, payload.AwayTeamID, rec.AggregateID, rec.Version, rec.Timestamp)
}

func (p *teamMetricsProjection) onXG(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.XGCalculatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}
	return p.db.UpdateTeamXG(ctx, payload.TeamID, rec.AggregateID, payload.NewXG, rec.Version, rec.Timestamp)
}

func (p *teamMetricsProjection) onPossession(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.PossessionCalculatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}

	if err := p.db.UpdateTeamPossession(ctx, payload.HomeTeamID, rec.AggregateID, payload.HomePossession, rec.Version, rec.Timestamp); err != nil {
		return err
	}
	return p.db.UpdateTeamPossession(ctx, payload.AwayTeamID, rec.AggregateID, payload.AwayPossession, rec.Version, rec.Timestamp)
}

func (p *teamMetricsProjection) onFormation(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.FormationDetectedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}
	return p.db.UpdateTeamFormation(ctx, payload.TeamID, rec.AggregateID, payload.Formation, rec.Version, rec.Timestamp)
}

// metricTimeseriesProjection appends observation rows per metric-bearing
// event: a team-entity point for team trend queries and a match-entity point
// for the historical match view. The contributing event id keys each row,
// which makes replays free.
type metricTimeseriesProjection struct {
	db *readmodel.DB
}

// NewMetricTimeseriesProjection builds the metric_timeseries projection over
// the read database.
func NewMetricTimeseriesProjection(db *readmodel.DB) Projection {
	return &metricTimeseriesProjection{db: db}
}

func (p *metricTimeseriesProjection) Name() string {
	return NameMetricTimeseries
}

func (p *metricTimeseriesProjection) Reset(ctx context.Context) error {
	return p.db.TruncateTimeseries(ctx)
}

func (p *metricTimeseriesProjection) Handlers() map[domain.EventType]HandlerFunc {
	return map[domain.EventType]HandlerFunc{
		domain.EventTypeXGCalculated:         p.onXG,
		domain.EventTypePossessionCalculated: p.onPossession,
		domain.EventTypeFormationDetected:    p.onFormation,
	}
}

func (p *metricTimeseriesProjection) onXG(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.XGCalculatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}

	team := readmodel.TimeseriesPoint{
		EventID:    rec.EventID,
		EntityType: readmodel.EntityTypeTeam,
		EntityID:   payload.TeamID,
		Metric:     readmodel.MetricXG,
		Value:      payload.NewXG,
		RecordedAt: rec.Timestamp,
	}
	if err := p.db.InsertTimeseriesPoint(ctx, team); err != nil {
		return err
	}

	match := team
	match.EntityType = readmodel.EntityTypeMatch
	match.EntityID = rec.AggregateID
	return p.db.InsertTimeseriesPoint(ctx, match)
}

func (p *metricTimeseriesProjection) onPossession(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.PossessionCalculatedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}

	home := readmodel.TimeseriesPoint{
		EventID:    rec.EventID,
		EntityType: readmodel.EntityTypeTeam,
		EntityID:   payload.HomeTeamID,
		Metric:     readmodel.MetricPossession,
		Value:      payload.HomePossession,
		RecordedAt: rec.Timestamp,
	}
	if err := p.db.InsertTimeseriesPoint(ctx, home); err != nil {
		return err
	}

	away := home
	away.EntityID = payload.AwayTeamID
	away.Value = payload.AwayPossession
	if err := p.db.InsertTimeseriesPoint(ctx, away); err != nil {
		return err
	}

	// The match series records the home share; away is its complement.
	match := home
	match.EntityType = readmodel.EntityTypeMatch
	match.EntityID = rec.AggregateID
	return p.db.InsertTimeseriesPoint(ctx, match)
}

func (p *metricTimeseriesProjection) onFormation(ctx context.Context, rec eventstore.RecordedEvent) error {
	var payload domain.FormationDetectedPayload
	if err := decodePayload(rec, &payload); err != nil {
		return err
	}

	team := readmodel.TimeseriesPoint{
		EventID:    rec.EventID,
		EntityType: readmodel.EntityTypeTeam,
		EntityID:   payload.TeamID,
		Metric:     readmodel.MetricFormationConfidence,
		Value:      payload.Confidence,
		RecordedAt: rec.Timestamp,
	}
	if err := p.db.InsertTimeseriesPoint(ctx, team); err != nil {
		return err
	}

	match := team
	match.EntityType = readmodel.EntityTypeMatch
	match.EntityID = rec.AggregateID
	return p.db.InsertTimeseriesPoint(ctx, match)
}

// Builtins constructs every built-in projection over the read database.
func Builtins(db *readmodel.DB) []Projection {
	return []Projection{
		NewMatchSummaryProjection(db),
		NewTeamMetricsProjection(db),
		NewMetricTimeseriesProjection(db),
	}
}

// BuiltinsFor constructs the named built-in projections, or all of them when
// names is empty. Unknown names fail so a typo in configuration cannot
// silently disable a projection.
func BuiltinsFor(db *readmodel.DB, names []string) ([]Projection, error) {
	if len(names) == 0 {
		return Builtins(db), nil
	}

	byName := make(map[string]Projection, 3)
	for _, p := range Builtins(db) {
		byName[p.Name()] = p
	}

	projections := make([]Projection, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, domain.NewValidationError("projections.enabled", fmt.Sprintf("unknown projection %q", name))
		}
		projections = append(projections, p)
	}
	return projections, nil
}
