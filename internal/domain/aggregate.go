// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package domain

import (
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/touchlinehq/touchline/internal/calc"
	"github.com/touchlinehq/touchline/internal/logging"
)

// NoStreamVersion is the version of an aggregate before any event has been
// applied. Appending with this expected version asserts the stream does not
// exist yet.
const NoStreamVersion int64 = -1

// possessionSumTolerance is the maximum deviation of home+away possession
// from 100 accepted by UpdatePossession and Validate.
const possessionSumTolerance = 1.0

// MatchAnalytics is the aggregate root and consistency boundary for one
// match. Every state change is validated here, applied through the event
// switch in apply, and recorded as an uncommitted event until the caller
// persists it. The aggregate is never mutated by direct field assignment
// and never deleted; the event log is the permanent record.
//
// MatchAnalytics is not safe for concurrent use. Concurrent commands for
// the same match are serialized by the event store's optimistic concurrency
// check, not by locking here.
type MatchAnalytics struct {
	matchID         MatchID
	homeTeam        TeamAnalytics
	awayTeam        TeamAnalytics
	durationSeconds int
	lastUpdated     time.Time
	version         int64
	uncommitted     []Event

	now       func() time.Time
	eventOpts []EventOption
}

// AggregateOption customizes aggregate construction.
type AggregateOption func(*MatchAnalytics)

// WithClock injects the time source used to stamp emitted events. Tests use
// it to make event timestamps deterministic.
func WithClock(now func() time.Time) AggregateOption {
	return func(m *MatchAnalytics) {
		m.now = now
	}
}

// WithEventOptions sets envelope options (correlation id, causation id,
// metadata) applied to every event the aggregate emits.
func WithEventOptions(opts ...EventOption) AggregateOption {
	return func(m *MatchAnalytics) {
		m.eventOpts = opts
	}
}

// newAggregate returns an empty aggregate at NoStreamVersion with options
// applied.
func newAggregate(opts ...AggregateOption) *MatchAnalytics {
	m := &MatchAnalytics{
		version: NoStreamVersion,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMatchAnalytics creates a match analytics aggregate at version 0 with
// one uncommitted MatchAnalyticsCreated event. The duration may be zero when
// the match length is not yet known.
func NewMatchAnalytics(matchID, homeTeamID, awayTeamID string, durationSeconds int, opts ...AggregateOption) (*MatchAnalytics, error) {
	id, err := NewMatchID(matchID)
	if err != nil {
		return nil, err
	}
	if homeTeamID == "" {
		return nil, &ValidationError{Field: "home_team_id", Message: "required"}
	}
	if awayTeamID == "" {
		return nil, &ValidationError{Field: "away_team_id", Message: "required"}
	}
	if homeTeamID == awayTeamID {
		return nil, &ValidationError{Field: "away_team_id", Message: "home and away team ids must differ"}
	}
	if durationSeconds < 0 {
		return nil, &ValidationError{Field: "duration_seconds", Message: "must not be negative"}
	}

	m := newAggregate(opts...)
	event, err := m.newEvent(EventTypeMatchAnalyticsCreated, id.String(), MatchAnalyticsCreatedPayload{
		HomeTeamID:      homeTeamID,
		AwayTeamID:      awayTeamID,
		DurationSeconds: durationSeconds,
	})
	if err != nil {
		return nil, err
	}
	if err := m.recordEvent(event); err != nil {
		return nil, err
	}
	return m, nil
}

// FromEvents reconstructs an aggregate by replaying its full event stream.
// The first event must be MatchAnalyticsCreated and every event must belong
// to the given match.
func FromEvents(matchID string, events []Event, opts ...AggregateOption) (*MatchAnalytics, error) {
	if len(events) == 0 {
		return nil, &ValidationError{Field: "events", Message: "cannot reconstruct from an empty stream"}
	}
	if events[0].EventType != EventTypeMatchAnalyticsCreated {
		return nil, &ValidationError{Field: "events", Message: "first event must be " + string(EventTypeMatchAnalyticsCreated)}
	}
	if events[0].AggregateID != matchID {
		return nil, &ValidationError{Field: "events", Message: "stream does not belong to match " + matchID}
	}

	m := newAggregate(opts...)
	for _, event := range events {
		if err := m.ApplyEvent(event); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FromSnapshot restores an aggregate directly from a snapshot, without
// replay. Events recorded after the snapshot version are applied by the
// caller via ApplyEvent.
func FromSnapshot(snapshot Snapshot, opts ...AggregateOption) (*MatchAnalytics, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	m := newAggregate(opts...)
	m.matchID = MatchID(snapshot.MatchID)
	m.homeTeam = snapshot.HomeTeam
	m.awayTeam = snapshot.AwayTeam
	m.durationSeconds = snapshot.DurationSeconds
	m.lastUpdated = snapshot.LastUpdated
	m.version = snapshot.Version
	return m, nil
}

// MatchID returns the match identifier.
func (m *MatchAnalytics) MatchID() MatchID {
	return m.matchID
}

// HomeTeam returns the home team analytics value.
func (m *MatchAnalytics) HomeTeam() TeamAnalytics {
	return m.homeTeam
}

// AwayTeam returns the away team analytics value.
func (m *MatchAnalytics) AwayTeam() TeamAnalytics {
	return m.awayTeam
}

// DurationSeconds returns the tracked match duration.
func (m *MatchAnalytics) DurationSeconds() int {
	return m.durationSeconds
}

// LastUpdated returns the timestamp of the last applied event.
func (m *MatchAnalytics) LastUpdated() time.Time {
	return m.lastUpdated
}

// Version returns the stream position of the last applied event, starting
// at 0 for the creation event. Commands append with this as the expected
// version minus the events they are about to add.
func (m *MatchAnalytics) Version() int64 {
	return m.version
}

// UncommittedEvents returns a copy of the events recorded since the last
// MarkEventsAsCommitted.
func (m *MatchAnalytics) UncommittedEvents() []Event {
	events := make([]Event, len(m.uncommitted))
	copy(events, m.uncommitted)
	return events
}

// MarkEventsAsCommitted clears the uncommitted buffer after a successful
// append.
func (m *MatchAnalytics) MarkEventsAsCommitted() {
	m.uncommitted = nil
}

// UpdateTeamXG sets a new expected-goals value for the team with the given
// id. The shot that produced the value may be attached for auditability;
// nil is fine. Fails with UnknownTeamError if the id matches neither team.
func (m *MatchAnalytics) UpdateTeamXG(teamID string, newXG float64, shot *calc.Shot) error {
	team, err := m.teamByID(teamID)
	if err != nil {
		return err
	}

	event, err := m.newEvent(EventTypeXGCalculated, m.matchID.String(), XGCalculatedPayload{
		TeamID:     teamID,
		NewXG:      newXG,
		PreviousXG: team.XG,
		ShotData:   shot,
	})
	if err != nil {
		return err
	}
	return m.recordEvent(event)
}

// UpdatePossession sets possession percentages for both teams. The
// percentages must each lie in [0, 100] and sum to 100 within a tolerance
// of 1 to absorb rounding from the calculator.
func (m *MatchAnalytics) UpdatePossession(homePct, awayPct float64) error {
	if homePct < 0 || homePct > 100 {
		return &ValidationError{Field: "home_possession", Message: "must be between 0 and 100"}
	}
	if awayPct < 0 || awayPct > 100 {
		return &ValidationError{Field: "away_possession", Message: "must be between 0 and 100"}
	}
	if math.Abs(homePct+awayPct-100) > possessionSumTolerance {
		return &ValidationError{Field: "possession", Message: "home and away possession must sum to 100 (within 1)"}
	}

	event, err := m.newEvent(EventTypePossessionCalculated, m.matchID.String(), PossessionCalculatedPayload{
		HomeTeamID:     m.homeTeam.TeamID,
		HomePossession: homePct,
		AwayTeamID:     m.awayTeam.TeamID,
		AwayPossession: awayPct,
		Method:         calc.PossessionMethodDuration,
	})
	if err != nil {
		return err
	}
	return m.recordEvent(event)
}

// UpdateMatchDuration sets the tracked match duration in seconds. Negative
// durations are rejected. The change is event-sourced like every other
// mutation so replay reproduces it.
func (m *MatchAnalytics) UpdateMatchDuration(durationSeconds int) error {
	if durationSeconds < 0 {
		return &ValidationError{Field: "duration_seconds", Message: "must not be negative"}
	}

	event, err := m.newEvent(EventTypeMatchDurationUpdated, m.matchID.String(), MatchDurationUpdatedPayload{
		DurationSeconds:  durationSeconds,
		PreviousDuration: m.durationSeconds,
	})
	if err != nil {
		return err
	}
	return m.recordEvent(event)
}

// RecordFormation records a detected formation for the team with the given
// id. Confidence must lie in [0, 1]. A zero detection time is stamped with
// the aggregate clock.
func (m *MatchAnalytics) RecordFormation(teamID, formation string, confidence float64, positions []PlayerPosition, detectedAt time.Time) error {
	if _, err := m.teamByID(teamID); err != nil {
		return err
	}
	if formation == "" {
		return &ValidationError{Field: "formation", Message: "required"}
	}
	if confidence < 0 || confidence > 1 {
		return &ValidationError{Field: "confidence", Message: "must be between 0 and 1"}
	}
	if detectedAt.IsZero() {
		detectedAt = m.now()
	}

	event, err := m.newEvent(EventTypeFormationDetected, m.matchID.String(), FormationDetectedPayload{
		TeamID:          teamID,
		Formation:       formation,
		Confidence:      confidence,
		PlayerPositions: positions,
		DetectedAt:      detectedAt,
	})
	if err != nil {
		return err
	}
	return m.recordEvent(event)
}

// ApplyEvent advances the aggregate by one already-committed event during
// replay. It never emits events. Tags outside the closed set are skipped
// with a warning, but version and lastUpdated still advance so the
// aggregate tracks its stream position.
func (m *MatchAnalytics) ApplyEvent(event Event) error {
	return m.apply(event)
}

// CreateSnapshot returns a pure projection of the current aggregate fields.
// It reads no clock and has no side effects, so snapshotting the same state
// twice yields identical snapshots.
func (m *MatchAnalytics) CreateSnapshot() Snapshot {
	return Snapshot{
		MatchID:         m.matchID.String(),
		HomeTeam:        m.homeTeam,
		AwayTeam:        m.awayTeam,
		DurationSeconds: m.durationSeconds,
		LastUpdated:     m.lastUpdated,
		Version:         m.version,
	}
}

// Validate checks every structural invariant of the aggregate. Callers use
// it after reconstruction to detect corrupted streams.
func (m *MatchAnalytics) Validate() error {
	if _, err := NewMatchID(m.matchID.String()); err != nil {
		return err
	}
	if m.homeTeam.TeamID == "" {
		return &ValidationError{Field: "home_team_id", Message: "required"}
	}
	if m.awayTeam.TeamID == "" {
		return &ValidationError{Field: "away_team_id", Message: "required"}
	}
	if m.homeTeam.TeamID == m.awayTeam.TeamID {
		return &ValidationError{Field: "away_team_id", Message: "home and away team ids must differ"}
	}
	if m.homeTeam.Possession != 0 && m.awayTeam.Possession != 0 {
		if math.Abs(m.homeTeam.Possession+m.awayTeam.Possession-100) > possessionSumTolerance {
			return &ValidationError{Field: "possession", Message: "home and away possession must sum to 100 (within 1)"}
		}
	}
	if m.durationSeconds < 0 {
		return &ValidationError{Field: "duration_seconds", Message: "must not be negative"}
	}
	if m.version < 0 {
		return &ValidationError{Field: "version", Message: "aggregate has no applied events"}
	}
	return nil
}

// newEvent builds an event stamped with the aggregate clock and the
// aggregate-level envelope options.
func (m *MatchAnalytics) newEvent(eventType EventType, aggregateID string, payload interface{}) (Event, error) {
	opts := make([]EventOption, 0, len(m.eventOpts)+1)
	opts = append(opts, WithTimestamp(m.now()))
	opts = append(opts, m.eventOpts...)
	return NewEvent(eventType, aggregateID, payload, opts...)
}

// recordEvent applies an event to the aggregate state and buffers it as
// uncommitted. Live mutations and replay share the same transition logic in
// apply, which is what makes replay reproduce live state exactly.
func (m *MatchAnalytics) recordEvent(event Event) error {
	if err := m.apply(event); err != nil {
		return err
	}
	m.uncommitted = append(m.uncommitted, event)
	return nil
}

// apply is the single state-transition function: a closed match on the
// event type tag. Unknown tags log a warning and change no analytics state,
// but version and lastUpdated always advance to mirror the stream position.
func (m *MatchAnalytics) apply(event Event) error {
	switch event.EventType {
	case EventTypeMatchAnalyticsCreated:
		var p MatchAnalyticsCreatedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.matchID = MatchID(event.AggregateID)
		m.homeTeam = NewTeamAnalytics(p.HomeTeamID)
		m.awayTeam = NewTeamAnalytics(p.AwayTeamID)
		m.durationSeconds = p.DurationSeconds

	case EventTypeXGCalculated:
		var p XGCalculatedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.withTeam(p.TeamID, func(t TeamAnalytics) TeamAnalytics {
			return t.WithXG(p.NewXG)
		}, event)

	case EventTypePossessionCalculated:
		var p PossessionCalculatedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.withTeam(p.HomeTeamID, func(t TeamAnalytics) TeamAnalytics {
			return t.WithPossession(p.HomePossession)
		}, event)
		m.withTeam(p.AwayTeamID, func(t TeamAnalytics) TeamAnalytics {
			return t.WithPossession(p.AwayPossession)
		}, event)

	case EventTypeFormationDetected:
		var p FormationDetectedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.withTeam(p.TeamID, func(t TeamAnalytics) TeamAnalytics {
			return t.WithFormation(p.Formation)
		}, event)

	case EventTypeMatchDurationUpdated:
		var p MatchDurationUpdatedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.durationSeconds = p.DurationSeconds

	default:
		logging.Warn().
			Str("event_id", event.EventID).
			Str("event_type", string(event.EventType)).
			Str("match_id", event.AggregateID).
			Msg("Unknown event type on replay, skipping state change")
	}

	m.version++
	m.lastUpdated = event.Timestamp
	return nil
}

// teamByID resolves a team id to the home or away analytics value.
func (m *MatchAnalytics) teamByID(teamID string) (TeamAnalytics, error) {
	switch teamID {
	case m.homeTeam.TeamID:
		return m.homeTeam, nil
	case m.awayTeam.TeamID:
		return m.awayTeam, nil
	default:
		return TeamAnalytics{}, &UnknownTeamError{MatchID: m.matchID.String(), TeamID: teamID}
	}
}

// withTeam applies an update function to the team with the given id. A team
// id that matches neither side is logged and skipped; replay must tolerate
// events written under team configurations that no longer resolve.
func (m *MatchAnalytics) withTeam(teamID string, update func(TeamAnalytics) TeamAnalytics, event Event) {
	switch teamID {
	case m.homeTeam.TeamID:
		m.homeTeam = update(m.homeTeam)
	case m.awayTeam.TeamID:
		m.awayTeam = update(m.awayTeam)
	default:
		logging.Warn().
			Str("event_id", event.EventID).
			Str("event_type", string(event.EventType)).
			Str("match_id", event.AggregateID).
			Str("team_id", teamID).
			Msg("Event references a team not in this match, skipping state change")
	}
}
