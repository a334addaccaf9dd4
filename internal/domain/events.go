// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package domain

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/touchlinehq/touchline/internal/calc"
)

// SchemaVersion is the current event payload schema version. It versions the
// payload shape only; the aggregate's stream position lives in the event
// store, never in the event itself. Increment when making breaking changes
// to a payload struct.
const SchemaVersion = 1

// AggregateTypeMatchAnalytics is the aggregate type tag carried by every
// match analytics event.
const AggregateTypeMatchAnalytics = "match_analytics"

// EventType is the closed tag identifying each event variant on the wire.
type EventType string

// The closed set of event types. Replaying an event with a tag outside this
// set logs a warning and skips the state change (forward compatibility with
// events written by newer versions).
const (
	// EventTypeMatchAnalyticsCreated records the birth of a match analytics stream.
	EventTypeMatchAnalyticsCreated EventType = "match_analytics_created"
	// EventTypeXGCalculated records a new expected-goals value for one team.
	EventTypeXGCalculated EventType = "xg_calculated"
	// EventTypePossessionCalculated records possession percentages for both teams.
	EventTypePossessionCalculated EventType = "possession_calculated"
	// EventTypeFormationDetected records a detected formation for one team.
	EventTypeFormationDetected EventType = "formation_detected"
	// EventTypeMatchDurationUpdated records a change to the tracked match duration.
	EventTypeMatchDurationUpdated EventType = "match_duration_updated"
)

// Event is the immutable envelope around every state transition. It is
// constructed once via NewEvent and never mutated afterwards. Events carry
// no reference to sibling events; ordering within a stream is the event
// store's responsibility.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     EventType         `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	SchemaVersion int               `json:"schema_version"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CausationID   string            `json:"causation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
}

// EventOption customizes an event at construction time.
type EventOption func(*Event)

// WithTimestamp overrides the event timestamp. Without it NewEvent stamps
// the current UTC time.
func WithTimestamp(ts time.Time) EventOption {
	return func(e *Event) {
		e.Timestamp = ts
	}
}

// WithCorrelationID tags the event with a request-scoped correlation id.
func WithCorrelationID(id string) EventOption {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// WithCausationID tags the event with the id of the event or command that
// caused it.
func WithCausationID(id string) EventOption {
	return func(e *Event) {
		e.CausationID = id
	}
}

// WithMetadata attaches free-form metadata to the event.
func WithMetadata(metadata map[string]string) EventOption {
	return func(e *Event) {
		e.Metadata = metadata
	}
}

// NewEvent constructs an event envelope with a fresh event id, the current
// schema version and a UTC timestamp, then marshals the payload into it.
func NewEvent(eventType EventType, aggregateID string, payload interface{}, opts ...EventOption) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	event := Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: AggregateTypeMatchAnalytics,
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Validate checks required envelope fields and returns an error if any are
// missing.
func (e Event) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.EventType == "" {
		return &ValidationError{Field: "event_type", Message: "required"}
	}
	if e.AggregateID == "" {
		return &ValidationError{Field: "aggregate_id", Message: "required"}
	}
	if e.AggregateType == "" {
		return &ValidationError{Field: "aggregate_type", Message: "required"}
	}
	if e.SchemaVersion < 1 {
		return &ValidationError{Field: "schema_version", Message: "must be at least 1"}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "required"}
	}
	if len(e.Payload) == 0 {
		return &ValidationError{Field: "payload", Message: "required"}
	}
	return nil
}

// Marshal serializes the full envelope.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes a full envelope and validates its required
// fields.
func UnmarshalEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// MatchAnalyticsCreatedPayload is the payload of EventTypeMatchAnalyticsCreated.
type MatchAnalyticsCreatedPayload struct {
	HomeTeamID      string `json:"home_team_id"`
	AwayTeamID      string `json:"away_team_id"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// XGCalculatedPayload is the payload of EventTypeXGCalculated. ShotData
// optionally carries the raw shot the value was derived from.
type XGCalculatedPayload struct {
	TeamID     string     `json:"team_id"`
	NewXG      float64    `json:"new_xg"`
	PreviousXG float64    `json:"previous_xg"`
	ShotData   *calc.Shot `json:"shot_data,omitempty"`
}

// PossessionCalculatedPayload is the payload of EventTypePossessionCalculated.
// Method names the calculation method that produced the percentages.
type PossessionCalculatedPayload struct {
	HomeTeamID     string  `json:"home_team_id"`
	HomePossession float64 `json:"home_possession"`
	AwayTeamID     string  `json:"away_team_id"`
	AwayPossession float64 `json:"away_possession"`
	Method         string  `json:"method"`
}

// PlayerPosition is one player's normalized pitch position at detection
// time. X runs 0 (own goal line) to 1 (opponent's goal line), Y runs 0 to 1
// across the width.
type PlayerPosition struct {
	PlayerID string  `json:"player_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// FormationDetectedPayload is the payload of EventTypeFormationDetected.
type FormationDetectedPayload struct {
	TeamID          string           `json:"team_id"`
	Formation       string           `json:"formation"`
	Confidence      float64          `json:"confidence"`
	PlayerPositions []PlayerPosition `json:"player_positions,omitempty"`
	DetectedAt      time.Time        `json:"detected_at"`
}

// MatchDurationUpdatedPayload is the payload of EventTypeMatchDurationUpdated.
type MatchDurationUpdatedPayload struct {
	DurationSeconds  int `json:"duration_seconds"`
	PreviousDuration int `json:"previous_duration"`
}

// payloadTypes is the closed registry mapping event types to payload
// constructors, used to decode payloads without reflection over type names.
var payloadTypes = map[EventType]func() interface{}{
	EventTypeMatchAnalyticsCreated: func() interface{} { return &MatchAnalyticsCreatedPayload{} },
	EventTypeXGCalculated:          func() interface{} { return &XGCalculatedPayload{} },
	EventTypePossessionCalculated:  func() interface{} { return &PossessionCalculatedPayload{} },
	EventTypeFormationDetected:     func() interface{} { return &FormationDetectedPayload{} },
	EventTypeMatchDurationUpdated:  func() interface{} { return &MatchDurationUpdatedPayload{} },
}

// KnownEventType reports whether the tag belongs to the closed event set.
func KnownEventType(t EventType) bool {
	_, ok := payloadTypes[t]
	return ok
}

// EventTypes returns the closed set of known event tags.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(payloadTypes))
	for t := range payloadTypes {
		types = append(types, t)
	}
	return types
}

// DecodePayload unmarshals the typed payload for a known event type. It
// returns a pointer to the concrete payload struct, or a ValidationError for
// tags outside the closed set.
func DecodePayload(e Event) (interface{}, error) {
	newPayload, ok := payloadTypes[e.EventType]
	if !ok {
		return nil, &ValidationError{Field: "event_type", Message: "unknown event type " + string(e.EventType)}
	}

	payload := newPayload()
	if err := json.Unmarshal(e.Payload, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
