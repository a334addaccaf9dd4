// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEvent(t *testing.T) {
	payload := XGCalculatedPayload{TeamID: "arsenal", NewXG: 0.45, PreviousXG: 0}

	event, err := NewEvent(EventTypeXGCalculated, "m-2026-0412", payload)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	if _, err := uuid.Parse(event.EventID); err != nil {
		t.Errorf("EventID = %q, want a valid UUID: %v", event.EventID, err)
	}
	if event.EventType != EventTypeXGCalculated {
		t.Errorf("EventType = %q, want %q", event.EventType, EventTypeXGCalculated)
	}
	if event.AggregateID != "m-2026-0412" {
		t.Errorf("AggregateID = %q, want %q", event.AggregateID, "m-2026-0412")
	}
	if event.AggregateType != AggregateTypeMatchAnalytics {
		t.Errorf("AggregateType = %q, want %q", event.AggregateType, AggregateTypeMatchAnalytics)
	}
	if event.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", event.SchemaVersion, SchemaVersion)
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp is zero, want populated")
	}
	if event.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", event.Timestamp.Location())
	}
	if len(event.Payload) == 0 {
		t.Error("Payload is empty, want marshaled payload")
	}
}

func TestNewEventOptions(t *testing.T) {
	ts := time.Date(2026, 4, 12, 15, 30, 0, 0, time.UTC)

	event, err := NewEvent(EventTypeMatchAnalyticsCreated, "m-2026-0412",
		MatchAnalyticsCreatedPayload{HomeTeamID: "arsenal", AwayTeamID: "spurs"},
		WithTimestamp(ts),
		WithCorrelationID("corr-1"),
		WithCausationID("cause-1"),
		WithMetadata(map[string]string{"source": "ml_pipeline"}),
	)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	if !event.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", event.Timestamp, ts)
	}
	if event.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q, want %q", event.CorrelationID, "corr-1")
	}
	if event.CausationID != "cause-1" {
		t.Errorf("CausationID = %q, want %q", event.CausationID, "cause-1")
	}
	if got := event.Metadata["source"]; got != "ml_pipeline" {
		t.Errorf("Metadata[source] = %q, want %q", got, "ml_pipeline")
	}
}

func TestNewEventRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name        string
		eventType   EventType
		aggregateID string
	}{
		{"empty aggregate id", EventTypeXGCalculated, ""},
		{"empty event type", EventType(""), "m-2026-0412"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvent(tt.eventType, tt.aggregateID, XGCalculatedPayload{TeamID: "arsenal"})
			if err == nil {
				t.Fatal("NewEvent() error = nil, want validation error")
			}
			if !IsValidation(err) {
				t.Errorf("NewEvent() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestEventValidate(t *testing.T) {
	valid, err := NewEvent(EventTypeXGCalculated, "m-2026-0412", XGCalculatedPayload{TeamID: "arsenal", NewXG: 0.45})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(e Event) Event
		wantErr bool
	}{
		{"valid event", func(e Event) Event { return e }, false},
		{"missing event id", func(e Event) Event { e.EventID = ""; return e }, true},
		{"missing event type", func(e Event) Event { e.EventType = ""; return e }, true},
		{"missing aggregate id", func(e Event) Event { e.AggregateID = ""; return e }, true},
		{"missing aggregate type", func(e Event) Event { e.AggregateType = ""; return e }, true},
		{"zero schema version", func(e Event) Event { e.SchemaVersion = 0; return e }, true},
		{"zero timestamp", func(e Event) Event { e.Timestamp = time.Time{}; return e }, true},
		{"empty payload", func(e Event) Event { e.Payload = nil; return e }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := tt.mutate(valid)
			err := event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("Validate() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestEventMarshalRoundTrip(t *testing.T) {
	original, err := NewEvent(EventTypePossessionCalculated, "m-2026-0412",
		PossessionCalculatedPayload{
			HomeTeamID:     "arsenal",
			HomePossession: 55,
			AwayTeamID:     "spurs",
			AwayPossession: 45,
			Method:         "duration_based",
		},
		WithCorrelationID("corr-9"),
	)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	data, err := original.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	restored, err := UnmarshalEvent(data)
	if err != nil {
		t.Fatalf("UnmarshalEvent() error = %v", err)
	}

	if restored.EventID != original.EventID {
		t.Errorf("EventID = %q, want %q", restored.EventID, original.EventID)
	}
	if restored.EventType != original.EventType {
		t.Errorf("EventType = %q, want %q", restored.EventType, original.EventType)
	}
	if restored.CorrelationID != original.CorrelationID {
		t.Errorf("CorrelationID = %q, want %q", restored.CorrelationID, original.CorrelationID)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", restored.Timestamp, original.Timestamp)
	}

	payload, err := DecodePayload(restored)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	p, ok := payload.(*PossessionCalculatedPayload)
	if !ok {
		t.Fatalf("DecodePayload() type = %T, want *PossessionCalculatedPayload", payload)
	}
	if p.HomePossession != 55 || p.AwayPossession != 45 {
		t.Errorf("possession = %v/%v, want 55/45", p.HomePossession, p.AwayPossession)
	}
}

func TestUnmarshalEventRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not-json"},
		{"missing fields", `{"eventId":"abc"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalEvent([]byte(tt.data)); err == nil {
				t.Error("UnmarshalEvent() error = nil, want error")
			}
		})
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	event, err := NewEvent(EventTypeXGCalculated, "m-2026-0412", XGCalculatedPayload{TeamID: "arsenal"})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	event.EventType = EventType("goal_disallowed")

	if _, err := DecodePayload(event); err == nil {
		t.Error("DecodePayload() error = nil, want error for unknown type")
	}
}

func TestKnownEventType(t *testing.T) {
	for _, eventType := range EventTypes() {
		if !KnownEventType(eventType) {
			t.Errorf("KnownEventType(%q) = false, want true", eventType)
		}
	}
	if KnownEventType(EventType("goal_disallowed")) {
		t.Error(`KnownEventType("goal_disallowed") = true, want false`)
	}
	if KnownEventType(EventType("")) {
		t.Error(`KnownEventType("") = true, want false`)
	}
}

func TestEventTypesCovered(t *testing.T) {
	want := map[EventType]bool{
		EventTypeMatchAnalyticsCreated: true,
		EventTypeXGCalculated:          true,
		EventTypePossessionCalculated:  true,
		EventTypeFormationDetected:     true,
		EventTypeMatchDurationUpdated:  true,
	}

	got := EventTypes()
	if len(got) != len(want) {
		t.Fatalf("EventTypes() returned %d types, want %d", len(got), len(want))
	}
	for _, eventType := range got {
		if !want[eventType] {
			t.Errorf("EventTypes() contains unexpected type %q", eventType)
		}
	}
}

func BenchmarkNewEvent(b *testing.B) {
	payload := XGCalculatedPayload{TeamID: "arsenal", NewXG: 0.45, PreviousXG: 0.31}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewEvent(EventTypeXGCalculated, "m-2026-0412", payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnmarshalEvent(b *testing.B) {
	event, err := NewEvent(EventTypeXGCalculated, "m-2026-0412", XGCalculatedPayload{TeamID: "arsenal", NewXG: 0.45})
	if err != nil {
		b.Fatal(err)
	}
	data, err := event.Marshal()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := UnmarshalEvent(data); err != nil {
			b.Fatal(err)
		}
	}
}
