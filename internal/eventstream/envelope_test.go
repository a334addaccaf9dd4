// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package eventstream

import (
	"testing"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
)

func makeRecorded(t *testing.T, streamID string, version, globalSeq int64) eventstore.RecordedEvent {
	t.Helper()

	event, err := domain.NewEvent(
		domain.EventTypeXGCalculated,
		streamID,
		domain.XGCalculatedPayload{TeamID: "arsenal", NewXG: 0.45, PreviousXG: 0.2},
		domain.WithTimestamp(time.Date(2026, 4, 12, 15, 30, 0, 0, time.UTC)),
		domain.WithCorrelationID("corr-1"),
	)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	return eventstore.RecordedEvent{
		Event:      event,
		Version:    version,
		GlobalSeq:  globalSeq,
		RecordedAt: time.Date(2026, 4, 12, 15, 30, 1, 0, time.UTC),
	}
}

func TestEncodeDecodeRecordedRoundTrip(t *testing.T) {
	rec := makeRecorded(t, "m-2026-0412", 3, 17)

	data, err := EncodeRecorded(&rec)
	if err != nil {
		t.Fatalf("EncodeRecorded() error = %v", err)
	}

	got, err := DecodeRecorded(data)
	if err != nil {
		t.Fatalf("DecodeRecorded() error = %v", err)
	}

	if got.EventID != rec.EventID {
		t.Errorf("EventID = %q, want %q", got.EventID, rec.EventID)
	}
	if got.EventType != domain.EventTypeXGCalculated {
		t.Errorf("EventType = %q, want %q", got.EventType, domain.EventTypeXGCalculated)
	}
	if got.AggregateID != "m-2026-0412" {
		t.Errorf("AggregateID = %q, want m-2026-0412", got.AggregateID)
	}
	if got.Version != 3 {
		t.Errorf("Version = %d, want 3", got.Version)
	}
	if got.GlobalSeq != 17 {
		t.Errorf("GlobalSeq = %d, want 17", got.GlobalSeq)
	}
	if got.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q, want corr-1", got.CorrelationID)
	}
	if !got.RecordedAt.Equal(rec.RecordedAt) {
		t.Errorf("RecordedAt = %v, want %v", got.RecordedAt, rec.RecordedAt)
	}

	payload, err := domain.DecodePayload(got.Event)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	xg, ok := payload.(*domain.XGCalculatedPayload)
	if !ok {
		t.Fatalf("payload type = %T, want *domain.XGCalculatedPayload", payload)
	}
	if xg.NewXG != 0.45 {
		t.Errorf("NewXG = %v, want 0.45", xg.NewXG)
	}
}

func TestDecodeRecordedRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"malformed json", []byte(`{"event_id":`)},
		{"empty envelope", []byte(`{}`)},
		{"missing payload", []byte(`{"event_id":"11111111-1111-1111-1111-111111111111","event_type":"xg_calculated","aggregate_id":"m-1","aggregate_type":"match_analytics","schema_version":1,"timestamp":"2026-04-12T15:30:00Z"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRecorded(tt.data); err == nil {
				t.Error("DecodeRecorded() error = nil, want error")
			}
		})
	}
}

func TestNewEnvelopeMessage(t *testing.T) {
	rec := makeRecorded(t, "m-2026-0412", 5, 42)

	msg, err := NewEnvelopeMessage(&rec)
	if err != nil {
		t.Fatalf("NewEnvelopeMessage() error = %v", err)
	}

	if msg.UUID != rec.EventID {
		t.Errorf("UUID = %q, want event ID %q", msg.UUID, rec.EventID)
	}

	wantMeta := map[string]string{
		MetaStreamID:      "m-2026-0412",
		MetaEventType:     "xg_calculated",
		MetaAggregateType: "match_analytics",
		MetaVersion:       "5",
		MetaGlobalSeq:     "42",
	}
	for key, want := range wantMeta {
		if got := msg.Metadata.Get(key); got != want {
			t.Errorf("Metadata[%s] = %q, want %q", key, got, want)
		}
	}

	// The payload must decode back to the same event.
	got, err := RecordedFromMessage(msg)
	if err != nil {
		t.Fatalf("RecordedFromMessage() error = %v", err)
	}
	if got.EventID != rec.EventID || got.GlobalSeq != rec.GlobalSeq {
		t.Errorf("round trip = (%s, %d), want (%s, %d)",
			got.EventID, got.GlobalSeq, rec.EventID, rec.GlobalSeq)
	}
}

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		name          string
		prefix        string
		aggregateType string
		streamID      string
		want          string
	}{
		{
			name:          "match analytics stream",
			prefix:        "touchline.events",
			aggregateType: domain.AggregateTypeMatchAnalytics,
			streamID:      "m-2026-0412",
			want:          "touchline.events.match_analytics.m-2026-0412",
		},
		{
			name:          "short prefix",
			prefix:        "tl",
			aggregateType: "match_analytics",
			streamID:      "m-1",
			want:          "tl.match_analytics.m-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubjectFor(tt.prefix, tt.aggregateType, tt.streamID)
			if got != tt.want {
				t.Errorf("SubjectFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubjectWildcard(t *testing.T) {
	got := SubjectWildcard("touchline.events")
	if got != "touchline.events.>" {
		t.Errorf("SubjectWildcard() = %q, want touchline.events.>", got)
	}
}
