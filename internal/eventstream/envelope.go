// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package eventstream

import (
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/touchlinehq/touchline/internal/eventstore"
)

// Message metadata keys carried alongside the payload. Consumers route and
// checkpoint on these without decoding the body.
const (
	MetaStreamID      = "stream_id"
	MetaEventType     = "event_type"
	MetaAggregateType = "aggregate_type"
	MetaVersion       = "version"
	MetaGlobalSeq     = "global_seq"
)

// EncodeRecorded converts a recorded event to its wire representation.
func EncodeRecorded(rec *eventstore.RecordedEvent) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// DecodeRecorded converts wire bytes back to a recorded event.
func DecodeRecorded(data []byte) (eventstore.RecordedEvent, error) {
	var rec eventstore.RecordedEvent
	if err := json.Unmarshal(data, &rec); err != nil {
		return eventstore.RecordedEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return eventstore.RecordedEvent{}, fmt.Errorf("validate event: %w", err)
	}

	return rec, nil
}

// NewEnvelopeMessage builds a Watermill message for a recorded event. The
// message UUID is the event ID, which doubles as the JetStream dedup key.
func NewEnvelopeMessage(rec *eventstore.RecordedEvent) (*message.Message, error) {
	data, err := EncodeRecorded(rec)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(rec.EventID, data)
	msg.Metadata.Set(MetaStreamID, rec.AggregateID)
	msg.Metadata.Set(MetaEventType, string(rec.EventType))
	msg.Metadata.Set(MetaAggregateType, rec.AggregateType)
	msg.Metadata.Set(MetaVersion, strconv.FormatInt(rec.Version, 10))
	msg.Metadata.Set(MetaGlobalSeq, strconv.FormatInt(rec.GlobalSeq, 10))

	return msg, nil
}

// RecordedFromMessage decodes a Watermill message back to a recorded event.
func RecordedFromMessage(msg *message.Message) (eventstore.RecordedEvent, error) {
	return DecodeRecorded(msg.Payload)
}

// SubjectFor returns the publish subject for one stream's events:
// "{prefix}.{aggregateType}.{streamID}".
func SubjectFor(prefix, aggregateType, streamID string) string {
	return prefix + "." + aggregateType + "." + streamID
}

// SubjectWildcard returns the subscription subject matching every event
// under the prefix.
func SubjectWildcard(prefix string) string {
	return prefix + ".>"
}
