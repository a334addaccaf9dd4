// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package domain holds the event-sourced match analytics aggregate and its
event model.

# Aggregate

MatchAnalytics is the consistency boundary for a single match. It is never
mutated directly: commands validate their input, emit an event, and the
event is folded into state by a single closed transition function. The same
function serves live mutation and replay, which is what guarantees that
rebuilding an aggregate from its stream reproduces the live state bit for
bit.

Version numbering starts at 0 for the MatchAnalyticsCreated event and
increases by one per event. An aggregate that has applied no events sits at
NoStreamVersion (-1), which doubles as the expected version for creating a
new stream in the event store.

# Events

Event is the envelope shared by every event type: identity, aggregate
coordinates, payload schema version, timestamp, correlation metadata, and a
raw JSON payload. The set of event types is closed and enumerated by
EventTypes. Payloads are plain structs with no behavior; DecodePayload maps
a stored envelope back to its typed payload.

Envelopes read from storage may carry types outside the closed set, written
by newer builds. Replay skips those with a warning but still advances the
aggregate version, so mixed-version deployments never corrupt the stream
position.

# Snapshots

Snapshot is a pure projection of aggregate fields at a version. It contains
no capture timestamp and reads no clock, so restoring from a snapshot and
applying the remaining events is equivalent to a full replay.

Usage:

	m, err := domain.NewMatchAnalytics("m-2026-0412", "arsenal", "spurs", 5400)
	if err != nil {
		return err
	}
	if err := m.UpdateTeamXG("arsenal", 0.45, nil); err != nil {
		return err
	}
	events := m.UncommittedEvents() // append these, then m.MarkEventsAsCommitted()
*/
package domain
