// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// Snapshot is a point-in-time projection of aggregate state at a stream
// version. It carries only state derived from events, never a capture
// timestamp, so restoring from a snapshot plus the remaining events is
// indistinguishable from a full replay.
type Snapshot struct {
	MatchID         string        `json:"match_id"`
	HomeTeam        TeamAnalytics `json:"home_team"`
	AwayTeam        TeamAnalytics `json:"away_team"`
	DurationSeconds int           `json:"duration_seconds"`
	LastUpdated     time.Time     `json:"last_updated"`
	Version         int64         `json:"version"`
}

// Validate checks that the snapshot can seed an aggregate.
func (s Snapshot) Validate() error {
	if s.MatchID == "" {
		return &ValidationError{Field: "match_id", Message: "required"}
	}
	if s.HomeTeam.TeamID == "" {
		return &ValidationError{Field: "home_team_id", Message: "required"}
	}
	if s.AwayTeam.TeamID == "" {
		return &ValidationError{Field: "away_team_id", Message: "required"}
	}
	if s.Version < 0 {
		return &ValidationError{Field: "version", Message: "must not be negative"}
	}
	return nil
}

// Marshal serializes the snapshot to JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot deserializes a snapshot from JSON and validates it.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
