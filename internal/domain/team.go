// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package domain

import "regexp"

// matchIDPattern constrains match identifiers: lowercase alphanumeric start,
// then lowercase alphanumerics, hyphens or underscores, 64 characters total
// at most. Match ids double as event stream ids and storage keys, so the
// character set stays deliberately narrow.
var matchIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// MatchID is a validated, immutable match identifier.
type MatchID string

// NewMatchID validates s and returns it as a MatchID.
func NewMatchID(s string) (MatchID, error) {
	if s == "" {
		return "", &ValidationError{Field: "match_id", Message: "required"}
	}
	if !matchIDPattern.MatchString(s) {
		return "", &ValidationError{Field: "match_id", Message: "must start with a lowercase letter or digit and contain only lowercase letters, digits, hyphens and underscores (max 64)"}
	}
	return MatchID(s), nil
}

func (id MatchID) String() string {
	return string(id)
}

// TeamAnalytics is the per-team analytics state inside a match. It is a
// value object: the With* methods return an updated copy and never mutate
// the receiver.
type TeamAnalytics struct {
	TeamID         string  `json:"team_id"`
	XG             float64 `json:"xg"`
	XA             float64 `json:"xa"`
	Possession     float64 `json:"possession"`
	PassAccuracy   float64 `json:"pass_accuracy"`
	ShotsOnTarget  int     `json:"shots_on_target"`
	ShotsOffTarget int     `json:"shots_off_target"`
	Formation      string  `json:"formation,omitempty"`
}

// NewTeamAnalytics returns zeroed analytics for a team.
func NewTeamAnalytics(teamID string) TeamAnalytics {
	return TeamAnalytics{TeamID: teamID}
}

// WithXG returns a copy with the expected-goals value replaced.
func (t TeamAnalytics) WithXG(xg float64) TeamAnalytics {
	t.XG = xg
	return t
}

// WithXA returns a copy with the expected-assists value replaced.
func (t TeamAnalytics) WithXA(xa float64) TeamAnalytics {
	t.XA = xa
	return t
}

// WithPossession returns a copy with the possession percentage replaced.
func (t TeamAnalytics) WithPossession(pct float64) TeamAnalytics {
	t.Possession = pct
	return t
}

// WithPassAccuracy returns a copy with the pass accuracy replaced.
func (t TeamAnalytics) WithPassAccuracy(pct float64) TeamAnalytics {
	t.PassAccuracy = pct
	return t
}

// WithShots returns a copy with the shot counts replaced.
func (t TeamAnalytics) WithShots(onTarget, offTarget int) TeamAnalytics {
	t.ShotsOnTarget = onTarget
	t.ShotsOffTarget = offTarget
	return t
}

// WithFormation returns a copy with the detected formation replaced.
func (t TeamAnalytics) WithFormation(formation string) TeamAnalytics {
	t.Formation = formation
	return t
}
