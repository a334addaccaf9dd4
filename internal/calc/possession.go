// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package calc

import "math"

// PossessionSequence is one uninterrupted spell of possession by a team, as
// segmented by the upstream pipeline. Times are seconds from kickoff.
type PossessionSequence struct {
	TeamID    string  `json:"team_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Zone      string  `json:"zone,omitempty"`   // pitch third where the sequence took place
	Period    string  `json:"period,omitempty"` // match period the sequence belongs to
}

// Duration returns the sequence length in seconds. Sequences with an end
// before their start contribute zero.
func (s PossessionSequence) Duration() float64 {
	d := s.EndTime - s.StartTime
	if d < 0 {
		return 0
	}
	return d
}

// Zone constants for zone-bucketed possession.
const (
	// ZoneDefensiveThird is the third nearest the team's own goal.
	ZoneDefensiveThird = "defensive_third"
	// ZoneMiddleThird is the central third of the pitch.
	ZoneMiddleThird = "middle_third"
	// ZoneAttackingThird is the third nearest the opponent's goal.
	ZoneAttackingThird = "attacking_third"
)

// Period constants for period-bucketed possession.
const (
	// PeriodFirstHalf covers kickoff to half time.
	PeriodFirstHalf = "first_half"
	// PeriodSecondHalf covers half time to full time.
	PeriodSecondHalf = "second_half"
)

// PossessionMethodDuration identifies the duration-ratio calculation method
// recorded on possession events.
const PossessionMethodDuration = "duration_based"

// renormalizeTolerance is the maximum deviation of home+away from 100 before
// the two-team calculation renormalizes proportionally. Small gaps come from
// dead-ball time and rounding.
const renormalizeTolerance = 0.1

// CalculatePossessionPercentage computes one team's share of possession as
// the team's summed sequence durations over the span from the earliest
// sequence start to the latest sequence end, times 100.
//
// An empty input yields 0. A zero-length span yields 0.
func CalculatePossessionPercentage(sequences []PossessionSequence, teamID string) float64 {
	if len(sequences) == 0 {
		return 0
	}

	span := sequenceSpan(sequences)
	if span <= 0 {
		return 0
	}

	var teamDuration float64
	for _, seq := range sequences {
		if seq.TeamID == teamID {
			teamDuration += seq.Duration()
		}
	}

	return teamDuration / span * 100
}

// CalculateTeamPossession computes both teams' possession percentages
// independently, then renormalizes proportionally when their sum deviates
// from 100 by more than 0.1. Renormalization absorbs dead-ball gaps between
// sequences without favoring either side.
//
// Empty input yields 0/0; so does input containing neither team.
func CalculateTeamPossession(sequences []PossessionSequence, homeTeamID, awayTeamID string) (home, away float64) {
	home = CalculatePossessionPercentage(sequences, homeTeamID)
	away = CalculatePossessionPercentage(sequences, awayTeamID)

	sum := home + away
	if sum == 0 {
		return 0, 0
	}

	if math.Abs(sum-100) > renormalizeTolerance {
		home = home / sum * 100
		away = away / sum * 100
	}

	return home, away
}

// CalculateZonePossession computes a team's possession share within one
// pitch zone, considering only sequences recorded in that zone. The span is
// taken over the filtered subset.
func CalculateZonePossession(sequences []PossessionSequence, teamID, zone string) float64 {
	return CalculatePossessionPercentage(filterSequences(sequences, func(s PossessionSequence) bool {
		return s.Zone == zone
	}), teamID)
}

// CalculatePeriodPossession computes a team's possession share within one
// match period, considering only sequences recorded in that period.
func CalculatePeriodPossession(sequences []PossessionSequence, teamID, period string) float64 {
	return CalculatePossessionPercentage(filterSequences(sequences, func(s PossessionSequence) bool {
		return s.Period == period
	}), teamID)
}

// sequenceSpan returns the distance from the earliest start to the latest
// end across all sequences.
func sequenceSpan(sequences []PossessionSequence) float64 {
	earliest := sequences[0].StartTime
	latest := sequences[0].EndTime

	for _, seq := range sequences[1:] {
		if seq.StartTime < earliest {
			earliest = seq.StartTime
		}
		if seq.EndTime > latest {
			latest = seq.EndTime
		}
	}

	return latest - earliest
}

// filterSequences returns the subset of sequences matching the predicate.
func filterSequences(sequences []PossessionSequence, keep func(PossessionSequence) bool) []PossessionSequence {
	var filtered []PossessionSequence
	for _, seq := range sequences {
		if keep(seq) {
			filtered = append(filtered, seq)
		}
	}
	return filtered
}
