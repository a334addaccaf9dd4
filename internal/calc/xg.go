// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package calc

import "math"

// Shot describes a single shot attempt as reported by the upstream pipeline.
// All fields feed the expected-goals model; zero values are legal and mean
// "no adjustment" for the optional game-state fields.
type Shot struct {
	DistanceToGoal  float64 `json:"distance_to_goal"`           // meters from the center of the goal line
	Angle           float64 `json:"angle"`                      // degrees off the central axis, 0 = straight on
	DefenderCount   int     `json:"defender_count"`             // defenders between shooter and goal
	BodyPart        string  `json:"body_part"`                  // foot, head, other
	Situation       string  `json:"situation"`                  // open_play, counter_attack, free_kick, corner, penalty
	Minute          int     `json:"minute,omitempty"`           // match minute at the time of the shot
	ScoreDifference int     `json:"score_difference,omitempty"` // shooter's goals minus opponent's at the time of the shot
	HomeTeam        bool    `json:"home_team,omitempty"`        // shot taken by the home side
}

// BodyPart constants.
const (
	// BodyPartFoot indicates a shot taken with either foot.
	BodyPartFoot = "foot"
	// BodyPartHead indicates a header.
	BodyPartHead = "head"
	// BodyPartOther indicates any other body part (chest, knee).
	BodyPartOther = "other"
)

// Situation constants.
const (
	// SituationOpenPlay indicates a shot from open play.
	SituationOpenPlay = "open_play"
	// SituationCounterAttack indicates a shot at the end of a fast break.
	SituationCounterAttack = "counter_attack"
	// SituationFreeKick indicates a direct free kick.
	SituationFreeKick = "free_kick"
	// SituationCorner indicates a shot following a corner.
	SituationCorner = "corner"
	// SituationPenalty indicates a penalty kick.
	SituationPenalty = "penalty"
)

// PenaltyXG is the fixed conversion value for penalty kicks. Penalties bypass
// the geometric model entirely: historical conversion rates sit at 76%
// regardless of shooter position inputs.
const PenaltyXG = 0.76

// Output clamp bounds. No shot is ever certain or impossible.
const (
	MinXG = 0.01
	MaxXG = 0.99
)

// baseScale and baseDecayMeters parameterize the geometric base value:
// base = baseScale * exp(-distance/baseDecayMeters) * cos(angle).
const (
	baseScale       = 0.9
	baseDecayMeters = 12.0
)

// XGModifier adjusts a running xG value for one feature of the shot. Each
// modifier is a pure function multiplying by a factor derived from the shot,
// so the set of modifiers commutes up to floating-point rounding.
type XGModifier struct {
	Name  string
	Apply func(value float64, shot Shot) float64
}

// XGStep records one modifier application inside an XGResult breakdown.
type XGStep struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
	Value  float64 `json:"value"`
}

// XGResult is the outcome of an expected-goals calculation, including the
// per-modifier breakdown for auditability.
type XGResult struct {
	Value   float64  `json:"value"`
	Base    float64  `json:"base"`
	Steps   []XGStep `json:"steps,omitempty"`
	Clamped bool     `json:"clamped,omitempty"`
	Penalty bool     `json:"penalty,omitempty"`
}

// xgModifiers is the fixed modifier pipeline, applied in order after the
// geometric base value. All factors are multiplicative.
var xgModifiers = []XGModifier{
	{Name: "distance_bracket", Apply: applyDistanceBracket},
	{Name: "angle_bracket", Apply: applyAngleBracket},
	{Name: "defender_count", Apply: applyDefenderCount},
	{Name: "game_state", Apply: applyGameState},
	{Name: "body_part", Apply: applyBodyPart},
	{Name: "situation", Apply: applySituation},
}

// CalculateXG computes the expected-goals value for a shot.
//
// The model is a geometric base value (distance decay times angle cosine)
// refined by a fixed ordered sequence of multiplicative modifiers: distance
// bracket, angle bracket, defender count, game state, body part and
// situation. The result is clamped to [0.01, 0.99].
//
// Penalty kicks override the whole pipeline: they always yield exactly 0.76.
//
// The function is pure and deterministic. Identical inputs produce
// bit-identical results.
func CalculateXG(shot Shot) XGResult {
	if shot.Situation == SituationPenalty {
		return XGResult{Value: PenaltyXG, Base: PenaltyXG, Penalty: true}
	}

	base := baseXG(shot)
	result := XGResult{
		Base:  base,
		Steps: make([]XGStep, 0, len(xgModifiers)),
	}

	value := base
	for _, mod := range xgModifiers {
		next := mod.Apply(value, shot)
		factor := 1.0
		if value != 0 {
			factor = next / value
		}
		result.Steps = append(result.Steps, XGStep{Name: mod.Name, Factor: factor, Value: next})
		value = next
	}

	if value < MinXG {
		value = MinXG
		result.Clamped = true
	}
	if value > MaxXG {
		value = MaxXG
		result.Clamped = true
	}

	result.Value = value
	return result
}

// baseXG computes the geometric base value from distance and angle.
// Negative distances are treated as 0; angles are folded into [0, 90].
func baseXG(shot Shot) float64 {
	distance := shot.DistanceToGoal
	if distance < 0 {
		distance = 0
	}

	angle := math.Abs(shot.Angle)
	if angle > 90 {
		angle = 90
	}

	return baseScale * math.Exp(-distance/baseDecayMeters) * math.Cos(angle*math.Pi/180)
}

// applyDistanceBracket adjusts for the distance band the shot was taken from.
//
// Brackets:
//   - under 6m: x1.20 (six-yard box)
//   - 6-12m:    x1.00 (penalty area)
//   - 12-18m:   x0.85 (edge of the area)
//   - 18-25m:   x0.70 (outside the box)
//   - 25m+:     x0.50 (long range)
func applyDistanceBracket(value float64, shot Shot) float64 {
	d := shot.DistanceToGoal
	switch {
	case d < 6:
		return value * 1.20
	case d < 12:
		return value * 1.00
	case d < 18:
		return value * 0.85
	case d < 25:
		return value * 0.70
	default:
		return value * 0.50
	}
}

// applyAngleBracket adjusts for the shooting angle band.
//
// Brackets:
//   - under 15 degrees: x1.10 (central)
//   - 15-30 degrees:    x1.00
//   - 30-45 degrees:    x0.90
//   - 45-60 degrees:    x0.75 (tight)
//   - 60+ degrees:      x0.60 (near the byline)
func applyAngleBracket(value float64, shot Shot) float64 {
	a := math.Abs(shot.Angle)
	switch {
	case a < 15:
		return value * 1.10
	case a < 30:
		return value * 1.00
	case a < 45:
		return value * 0.90
	case a < 60:
		return value * 0.75
	default:
		return value * 0.60
	}
}

// applyDefenderCount adjusts for defenders between shooter and goal.
//
// Factors: 0 defenders x1.15, 1 defender x1.00, 2 defenders x0.80,
// 3 or more x0.65.
func applyDefenderCount(value float64, shot Shot) float64 {
	switch {
	case shot.DefenderCount <= 0:
		return value * 1.15
	case shot.DefenderCount == 1:
		return value * 1.00
	case shot.DefenderCount == 2:
		return value * 0.80
	default:
		return value * 0.65
	}
}

// applyGameState adjusts for late-game score pressure and home advantage.
//
// From minute 75 a trailing team converts slightly better (x1.08, opponents
// commit forward) and a leading team slightly worse (x0.94). Home teams get
// a flat x1.03. A zero-value game state leaves the value unchanged.
func applyGameState(value float64, shot Shot) float64 {
	factor := 1.0
	if shot.Minute >= 75 {
		if shot.ScoreDifference < 0 {
			factor *= 1.08
		} else if shot.ScoreDifference > 0 {
			factor *= 0.94
		}
	}
	if shot.HomeTeam {
		factor *= 1.03
	}
	return value * factor
}

// applyBodyPart adjusts for the body part used.
//
// Factors: head x0.75, other x0.60. Foot (and unrecognized values) leave
// the value unchanged.
func applyBodyPart(value float64, shot Shot) float64 {
	switch shot.BodyPart {
	case BodyPartHead:
		return value * 0.75
	case BodyPartOther:
		return value * 0.60
	default:
		return value * 1.00
	}
}

// applySituation adjusts for the phase of play.
//
// Factors: counter_attack x1.15 (disorganized defense), free_kick x0.90,
// corner x0.85. Open play (and unrecognized values) leave the value
// unchanged. Penalties never reach this modifier.
func applySituation(value float64, shot Shot) float64 {
	switch shot.Situation {
	case SituationCounterAttack:
		return value * 1.15
	case SituationFreeKick:
		return value * 0.90
	case SituationCorner:
		return value * 0.85
	default:
		return value * 1.00
	}
}
