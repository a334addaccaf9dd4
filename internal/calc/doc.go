// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package calc provides the deterministic metric calculators for expected goals
and possession.

Every function in this package is pure: no I/O, no clock reads, no shared
state. The same input always produces the same output, which makes the
calculators safe to call from any goroutine and makes event replay
reproducible.

# Expected Goals

CalculateXG estimates the probability of a shot resulting in a goal. The
model starts from a geometric base value:

	base = 0.9 * exp(-distance/12) * cos(angle)

and refines it through a fixed ordered sequence of multiplicative modifiers:
distance bracket, angle bracket, defender count, game state, body part and
situation. Because all modifiers are multiplicative, any application order
agrees within floating-point tolerance. The result is clamped to
[0.01, 0.99].

Penalty kicks bypass the model and always yield exactly 0.76, the historical
conversion rate.

	result := calc.CalculateXG(calc.Shot{
	    DistanceToGoal: 11.0,
	    Angle:          0,
	    BodyPart:       calc.BodyPartFoot,
	    Situation:      calc.SituationOpenPlay,
	})
	// result.Value in [0.01, 0.99], result.Steps holds the breakdown

# Possession

CalculatePossessionPercentage computes a team's share of possession as the
team's summed sequence durations over the full span from the earliest
sequence start to the latest sequence end. CalculateTeamPossession computes
both sides independently and renormalizes proportionally when their sum
drifts more than 0.1 from 100, absorbing dead-ball gaps. Zone- and
period-bucketed variants apply the same ratio over filtered subsets.

Empty input yields zero percentages, never an error.
*/
package calc
