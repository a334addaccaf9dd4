// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"testing"

	"github.com/touchlinehq/touchline/internal/calc"
	"github.com/touchlinehq/touchline/internal/validation"
)

func TestCommandKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cmd  Command
		want string
	}{
		{CreateMatchAnalyticsCommand{}, KindCreateMatchAnalytics},
		{UpdateMatchXGCommand{}, KindUpdateMatchXG},
		{UpdateMatchPossessionCommand{}, KindUpdateMatchPossession},
		{UpdateMatchDurationCommand{}, KindUpdateMatchDuration},
		{ProcessMLPipelineOutputCommand{}, KindProcessMLPipelineOutput},
	}
	for _, tt := range tests {
		if got := tt.cmd.Kind(); got != tt.want {
			t.Errorf("%T.Kind() = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestQueryKindTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		q    Query
		want string
	}{
		{GetMatchAnalyticsQuery{}, KindGetMatchAnalytics},
		{GetTeamAnalyticsQuery{}, KindGetTeamAnalytics},
		{GetTimeSeriesAnalyticsQuery{}, KindGetTimeSeriesAnalytics},
	}
	for _, tt := range tests {
		if got := tt.q.Kind(); got != tt.want {
			t.Errorf("%T.Kind() = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestCommandTagValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{
			name: "valid create",
			cmd: CreateMatchAnalyticsCommand{
				MatchID:         "m-2026-0001",
				HomeTeamID:      "arsenal",
				AwayTeamID:      "spurs",
				DurationSeconds: 5400,
			},
		},
		{
			name: "create missing match id",
			cmd: CreateMatchAnalyticsCommand{
				HomeTeamID: "arsenal",
				AwayTeamID: "spurs",
			},
			wantErr: true,
		},
		{
			name: "create with uppercase match id",
			cmd: CreateMatchAnalyticsCommand{
				MatchID:    "Match-1",
				HomeTeamID: "arsenal",
				AwayTeamID: "spurs",
			},
			wantErr: true,
		},
		{
			name: "create with identical teams",
			cmd: CreateMatchAnalyticsCommand{
				MatchID:    "m-2026-0001",
				HomeTeamID: "arsenal",
				AwayTeamID: "arsenal",
			},
			wantErr: true,
		},
		{
			name: "create with negative duration",
			cmd: CreateMatchAnalyticsCommand{
				MatchID:         "m-2026-0001",
				HomeTeamID:      "arsenal",
				AwayTeamID:      "spurs",
				DurationSeconds: -1,
			},
			wantErr: true,
		},
		{
			name: "valid xg",
			cmd: UpdateMatchXGCommand{
				MatchID: "m-2026-0001",
				TeamID:  "arsenal",
				NewXG:   1.4,
			},
		},
		{
			name:    "xg missing team",
			cmd:     UpdateMatchXGCommand{MatchID: "m-2026-0001", NewXG: 1.4},
			wantErr: true,
		},
		{
			name:    "negative xg",
			cmd:     UpdateMatchXGCommand{MatchID: "m-2026-0001", TeamID: "arsenal", NewXG: -0.1},
			wantErr: true,
		},
		{
			name: "valid possession",
			cmd: UpdateMatchPossessionCommand{
				MatchID:        "m-2026-0001",
				HomePossession: 55,
				AwayPossession: 45,
			},
		},
		{
			name: "possession over 100",
			cmd: UpdateMatchPossessionCommand{
				MatchID:        "m-2026-0001",
				HomePossession: 101,
				AwayPossession: 45,
			},
			wantErr: true,
		},
		{
			name: "valid duration update",
			cmd: UpdateMatchDurationCommand{
				MatchID:         "m-2026-0001",
				DurationSeconds: 5700,
			},
		},
		{
			name: "valid ml batch",
			cmd: ProcessMLPipelineOutputCommand{
				MatchID: "m-2026-0001",
				Output: MLPipelineOutput{
					Shots: []MLShot{{TeamID: "arsenal", Shot: calc.Shot{DistanceToGoal: 12}}},
				},
			},
		},
		{
			name: "ml batch shot without team",
			cmd: ProcessMLPipelineOutputCommand{
				MatchID: "m-2026-0001",
				Output: MLPipelineOutput{
					Shots: []MLShot{{Shot: calc.Shot{DistanceToGoal: 12}}},
				},
			},
			wantErr: true,
		},
		{
			name: "ml batch formation confidence out of range",
			cmd: ProcessMLPipelineOutputCommand{
				MatchID: "m-2026-0001",
				Output: MLPipelineOutput{
					Formations: []FormationObservation{{TeamID: "arsenal", Formation: "4-3-3", Confidence: 1.2}},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validation.ValidateStruct(tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMLPipelineOutputEmpty(t *testing.T) {
	t.Parallel()

	if !(MLPipelineOutput{}).Empty() {
		t.Error("Empty() = false for zero output")
	}

	withShots := MLPipelineOutput{Shots: []MLShot{{TeamID: "arsenal"}}}
	if withShots.Empty() {
		t.Error("Empty() = true for output with shots")
	}

	withSequences := MLPipelineOutput{
		PossessionSequences: []calc.PossessionSequence{{TeamID: "arsenal", StartTime: 0, EndTime: 30}},
	}
	if withSequences.Empty() {
		t.Error("Empty() = true for output with sequences")
	}

	withFormations := MLPipelineOutput{
		Formations: []FormationObservation{{TeamID: "arsenal", Formation: "4-3-3"}},
	}
	if withFormations.Empty() {
		t.Error("Empty() = true for output with formations")
	}
}

func TestSectionErrorUnwraps(t *testing.T) {
	t.Parallel()

	inner := validation.ValidateStruct(CreateMatchAnalyticsCommand{})
	se := SectionError{Section: SectionXG, Err: inner}

	if se.Error() == "" {
		t.Error("Error() returned an empty message")
	}
	if se.Unwrap() == nil {
		t.Error("Unwrap() = nil, want inner error")
	}
}
