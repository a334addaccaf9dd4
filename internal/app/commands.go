// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"time"

	"github.com/touchlinehq/touchline/internal/calc"
	"github.com/touchlinehq/touchline/internal/domain"
)

// Command kinds known to the registry.
const (
	KindCreateMatchAnalytics    = "create_match_analytics"
	KindUpdateMatchXG           = "update_match_xg"
	KindUpdateMatchPossession   = "update_match_possession"
	KindUpdateMatchDuration     = "update_match_duration"
	KindProcessMLPipelineOutput = "process_ml_pipeline_output"
)

// Command is a state-changing request. Kind selects the registered handler.
// Commands are plain data: they are validated by tag before dispatch and
// carry no behavior of their own.
type Command interface {
	Kind() string
}

// CommandResult reports what a successful command changed.
type CommandResult struct {
	// MatchID is the stream the command wrote to.
	MatchID string `json:"match_id"`

	// Version is the stream version after the append.
	Version int64 `json:"version"`

	// Events is the number of events this command appended.
	Events int `json:"events"`

	// SectionErrors holds per-section failures from batch commands. A
	// batch that produced at least one event succeeds with its failing
	// sections listed here; non-batch commands leave it nil.
	SectionErrors []SectionError `json:"section_errors,omitempty"`
}

// SectionError is one failed section of a batch command.
type SectionError struct {
	Section string `json:"section"`
	Err     error  `json:"-"`
}

func (e SectionError) Error() string {
	return e.Section + ": " + e.Err.Error()
}

func (e SectionError) Unwrap() error {
	return e.Err
}

// CreateMatchAnalyticsCommand starts tracking analytics for a match. The
// match id becomes the event stream id; creating the same match twice fails
// with ConcurrencyConflictError because the stream already exists.
type CreateMatchAnalyticsCommand struct {
	MatchID         string `json:"match_id" validate:"required,stream_id"`
	HomeTeamID      string `json:"home_team_id" validate:"required"`
	AwayTeamID      string `json:"away_team_id" validate:"required,nefield=HomeTeamID"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
}

func (CreateMatchAnalyticsCommand) Kind() string { return KindCreateMatchAnalytics }

// UpdateMatchXGCommand sets a team's expected goals for a match. NewXG is
// the already-calculated value; the shot that produced it may ride along for
// auditability.
type UpdateMatchXGCommand struct {
	MatchID  string     `json:"match_id" validate:"required,stream_id"`
	TeamID   string     `json:"team_id" validate:"required"`
	NewXG    float64    `json:"new_xg" validate:"min=0"`
	ShotData *calc.Shot `json:"shot_data,omitempty"`
}

func (UpdateMatchXGCommand) Kind() string { return KindUpdateMatchXG }

// UpdateMatchPossessionCommand sets both possession percentages. The
// aggregate enforces that they sum to 100 within tolerance.
type UpdateMatchPossessionCommand struct {
	MatchID        string  `json:"match_id" validate:"required,stream_id"`
	HomePossession float64 `json:"home_possession" validate:"min=0,max=100"`
	AwayPossession float64 `json:"away_possession" validate:"min=0,max=100"`
}

func (UpdateMatchPossessionCommand) Kind() string { return KindUpdateMatchPossession }

// UpdateMatchDurationCommand corrects the tracked match duration, for
// example after extra time.
type UpdateMatchDurationCommand struct {
	MatchID         string `json:"match_id" validate:"required,stream_id"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
}

func (UpdateMatchDurationCommand) Kind() string { return KindUpdateMatchDuration }

// MLShot is one shot observation attributed to the team that took it.
type MLShot struct {
	calc.Shot

	TeamID string `json:"team_id" validate:"required"`
}

// FormationObservation is one detected formation for a team. A zero
// DetectedAt is stamped by the aggregate clock.
type FormationObservation struct {
	TeamID          string                  `json:"team_id" validate:"required"`
	Formation       string                  `json:"formation" validate:"required"`
	Confidence      float64                 `json:"confidence" validate:"min=0,max=1"`
	PlayerPositions []domain.PlayerPosition `json:"player_positions,omitempty"`
	DetectedAt      time.Time               `json:"detected_at,omitempty"`
}

// MLPipelineOutput is the batch payload the upstream vision pipeline
// produces for one match. Shots carry the full set observed for the match
// so far: the handler derives each team's xG from them as an absolute
// value, so resubmitting the same payload converges instead of
// double-counting.
type MLPipelineOutput struct {
	Shots               []MLShot                  `json:"shots,omitempty" validate:"dive"`
	PossessionSequences []calc.PossessionSequence `json:"possession_sequences,omitempty"`
	Formations          []FormationObservation    `json:"formations,omitempty" validate:"dive"`
}

// Empty reports whether the batch carries no observations at all.
func (o MLPipelineOutput) Empty() bool {
	return len(o.Shots) == 0 && len(o.PossessionSequences) == 0 && len(o.Formations) == 0
}

// ProcessMLPipelineOutputCommand ingests one ML batch. Sections (xg,
// possession, formations) fail independently: a bad section is collected
// into the result while the others still commit.
type ProcessMLPipelineOutputCommand struct {
	MatchID string           `json:"match_id" validate:"required,stream_id"`
	Output  MLPipelineOutput `json:"output"`
}

func (ProcessMLPipelineOutputCommand) Kind() string { return KindProcessMLPipelineOutput }
