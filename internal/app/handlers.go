// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/touchlinehq/touchline/internal/calc"
	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/logging"
)

// Batch section names reported in SectionError.
const (
	SectionXG         = "xg"
	SectionPossession = "possession"
	SectionFormations = "formations"
)

// CommandHandlers binds every command kind to the aggregate repository.
type CommandHandlers struct {
	repo *Repository
}

// NewCommandHandlers returns handlers over the repository.
func NewCommandHandlers(repo *Repository) *CommandHandlers {
	return &CommandHandlers{repo: repo}
}

// Register installs all command handlers.
func (h *CommandHandlers) Register(reg *Registry) error {
	handlers := map[string]CommandHandlerFunc{
		KindCreateMatchAnalytics:    h.handleCreate,
		KindUpdateMatchXG:           h.handleUpdateXG,
		KindUpdateMatchPossession:   h.handleUpdatePossession,
		KindUpdateMatchDuration:     h.handleUpdateDuration,
		KindProcessMLPipelineOutput: h.handleMLPipelineOutput,
	}
	for kind, handler := range handlers {
		if err := reg.RegisterCommand(kind, handler); err != nil {
			return err
		}
	}
	return nil
}

// commandType asserts the concrete command struct for a kind. A mismatch is
// a caller bug: the Kind tag and the struct travelled apart.
func commandType[T Command](cmd Command) (T, error) {
	c, ok := cmd.(T)
	if !ok {
		return c, domain.NewValidationError("command",
			fmt.Sprintf("kind %q carried unexpected type %T", cmd.Kind(), cmd))
	}
	return c, nil
}

func (h *CommandHandlers) handleCreate(ctx context.Context, cmd Command) (CommandResult, error) {
	c, err := commandType[CreateMatchAnalyticsCommand](cmd)
	if err != nil {
		return CommandResult{}, err
	}

	agg, err := domain.NewMatchAnalytics(c.MatchID, c.HomeTeamID, c.AwayTeamID, c.DurationSeconds)
	if err != nil {
		return CommandResult{}, err
	}

	recorded, err := h.repo.Save(ctx, agg)
	if err != nil {
		return CommandResult{}, err
	}
	return resultFor(agg, recorded), nil
}

func (h *CommandHandlers) handleUpdateXG(ctx context.Context, cmd Command) (CommandResult, error) {
	c, err := commandType[UpdateMatchXGCommand](cmd)
	if err != nil {
		return CommandResult{}, err
	}

	agg, err := h.repo.Load(ctx, c.MatchID)
	if err != nil {
		return CommandResult{}, err
	}
	if err := agg.UpdateTeamXG(c.TeamID, c.NewXG, c.ShotData); err != nil {
		return CommandResult{}, err
	}

	recorded, err := h.repo.Save(ctx, agg)
	if err != nil {
		return CommandResult{}, err
	}
	return resultFor(agg, recorded), nil
}

func (h *CommandHandlers) handleUpdatePossession(ctx context.Context, cmd Command) (CommandResult, error) {
	c, err := commandType[UpdateMatchPossessionCommand](cmd)
	if err != nil {
		return CommandResult{}, err
	}

	agg, err := h.repo.Load(ctx, c.MatchID)
	if err != nil {
		return CommandResult{}, err
	}
	if err := agg.UpdatePossession(c.HomePossession, c.AwayPossession); err != nil {
		return CommandResult{}, err
	}

	recorded, err := h.repo.Save(ctx, agg)
	if err != nil {
		return CommandResult{}, err
	}
	return resultFor(agg, recorded), nil
}

func (h *CommandHandlers) handleUpdateDuration(ctx context.Context, cmd Command) (CommandResult, error) {
	c, err := commandType[UpdateMatchDurationCommand](cmd)
	if err != nil {
		return CommandResult{}, err
	}

	agg, err := h.repo.Load(ctx, c.MatchID)
	if err != nil {
		return CommandResult{}, err
	}
	if err := agg.UpdateMatchDuration(c.DurationSeconds); err != nil {
		return CommandResult{}, err
	}

	recorded, err := h.repo.Save(ctx, agg)
	if err != nil {
		return CommandResult{}, err
	}
	return resultFor(agg, recorded), nil
}

// handleMLPipelineOutput ingests one ML batch. The three sections apply
// independently: a failing section is collected while the others still emit
// their events. Only when every section fails and nothing was recorded does
// the command itself fail.
func (h *CommandHandlers) handleMLPipelineOutput(ctx context.Context, cmd Command) (CommandResult, error) {
	c, err := commandType[ProcessMLPipelineOutputCommand](cmd)
	if err != nil {
		return CommandResult{}, err
	}
	if c.Output.Empty() {
		return CommandResult{}, domain.NewValidationError("output", "batch carries no observations")
	}

	agg, err := h.repo.Load(ctx, c.MatchID)
	if err != nil {
		return CommandResult{}, err
	}

	var sectionErrs []SectionError
	if len(c.Output.Shots) > 0 {
		if err := applyShotSection(agg, c.Output.Shots); err != nil {
			sectionErrs = append(sectionErrs, SectionError{Section: SectionXG, Err: err})
		}
	}
	if len(c.Output.PossessionSequences) > 0 {
		if err := applyPossessionSection(agg, c.Output.PossessionSequences); err != nil {
			sectionErrs = append(sectionErrs, SectionError{Section: SectionPossession, Err: err})
		}
	}
	if len(c.Output.Formations) > 0 {
		if err := applyFormationSection(agg, c.Output.Formations); err != nil {
			sectionErrs = append(sectionErrs, SectionError{Section: SectionFormations, Err: err})
		}
	}

	if len(agg.UncommittedEvents()) == 0 {
		errs := make([]error, len(sectionErrs))
		for i := range sectionErrs {
			errs[i] = sectionErrs[i]
		}
		return CommandResult{}, fmt.Errorf("ml batch for match %q produced no events: %w", c.MatchID, errors.Join(errs...))
	}

	recorded, err := h.repo.Save(ctx, agg)
	if err != nil {
		return CommandResult{}, err
	}

	for _, se := range sectionErrs {
		logging.Warn().
			Err(se.Err).
			Str("component", "app").
			Str("match_id", c.MatchID).
			Str("section", se.Section).
			Msg("ML batch section failed, remaining sections committed")
	}

	result := resultFor(agg, recorded)
	result.SectionErrors = sectionErrs
	return result, nil
}

// applyShotSection derives each team's expected goals from the batch shots
// and records it. The shot list is the full set observed for the match, so
// the per-team total is written as the absolute xG value and resubmitting
// the same batch converges. Teams apply in sorted order to keep the emitted
// event sequence deterministic.
func applyShotSection(agg *domain.MatchAnalytics, shots []MLShot) error {
	totals := make(map[string]float64)
	for i := range shots {
		totals[shots[i].TeamID] += calc.CalculateXG(shots[i].Shot).Value
	}

	teams := make([]string, 0, len(totals))
	for team := range totals {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	var errs []error
	for _, team := range teams {
		if err := agg.UpdateTeamXG(team, totals[team], nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyPossessionSection runs the two-team possession calculation over the
// batch sequences and records the result.
func applyPossessionSection(agg *domain.MatchAnalytics, sequences []calc.PossessionSequence) error {
	home, away := calc.CalculateTeamPossession(sequences, agg.HomeTeam().TeamID, agg.AwayTeam().TeamID)
	return agg.UpdatePossession(home, away)
}

// applyFormationSection records every formation observation. Observations
// fail independently so one unknown team cannot drop the rest.
func applyFormationSection(agg *domain.MatchAnalytics, observations []FormationObservation) error {
	var errs []error
	for _, obs := range observations {
		err := agg.RecordFormation(obs.TeamID, obs.Formation, obs.Confidence, obs.PlayerPositions, obs.DetectedAt)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resultFor summarizes a successful save.
func resultFor(agg *domain.MatchAnalytics, recorded []eventstore.RecordedEvent) CommandResult {
	return CommandResult{
		MatchID: agg.MatchID().String(),
		Version: agg.Version(),
		Events:  len(recorded),
	}
}
