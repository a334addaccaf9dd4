// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/touchlinehq/touchline/internal/config"
	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/logging"
	"github.com/touchlinehq/touchline/internal/metrics"
	"github.com/touchlinehq/touchline/internal/projection"
	"github.com/touchlinehq/touchline/internal/readmodel"
	"github.com/touchlinehq/touchline/internal/validation"
)

// ServiceOptions wires the service to its collaborators. Store and ReadDB
// are required; the rest degrade gracefully when absent (no snapshots, no
// live publishing, no projection admin).
type ServiceOptions struct {
	Store       eventstore.Store
	Snapshots   eventstore.SnapshotStore
	Publisher   EventPublisher
	ReadDB      *readmodel.DB
	Projections *projection.Manager
	Config      config.ServiceConfig
}

// Service validates, times and dispatches commands and queries, and fronts
// the admin operations. It owns the dispatch registry; everything else is
// injected.
type Service struct {
	registry    *Registry
	repo        *Repository
	store       eventstore.Store
	snapshots   eventstore.SnapshotStore
	readDB      *readmodel.DB
	projections *projection.Manager
	timeout     time.Duration
	started     time.Time
}

// NewService builds the service and its handler registry.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("service: event store is required")
	}
	if opts.ReadDB == nil {
		return nil, fmt.Errorf("service: read database is required")
	}

	repo, err := NewRepository(opts.Store, opts.Snapshots, opts.Publisher, opts.Config.SnapshotThreshold)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	if err := NewCommandHandlers(repo).Register(registry); err != nil {
		return nil, err
	}
	if err := NewQueryHandlers(opts.ReadDB).Register(registry); err != nil {
		return nil, err
	}

	logging.Info().
		Str("component", "app").
		Strs("commands", registry.CommandKinds()).
		Strs("queries", registry.QueryKinds()).
		Int("snapshot_threshold", opts.Config.SnapshotThreshold).
		Dur("command_timeout", opts.Config.CommandTimeout).
		Msg("Application service ready")

	return &Service{
		registry:    registry,
		repo:        repo,
		store:       opts.Store,
		snapshots:   opts.Snapshots,
		readDB:      opts.ReadDB,
		projections: opts.Projections,
		timeout:     opts.Config.CommandTimeout,
		started:     time.Now().UTC(),
	}, nil
}

// ExecuteCommand runs one command through the pipeline: resolve handler,
// tag-validate, bound by the command timeout, dispatch. A concurrency
// conflict propagates untouched; retrying against fresh state is the
// caller's call.
func (s *Service) ExecuteCommand(ctx context.Context, cmd Command) (CommandResult, error) {
	if cmd == nil {
		return CommandResult{}, &domain.UnknownCommandError{Kind: ""}
	}

	kind := cmd.Kind()
	start := time.Now()
	result, err := s.executeCommand(ctx, kind, cmd)
	metrics.RecordCommand(kind, outcomeLabel(err), time.Since(start))

	if err != nil {
		logging.Debug().
			Err(err).
			Str("component", "app").
			Str("kind", kind).
			Msg("Command failed")
	}
	return result, err
}

func (s *Service) executeCommand(ctx context.Context, kind string, cmd Command) (CommandResult, error) {
	handler, err := s.registry.CommandHandler(kind)
	if err != nil {
		return CommandResult{}, err
	}

	if verr := validation.ValidateStruct(cmd); verr != nil {
		return CommandResult{}, tagValidationError(verr)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return handler(ctx, cmd)
}

// ExecuteQuery runs one query against the read models. The concrete result
// type is documented per query kind.
func (s *Service) ExecuteQuery(ctx context.Context, q Query) (interface{}, error) {
	if q == nil {
		return nil, &domain.UnknownQueryError{Kind: ""}
	}

	kind := q.Kind()
	start := time.Now()
	result, err := s.executeQuery(ctx, kind, q)
	metrics.RecordQuery(kind, outcomeLabel(err), time.Since(start))
	return result, err
}

func (s *Service) executeQuery(ctx context.Context, kind string, q Query) (interface{}, error) {
	handler, err := s.registry.QueryHandler(kind)
	if err != nil {
		return nil, err
	}

	if verr := validation.ValidateStruct(q); verr != nil {
		return nil, tagValidationError(verr)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return handler(ctx, q)
}

// RebuildProjection resets one projection and replays the event log into it.
func (s *Service) RebuildProjection(ctx context.Context, name string) error {
	if s.projections == nil {
		return domain.NewValidationError("projections", "no projection manager configured")
	}
	return s.projections.Rebuild(ctx, name)
}

// CreateSnapshot synchronously snapshots a match's current state.
func (s *Service) CreateSnapshot(ctx context.Context, matchID string) (domain.Snapshot, error) {
	return s.repo.Snapshot(ctx, matchID)
}

// Close waits for background repository work. The injected stores and
// transports are closed by their owner, not here.
func (s *Service) Close() error {
	s.repo.Wait()
	return nil
}

// tagValidationError converts a tag validation failure into the domain
// error the rest of the system speaks.
func tagValidationError(verr *validation.StructValidationError) error {
	field := ""
	if errs := verr.Errors(); len(errs) > 0 {
		field = errs[0].Field()
	}
	return &domain.ValidationError{Field: field, Message: verr.Error()}
}

// outcomeLabel classifies an error for the dispatch metrics.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsValidation(err) || domain.IsUnknownTeam(err):
		return "validation"
	case domain.IsConcurrencyConflict(err):
		return "conflict"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
