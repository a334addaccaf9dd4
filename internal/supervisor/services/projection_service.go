// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/touchlinehq/touchline/internal/logging"
)

// ProjectionRunner is the projection manager lifecycle as the service
// wrapper needs it. Satisfied by *projection.Manager.
type ProjectionRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ProjectionService wraps the projection manager as a supervised service.
//
// Start replays the event log gap (catch-up) before tailing the stream, so
// a restart after a crash heals the read models as part of coming back up.
// If Start fails, the error propagates and suture restarts the service under
// its backoff policy.
type ProjectionService struct {
	manager         ProjectionRunner
	shutdownTimeout time.Duration
	name            string
}

// NewProjectionService creates a projection service wrapper with the default
// shutdown timeout.
func NewProjectionService(manager ProjectionRunner) *ProjectionService {
	return NewProjectionServiceWithTimeout(manager, defaultShutdownTimeout)
}

// NewProjectionServiceWithTimeout creates a projection service with a custom
// shutdown timeout.
func NewProjectionServiceWithTimeout(manager ProjectionRunner, shutdownTimeout time.Duration) *ProjectionService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &ProjectionService{
		manager:         manager,
		shutdownTimeout: shutdownTimeout,
		name:            "projection-manager",
	}
}

// Serve implements suture.Service.
//
// The serve context governs the live tail and the DLQ retry worker; when it
// ends, Stop drains them and persists final checkpoints under a fresh
// timeout context.
func (s *ProjectionService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		// A failed Start can leave partial state behind; reset it so the
		// supervised restart begins from a stopped manager.
		stopCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if stopErr := s.manager.Stop(stopCtx); stopErr != nil {
			logging.Warn().
				Err(stopErr).
				Str("component", "supervisor").
				Msg("Projection manager reset after failed start reported an error")
		}
		return fmt.Errorf("projection manager start: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.manager.Stop(shutdownCtx); err != nil {
		logging.Warn().
			Err(err).
			Str("component", "supervisor").
			Msg("Projection manager did not stop cleanly")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor log messages.
func (s *ProjectionService) String() string {
	return s.name
}
