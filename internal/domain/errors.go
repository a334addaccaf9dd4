// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a business invariant violation. The mutation that
// produced it was rejected before any event was recorded, so aggregate state
// is unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a ValidationError for a named field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UnknownTeamError reports a team id that matches neither side of a match.
type UnknownTeamError struct {
	MatchID string
	TeamID  string
}

func (e *UnknownTeamError) Error() string {
	return fmt.Sprintf("team %q does not play in match %q", e.TeamID, e.MatchID)
}

// ConcurrencyConflictError reports an append rejected because the stream
// advanced past the expected version. Nothing was written; the caller decides
// whether to reload and retry.
type ConcurrencyConflictError struct {
	StreamID        string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on stream %q: expected version %d, stream is at %d",
		e.StreamID, e.ExpectedVersion, e.ActualVersion)
}

// NotFoundError reports an absent stream, aggregate or read model row.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// UnknownCommandError reports a command kind with no registered handler.
type UnknownCommandError struct {
	Kind string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command kind %q", e.Kind)
}

// UnknownQueryError reports a query kind with no registered handler.
type UnknownQueryError struct {
	Kind string
}

func (e *UnknownQueryError) Error() string {
	return fmt.Sprintf("unknown query kind %q", e.Kind)
}

// StorageError reports an event store or read database failure. Retries, if
// any, happen at the storage driver level; by the time a StorageError
// surfaces the operation has failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err with the failing operation name.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// ProjectionHandlerError reports a projection handler failure while applying
// one event. It affects only that projection; other projections and the
// write path continue.
type ProjectionHandlerError struct {
	Projection string
	EventType  string
	EventID    string
	Err        error
}

func (e *ProjectionHandlerError) Error() string {
	return fmt.Sprintf("projection %q failed on %s event %s: %v",
		e.Projection, e.EventType, e.EventID, e.Err)
}

func (e *ProjectionHandlerError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsUnknownTeam reports whether err is an UnknownTeamError.
func IsUnknownTeam(err error) bool {
	var target *UnknownTeamError
	return errors.As(err, &target)
}

// IsConcurrencyConflict reports whether err is a ConcurrencyConflictError.
func IsConcurrencyConflict(err error) bool {
	var target *ConcurrencyConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsUnknownCommand reports whether err is an UnknownCommandError.
func IsUnknownCommand(err error) bool {
	var target *UnknownCommandError
	return errors.As(err, &target)
}

// IsUnknownQuery reports whether err is an UnknownQueryError.
func IsUnknownQuery(err error) bool {
	var target *UnknownQueryError
	return errors.As(err, &target)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
