// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/touchlinehq/touchline/internal/domain"
)

// CommandHandlerFunc executes one command kind. The handler receives the
// command already tag-validated.
type CommandHandlerFunc func(ctx context.Context, cmd Command) (CommandResult, error)

// QueryHandlerFunc answers one query kind. The concrete result type is
// documented per query.
type QueryHandlerFunc func(ctx context.Context, q Query) (interface{}, error)

// Registry maps command and query kinds to handlers. It is assembled during
// service construction and read-only afterwards, so lookups need no locking.
type Registry struct {
	commands map[string]CommandHandlerFunc
	queries  map[string]QueryHandlerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]CommandHandlerFunc),
		queries:  make(map[string]QueryHandlerFunc),
	}
}

// RegisterCommand binds a handler to a command kind. Registering the same
// kind twice is a wiring bug and fails loudly.
func (r *Registry) RegisterCommand(kind string, handler CommandHandlerFunc) error {
	if kind == "" {
		return fmt.Errorf("register command: empty kind")
	}
	if handler == nil {
		return fmt.Errorf("register command %q: nil handler", kind)
	}
	if _, exists := r.commands[kind]; exists {
		return fmt.Errorf("register command %q: already registered", kind)
	}
	r.commands[kind] = handler
	return nil
}

// RegisterQuery binds a handler to a query kind.
func (r *Registry) RegisterQuery(kind string, handler QueryHandlerFunc) error {
	if kind == "" {
		return fmt.Errorf("register query: empty kind")
	}
	if handler == nil {
		return fmt.Errorf("register query %q: nil handler", kind)
	}
	if _, exists := r.queries[kind]; exists {
		return fmt.Errorf("register query %q: already registered", kind)
	}
	r.queries[kind] = handler
	return nil
}

// CommandHandler resolves a command kind.
func (r *Registry) CommandHandler(kind string) (CommandHandlerFunc, error) {
	handler, ok := r.commands[kind]
	if !ok {
		return nil, &domain.UnknownCommandError{Kind: kind}
	}
	return handler, nil
}

// QueryHandler resolves a query kind.
func (r *Registry) QueryHandler(kind string) (QueryHandlerFunc, error) {
	handler, ok := r.queries[kind]
	if !ok {
		return nil, &domain.UnknownQueryError{Kind: kind}
	}
	return handler, nil
}

// CommandKinds returns the registered command kinds in sorted order.
func (r *Registry) CommandKinds() []string {
	kinds := make([]string, 0, len(r.commands))
	for kind := range r.commands {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// QueryKinds returns the registered query kinds in sorted order.
func (r *Registry) QueryKinds() []string {
	kinds := make([]string, 0, len(r.queries))
	for kind := range r.queries {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
