// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package eventstore

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the event log schema.
func (s *DuckDBStore) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := s.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// getTableCreationQueries returns the event log DDL. The events table is the
// single source of truth for the system: rows are only ever inserted, never
// updated or deleted.
//
// UNIQUE(stream_id, version) is the optimistic concurrency guard: two
// transactions appending at the same expected version collide here and
// exactly one commits. UNIQUE(event_id) additionally rejects re-appends of
// the same event after a lost acknowledgment.
func getTableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS events_global_seq START 1`,

		`CREATE TABLE IF NOT EXISTS events (
			global_seq BIGINT PRIMARY KEY DEFAULT nextval('events_global_seq'),
			event_id UUID NOT NULL UNIQUE,
			stream_id TEXT NOT NULL,
			version BIGINT NOT NULL,
			aggregate_type TEXT NOT NULL,
			event_type TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			correlation_id TEXT,
			causation_id TEXT,
			metadata TEXT,
			payload TEXT NOT NULL,
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(stream_id, version)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id, version)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_occurred ON events(occurred_at)`,
	}
}
