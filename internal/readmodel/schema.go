// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package readmodel

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the read model schema.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// getTableCreationQueries returns the read model DDL.
//
// match_summary and team_metrics carry a last_version column holding the
// stream version of the event that last touched the row. Upserts only apply
// when the incoming version is higher, which makes redelivery and rebuild
// replay no-ops. metric_timeseries instead dedupes on the contributing
// event id: one event contributes one history row, ever.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS match_summary (
			match_id TEXT PRIMARY KEY,
			home_team_id TEXT NOT NULL,
			away_team_id TEXT NOT NULL,
			home_xg DOUBLE NOT NULL DEFAULT 0,
			away_xg DOUBLE NOT NULL DEFAULT 0,
			home_possession DOUBLE NOT NULL DEFAULT 0,
			away_possession DOUBLE NOT NULL DEFAULT 0,
			home_formation TEXT,
			away_formation TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			last_version BIGINT NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS team_metrics (
			team_id TEXT NOT NULL,
			match_id TEXT NOT NULL,
			xg DOUBLE NOT NULL DEFAULT 0,
			possession DOUBLE NOT NULL DEFAULT 0,
			formation TEXT,
			last_version BIGINT NOT NULL,
			last_updated TIMESTAMP NOT NULL,
			PRIMARY KEY (team_id, match_id)
		)`,

		`CREATE TABLE IF NOT EXISTS metric_timeseries (
			event_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			value DOUBLE NOT NULL,
			recorded_at TIMESTAMP NOT NULL,
			UNIQUE (event_id, entity_type, entity_id, metric)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_team_metrics_team ON team_metrics(team_id, last_updated)`,
		`CREATE INDEX IF NOT EXISTS idx_timeseries_lookup ON metric_timeseries(entity_type, entity_id, metric, recorded_at)`,
	}
}
