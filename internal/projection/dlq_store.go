// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/logging"
)

// DLQStore persists dead letter entries in the read model database so
// parked events survive restarts. The in-memory DLQ stays authoritative at
// runtime; the store is its durable shadow.
type DLQStore struct {
	db *sql.DB
}

// NewDLQStore creates a store on the read model connection.
func NewDLQStore(db *sql.DB) *DLQStore {
	return &DLQStore{db: db}
}

// CreateTable creates the projection_dlq table if it doesn't exist.
func (s *DLQStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projection_dlq (
			projection TEXT NOT NULL,
			event_id TEXT NOT NULL,
			envelope TEXT NOT NULL,
			original_error TEXT NOT NULL,
			last_error TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			category TEXT NOT NULL,
			permanent BOOLEAN NOT NULL DEFAULT FALSE,
			first_failure TIMESTAMP NOT NULL,
			last_failure TIMESTAMP NOT NULL,
			next_retry TIMESTAMP NOT NULL,
			PRIMARY KEY (projection, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_first_failure ON projection_dlq(first_failure)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute DLQ schema: %w", err)
		}
	}

	// Flush the WAL after DDL so a crash before the first write never
	// replays schema statements on startup.
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after projection_dlq table creation")
	}

	return nil
}

// Save persists or updates an entry.
func (s *DLQStore) Save(ctx context.Context, entry *Entry) error {
	envelope, err := json.Marshal(entry.Event)
	if err != nil {
		return fmt.Errorf("marshal DLQ envelope: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projection_dlq (
			projection, event_id, envelope, original_error, last_error,
			retry_count, category, permanent, first_failure, last_failure, next_retry
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (projection, event_id) DO UPDATE SET
			last_error = excluded.last_error,
			retry_count = excluded.retry_count,
			last_failure = excluded.last_failure,
			next_retry = excluded.next_retry`,
		entry.Projection,
		entry.Event.EventID,
		string(envelope),
		entry.OriginalError,
		entry.LastError,
		entry.RetryCount,
		entry.Category.String(),
		entry.Permanent,
		entry.FirstFailure.UTC(),
		entry.LastFailure.UTC(),
		entry.NextRetry.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save DLQ entry: %w", err)
	}
	return nil
}

// Delete removes a persisted entry.
func (s *DLQStore) Delete(ctx context.Context, projection, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM projection_dlq WHERE projection = ? AND event_id = ?`,
		projection, eventID)
	if err != nil {
		return fmt.Errorf("delete DLQ entry: %w", err)
	}
	return nil
}

// LoadAll returns every persisted entry. Rows whose envelope no longer
// decodes are logged and skipped rather than failing the whole load.
func (s *DLQStore) LoadAll(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT projection, event_id, envelope, original_error, last_error,
			retry_count, category, permanent, first_failure, last_failure, next_retry
		FROM projection_dlq
		ORDER BY first_failure`)
	if err != nil {
		return nil, fmt.Errorf("load DLQ entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry                                Entry
			eventID, envelope, category          string
			firstFailure, lastFailure, nextRetry time.Time
		)
		err := rows.Scan(
			&entry.Projection, &eventID, &envelope,
			&entry.OriginalError, &entry.LastError, &entry.RetryCount,
			&category, &entry.Permanent,
			&firstFailure, &lastFailure, &nextRetry,
		)
		if err != nil {
			return nil, fmt.Errorf("scan DLQ entry: %w", err)
		}

		var rec eventstore.RecordedEvent
		if err := json.Unmarshal([]byte(envelope), &rec); err != nil {
			logging.Warn().Err(err).
				Str("projection", entry.Projection).
				Str("event_id", eventID).
				Msg("Skipping persisted DLQ entry with undecodable envelope")
			continue
		}

		entry.Event = rec
		entry.Category = categoryFromString(category)
		entry.FirstFailure = firstFailure.UTC()
		entry.LastFailure = lastFailure.UTC()
		entry.NextRetry = nextRetry.UTC()
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeleteExpired removes persisted entries that first failed before cutoff.
func (s *DLQStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM projection_dlq WHERE first_failure < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired DLQ entries: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of persisted entries.
func (s *DLQStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projection_dlq`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count DLQ entries: %w", err)
	}
	return count, nil
}
