// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/touchlinehq/touchline/internal/logging"
)

// Checkpoint is a projection's persisted position in the global event order.
type Checkpoint struct {
	Projection      string
	LastGlobalSeq   int64
	EventsProcessed int64
	UpdatedAt       time.Time
}

// CheckpointStore persists projection positions in the read model database.
// Checkpoints live next to the tables they guard: truncating the read
// database resets both together, which is exactly the rebuild contract.
type CheckpointStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewCheckpointStore creates a store on the read model connection.
func NewCheckpointStore(db *sql.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// CreateTable creates the projection_checkpoints table if it doesn't exist.
func (s *CheckpointStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projection_checkpoints (
			projection TEXT PRIMARY KEY,
			last_global_seq BIGINT NOT NULL DEFAULT 0,
			events_processed BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute checkpoint schema: %w", err)
		}
	}

	// Flush the WAL after DDL so a crash before the first write never
	// replays schema statements on startup.
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after projection_checkpoints table creation")
	}

	return nil
}

// Save persists a projection's position.
func (s *CheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projection_checkpoints (projection, last_global_seq, events_processed, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (projection) DO UPDATE SET
			last_global_seq = excluded.last_global_seq,
			events_processed = excluded.events_processed,
			updated_at = excluded.updated_at`,
		cp.Projection, cp.LastGlobalSeq, cp.EventsProcessed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint for %q: %w", cp.Projection, err)
	}
	return nil
}

// Get returns the persisted position for a projection. A projection that
// has never checkpointed returns a zero Checkpoint and found = false.
func (s *CheckpointStore) Get(ctx context.Context, projection string) (Checkpoint, bool, error) {
	var (
		cp        Checkpoint
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT projection, last_global_seq, events_processed, updated_at
		FROM projection_checkpoints
		WHERE projection = ?`, projection,
	).Scan(&cp.Projection, &cp.LastGlobalSeq, &cp.EventsProcessed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{Projection: projection}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("get checkpoint for %q: %w", projection, err)
	}

	cp.UpdatedAt = updatedAt.UTC()
	return cp, true, nil
}

// List returns every persisted checkpoint.
func (s *CheckpointStore) List(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT projection, last_global_seq, events_processed, updated_at
		FROM projection_checkpoints
		ORDER BY projection`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []Checkpoint
	for rows.Next() {
		var (
			cp        Checkpoint
			updatedAt time.Time
		)
		if err := rows.Scan(&cp.Projection, &cp.LastGlobalSeq, &cp.EventsProcessed, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.UpdatedAt = updatedAt.UTC()
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// Reset zeroes a projection's position. Rebuild calls this before replay so
// a crash mid-rebuild resumes from scratch instead of a stale position.
func (s *CheckpointStore) Reset(ctx context.Context, projection string) error {
	return s.Save(ctx, Checkpoint{Projection: projection})
}
