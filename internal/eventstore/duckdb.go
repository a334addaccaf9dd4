// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/touchlinehq/touchline/internal/config"
	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/logging"
	"github.com/touchlinehq/touchline/internal/metrics"
)

// DuckDBStore is the DuckDB-backed event log.
type DuckDBStore struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// NewDuckDBStore opens (or creates) the event log database and initializes
// its schema.
func NewDuckDBStore(cfg *config.DatabaseConfig) (*DuckDBStore, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	// 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network
	// environments. The event log needs no extensions.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}

	s := &DuckDBStore{conn: conn, cfg: cfg}
	s.configureConnectionPool()

	if err := s.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize event store schema: %w", err)
	}

	// Flush the WAL after schema creation so a crash before the first
	// append never replays DDL on startup.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint event store after schema initialization")
	}

	logging.Info().Str("path", cfg.Path).Msg("Event store opened")
	return s, nil
}

// configureConnectionPool sets connection pool parameters.
func (s *DuckDBStore) configureConnectionPool() {
	s.conn.SetMaxOpenConns(runtime.NumCPU())
	s.conn.SetMaxIdleConns(2)
	s.conn.SetConnMaxLifetime(time.Hour)
	s.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying SQL connection. Used by admin tooling that
// needs direct read access to the log.
func (s *DuckDBStore) Conn() *sql.DB {
	return s.conn
}

// recordedEventColumns is the select list shared by every read path. The
// UUID column is cast because the driver returns UUIDs as a driver-specific
// type rather than TEXT.
const recordedEventColumns = `global_seq, CAST(event_id AS VARCHAR), stream_id, version,
	aggregate_type, event_type, schema_version, occurred_at,
	correlation_id, causation_id, metadata, payload, recorded_at`

// Append implements Store. The expected-version check and all inserts run in
// one transaction; concurrent appenders to the same stream serialize on the
// UNIQUE(stream_id, version) constraint, so exactly one of two racing
// commands commits.
func (s *DuckDBStore) Append(ctx context.Context, streamID string, expectedVersion int64, events []domain.Event) ([]RecordedEvent, error) {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordStoreQuery("append", time.Since(start), opErr)
	}()

	if streamID == "" {
		opErr = &domain.ValidationError{Field: "stream_id", Message: "required"}
		return nil, opErr
	}
	if len(events) == 0 {
		return nil, nil
	}
	for _, event := range events {
		if err := event.Validate(); err != nil {
			opErr = err
			return nil, err
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		opErr = domain.NewStorageError("begin append transaction", err)
		return nil, opErr
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = ?`, streamID,
	).Scan(&current); err != nil {
		opErr = domain.NewStorageError("read stream version", err)
		return nil, opErr
	}
	actual := domain.NoStreamVersion
	if current.Valid {
		actual = current.Int64
	}
	if actual != expectedVersion {
		metrics.RecordAppendConflict()
		opErr = &domain.ConcurrencyConflictError{
			StreamID:        streamID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   actual,
		}
		return nil, opErr
	}

	recorded := make([]RecordedEvent, 0, len(events))
	for i, event := range events {
		version := expectedVersion + 1 + int64(i)

		metadata, err := marshalMetadata(event.Metadata)
		if err != nil {
			opErr = fmt.Errorf("marshal event metadata: %w", err)
			return nil, opErr
		}

		var globalSeq int64
		var recordedAt time.Time
		err = tx.QueryRowContext(ctx, `
			INSERT INTO events (
				event_id, stream_id, version, aggregate_type, event_type,
				schema_version, occurred_at, correlation_id, causation_id,
				metadata, payload
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING global_seq, recorded_at`,
			event.EventID,
			streamID,
			version,
			event.AggregateType,
			string(event.EventType),
			event.SchemaVersion,
			event.Timestamp.UTC(),
			nullString(event.CorrelationID),
			nullString(event.CausationID),
			metadata,
			string(event.Payload),
		).Scan(&globalSeq, &recordedAt)
		if err != nil {
			if isConflictError(err) {
				metrics.RecordAppendConflict()
				opErr = s.conflictError(ctx, streamID, expectedVersion)
				return nil, opErr
			}
			opErr = domain.NewStorageError("insert event", err)
			return nil, opErr
		}

		recorded = append(recorded, RecordedEvent{
			Event:      event,
			Version:    version,
			GlobalSeq:  globalSeq,
			RecordedAt: recordedAt.UTC(),
		})
	}

	if err := tx.Commit(); err != nil {
		if isConflictError(err) {
			metrics.RecordAppendConflict()
			opErr = s.conflictError(ctx, streamID, expectedVersion)
			return nil, opErr
		}
		opErr = domain.NewStorageError("commit append transaction", err)
		return nil, opErr
	}

	metrics.RecordAppend(len(recorded))
	logging.Debug().
		Str("stream_id", streamID).
		Int64("expected_version", expectedVersion).
		Int("events", len(recorded)).
		Int64("last_global_seq", recorded[len(recorded)-1].GlobalSeq).
		Msg("Events appended")

	return recorded, nil
}

// conflictError builds a ConcurrencyConflictError with the actual stream
// version re-read after a constraint collision. The re-read is best effort;
// a failure leaves ActualVersion at the expected value + 1 as a lower bound.
func (s *DuckDBStore) conflictError(ctx context.Context, streamID string, expectedVersion int64) error {
	actual := expectedVersion + 1
	var current sql.NullInt64
	if err := s.conn.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = ?`, streamID,
	).Scan(&current); err == nil && current.Valid {
		actual = current.Int64
	}
	return &domain.ConcurrencyConflictError{
		StreamID:        streamID,
		ExpectedVersion: expectedVersion,
		ActualVersion:   actual,
	}
}

// Read implements Store.
func (s *DuckDBStore) Read(ctx context.Context, streamID string, fromVersion int64) ([]RecordedEvent, error) {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordStoreQuery("read", time.Since(start), opErr)
	}()

	if streamID == "" {
		opErr = &domain.ValidationError{Field: "stream_id", Message: "required"}
		return nil, opErr
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+recordedEventColumns+`
		FROM events
		WHERE stream_id = ? AND version >= ?
		ORDER BY version`,
		streamID, fromVersion)
	if err != nil {
		opErr = domain.NewStorageError("read stream", err)
		return nil, opErr
	}
	defer rows.Close()

	events, err := scanRecordedEvents(rows)
	if err != nil {
		opErr = err
		return nil, err
	}

	metrics.RecordEventsRead(len(events))
	return events, nil
}

// ReadAll implements Store.
func (s *DuckDBStore) ReadAll(ctx context.Context, afterSeq int64, limit int) ([]RecordedEvent, error) {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordStoreQuery("read_all", time.Since(start), opErr)
	}()

	query := `
		SELECT ` + recordedEventColumns + `
		FROM events
		WHERE global_seq > ?
		ORDER BY global_seq`
	args := []interface{}{afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		opErr = domain.NewStorageError("read all events", err)
		return nil, opErr
	}
	defer rows.Close()

	events, err := scanRecordedEvents(rows)
	if err != nil {
		opErr = err
		return nil, err
	}

	metrics.RecordEventsRead(len(events))
	return events, nil
}

// CurrentVersion implements Store.
func (s *DuckDBStore) CurrentVersion(ctx context.Context, streamID string) (int64, error) {
	var current sql.NullInt64
	err := s.conn.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = ?`, streamID,
	).Scan(&current)
	if err != nil {
		return domain.NoStreamVersion, domain.NewStorageError("read stream version", err)
	}
	if !current.Valid {
		return domain.NoStreamVersion, nil
	}
	return current.Int64, nil
}

// StreamExists implements Store.
func (s *DuckDBStore) StreamExists(ctx context.Context, streamID string) (bool, error) {
	var exists bool
	err := s.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE stream_id = ?)`, streamID,
	).Scan(&exists)
	if err != nil {
		return false, domain.NewStorageError("check stream exists", err)
	}
	return exists, nil
}

// LatestGlobalSeq implements Store.
func (s *DuckDBStore) LatestGlobalSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.conn.QueryRowContext(ctx, `SELECT MAX(global_seq) FROM events`).Scan(&seq)
	if err != nil {
		return 0, domain.NewStorageError("read latest global seq", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// Ping implements Store.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("event store connection is nil")
	}
	return s.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the connection. The checkpoint is
// best effort; it prevents WAL replay on the next startup.
func (s *DuckDBStore) Close() error {
	if s.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint event store before close")
	}

	return s.conn.Close()
}

// checkpoint forces DuckDB to flush its WAL into the main database file.
func (s *DuckDBStore) checkpoint(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "CHECKPOINT")
	return err
}

// scanRecordedEvents drains rows into recorded events.
func scanRecordedEvents(rows *sql.Rows) ([]RecordedEvent, error) {
	var events []RecordedEvent
	for rows.Next() {
		event, err := scanRecordedEvent(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan event row", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate event rows", err)
	}
	return events, nil
}

func scanRecordedEvent(rows *sql.Rows) (RecordedEvent, error) {
	var (
		e             RecordedEvent
		eventType     string
		occurredAt    time.Time
		correlationID sql.NullString
		causationID   sql.NullString
		metadata      sql.NullString
		payload       string
		recordedAt    time.Time
	)

	err := rows.Scan(
		&e.GlobalSeq,
		&e.EventID,
		&e.AggregateID,
		&e.Version,
		&e.AggregateType,
		&eventType,
		&e.SchemaVersion,
		&occurredAt,
		&correlationID,
		&causationID,
		&metadata,
		&payload,
		&recordedAt,
	)
	if err != nil {
		return RecordedEvent{}, err
	}

	e.EventType = domain.EventType(eventType)
	e.Timestamp = occurredAt.UTC()
	e.CorrelationID = correlationID.String
	e.CausationID = causationID.String
	e.Payload = json.RawMessage(payload)
	e.RecordedAt = recordedAt.UTC()

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return RecordedEvent{}, fmt.Errorf("unmarshal event metadata: %w", err)
		}
	}

	return e, nil
}

// marshalMetadata serializes the metadata map, or NULL when absent.
func marshalMetadata(metadata map[string]string) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isConflictError reports whether an error is a DuckDB constraint or
// transaction conflict, which for the events table means two appenders
// raced on the same stream version.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "Constraint Error") ||
		strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update")
}

func closeQuietly(c interface{ Close() error }) {
	_ = c.Close()
}
