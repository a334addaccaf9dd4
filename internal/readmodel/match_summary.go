// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package readmodel

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/metrics"
)

// MatchSummary is the current-value row per match. It answers
// GetMatchAnalytics without touching the event log.
type MatchSummary struct {
	MatchID         string    `json:"match_id"`
	HomeTeamID      string    `json:"home_team_id"`
	AwayTeamID      string    `json:"away_team_id"`
	HomeXG          float64   `json:"home_xg"`
	AwayXG          float64   `json:"away_xg"`
	HomePossession  float64   `json:"home_possession"`
	AwayPossession  float64   `json:"away_possession"`
	HomeFormation   string    `json:"home_formation,omitempty"`
	AwayFormation   string    `json:"away_formation,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	LastVersion     int64     `json:"last_version"`
	LastUpdated     time.Time `json:"last_updated"`
}

// UpsertMatchSummary writes the initial row for a match. On redelivery the
// version guard leaves a newer row untouched.
func (db *DB) UpsertMatchSummary(ctx context.Context, s MatchSummary) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("upsert_match_summary", time.Since(start), opErr)
	}()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO match_summary (
			match_id, home_team_id, away_team_id, duration_seconds,
			last_version, last_updated
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO UPDATE SET
			home_team_id = excluded.home_team_id,
			away_team_id = excluded.away_team_id,
			duration_seconds = excluded.duration_seconds,
			last_version = excluded.last_version,
			last_updated = excluded.last_updated
		WHERE excluded.last_version > match_summary.last_version`,
		s.MatchID, s.HomeTeamID, s.AwayTeamID, s.DurationSeconds,
		s.LastVersion, s.LastUpdated.UTC())
	if err != nil {
		opErr = domain.NewStorageError("upsert match summary", err)
		return opErr
	}
	return nil
}

// UpdateSummaryXG sets the xG for whichever side teamID plays on. The CASE
// arms resolve the side inside the database, so the caller never needs to
// read the row first.
func (db *DB) UpdateSummaryXG(ctx context.Context, matchID, teamID string, xg float64, version int64, at time.Time) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("update_summary_xg", time.Since(start), opErr)
	}()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE match_summary SET
			home_xg = CASE WHEN home_team_id = ? THEN ? ELSE home_xg END,
			away_xg = CASE WHEN away_team_id = ? THEN ? ELSE away_xg END,
			last_version = ?,
			last_updated = ?
		WHERE match_id = ? AND last_version < ?`,
		teamID, xg, teamID, xg, version, at.UTC(), matchID, version)
	if err != nil {
		opErr = domain.NewStorageError("update summary xg", err)
		return opErr
	}
	opErr = db.requireSummaryRow(ctx, res, matchID)
	return opErr
}

// UpdateSummaryPossession sets both possession shares.
func (db *DB) UpdateSummaryPossession(ctx context.Context, matchID string, homePct, awayPct float64, version int64, at time.Time) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("update_summary_possession", time.Since(start), opErr)
	}()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE match_summary SET
			home_possession = ?,
			away_possession = ?,
			last_version = ?,
			last_updated = ?
		WHERE match_id = ? AND last_version < ?`,
		homePct, awayPct, version, at.UTC(), matchID, version)
	if err != nil {
		opErr = domain.NewStorageError("update summary possession", err)
		return opErr
	}
	opErr = db.requireSummaryRow(ctx, res, matchID)
	return opErr
}

// UpdateSummaryFormation sets the detected formation for teamID's side.
func (db *DB) UpdateSummaryFormation(ctx context.Context, matchID, teamID, formation string, version int64, at time.Time) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("update_summary_formation", time.Since(start), opErr)
	}()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE match_summary SET
			home_formation = CASE WHEN home_team_id = ? THEN ? ELSE home_formation END,
			away_formation = CASE WHEN away_team_id = ? THEN ? ELSE away_formation END,
			last_version = ?,
			last_updated = ?
		WHERE match_id = ? AND last_version < ?`,
		teamID, formation, teamID, formation, version, at.UTC(), matchID, version)
	if err != nil {
		opErr = domain.NewStorageError("update summary formation", err)
		return opErr
	}
	opErr = db.requireSummaryRow(ctx, res, matchID)
	return opErr
}

// UpdateSummaryDuration sets the match duration.
func (db *DB) UpdateSummaryDuration(ctx context.Context, matchID string, seconds int, version int64, at time.Time) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("update_summary_duration", time.Since(start), opErr)
	}()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE match_summary SET
			duration_seconds = ?,
			last_version = ?,
			last_updated = ?
		WHERE match_id = ? AND last_version < ?`,
		seconds, version, at.UTC(), matchID, version)
	if err != nil {
		opErr = domain.NewStorageError("update summary duration", err)
		return opErr
	}
	opErr = db.requireSummaryRow(ctx, res, matchID)
	return opErr
}

// requireSummaryRow distinguishes a stale redelivery (row exists at a newer
// version, fine) from a genuinely missing row (the created event has not been
// applied, which breaks per-stream ordering and must surface as an error).
func (db *DB) requireSummaryRow(ctx context.Context, res sql.Result, matchID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("read rows affected", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM match_summary WHERE match_id = ?)`, matchID,
	).Scan(&exists)
	if err != nil {
		return domain.NewStorageError("check match summary exists", err)
	}
	if !exists {
		return &domain.NotFoundError{Kind: "match summary", ID: matchID}
	}
	return nil
}

// GetMatchSummary returns the summary row for matchID, or NotFoundError.
func (db *DB) GetMatchSummary(ctx context.Context, matchID string) (*MatchSummary, error) {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("get_match_summary", time.Since(start), opErr)
	}()

	var (
		s             MatchSummary
		homeFormation sql.NullString
		awayFormation sql.NullString
		lastUpdated   time.Time
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT match_id, home_team_id, away_team_id, home_xg, away_xg,
			home_possession, away_possession, home_formation, away_formation,
			duration_seconds, last_version, last_updated
		FROM match_summary
		WHERE match_id = ?`, matchID,
	).Scan(
		&s.MatchID, &s.HomeTeamID, &s.AwayTeamID, &s.HomeXG, &s.AwayXG,
		&s.HomePossession, &s.AwayPossession, &homeFormation, &awayFormation,
		&s.DurationSeconds, &s.LastVersion, &lastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		opErr = &domain.NotFoundError{Kind: "match summary", ID: matchID}
		return nil, opErr
	}
	if err != nil {
		opErr = domain.NewStorageError("get match summary", err)
		return nil, opErr
	}

	s.HomeFormation = homeFormation.String
	s.AwayFormation = awayFormation.String
	s.LastUpdated = lastUpdated.UTC()
	return &s, nil
}

// TruncateMatchSummary removes every summary row. Used by rebuilds.
func (db *DB) TruncateMatchSummary(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM match_summary`)
	if err != nil {
		return domain.NewStorageError("truncate match summary", err)
	}
	return nil
}
