// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package readmodel

import (
	"context"
	"database/sql"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/metrics"
)

// TeamMatchMetrics is one (team, match) row. Keeping per-match granularity
// instead of a running total per team is what makes the projection
// idempotent: an upsert replaces a row, while incrementing a total would
// double-count on redelivery.
type TeamMatchMetrics struct {
	TeamID      string    `json:"team_id"`
	MatchID     string    `json:"match_id"`
	XG          float64   `json:"xg"`
	Possession  float64   `json:"possession"`
	Formation   string    `json:"formation,omitempty"`
	LastVersion int64     `json:"last_version"`
	LastUpdated time.Time `json:"last_updated"`
}

// TeamMetrics is the aggregate answer for GetTeamAnalytics, computed over
// the team's (team, match) rows at query time.
type TeamMetrics struct {
	TeamID        string    `json:"team_id"`
	Matches       int       `json:"matches"`
	TotalXG       float64   `json:"total_xg"`
	AvgXG         float64   `json:"avg_xg"`
	AvgPossession float64   `json:"avg_possession"`
	Formation     string    `json:"formation,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// EnsureTeamMetricsRow creates the zero-metric row for a (team, match) pair
// when the match is created. Redelivery at an older version is a no-op.
func (db *DB) EnsureTeamMetricsRow(ctx context.Context, teamID, matchID string, version int64, at time.Time) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("ensure_team_metrics", time.Since(start), opErr)
	}()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO team_metrics (team_id, match_id, last_version, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (team_id, match_id) DO NOTHING`,
		teamID, matchID, version, at.UTC())
	if err != nil {
		opErr = domain.NewStorageError("ensure team metrics row", err)
		return opErr
	}
	return nil
}

// UpdateTeamXG sets the xG in the (team, match) row.
func (db *DB) UpdateTeamXG(ctx context.Context, teamID, matchID string, xg float64, version int64, at time.Time) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("update_team_xg", time.Since(start), opErr)
	}()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO team_metrics (team_id, match_id, xg, last_version, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (team_id, match_id) DO UPDATE SET
			xg = excluded.xg,
			last_version = excluded.last_version,
			last_updated = excluded.last_updated
		WHERE excluded.last_version > team_metrics.last_version`,
		teamID, matchID, xg, version, at.UTC())
	if err != nil {
		opErr = domain.NewStorageError("update team xg", err)
		return opErr
	}
	return nil
}

// UpdateTeamPossession sets the possession share in the (team, match) row.
func (db *DB) UpdateTeamPossession(ctx context.Context, teamID, matchID string, possession float64, version int64, at time.Time) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("update_team_possession", time.Since(start), opErr)
	}()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO team_metrics (team_id, match_id, possession, last_version, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (team_id, match_id) DO UPDATE SET
			possession = excluded.possession,
			last_version = excluded.last_version,
			last_updated = excluded.last_updated
		WHERE excluded.last_version > team_metrics.last_version`,
		teamID, matchID, possession, version, at.UTC())
	if err != nil {
		opErr = domain.NewStorageError("update team possession", err)
		return opErr
	}
	return nil
}

// UpdateTeamFormation sets the detected formation in the (team, match) row.
func (db *DB) UpdateTeamFormation(ctx context.Context, teamID, matchID, formation string, version int64, at time.Time) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("update_team_formation", time.Since(start), opErr)
	}()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO team_metrics (team_id, match_id, formation, last_version, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (team_id, match_id) DO UPDATE SET
			formation = excluded.formation,
			last_version = excluded.last_version,
			last_updated = excluded.last_updated
		WHERE excluded.last_version > team_metrics.last_version`,
		teamID, matchID, formation, version, at.UTC())
	if err != nil {
		opErr = domain.NewStorageError("update team formation", err)
		return opErr
	}
	return nil
}

// GetTeamMetrics aggregates a team's rows, optionally bounded to matches
// last touched inside [from, to]. A team with no rows in range returns
// NotFoundError.
func (db *DB) GetTeamMetrics(ctx context.Context, teamID string, from, to *time.Time) (*TeamMetrics, error) {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("get_team_metrics", time.Since(start), opErr)
	}()

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(xg), 0),
			COALESCE(AVG(xg), 0),
			COALESCE(AVG(possession), 0),
			MAX(last_updated)
		FROM team_metrics
		WHERE team_id = ?`
	args := []interface{}{teamID}
	if from != nil {
		query += ` AND last_updated >= ?`
		args = append(args, from.UTC())
	}
	if to != nil {
		query += ` AND last_updated <= ?`
		args = append(args, to.UTC())
	}

	var (
		tm          TeamMetrics
		lastUpdated sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&tm.Matches, &tm.TotalXG, &tm.AvgXG, &tm.AvgPossession, &lastUpdated,
	)
	if err != nil {
		opErr = domain.NewStorageError("get team metrics", err)
		return nil, opErr
	}
	if tm.Matches == 0 {
		opErr = &domain.NotFoundError{Kind: "team metrics", ID: teamID}
		return nil, opErr
	}

	tm.TeamID = teamID
	if lastUpdated.Valid {
		tm.LastUpdated = lastUpdated.Time.UTC()
	}

	// Most recently observed formation, independent of the metric window.
	var formation sql.NullString
	err = db.conn.QueryRowContext(ctx, `
		SELECT formation FROM team_metrics
		WHERE team_id = ? AND formation IS NOT NULL
		ORDER BY last_updated DESC
		LIMIT 1`, teamID,
	).Scan(&formation)
	if err != nil && err != sql.ErrNoRows {
		opErr = domain.NewStorageError("get team formation", err)
		return nil, opErr
	}
	tm.Formation = formation.String

	return &tm, nil
}

// TruncateTeamMetrics removes every team metrics row. Used by rebuilds.
func (db *DB) TruncateTeamMetrics(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM team_metrics`)
	if err != nil {
		return domain.NewStorageError("truncate team metrics", err)
	}
	return nil
}
