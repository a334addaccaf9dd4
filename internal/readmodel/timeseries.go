// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package readmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/metrics"
)

// Entity types recorded in metric_timeseries.
const (
	EntityTypeMatch = "match"
	EntityTypeTeam  = "team"
)

// Metric names recorded in metric_timeseries.
const (
	MetricXG                  = "xg"
	MetricPossession          = "possession"
	MetricFormationConfidence = "formation_confidence"
)

// Bucketing intervals accepted by QueryTimeSeries.
const (
	IntervalMinute = "minute"
	IntervalHour   = "hour"
	IntervalDay    = "day"
	IntervalWeek   = "week"
)

// bucketIntervals maps the accepted interval names to DuckDB INTERVAL
// literals. The map doubles as the validation whitelist: interval strings
// are spliced into SQL, so nothing outside this map may ever reach the
// query text.
var bucketIntervals = map[string]string{
	IntervalMinute: "1 minute",
	IntervalHour:   "1 hour",
	IntervalDay:    "1 day",
	IntervalWeek:   "7 days",
}

// ValidInterval reports whether interval is an accepted bucket size.
func ValidInterval(interval string) bool {
	_, ok := bucketIntervals[interval]
	return ok
}

// TimeseriesPoint is one observation contributed by one event. EventID keys
// the dedup: replaying the log re-inserts the same point and the unique
// constraint drops it.
type TimeseriesPoint struct {
	EventID    string    `json:"event_id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TimeSeriesQuery selects and buckets history rows.
type TimeSeriesQuery struct {
	EntityType string
	EntityID   string
	Metric     string
	From       time.Time
	To         time.Time
	Interval   string
}

// TimeseriesBucket is one aggregated bucket of a time series.
type TimeseriesBucket struct {
	Bucket time.Time `json:"bucket"`
	Avg    float64   `json:"avg"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Count  int64     `json:"count"`
}

// InsertTimeseriesPoint appends one observation. Duplicate deliveries of the
// same event are silently dropped.
func (db *DB) InsertTimeseriesPoint(ctx context.Context, p TimeseriesPoint) error {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("insert_timeseries_point", time.Since(start), opErr)
	}()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO metric_timeseries (event_id, entity_type, entity_id, metric, value, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id, entity_type, entity_id, metric) DO NOTHING`,
		p.EventID, p.EntityType, p.EntityID, p.Metric, p.Value, p.RecordedAt.UTC())
	if err != nil {
		opErr = domain.NewStorageError("insert timeseries point", err)
		return opErr
	}
	return nil
}

// QueryTimeSeries returns bucketed aggregates for one (entity, metric) pair
// in ascending bucket order. An unknown interval is a ValidationError; an
// empty result set is not an error.
func (db *DB) QueryTimeSeries(ctx context.Context, q TimeSeriesQuery) ([]TimeseriesBucket, error) {
	start := time.Now()
	var opErr error
	defer func() {
		metrics.RecordReadModelQuery("query_timeseries", time.Since(start), opErr)
	}()

	literal, ok := bucketIntervals[q.Interval]
	if !ok {
		opErr = &domain.ValidationError{
			Field:   "interval",
			Message: fmt.Sprintf("unknown interval %q", q.Interval),
		}
		return nil, opErr
	}

	query := fmt.Sprintf(`
		SELECT time_bucket(INTERVAL '%s', recorded_at) AS bucket,
			AVG(value), MIN(value), MAX(value), COUNT(*)
		FROM metric_timeseries
		WHERE entity_type = ? AND entity_id = ? AND metric = ?
			AND recorded_at >= ? AND recorded_at <= ?
		GROUP BY bucket
		ORDER BY bucket`, literal)

	rows, err := db.conn.QueryContext(ctx, query,
		q.EntityType, q.EntityID, q.Metric, q.From.UTC(), q.To.UTC())
	if err != nil {
		opErr = domain.NewStorageError("query timeseries", err)
		return nil, opErr
	}
	defer rows.Close()

	var buckets []TimeseriesBucket
	for rows.Next() {
		var (
			b      TimeseriesBucket
			bucket time.Time
		)
		if err := rows.Scan(&bucket, &b.Avg, &b.Min, &b.Max, &b.Count); err != nil {
			opErr = domain.NewStorageError("scan timeseries bucket", err)
			return nil, opErr
		}
		b.Bucket = bucket.UTC()
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		opErr = domain.NewStorageError("iterate timeseries buckets", err)
		return nil, opErr
	}

	return buckets, nil
}

// TruncateTimeseries removes every history row. Used by rebuilds.
func (db *DB) TruncateTimeseries(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM metric_timeseries`)
	if err != nil {
		return domain.NewStorageError("truncate timeseries", err)
	}
	return nil
}
