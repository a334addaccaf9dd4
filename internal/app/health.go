// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package app

import (
	"context"
	"time"

	"github.com/touchlinehq/touchline/internal/logging"
	"github.com/touchlinehq/touchline/internal/projection"
)

// HealthStatus reports the independent health of each pillar. Healthy
// aggregates the three load-bearing probes; the snapshot store is reported
// but not aggregated, losing it costs replay time only.
type HealthStatus struct {
	EventStore    bool      `json:"event_store"`
	ReadDatabase  bool      `json:"read_database"`
	Projections   bool      `json:"projections"`
	SnapshotStore bool      `json:"snapshot_store"`
	Healthy       bool      `json:"healthy"`
	CheckedAt     time.Time `json:"checked_at"`
}

// HealthCheck probes every pillar independently. A probe failure never
// short-circuits the others, so a degraded report always shows the full
// picture.
func (s *Service) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{CheckedAt: time.Now().UTC()}

	status.EventStore = s.store != nil && s.store.Ping(ctx) == nil
	status.ReadDatabase = s.readDB != nil && s.readDB.Ping(ctx) == nil
	status.Projections = s.projections != nil && s.projections.Running()
	status.SnapshotStore = s.snapshots != nil && s.snapshots.Ping(ctx) == nil

	status.Healthy = status.EventStore && status.ReadDatabase && status.Projections
	return status
}

// ServiceStats aggregates operational counters from the components the
// service fronts.
type ServiceStats struct {
	UptimeSeconds float64             `json:"uptime_seconds"`
	Commands      []string            `json:"commands"`
	Queries       []string            `json:"queries"`
	ProjectionLag int64               `json:"projection_lag"`
	Checkpoints   map[string]int64    `json:"checkpoints"`
	DLQ           projection.DLQStats `json:"dlq"`
}

// Stats returns a point-in-time operational snapshot.
func (s *Service) Stats(ctx context.Context) ServiceStats {
	stats := ServiceStats{
		UptimeSeconds: time.Since(s.started).Seconds(),
		Commands:      s.registry.CommandKinds(),
		Queries:       s.registry.QueryKinds(),
	}

	if s.projections == nil {
		return stats
	}

	lag, err := s.projections.Lag(ctx)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("component", "app").
			Msg("Projection lag probe failed")
	} else {
		stats.ProjectionLag = lag
	}

	stats.Checkpoints = make(map[string]int64)
	for _, name := range s.projections.Names() {
		if cp, ok := s.projections.CheckpointFor(name); ok {
			stats.Checkpoints[name] = cp
		}
	}
	stats.DLQ = s.projections.DLQStats()
	return stats
}
