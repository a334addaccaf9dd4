// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package readmodel owns the query-side DuckDB database.

Three tables are derived from the event log by the projections and serve
every query the application answers:

  - match_summary: one current-value row per match (team ids, xG,
    possession, formations, duration).
  - team_metrics: one row per (team, match) pair; team-level answers are
    aggregated at query time.
  - metric_timeseries: append-only metric history, one row per contributing
    event, bucketed at query time with DuckDB's time_bucket.

Every write is an idempotent upsert guarded by the stream version that
produced it (or by the event id for timeseries rows), so projections can
replay any suffix of the log without corrupting state. Nothing here is the
source of truth: any table can be truncated and rebuilt from the event log.
*/
package readmodel
