// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the event-sourced write path, the stream transport and
the projection read side using the Prometheus client library.

# Overview

The package provides metrics for:
  - Event store append/read latency and concurrency conflicts
  - Snapshot save/load activity
  - Stream transport publish/consume throughput
  - Projection processing, checkpoints and rebuilds
  - Dead letter queue depth and retry outcomes
  - Command and query dispatch

# Available Metrics

Event Store Metrics:
  - eventstore_query_duration_seconds: Store operation latency (histogram)
    Labels: operation (append, read, read_all, stream_exists)
  - eventstore_errors_total: Failed store operations (counter)
    Labels: operation, error_type
  - eventstore_events_appended_total: Events appended to the log (counter)
  - eventstore_events_read_total: Events read from the log (counter)
  - eventstore_append_conflicts_total: Appends rejected by the optimistic
    concurrency check (counter)
  - eventstore_append_batch_size: Events per append call (histogram)
    Buckets: 1, 2, 5, 10, 25, 50, 100

Snapshot Metrics:
  - snapshots_saved_total: Snapshots saved (counter)
  - snapshots_loaded_total: Snapshots loaded (counter)
  - snapshots_save_failures_total: Snapshot save failures (counter)

Stream Transport Metrics:
  - stream_messages_published_total: Events published (counter)
  - stream_messages_consumed_total: Events consumed (counter)
  - stream_messages_parse_failed_total: Undecodable messages (counter)
  - stream_publish_duration_seconds: Publish latency (histogram)
  - stream_consumer_lag: Pending messages per durable consumer (gauge)
    Labels: consumer

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_state_transitions_total: State transitions (counter)
    Labels: name, from_state, to_state

Projection Metrics:
  - projection_events_processed_total: Events applied (counter)
    Labels: projection
  - projection_events_skipped_total: Events with no handler (counter)
    Labels: projection
  - projection_handler_failures_total: Handler failures before retry (counter)
    Labels: projection
  - projection_processing_duration_seconds: Handler latency (histogram)
    Labels: projection
  - projection_checkpoint_seq: Last checkpointed global sequence (gauge)
    Labels: projection
  - projection_rebuild_duration_seconds: Rebuild duration (histogram)
    Labels: projection
    Buckets: 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600
  - projection_rebuilds_total: Rebuild outcomes (counter)
    Labels: projection, result

Dead Letter Queue Metrics:
  - dlq_entries_total: Current queue depth (gauge)
  - dlq_entries_by_category: Queue depth by error category (gauge)
    Labels: category (connection, timeout, validation, storage, capacity, unknown)
  - dlq_messages_added_total: Events dead-lettered (counter)
  - dlq_messages_removed_total: Events reprocessed successfully (counter)
  - dlq_messages_expired_total: Events expired (counter)
  - dlq_retry_attempts_total / dlq_retry_successes_total /
    dlq_retry_failures_total: Retry outcomes (counters)
  - dlq_oldest_entry_age_seconds: Age of the oldest entry (gauge)

Dispatch Metrics:
  - commands_total: Commands dispatched (counter)
    Labels: kind, result (success, validation, conflict, error)
  - command_duration_seconds: Command latency (histogram)
    Labels: kind
  - queries_total: Queries dispatched (counter)
    Labels: kind, result
  - query_duration_seconds: Query latency (histogram)
    Labels: kind
  - aggregate_replay_events: Events replayed per aggregate load (histogram)

# Usage Example

	import "github.com/touchlinehq/touchline/internal/metrics"

	start := time.Now()
	err := store.Append(ctx, streamID, expected, events)
	metrics.RecordStoreQuery("append", time.Since(start), err)
	if err == nil {
	    metrics.RecordAppend(len(events))
	}

All collectors are registered with the default registry via promauto at
package load time. Recording functions are safe for concurrent use.
*/
package metrics
