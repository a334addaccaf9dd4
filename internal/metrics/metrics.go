// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the event-sourced write path, the stream
// transport and the projection read side:
// - Event store append/read performance and concurrency conflicts
// - Snapshot save/load activity
// - NATS publish/consume throughput
// - Projection processing, lag and rebuilds
// - Dead letter queue depth and retry outcomes
// - Command/query dispatch

var (
	// Event Store Metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventstore_query_duration_seconds",
			Help:    "Duration of event store operations in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s ... 10s
		},
		[]string{"operation"}, // "append", "read", "read_all", "stream_exists"
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstore_errors_total",
			Help: "Total number of event store errors",
		},
		[]string{"operation", "error_type"},
	)

	EventsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstore_events_appended_total",
			Help: "Total number of events appended to the log",
		},
	)

	EventsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstore_events_read_total",
			Help: "Total number of events read from the log",
		},
	)

	AppendConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstore_append_conflicts_total",
			Help: "Total number of appends rejected by the optimistic concurrency check",
		},
	)

	AppendBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventstore_append_batch_size",
			Help:    "Number of events per append call",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	// Read Model Metrics
	ReadModelQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readmodel_query_duration_seconds",
			Help:    "Duration of read model operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ReadModelErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readmodel_errors_total",
			Help: "Total number of read model errors",
		},
		[]string{"operation"},
	)

	// Snapshot Metrics
	SnapshotsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshots_saved_total",
			Help: "Total number of aggregate snapshots saved",
		},
	)

	SnapshotsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshots_loaded_total",
			Help: "Total number of aggregate snapshots loaded",
		},
	)

	SnapshotSaveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshots_save_failures_total",
			Help: "Total number of snapshot save failures (best-effort, non-fatal)",
		},
	)

	// Stream Transport Metrics
	StreamMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_messages_published_total",
			Help: "Total number of events published to the stream transport",
		},
	)

	StreamMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_messages_consumed_total",
			Help: "Total number of events consumed from the stream transport",
		},
	)

	StreamMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_messages_parse_failed_total",
			Help: "Total number of stream messages that failed to decode",
		},
	)

	StreamPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_publish_duration_seconds",
			Help:    "Duration of a single event publish in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StreamConsumerLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_consumer_lag",
			Help: "Number of pending messages per durable consumer",
		},
		[]string{"consumer"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Projection Metrics
	ProjectionEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projection_events_processed_total",
			Help: "Total number of events applied by each projection",
		},
		[]string{"projection"},
	)

	ProjectionEventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projection_events_skipped_total",
			Help: "Total number of events skipped by each projection (no matching handler)",
		},
		[]string{"projection"},
	)

	ProjectionHandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projection_handler_failures_total",
			Help: "Total number of projection handler failures (before retry)",
		},
		[]string{"projection"},
	)

	ProjectionProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projection_processing_duration_seconds",
			Help:    "Duration of a single projection handler invocation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"projection"},
	)

	ProjectionCheckpoint = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "projection_checkpoint_seq",
			Help: "Last global sequence number checkpointed by each projection",
		},
		[]string{"projection"},
	)

	ProjectionRebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projection_rebuild_duration_seconds",
			Help:    "Duration of full projection rebuilds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"projection"},
	)

	ProjectionRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projection_rebuilds_total",
			Help: "Total number of projection rebuilds",
		},
		[]string{"projection", "result"}, // result: "success", "failure"
	)

	// Dead Letter Queue Metrics
	DLQEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_entries_total",
			Help: "Current number of entries in the dead letter queue",
		},
	)

	DLQEntriesByCategory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dlq_entries_by_category",
			Help: "Current number of DLQ entries by error category",
		},
		[]string{"category"}, // connection, timeout, validation, storage, capacity, unknown
	)

	DLQMessagesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_added_total",
			Help: "Total number of events dead-lettered",
		},
	)

	DLQMessagesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_removed_total",
			Help: "Total number of events removed from the DLQ (successfully reprocessed)",
		},
	)

	DLQMessagesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_expired_total",
			Help: "Total number of events expired from the DLQ",
		},
	)

	DLQRetryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_attempts_total",
			Help: "Total number of retry attempts for dead-lettered events",
		},
	)

	DLQRetrySuccesses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_successes_total",
			Help: "Total number of successful DLQ retries",
		},
	)

	DLQRetryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_failures_total",
			Help: "Total number of failed DLQ retries",
		},
	)

	DLQOldestEntryAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_oldest_entry_age_seconds",
			Help: "Age of the oldest entry in the DLQ in seconds",
		},
	)

	// Command/Query Dispatch Metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commands_total",
			Help: "Total number of commands dispatched",
		},
		[]string{"kind", "result"}, // result: "success", "validation", "conflict", "not_found", "error"
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "End-to-end command execution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queries_total",
			Help: "Total number of queries dispatched",
		},
		[]string{"kind", "result"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_duration_seconds",
			Help:    "Query execution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	AggregateReplayEvents = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregate_replay_events",
			Help:    "Number of events replayed per aggregate load",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordStoreQuery records an event store operation.
func RecordStoreQuery(operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		StoreErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// RecordReadModelQuery records a read model operation.
func RecordReadModelQuery(operation string, duration time.Duration, err error) {
	ReadModelQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		ReadModelErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAppend records a successful append of n events.
func RecordAppend(n int) {
	EventsAppended.Add(float64(n))
	AppendBatchSize.Observe(float64(n))
}

// RecordAppendConflict records an append rejected by the concurrency check.
func RecordAppendConflict() {
	AppendConflicts.Inc()
}

// RecordEventsRead records n events read from the log.
func RecordEventsRead(n int) {
	EventsRead.Add(float64(n))
}

// RecordSnapshotSave records the outcome of a snapshot save.
func RecordSnapshotSave(err error) {
	if err != nil {
		SnapshotSaveFailures.Inc()
		return
	}
	SnapshotsSaved.Inc()
}

// RecordSnapshotLoad records a snapshot load.
func RecordSnapshotLoad() {
	SnapshotsLoaded.Inc()
}

// RecordStreamPublish records an event published to the transport.
func RecordStreamPublish(duration time.Duration) {
	StreamMessagesPublished.Inc()
	StreamPublishDuration.Observe(duration.Seconds())
}

// RecordStreamConsume records an event consumed from the transport.
func RecordStreamConsume() {
	StreamMessagesConsumed.Inc()
}

// RecordStreamParseFailed records a message that failed to decode.
func RecordStreamParseFailed() {
	StreamMessagesParseFailed.Inc()
}

// UpdateStreamConsumerLag updates the pending-message gauge for a consumer.
func UpdateStreamConsumerLag(consumer string, lag int64) {
	StreamConsumerLag.WithLabelValues(consumer).Set(float64(lag))
}

// RecordCircuitBreakerTransition records a breaker state change.
// States map to 0=closed, 1=half-open, 2=open.
func RecordCircuitBreakerTransition(name, from, to string, toValue float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(toValue)
}

// RecordProjectionProcessed records a successfully applied event.
func RecordProjectionProcessed(projection string, duration time.Duration) {
	ProjectionEventsProcessed.WithLabelValues(projection).Inc()
	ProjectionProcessingDuration.WithLabelValues(projection).Observe(duration.Seconds())
}

// RecordProjectionSkipped records an event with no matching handler.
func RecordProjectionSkipped(projection string) {
	ProjectionEventsSkipped.WithLabelValues(projection).Inc()
}

// RecordProjectionFailure records a handler failure before retry.
func RecordProjectionFailure(projection string) {
	ProjectionHandlerFailures.WithLabelValues(projection).Inc()
}

// UpdateProjectionCheckpoint updates the checkpoint gauge for a projection.
func UpdateProjectionCheckpoint(projection string, seq int64) {
	ProjectionCheckpoint.WithLabelValues(projection).Set(float64(seq))
}

// RecordProjectionRebuild records a completed rebuild.
func RecordProjectionRebuild(projection string, duration time.Duration, err error) {
	ProjectionRebuildDuration.WithLabelValues(projection).Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	ProjectionRebuildsTotal.WithLabelValues(projection, result).Inc()
}

// RecordDLQEntry records an event being added to the DLQ.
func RecordDLQEntry(category string) {
	DLQMessagesAdded.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Inc()
}

// RecordDLQRemoval records an event being successfully removed from the DLQ.
func RecordDLQRemoval(category string) {
	DLQMessagesRemoved.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Dec()
}

// RecordDLQExpiry records an event expiring from the DLQ.
func RecordDLQExpiry(category string) {
	DLQMessagesExpired.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Dec()
}

// RecordDLQRetry records a retry attempt and its outcome.
func RecordDLQRetry(success bool) {
	DLQRetryAttempts.Inc()
	if success {
		DLQRetrySuccesses.Inc()
	} else {
		DLQRetryFailures.Inc()
	}
}

// UpdateDLQGauges updates DLQ gauge metrics with current stats.
func UpdateDLQGauges(totalEntries int64, oldestEntryAge float64, entriesByCategory map[string]int64) {
	DLQEntriesTotal.Set(float64(totalEntries))
	DLQOldestEntryAge.Set(oldestEntryAge)
	for category, count := range entriesByCategory {
		DLQEntriesByCategory.WithLabelValues(category).Set(float64(count))
	}
}

// RecordCommand records a dispatched command and its outcome.
func RecordCommand(kind, result string, duration time.Duration) {
	CommandsTotal.WithLabelValues(kind, result).Inc()
	CommandDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordQuery records a dispatched query and its outcome.
func RecordQuery(kind, result string, duration time.Duration) {
	QueriesTotal.WithLabelValues(kind, result).Inc()
	QueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAggregateReplay records the number of events replayed for one load.
func RecordAggregateReplay(events int) {
	AggregateReplayEvents.Observe(float64(events))
}
