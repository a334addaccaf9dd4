// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for every setting
//  2. Config File: optional YAML file (config.yaml) for persistent settings
//  3. Environment Variables: override any setting
//
// Configuration Categories:
//
//  1. Storage:
//     - EventStore: DuckDB file holding the append-only event log
//     - ReadModels: DuckDB file holding the projected read models
//     - Snapshots: BadgerDB directory holding aggregate snapshots
//
//  2. Streaming:
//     - NATS: JetStream transport carrying committed events to projections
//
//  3. Processing:
//     - Projections: consumer, retry, DLQ and rebuild settings
//     - Service: command pipeline settings (snapshot threshold, timeouts)
//
//  4. Observability:
//     - Logging: log levels and output formats
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	EventStore  DatabaseConfig   `koanf:"event_store"`
	ReadModels  DatabaseConfig   `koanf:"read_models"`
	Snapshots   SnapshotConfig   `koanf:"snapshots"`
	NATS        NATSConfig       `koanf:"nats"`
	Projections ProjectionConfig `koanf:"projections"`
	Service     ServiceConfig    `koanf:"service"`
	Logging     LoggingConfig    `koanf:"logging"`
}

// DatabaseConfig holds DuckDB settings for one database file. The event
// store and the read-model store each get their own instance so the CQRS
// sides stay physically separate.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`                  // Number of DuckDB threads (0 = use NumCPU)
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"` // Whether to preserve insertion order (default true)
}

// SnapshotConfig holds aggregate snapshot storage settings.
type SnapshotConfig struct {
	// Dir is the BadgerDB directory for snapshot storage.
	Dir string `koanf:"dir"`

	// InMemory runs the snapshot store without disk persistence (tests).
	InMemory bool `koanf:"in_memory"`

	// Interval is the number of events between automatic snapshots.
	// A snapshot is taken (best-effort, async) when an aggregate has
	// accumulated at least this many events past the previous snapshot.
	Interval int `koanf:"interval"`

	// GCInterval is how often Badger value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// NATSConfig holds the JetStream transport settings for committed-event
// delivery to the projection consumers.
type NATSConfig struct {
	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer enables the in-process NATS server.
	// If false, expects an external NATS server at URL.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory (embedded server only).
	StoreDir string `koanf:"store_dir"`

	// MaxMemory is the maximum memory for JetStream in bytes.
	MaxMemory int64 `koanf:"max_memory"`

	// MaxStore is the maximum disk storage for JetStream in bytes.
	MaxStore int64 `koanf:"max_store"`

	// StreamName is the JetStream stream holding domain events.
	StreamName string `koanf:"stream_name"`

	// SubjectPrefix is the subject namespace events are published under.
	// The full subject is "{prefix}.{aggregateType}.{streamID}".
	SubjectPrefix string `koanf:"subject_prefix"`

	// StreamRetentionDays is how long the stream retains events. The
	// DuckDB event log is the source of truth; the stream is a delivery
	// buffer, so bounded retention is safe.
	StreamRetentionDays int `koanf:"stream_retention_days"`

	// DurableName prefixes the durable consumer names.
	DurableName string `koanf:"durable_name"`

	// QueueGroup prefixes the queue group names.
	QueueGroup string `koanf:"queue_group"`

	// PublishTimeout bounds a single publish await.
	PublishTimeout time.Duration `koanf:"publish_timeout"`

	// Router middleware settings (Watermill Router).
	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterThrottlePerSecond    int           `koanf:"router_throttle_per_second"` // 0 = unlimited
	RouterPoisonQueueEnabled   bool          `koanf:"router_poison_queue_enabled"`
	RouterPoisonQueueTopic     string        `koanf:"router_poison_queue_topic"`
	RouterCloseTimeout         time.Duration `koanf:"router_close_timeout"`
}

// ProjectionConfig holds projection consumption, retry and rebuild settings.
type ProjectionConfig struct {
	// Enabled lists the projections to run. Empty means all built-ins.
	Enabled []string `koanf:"enabled"`

	// MaxRetries is how many times a failing handler is retried in place
	// before the event is dead-lettered for that projection.
	MaxRetries int `koanf:"max_retries"`

	// RetryInitialBackoff is the first retry delay; it doubles per attempt.
	RetryInitialBackoff time.Duration `koanf:"retry_initial_backoff"`

	// RetryMaxBackoff caps the exponential backoff.
	RetryMaxBackoff time.Duration `koanf:"retry_max_backoff"`

	// DLQMaxEntries bounds the dead-letter queue; the oldest entry is
	// evicted when full.
	DLQMaxEntries int `koanf:"dlq_max_entries"`

	// DLQRetryInterval is how often the DLQ retry worker scans for due
	// entries. Zero disables automatic retry.
	DLQRetryInterval time.Duration `koanf:"dlq_retry_interval"`

	// RebuildEventsPerSecond rate-limits event replay during a projection
	// rebuild so a rebuild cannot starve the write path. 0 = unlimited.
	RebuildEventsPerSecond int `koanf:"rebuild_events_per_second"`

	// CheckpointInterval is how many events a projection may process
	// between checkpoint writes.
	CheckpointInterval int `koanf:"checkpoint_interval"`
}

// ServiceConfig holds command/query pipeline settings.
type ServiceConfig struct {
	// SnapshotThreshold is the event count past the latest snapshot that
	// triggers an automatic snapshot after a successful append.
	SnapshotThreshold int `koanf:"snapshot_threshold"`

	// CommandTimeout bounds a single command execution end to end.
	CommandTimeout time.Duration `koanf:"command_timeout"`

	// Environment is the deployment mode: development, staging, production.
	Environment string `koanf:"environment"`
}

// LoggingConfig holds logging level and format settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration using the layered Koanf pipeline.
// It is the single entry point main() uses.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
