// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package config

import (
	"fmt"
	"strings"
)

// knownProjections are the built-in projection names accepted by
// projections.enabled.
var knownProjections = map[string]bool{
	"match_summary":     true,
	"team_metrics":      true,
	"metric_timeseries": true,
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateProjections(); err != nil {
		return err
	}

	if err := c.validateService(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateStorage validates the DuckDB and snapshot storage settings.
func (c *Config) validateStorage() error {
	if c.EventStore.Path == "" {
		return fmt.Errorf("EVENT_STORE_PATH must not be empty")
	}
	if c.ReadModels.Path == "" {
		return fmt.Errorf("READ_MODELS_PATH must not be empty")
	}
	if c.EventStore.Path == c.ReadModels.Path && c.EventStore.Path != ":memory:" {
		return fmt.Errorf("event store and read models must use separate database files, both set to %s", c.EventStore.Path)
	}
	if c.EventStore.Threads < 0 {
		return fmt.Errorf("EVENT_STORE_THREADS must not be negative, got %d", c.EventStore.Threads)
	}
	if c.ReadModels.Threads < 0 {
		return fmt.Errorf("READ_MODELS_THREADS must not be negative, got %d", c.ReadModels.Threads)
	}

	if !c.Snapshots.InMemory && c.Snapshots.Dir == "" {
		return fmt.Errorf("SNAPSHOT_DIR is required unless SNAPSHOT_IN_MEMORY=true")
	}
	if c.Snapshots.Interval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive, got %d", c.Snapshots.Interval)
	}

	return nil
}

// validateNATS validates the JetStream transport settings.
func (c *Config) validateNATS() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL must not be empty")
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://, got %s", c.NATS.URL)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if c.NATS.StreamName == "" {
		return fmt.Errorf("NATS_STREAM_NAME must not be empty")
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT_PREFIX must not be empty")
	}
	if strings.ContainsAny(c.NATS.SubjectPrefix, " >*") {
		return fmt.Errorf("NATS_SUBJECT_PREFIX must not contain wildcards or spaces, got %q", c.NATS.SubjectPrefix)
	}
	if c.NATS.StreamRetentionDays <= 0 {
		return fmt.Errorf("NATS_RETENTION_DAYS must be positive, got %d", c.NATS.StreamRetentionDays)
	}
	if c.NATS.RouterRetryCount < 0 {
		return fmt.Errorf("NATS_ROUTER_RETRY_COUNT must not be negative, got %d", c.NATS.RouterRetryCount)
	}
	return nil
}

// validateProjections validates consumption and rebuild settings.
func (c *Config) validateProjections() error {
	for _, name := range c.Projections.Enabled {
		if !knownProjections[name] {
			return fmt.Errorf("PROJECTIONS_ENABLED contains unknown projection %q", name)
		}
	}
	if c.Projections.MaxRetries < 0 {
		return fmt.Errorf("PROJECTION_MAX_RETRIES must not be negative, got %d", c.Projections.MaxRetries)
	}
	if c.Projections.DLQMaxEntries <= 0 {
		return fmt.Errorf("PROJECTION_DLQ_MAX_ENTRIES must be positive, got %d", c.Projections.DLQMaxEntries)
	}
	if c.Projections.RebuildEventsPerSecond < 0 {
		return fmt.Errorf("PROJECTION_REBUILD_RATE must not be negative, got %d", c.Projections.RebuildEventsPerSecond)
	}
	if c.Projections.CheckpointInterval <= 0 {
		return fmt.Errorf("PROJECTION_CHECKPOINT_INTERVAL must be positive, got %d", c.Projections.CheckpointInterval)
	}
	return nil
}

// validateService validates the command pipeline settings.
func (c *Config) validateService() error {
	if c.Service.SnapshotThreshold <= 0 {
		return fmt.Errorf("SERVICE_SNAPSHOT_THRESHOLD must be positive, got %d", c.Service.SnapshotThreshold)
	}
	if c.Service.CommandTimeout <= 0 {
		return fmt.Errorf("SERVICE_COMMAND_TIMEOUT must be positive, got %s", c.Service.CommandTimeout)
	}
	switch c.Service.Environment {
	case "development", "staging", "production":
		return nil
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", c.Service.Environment)
	}
}

// validateLogging validates level and format values.
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT %q is not valid (json or console)", c.Logging.Format)
	}
}
