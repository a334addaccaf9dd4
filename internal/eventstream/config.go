// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package eventstream

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/touchlinehq/touchline/internal/config"
)

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// ServerConfigFromNATS derives embedded server settings from the central
// NATS configuration. Host and port come from the connection URL so the
// embedded server listens exactly where clients will dial.
func ServerConfigFromNATS(cfg *config.NATSConfig) (ServerConfig, error) {
	host, port, err := splitNATSURL(cfg.URL)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Host:              host,
		Port:              port,
		StoreDir:          cfg.StoreDir,
		JetStreamMaxMem:   cfg.MaxMemory,
		JetStreamMaxStore: cfg.MaxStore,
	}, nil
}

// splitNATSURL extracts host and port from a nats:// URL.
func splitNATSURL(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS URL %q: %w", rawURL, err)
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		// URL without an explicit port
		return u.Host, 4222, nil //nolint:nilerr // default port fallback
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS port %q: %w", portStr, err)
	}

	return host, port, nil
}

// StreamConfig defines the domain event stream settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// StreamConfigFromNATS derives stream settings from the central NATS
// configuration. The stream captures every subject under the configured
// prefix; bounded retention is safe because the DuckDB event log, not the
// stream, is the system of record.
func StreamConfigFromNATS(cfg *config.NATSConfig) StreamConfig {
	return StreamConfig{
		Name:            cfg.StreamName,
		Subjects:        []string{cfg.SubjectPrefix + ".>"},
		MaxAge:          time.Duration(cfg.StreamRetentionDays) * 24 * time.Hour,
		MaxBytes:        -1,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// PublisherConfig holds publisher connection and delivery settings.
type PublisherConfig struct {
	URL              string
	SubjectPrefix    string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool //nolint:revive // ID is correct per Go conventions
	PublishTimeout   time.Duration
}

// PublisherConfigFromNATS derives publisher settings from the central NATS
// configuration. The url parameter wins over cfg.URL so the caller can pass
// the embedded server's actual client URL.
func PublisherConfigFromNATS(cfg *config.NATSConfig, url string) PublisherConfig {
	if url == "" {
		url = cfg.URL
	}

	return PublisherConfig{
		URL:              url,
		SubjectPrefix:    cfg.SubjectPrefix,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
		EnableTrackMsgID: true,
		PublishTimeout:   cfg.PublishTimeout,
	}
}

// SubscriberConfig holds durable consumer settings for one consumer group.
type SubscriberConfig struct {
	URL              string
	StreamName       string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
}

// SubscriberConfigFor derives settings for a named consumer group. Each
// projection gets its own durable name and queue group so every group sees
// the full event flow while instances within a group share it.
//
// SubscribersCount is fixed at 1: projections must apply events in global
// sequence order, and concurrent consumers within one group would interleave.
func SubscriberConfigFor(cfg *config.NATSConfig, url, consumer string) SubscriberConfig {
	if url == "" {
		url = cfg.URL
	}

	return SubscriberConfig{
		URL:              url,
		StreamName:       cfg.StreamName,
		DurableName:      cfg.DurableName + "-" + consumer,
		QueueGroup:       cfg.QueueGroup + "-" + consumer,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     cfg.RouterCloseTimeout,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// CircuitBreakerConfig holds circuit breaker settings for publish protection.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Consecutive failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
