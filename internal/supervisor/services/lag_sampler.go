// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package services

import (
	"context"
	"time"

	"github.com/touchlinehq/touchline/internal/logging"
)

// defaultSampleInterval is how often the lag gauges are refreshed when no
// interval is configured.
const defaultSampleInterval = 30 * time.Second

// LagSource reports how far the slowest projection trails the head of the
// event log, refreshing the per-projection gauges as a side effect.
// Satisfied by *projection.Manager.
type LagSource interface {
	Lag(ctx context.Context) (int64, error)
}

// LagSamplerService periodically samples projection lag so the gauges stay
// fresh between queries. Sampling failures are logged and the loop keeps
// going; observability must never crash the tree.
type LagSamplerService struct {
	source   LagSource
	interval time.Duration
	name     string
}

// NewLagSamplerService creates a lag sampler. interval <= 0 selects the
// default.
func NewLagSamplerService(source LagSource, interval time.Duration) *LagSamplerService {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	return &LagSamplerService{
		source:   source,
		interval: interval,
		name:     "projection-lag-sampler",
	}
}

// Serve implements suture.Service.
func (s *LagSamplerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.source.Lag(ctx); err != nil {
				logging.Warn().
					Err(err).
					Str("component", "supervisor").
					Msg("Projection lag sample failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor log messages.
func (s *LagSamplerService) String() string {
	return s.name
}
