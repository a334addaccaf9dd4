// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

// Package logging provides centralized zerolog-based structured logging
// for Touchline.
//
// All components log through a single global zerolog logger so that the
// write path, the projection consumers, and the supervision tree emit a
// uniform stream: JSON in production, human-readable console output in
// development.
//
// # Quick Start
//
//	import "github.com/touchlinehq/touchline/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log messages
//	logging.Info().Str("stream", streamID).Msg("events appended")
//	logging.Error().Err(err).Msg("append failed")
//
//	// With context (correlation ID)
//	logging.Ctx(ctx).Info().Str("match", matchID).Msg("command handled")
//
// # Component Loggers
//
// Long-lived components derive a child logger once and reuse it:
//
//	logger := logging.With().Str("component", "projection").Logger()
//	logger.Info().Str("projection", name).Msg("rebuild started")
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of string formatting:
//
//	logging.Info().Str("match", m).Int("events", n).Msg("replayed")  // Correct
//	logging.Info().Msgf("replayed %d events for %s", n, m)           // Avoid
package logging
