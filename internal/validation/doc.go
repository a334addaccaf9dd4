// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with custom validators and human-readable error
// messages. Commands entering the application service are validated here before
// any aggregate is loaded.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Custom stream_id validator for match and aggregate identifiers
//   - Comprehensive error translation to human-readable messages
//   - Structured Details() output for logs and domain errors
//
// # Quick Start
//
//	type CreateMatchCommand struct {
//	    MatchID    string `validate:"required,stream_id"`
//	    HomeTeamID string `validate:"required,min=1,max=64"`
//	    AwayTeamID string `validate:"required,min=1,max=64"`
//	}
//
//	if verr := validation.ValidateStruct(&cmd); verr != nil {
//	    return domain.NewValidationError(verr.Error())
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - uuid: Valid UUID format
//   - stream_id: Valid match/aggregate identifier (custom)
//
// Numeric validations:
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - gt=n: Greater than n
//   - lt=n: Less than n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # Custom Validators
//
// stream_id constrains identifiers used as event stream names: they must
// start with a lowercase letter or digit and contain only lowercase letters,
// digits, hyphens and underscores, 64 characters maximum. This keeps stream
// identifiers safe to embed in stream subjects and storage keys.
//
// # Error Types
//
// FieldError represents a single field validation failure with accessors for
// Field(), Tag(), Param(), Value() and Error(). StructValidationError
// aggregates multiple field errors and exposes Errors(), a combined Error()
// message and a structured Details() map.
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&cmd) // Thread-safe
//
// # Performance
//
// The validator caches struct reflection information:
//   - First validation of a struct type: ~1ms (reflection + caching)
//   - Subsequent validations: ~10us (cached)
//
// # See Also
//
//   - internal/app: Command handlers using validation
//   - github.com/go-playground/validator/v10: Underlying library
package validation
