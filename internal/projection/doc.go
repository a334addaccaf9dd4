// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package projection derives the read models from the event log.

A Projection is a named set of event handlers plus a Reset. The Manager
runs every registered projection against the committed event flow:

  - Live path: one durable JetStream consumer per projection delivers
    events in global-sequence order through a Watermill router. Each
    projection tracks a checkpoint (last applied global sequence) persisted
    in the read database, so duplicates from at-least-once delivery are
    skipped and restarts resume in place.
  - Catch-up path: on start the Manager scans the event log past each
    checkpoint before going live, which heals gaps left by publish failures
    or downtime beyond the stream's retention.
  - Rebuild path: Rebuild pauses live delivery for one projection, resets
    its tables, and replays the full log rate-limited from sequence zero.
    Handlers are idempotent upserts, so rebuilds converge whether they
    start from empty or from populated state.

Failure isolation is per (projection, event) pair: a handler error is
retried in place with exponential backoff, and when retries are exhausted
the event is parked in the dead letter queue for that projection only.
Consumption continues; the DLQ retry worker re-drives parked events in the
background and the entries survive restarts in the read database.
*/
package projection
