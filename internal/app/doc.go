// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

/*
Package app is the application service: the single entry point through which
commands mutate match analytics and queries read them.

Commands and queries are plain structs carrying an explicit Kind tag.
Dispatch goes through a static registry built at construction; there is no
reflection and no global handler table. Unknown kinds fail with
UnknownCommandError or UnknownQueryError.

Every command runs the same pipeline:

	validate -> load aggregate (snapshot + replay) -> business method ->
	append with expected version -> publish to the stream -> mark committed
	-> async snapshot when due

A stale expected version surfaces as ConcurrencyConflictError and nothing is
written; the caller decides whether to reload and retry. Publishing and
snapshotting never fail a command: projections heal missed publishes from
the event log on their next catch-up scan, and snapshots are a pure replay
optimization.

Queries never touch the event log. They read the projected tables, which lag
the write side by at most one projection cycle.
*/
package app
