// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/logging"
	"github.com/touchlinehq/touchline/internal/metrics"
)

// ErrorCategory classifies handler failures for DLQ routing and metrics.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryConnection
	CategoryTimeout
	CategoryValidation
	CategoryStorage
	CategoryCapacity
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryTimeout:
		return "timeout"
	case CategoryValidation:
		return "validation"
	case CategoryStorage:
		return "storage"
	case CategoryCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// categoryFromString is the inverse of String, for rehydrating persisted
// entries.
func categoryFromString(s string) ErrorCategory {
	switch s {
	case "connection":
		return CategoryConnection
	case "timeout":
		return CategoryTimeout
	case "validation":
		return CategoryValidation
	case "storage":
		return CategoryStorage
	case "capacity":
		return CategoryCapacity
	default:
		return CategoryUnknown
	}
}

// Categorize maps an error to its category. Typed errors win; otherwise the
// message is sniffed for well-known failure vocabulary.
func Categorize(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryUnknown
	case domain.IsValidation(err) || domain.IsUnknownTeam(err):
		return CategoryValidation
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case domain.IsStorage(err):
		return CategoryStorage
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection", "connect", "refused", "reset", "network"):
		return CategoryConnection
	case containsAny(msg, "timeout", "deadline", "timed out"):
		return CategoryTimeout
	case containsAny(msg, "invalid", "validation", "malformed", "parse", "unmarshal"):
		return CategoryValidation
	case containsAny(msg, "database", "sql", "query", "storage"):
		return CategoryStorage
	case containsAny(msg, "capacity", "full", "limit", "exceeded"):
		return CategoryCapacity
	default:
		return CategoryUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// PermanentError marks a failure that retrying cannot fix, such as a payload
// that does not decode. The DLQ keeps permanent entries for inspection but
// never schedules them for retry.
type PermanentError struct {
	Message string
	Cause   error
}

// NewPermanentError wraps cause as non-retryable.
func NewPermanentError(message string, cause error) *PermanentError {
	return &PermanentError{Message: message, Cause: cause}
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether err is marked permanent, directly or through
// its category: validation failures cannot succeed on retry either.
func IsPermanent(err error) bool {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return true
	}
	return domain.IsValidation(err) || domain.IsUnknownTeam(err)
}

// Entry is one parked (projection, event) failure.
type Entry struct {
	Projection    string
	Event         eventstore.RecordedEvent
	OriginalError string
	LastError     string
	RetryCount    int
	FirstFailure  time.Time
	LastFailure   time.Time
	NextRetry     time.Time
	Category      ErrorCategory
	Permanent     bool
}

// entryKey keys DLQ entries so the same event can be parked independently
// per projection.
func entryKey(projection, eventID string) string {
	return projection + "/" + eventID
}

// DLQConfig holds dead letter queue settings.
type DLQConfig struct {
	// MaxRetries bounds background retries per entry; exhausted entries
	// stay parked until retention cleanup or manual removal.
	MaxRetries int

	// MaxEntries bounds the queue; the oldest entry is evicted when full.
	MaxEntries int

	// Retention is how long entries are kept before cleanup.
	Retention time.Duration

	// InitialBackoff, MaxBackoff and BackoffMultiplier shape the retry
	// schedule.
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// JitterFraction randomizes each backoff by ±fraction.
	JitterFraction float64

	// RandomSeed fixes the jitter source for deterministic tests;
	// zero seeds from the clock.
	RandomSeed int64
}

// DefaultDLQConfig returns production defaults.
func DefaultDLQConfig() DLQConfig {
	return DLQConfig{
		MaxRetries:        5,
		MaxEntries:        10000,
		Retention:         7 * 24 * time.Hour,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// DLQStats is a point-in-time view of queue state.
type DLQStats struct {
	Entries           int64
	Added             int64
	Removed           int64
	Retries           int64
	Expired           int64
	OldestEntry       time.Time
	EntriesByCategory map[ErrorCategory]int64
}

// DLQ parks events whose projection handlers failed after in-place retries.
// Entries are retried in the background on an exponential backoff schedule
// and optionally persisted so they survive restarts.
type DLQ struct {
	cfg     DLQConfig
	entries *minHeap[*Entry]
	store   *DLQStore // optional persistence

	added   atomic.Int64
	removed atomic.Int64
	retries atomic.Int64
	expired atomic.Int64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewDLQ creates a dead letter queue. store may be nil for purely
// in-memory operation.
func NewDLQ(cfg DLQConfig, store *DLQStore) (*DLQ, error) {
	if cfg.MaxRetries <= 0 {
		return nil, errors.New("dlq max retries must be positive")
	}
	if cfg.MaxEntries <= 0 {
		return nil, errors.New("dlq max entries must be positive")
	}
	if cfg.InitialBackoff <= 0 {
		return nil, errors.New("dlq initial backoff must be positive")
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = cfg.InitialBackoff * 64
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.JitterFraction <= 0 || cfg.JitterFraction > 1.0 {
		cfg.JitterFraction = 0.1
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &DLQ{
		cfg:     cfg,
		entries: newMinHeap[*Entry](cfg.MaxEntries),
		store:   store,
		//nolint:gosec // G404: non-cryptographic jitter
		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Add parks a failed event. The entry becomes due for retry after the
// initial backoff, unless the error is permanent.
func (q *DLQ) Add(projection string, rec eventstore.RecordedEvent, cause error) *Entry {
	now := time.Now()
	entry := &Entry{
		Projection:    projection,
		Event:         rec,
		OriginalError: cause.Error(),
		LastError:     cause.Error(),
		FirstFailure:  now,
		LastFailure:   now,
		NextRetry:     now.Add(q.backoff(0)),
		Category:      Categorize(cause),
		Permanent:     IsPermanent(cause),
	}

	evicted := q.entries.push(entryKey(projection, rec.EventID), entry, entry.FirstFailure)
	if evicted != nil {
		q.expired.Add(1)
		metrics.RecordDLQExpiry(evicted.value.Category.String())
		q.deleteStored(evicted.value)
	}

	q.added.Add(1)
	metrics.RecordDLQEntry(entry.Category.String())
	logging.Warn().
		Str("projection", projection).
		Str("event_id", rec.EventID).
		Str("event_type", string(rec.EventType)).
		Str("category", entry.Category.String()).
		Bool("permanent", entry.Permanent).
		Str("error", entry.OriginalError).
		Msg("Event dead-lettered")

	q.saveStored(entry)
	return entry
}

// Get returns the parked entry for a (projection, event) pair, or nil.
func (q *DLQ) Get(projection, eventID string) *Entry {
	item := q.entries.get(entryKey(projection, eventID))
	if item == nil {
		return nil
	}
	return item.value
}

// IncrementRetry records a failed background retry and schedules the next
// one. It returns false when the retry budget is exhausted.
func (q *DLQ) IncrementRetry(projection, eventID string, cause error) bool {
	item := q.entries.get(entryKey(projection, eventID))
	if item == nil {
		return false
	}

	entry := item.value
	entry.RetryCount++
	entry.LastError = cause.Error()
	entry.LastFailure = time.Now()
	entry.NextRetry = time.Now().Add(q.backoff(entry.RetryCount))
	q.retries.Add(1)

	q.saveStored(entry)
	return entry.RetryCount < q.cfg.MaxRetries
}

// Remove drops an entry, typically after a successful retry. It reports
// whether the entry existed.
func (q *DLQ) Remove(projection, eventID string) bool {
	item := q.entries.remove(entryKey(projection, eventID))
	if item == nil {
		return false
	}

	q.removed.Add(1)
	metrics.RecordDLQRemoval(item.value.Category.String())
	q.deleteStored(item.value)
	return true
}

// PendingRetries returns entries due for retry now. Permanent entries and
// entries past their retry budget are excluded.
func (q *DLQ) PendingRetries() []*Entry {
	now := time.Now()
	var due []*Entry
	for _, item := range q.entries.all() {
		entry := item.value
		if entry.Permanent || entry.RetryCount >= q.cfg.MaxRetries {
			continue
		}
		if !entry.NextRetry.After(now) {
			due = append(due, entry)
		}
	}
	return due
}

// Entries returns every parked entry.
func (q *DLQ) Entries() []*Entry {
	items := q.entries.all()
	entries := make([]*Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, item.value)
	}
	return entries
}

// Cleanup drops entries older than the retention window and returns how
// many were dropped.
func (q *DLQ) Cleanup() int {
	cutoff := time.Now().Add(-q.cfg.Retention)
	dropped := q.entries.popBefore(cutoff)
	for _, item := range dropped {
		q.expired.Add(1)
		metrics.RecordDLQExpiry(item.value.Category.String())
		q.deleteStored(item.value)
	}
	if q.store != nil && len(dropped) > 0 {
		q.expireStored(cutoff)
	}
	return len(dropped)
}

// Stats snapshots queue state and refreshes the DLQ gauges.
func (q *DLQ) Stats() DLQStats {
	stats := DLQStats{
		Entries:           int64(q.entries.len()),
		Added:             q.added.Load(),
		Removed:           q.removed.Load(),
		Retries:           q.retries.Load(),
		Expired:           q.expired.Load(),
		EntriesByCategory: make(map[ErrorCategory]int64),
	}

	for _, item := range q.entries.all() {
		entry := item.value
		stats.EntriesByCategory[entry.Category]++
		if stats.OldestEntry.IsZero() || entry.FirstFailure.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.FirstFailure
		}
	}

	oldestAge := float64(0)
	if !stats.OldestEntry.IsZero() {
		oldestAge = time.Since(stats.OldestEntry).Seconds()
	}
	byCategory := make(map[string]int64, len(stats.EntriesByCategory))
	for cat, count := range stats.EntriesByCategory {
		byCategory[cat.String()] = count
	}
	metrics.UpdateDLQGauges(stats.Entries, oldestAge, byCategory)

	return stats
}

// LoadPersisted rehydrates parked entries from the store on startup.
func (q *DLQ) LoadPersisted(ctx context.Context) error {
	if q.store == nil {
		return nil
	}

	entries, err := q.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		q.entries.push(entryKey(entry.Projection, entry.Event.EventID), entry, entry.FirstFailure)
	}
	if len(entries) > 0 {
		logging.Info().Int("entries", len(entries)).Msg("Rehydrated dead letter queue from read database")
	}
	return nil
}

// backoff computes the delay before retry number retryCount, exponentially
// grown, capped and jittered by ±JitterFraction.
func (q *DLQ) backoff(retryCount int) time.Duration {
	d := float64(q.cfg.InitialBackoff) * math.Pow(q.cfg.BackoffMultiplier, float64(retryCount))
	if d > float64(q.cfg.MaxBackoff) {
		d = float64(q.cfg.MaxBackoff)
	}

	q.rngMu.Lock()
	jitter := d * q.cfg.JitterFraction * (q.rng.Float64()*2 - 1)
	q.rngMu.Unlock()

	return time.Duration(d + jitter)
}

// saveStored persists an entry asynchronously. Persistence is best effort:
// the in-memory queue remains authoritative while the process lives.
func (q *DLQ) saveStored(entry *Entry) {
	if q.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.store.Save(ctx, entry); err != nil {
			logging.Warn().Err(err).
				Str("projection", entry.Projection).
				Str("event_id", entry.Event.EventID).
				Msg("Failed to persist DLQ entry")
		}
	}()
}

func (q *DLQ) deleteStored(entry *Entry) {
	if q.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.store.Delete(ctx, entry.Projection, entry.Event.EventID); err != nil {
			logging.Warn().Err(err).
				Str("projection", entry.Projection).
				Str("event_id", entry.Event.EventID).
				Msg("Failed to delete persisted DLQ entry")
		}
	}()
}

func (q *DLQ) expireStored(cutoff time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := q.store.DeleteExpired(ctx, cutoff); err != nil {
			logging.Warn().Err(err).Msg("Failed to expire persisted DLQ entries")
		}
	}()
}

// RetryHandler re-drives one parked entry. A nil return removes the entry
// from the queue.
type RetryHandler func(ctx context.Context, entry *Entry) error

// RetryWorkerConfig shapes the background retry loop.
type RetryWorkerConfig struct {
	// Interval is how often the worker scans for due entries.
	Interval time.Duration

	// MaxConcurrent bounds simultaneous retries.
	MaxConcurrent int
}

// DefaultRetryWorkerConfig returns production defaults.
func DefaultRetryWorkerConfig() RetryWorkerConfig {
	return RetryWorkerConfig{
		Interval:      30 * time.Second,
		MaxConcurrent: 5,
	}
}

// RetryWorker periodically re-drives due DLQ entries and runs retention
// cleanup. It is supervision-friendly: Run blocks until ctx is done.
type RetryWorker struct {
	dlq     *DLQ
	handler RetryHandler
	cfg     RetryWorkerConfig
}

// NewRetryWorker creates a retry worker bound to one DLQ.
func NewRetryWorker(dlq *DLQ, handler RetryHandler, cfg RetryWorkerConfig) *RetryWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRetryWorkerConfig().Interval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultRetryWorkerConfig().MaxConcurrent
	}
	return &RetryWorker{dlq: dlq, handler: handler, cfg: cfg}
}

// Run drives the retry loop until ctx is canceled.
func (w *RetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.dlq.Cleanup()
			w.processDue(ctx)
			w.dlq.Stats()
		}
	}
}

// processDue retries every due entry, bounded by MaxConcurrent.
func (w *RetryWorker) processDue(ctx context.Context) {
	due := w.dlq.PendingRetries()
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, w.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for _, entry := range due {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(e *Entry) {
			defer func() {
				<-sem
				wg.Done()
			}()
			w.retryOne(ctx, e)
		}(entry)
	}

	wg.Wait()
}

// retryOne re-drives a single entry and records the outcome.
func (w *RetryWorker) retryOne(ctx context.Context, entry *Entry) {
	err := w.handler(ctx, entry)
	if err != nil {
		metrics.RecordDLQRetry(false)
		more := w.dlq.IncrementRetry(entry.Projection, entry.Event.EventID, err)
		if !more {
			logging.Error().
				Str("projection", entry.Projection).
				Str("event_id", entry.Event.EventID).
				Int("retries", entry.RetryCount).
				Str("error", entry.LastError).
				Msg("DLQ retry budget exhausted, entry parked until retention cleanup")
		}
		return
	}

	metrics.RecordDLQRetry(true)
	w.dlq.Remove(entry.Projection, entry.Event.EventID)
	logging.Info().
		Str("projection", entry.Projection).
		Str("event_id", entry.Event.EventID).
		Msg("Dead-lettered event reprocessed")
}
