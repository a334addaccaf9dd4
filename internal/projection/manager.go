// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/time/rate"

	"github.com/touchlinehq/touchline/internal/config"
	"github.com/touchlinehq/touchline/internal/domain"
	"github.com/touchlinehq/touchline/internal/eventstore"
	"github.com/touchlinehq/touchline/internal/eventstream"
	"github.com/touchlinehq/touchline/internal/logging"
	"github.com/touchlinehq/touchline/internal/metrics"
)

// defaultScanBatch is the page size for event log scans during catch-up and
// rebuild.
const defaultScanBatch = 500

// SubscriberFactory creates one durable subscriber per projection. The
// consumer name keys the durable JetStream consumer and its queue group, so
// each projection tracks its own stream position.
type SubscriberFactory func(consumer string) (message.Subscriber, error)

// registration is one projection's runtime state. The mutex serializes event
// application against rebuilds; the counters are read lock-free by the
// introspection methods.
type registration struct {
	projection Projection
	handlers   map[domain.EventType]HandlerFunc

	mu sync.Mutex

	checkpoint atomic.Int64 // highest global sequence already reflected
	processed  atomic.Int64 // events applied, lifetime
	unsynced   atomic.Int64 // events since the last checkpoint write
}

func (r *registration) name() string {
	return r.projection.Name()
}

// ManagerOptions wires a Manager. Store and DLQ are required. Checkpoints may
// be nil for purely in-memory operation (positions reset on restart). Router,
// Subscribers and Topic enable the live tail; leaving them nil yields a
// catch-up-only manager, which is how tests drive it.
type ManagerOptions struct {
	Store       eventstore.Store
	Checkpoints *CheckpointStore
	DLQ         *DLQ
	Router      *Router
	Subscribers SubscriberFactory
	Topic       string
	Config      config.ProjectionConfig

	// ScanBatch overrides the catch-up/rebuild page size. 0 = default.
	ScanBatch int
}

// Manager owns the read side: it registers projections, replays the event
// log to catch them up on start, tails the stream for live events, persists
// checkpoints, and coordinates rebuilds. Failed events are parked in the DLQ
// per projection while the checkpoint advances, so one poisoned event never
// stalls the read side.
type Manager struct {
	store       eventstore.Store
	checkpoints *CheckpointStore
	dlq         *DLQ
	router      *Router
	subscribers SubscriberFactory
	topic       string
	cfg         config.ProjectionConfig
	batch       int

	mu      sync.Mutex
	regs    map[string]*registration
	order   []string
	started bool
	closers []io.Closer

	workerCancel context.CancelFunc
	workerDone   chan struct{}
}

// NewManager creates a projection manager. Projections are added with
// Register before Start.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("event store required")
	}
	if opts.DLQ == nil {
		return nil, errors.New("dead letter queue required")
	}
	if opts.Router != nil {
		if opts.Subscribers == nil {
			return nil, errors.New("subscriber factory required when router is set")
		}
		if opts.Topic == "" {
			return nil, errors.New("topic required when router is set")
		}
	}

	batch := opts.ScanBatch
	if batch <= 0 {
		batch = defaultScanBatch
	}

	return &Manager{
		store:       opts.Store,
		checkpoints: opts.Checkpoints,
		dlq:         opts.DLQ,
		router:      opts.Router,
		subscribers: opts.Subscribers,
		topic:       opts.Topic,
		cfg:         opts.Config,
		batch:       batch,
		regs:        make(map[string]*registration),
	}, nil
}

// Register adds a projection. Registration is closed once Start runs.
func (m *Manager) Register(p Projection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot register %q: manager already started", p.Name())
	}
	if _, exists := m.regs[p.Name()]; exists {
		return fmt.Errorf("projection %q already registered", p.Name())
	}

	handlers := p.Handlers()
	if len(handlers) == 0 {
		return fmt.Errorf("projection %q has no handlers", p.Name())
	}

	m.regs[p.Name()] = &registration{projection: p, handlers: handlers}
	m.order = append(m.order, p.Name())
	return nil
}

// Start loads checkpoints, rehydrates the DLQ, replays the event log gap,
// and begins tailing the stream. It returns once every live handler is
// running; ctx governs the live tail and the DLQ retry worker, so it must
// outlive the manager until Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("projection manager already started")
	}
	if len(m.regs) == 0 {
		m.mu.Unlock()
		return errors.New("no projections registered")
	}
	m.started = true
	m.mu.Unlock()

	if err := m.loadCheckpoints(ctx); err != nil {
		return fmt.Errorf("load checkpoints: %w", err)
	}

	if err := m.dlq.LoadPersisted(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to rehydrate dead letter queue, continuing empty")
	}

	// Close the gap between the stored checkpoints and the head of the
	// log before going live. Durable consumers redeliver anything that
	// lands in between; the checkpoint guard drops those duplicates.
	if err := m.CatchUp(ctx); err != nil {
		return fmt.Errorf("catch up projections: %w", err)
	}
	m.persistCheckpoints(ctx)

	if m.router != nil {
		if err := m.startLiveTail(ctx); err != nil {
			return err
		}
	}

	if m.cfg.DLQRetryInterval > 0 {
		m.startRetryWorker(ctx)
	}

	logging.Info().
		Strs("projections", m.Names()).
		Bool("live_tail", m.router != nil).
		Msg("Projection manager started")
	return nil
}

// startLiveTail creates one durable subscriber per projection and runs the
// router.
func (m *Manager) startLiveTail(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		reg := m.regs[name]
		sub, err := m.subscribers(name)
		if err != nil {
			return fmt.Errorf("create subscriber for %s: %w", name, err)
		}
		m.closers = append(m.closers, sub)
		m.router.AddConsumerHandler("projection_"+name, m.topic, sub, m.liveHandler(reg))
	}

	ready := m.router.RunAsync(ctx)
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startRetryWorker launches the DLQ retry loop on a context the manager can
// cancel independently of ctx.
func (m *Manager) startRetryWorker(ctx context.Context) {
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	worker := NewRetryWorker(m.dlq, m.retryEntry, RetryWorkerConfig{
		Interval: m.cfg.DLQRetryInterval,
	})

	m.mu.Lock()
	m.workerCancel = cancel
	m.workerDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		if err := worker.Run(wctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("DLQ retry worker stopped")
		}
	}()
}

// loadCheckpoints seeds each registration from the checkpoint store.
func (m *Manager) loadCheckpoints(ctx context.Context) error {
	if m.checkpoints == nil {
		return nil
	}

	for _, reg := range m.registrations() {
		cp, found, err := m.checkpoints.Get(ctx, reg.name())
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		reg.checkpoint.Store(cp.LastGlobalSeq)
		reg.processed.Store(cp.EventsProcessed)
		metrics.UpdateProjectionCheckpoint(reg.name(), cp.LastGlobalSeq)
		logging.Debug().
			Str("projection", reg.name()).
			Int64("last_global_seq", cp.LastGlobalSeq).
			Msg("Checkpoint loaded")
	}
	return nil
}

// CatchUp scans the event log from the slowest checkpoint forward and applies
// everything newer than each projection's own checkpoint. It is idempotent
// and safe to call while the live tail is running: the per-registration lock
// and checkpoint guard arbitrate duplicates.
func (m *Manager) CatchUp(ctx context.Context) error {
	regs := m.registrations()
	if len(regs) == 0 {
		return nil
	}

	from := regs[0].checkpoint.Load()
	for _, reg := range regs[1:] {
		if cp := reg.checkpoint.Load(); cp < from {
			from = cp
		}
	}

	var scanned int
	for {
		batch, err := m.store.ReadAll(ctx, from, m.batch)
		if err != nil {
			return fmt.Errorf("read events after %d: %w", from, err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			rec := batch[i]
			for _, reg := range regs {
				m.applyToProjection(ctx, reg, rec)
			}
			from = rec.GlobalSeq
		}
		scanned += len(batch)

		if len(batch) < m.batch {
			break
		}
	}

	if scanned > 0 {
		logging.Info().Int("events", scanned).Msg("Projection catch-up complete")
	}
	return nil
}

// liveHandler adapts one registration to a Watermill handler. It always acks:
// redelivery is owned by the checkpoint and the DLQ, not by JetStream, so a
// failed event parks rather than wedging the consumer.
func (m *Manager) liveHandler(reg *registration) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		metrics.RecordStreamConsume()

		rec, err := eventstream.RecordedFromMessage(msg)
		if err != nil {
			metrics.RecordStreamParseFailed()
			logging.Warn().Err(err).
				Str("message_uuid", msg.UUID).
				Str("projection", reg.name()).
				Msg("Dropping undecodable stream message")
			return nil
		}

		m.applyToProjection(msg.Context(), reg, rec)
		return nil
	}
}

// applyToProjection runs one event through one projection under the full
// failure policy: checkpoint guard, in-place retries, then DLQ park. The
// checkpoint advances even when the event parks.
func (m *Manager) applyToProjection(ctx context.Context, reg *registration, rec eventstore.RecordedEvent) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if rec.GlobalSeq <= reg.checkpoint.Load() {
		metrics.RecordProjectionSkipped(reg.name())
		return
	}

	handler, ok := reg.handlers[rec.EventType]
	if !ok {
		m.advance(ctx, reg, rec.GlobalSeq, false)
		metrics.RecordProjectionSkipped(reg.name())
		return
	}

	start := time.Now()
	if err := m.applyWithRetry(ctx, handler, rec); err != nil {
		metrics.RecordProjectionFailure(reg.name())
		m.dlq.Add(reg.name(), rec, err)
		logging.Error().Err(err).
			Str("projection", reg.name()).
			Str("event_id", rec.EventID).
			Str("event_type", string(rec.EventType)).
			Int64("global_seq", rec.GlobalSeq).
			Msg("Projection handler failed, event parked")
		m.advance(ctx, reg, rec.GlobalSeq, false)
		return
	}

	m.advance(ctx, reg, rec.GlobalSeq, true)
	metrics.RecordProjectionProcessed(reg.name(), time.Since(start))
}

// applyWithRetry drives one handler call with bounded exponential backoff.
// Permanent errors short-circuit straight to the DLQ.
func (m *Manager) applyWithRetry(ctx context.Context, handler HandlerFunc, rec eventstore.RecordedEvent) error {
	attempts := m.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	backoff := m.cfg.RetryInitialBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if m.cfg.RetryMaxBackoff > 0 && backoff > m.cfg.RetryMaxBackoff {
				backoff = m.cfg.RetryMaxBackoff
			}
		}

		err = handler(ctx, rec)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
	}
	return err
}

// advance moves a registration's checkpoint forward monotonically and writes
// it through every CheckpointInterval applied events.
func (m *Manager) advance(ctx context.Context, reg *registration, seq int64, applied bool) {
	for {
		cur := reg.checkpoint.Load()
		if seq <= cur {
			return
		}
		if reg.checkpoint.CompareAndSwap(cur, seq) {
			break
		}
	}

	if applied {
		reg.processed.Add(1)
	}
	metrics.UpdateProjectionCheckpoint(reg.name(), seq)

	if interval := int64(m.cfg.CheckpointInterval); interval > 0 {
		if reg.unsynced.Add(1) >= interval {
			reg.unsynced.Store(0)
			m.persistCheckpoint(ctx, reg)
		}
	}
}

// persistCheckpoint writes one registration's position. Failures are logged
// and tolerated: a stale checkpoint only costs duplicate idempotent applies
// on the next start.
func (m *Manager) persistCheckpoint(ctx context.Context, reg *registration) {
	if m.checkpoints == nil {
		return
	}

	cp := Checkpoint{
		Projection:      reg.name(),
		LastGlobalSeq:   reg.checkpoint.Load(),
		EventsProcessed: reg.processed.Load(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := m.checkpoints.Save(ctx, cp); err != nil {
		logging.Warn().Err(err).
			Str("projection", cp.Projection).
			Int64("last_global_seq", cp.LastGlobalSeq).
			Msg("Checkpoint write failed")
	}
}

func (m *Manager) persistCheckpoints(ctx context.Context) {
	for _, reg := range m.registrations() {
		m.persistCheckpoint(ctx, reg)
	}
}

// retryEntry re-drives one parked event through its projection. Used as the
// DLQ retry worker's handler.
func (m *Manager) retryEntry(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	reg, ok := m.regs[entry.Projection]
	m.mu.Unlock()
	if !ok {
		return NewPermanentError("projection not registered: "+entry.Projection, nil)
	}

	handler, ok := reg.handlers[entry.Event.EventType]
	if !ok {
		return NewPermanentError("no handler for event type "+string(entry.Event.EventType), nil)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	return handler(ctx, entry.Event)
}

// Rebuild resets one projection and replays the full event log into it.
// Live deliveries for the projection block for the duration and are then
// dropped by the checkpoint guard. Replay is rate-limited so a rebuild
// cannot starve the write path, and aborts on the first handler error.
func (m *Manager) Rebuild(ctx context.Context, name string) error {
	m.mu.Lock()
	reg, ok := m.regs[name]
	m.mu.Unlock()
	if !ok {
		return domain.NewValidationError("projection", fmt.Sprintf("unknown projection %q", name))
	}

	start := time.Now()
	var rebuildErr error
	defer func() {
		metrics.RecordProjectionRebuild(name, time.Since(start), rebuildErr)
	}()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	logging.Info().Str("projection", name).Msg("Projection rebuild started")

	if err := reg.projection.Reset(ctx); err != nil {
		rebuildErr = fmt.Errorf("reset projection %s: %w", name, err)
		return rebuildErr
	}
	reg.checkpoint.Store(0)
	reg.processed.Store(0)
	reg.unsynced.Store(0)
	if m.checkpoints != nil {
		if err := m.checkpoints.Reset(ctx, name); err != nil {
			rebuildErr = fmt.Errorf("reset checkpoint %s: %w", name, err)
			return rebuildErr
		}
	}

	var limiter *rate.Limiter
	if m.cfg.RebuildEventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.cfg.RebuildEventsPerSecond), m.cfg.RebuildEventsPerSecond)
	}

	var replayed int64
	from := int64(0)
	for {
		batch, err := m.store.ReadAll(ctx, from, m.batch)
		if err != nil {
			rebuildErr = fmt.Errorf("read events after %d: %w", from, err)
			return rebuildErr
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			rec := batch[i]
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					rebuildErr = err
					return rebuildErr
				}
			}

			if handler, ok := reg.handlers[rec.EventType]; ok {
				if err := handler(ctx, rec); err != nil {
					rebuildErr = fmt.Errorf("replay event %s at seq %d: %w", rec.EventID, rec.GlobalSeq, err)
					return rebuildErr
				}
				reg.processed.Add(1)
				replayed++
			}
			reg.checkpoint.Store(rec.GlobalSeq)
			from = rec.GlobalSeq
		}

		if len(batch) < m.batch {
			break
		}
	}

	metrics.UpdateProjectionCheckpoint(name, reg.checkpoint.Load())
	m.persistCheckpoint(ctx, reg)

	logging.Info().
		Str("projection", name).
		Int64("events_replayed", replayed).
		Dur("took", time.Since(start)).
		Msg("Projection rebuild complete")
	return nil
}

// Stop closes the live tail, stops the retry worker and persists final
// checkpoints. ctx bounds the shutdown.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	closers := m.closers
	m.closers = nil
	cancel := m.workerCancel
	done := m.workerDone
	m.workerCancel = nil
	m.workerDone = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	var errs []error
	if m.router != nil {
		if err := m.router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close router: %w", err))
		}
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}

	// Final positions last, after intake has stopped.
	m.persistCheckpoints(ctx)

	logging.Info().Msg("Projection manager stopped")
	return errors.Join(errs...)
}

// Running reports whether the manager is started and, when configured with a
// live tail, whether the router is consuming.
func (m *Manager) Running() bool {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return false
	}
	if m.router == nil {
		return true
	}
	return m.router.IsRunning()
}

// Names returns registered projection names in registration order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// CheckpointFor returns the in-memory checkpoint of one projection.
func (m *Manager) CheckpointFor(name string) (int64, bool) {
	m.mu.Lock()
	reg, ok := m.regs[name]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	return reg.checkpoint.Load(), true
}

// Lag returns how many events the slowest projection is behind the head of
// the log, refreshing the per-consumer lag gauges as a side effect.
func (m *Manager) Lag(ctx context.Context) (int64, error) {
	latest, err := m.store.LatestGlobalSeq(ctx)
	if err != nil {
		return 0, err
	}

	var maxLag int64
	for _, reg := range m.registrations() {
		lag := latest - reg.checkpoint.Load()
		if lag < 0 {
			lag = 0
		}
		metrics.UpdateStreamConsumerLag(reg.name(), lag)
		if lag > maxLag {
			maxLag = lag
		}
	}
	return maxLag, nil
}

// DLQStats snapshots the dead letter queue.
func (m *Manager) DLQStats() DLQStats {
	return m.dlq.Stats()
}

// registrations returns the registrations in registration order.
func (m *Manager) registrations() []*registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	regs := make([]*registration, 0, len(m.order))
	for _, name := range m.order {
		regs = append(regs, m.regs[name])
	}
	return regs
}
