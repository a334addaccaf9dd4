// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/touchlinehq/touchline/internal/config"
)

// RouterConfig holds Watermill router middleware settings.
type RouterConfig struct {
	// CloseTimeout bounds the drain on Close: in-flight handlers get this
	// long to finish.
	CloseTimeout time.Duration

	// Retry settings for handler errors that escape the manager's own
	// in-place retry (panics recovered by the Recoverer, mostly).
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// ThrottlePerSecond rate-limits delivery across all handlers.
	// 0 disables throttling.
	ThrottlePerSecond int64

	// PoisonQueueTopic receives messages that exhaust router retries.
	// Empty disables the poison queue.
	PoisonQueueTopic string
}

// RouterConfigFromNATS derives router settings from the central NATS
// configuration.
func RouterConfigFromNATS(cfg *config.NATSConfig) RouterConfig {
	rc := RouterConfig{
		CloseTimeout:         cfg.RouterCloseTimeout,
		RetryMaxRetries:      cfg.RouterRetryCount,
		RetryInitialInterval: cfg.RouterRetryInitialInterval,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		ThrottlePerSecond:    int64(cfg.RouterThrottlePerSecond),
	}
	if cfg.RouterPoisonQueueEnabled {
		rc.PoisonQueueTopic = cfg.RouterPoisonQueueTopic
	}
	return rc
}

// Router wraps the Watermill router with the middleware chain every
// projection consumer runs under: panic recovery, bounded retry, optional
// throttling and an optional poison queue for messages that survive all of
// it. Ack/Nack is derived from handler return values.
type Router struct {
	router  *message.Router
	cfg     RouterConfig
	logger  watermill.LoggerAdapter
	running atomic.Bool
}

// NewRouter creates a router with the standard middleware chain installed.
// poisonPublisher may be nil when the poison queue is disabled.
func NewRouter(cfg RouterConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{router: wmRouter, cfg: cfg, logger: logger}

	// Middleware order is outermost first: recover panics into errors,
	// retry those errors with backoff, throttle delivery, and finally
	// divert messages that still fail to the poison queue.
	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return r, nil
}

// AddConsumerHandler registers a consume-only handler for a topic. Shutdown
// is driven by the supervision tree canceling the run context, so no signal
// plugin is installed here.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) *message.Handler {
	return r.router.AddConsumerHandler(name, topic, subscriber, handler)
}

// Run starts the router and blocks until ctx is canceled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// RunAsync starts the router in the background. The returned channel closes
// once all handlers are running.
func (r *Router) RunAsync(ctx context.Context) <-chan struct{} {
	ready := make(chan struct{})

	go func() {
		go func() {
			r.running.Store(true)
			defer r.running.Store(false)
			if err := r.router.Run(ctx); err != nil {
				r.logger.Error("Projection router stopped with error", err, nil)
			}
		}()

		<-r.router.Running()
		close(ready)
	}()

	return ready
}

// Running returns a channel that closes when the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// Close drains in-flight handlers up to CloseTimeout and stops the router.
func (r *Router) Close() error {
	return r.router.Close()
}
