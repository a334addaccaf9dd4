// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestSupervisorTreeIntegration tests the complete supervisor tree behavior
// with services across all layers, simulating a real deployment.
func TestSupervisorTreeIntegration(t *testing.T) {
	t.Run("full tree with services in all layers", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   50 * time.Millisecond,
			ShutdownTimeout:  500 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		brokerSvc := NewMockService("broker")
		projectionSvc := NewMockService("projections")
		samplerSvc := NewMockService("lag-sampler")

		tree.AddStreamingService(brokerSvc)
		tree.AddProjectionService(projectionSvc)
		tree.AddMaintenanceService(samplerSvc)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		// Poll for startup; fixed sleeps are unreliable in CI under load.
		var allStarted bool
		for i := 0; i < 10; i++ {
			time.Sleep(20 * time.Millisecond)
			if brokerSvc.StartCount() >= 1 && projectionSvc.StartCount() >= 1 &&
				samplerSvc.StartCount() >= 1 {
				allStarted = true
				break
			}
		}

		if !allStarted {
			if brokerSvc.StartCount() < 1 {
				t.Error("broker service was not started")
			}
			if projectionSvc.StartCount() < 1 {
				t.Error("projection service was not started")
			}
			if samplerSvc.StartCount() < 1 {
				t.Error("sampler service was not started")
			}
		}

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})

	t.Run("cascade failure isolation", func(t *testing.T) {
		tree, _ := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			ShutdownTimeout:  500 * time.Millisecond,
		})

		// A projection handler that keeps crashing must not disturb the
		// broker or the maintenance loops.
		failingSvc := NewMockService("failing-projections")
		failingSvc.SetFailCount(3)

		stableBroker := NewMockService("stable-broker")
		stableSampler := NewMockService("stable-sampler")

		tree.AddStreamingService(stableBroker)
		tree.AddProjectionService(failingSvc)
		tree.AddMaintenanceService(stableSampler)

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		time.Sleep(150 * time.Millisecond)

		if failingSvc.StartCount() < 3 {
			t.Errorf("failing service should have been restarted at least 3 times, got %d", failingSvc.StartCount())
		}
		if stableBroker.StartCount() < 1 {
			t.Error("stable broker service should have started")
		}
		if stableSampler.StartCount() < 1 {
			t.Error("stable sampler service should have started")
		}

		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})
}

// TestSupervisorTreeConcurrency tests concurrent operations on the tree.
func TestSupervisorTreeConcurrency(t *testing.T) {
	t.Run("concurrent service additions are safe", func(t *testing.T) {
		tree, _ := NewSupervisorTree(testLogger(), TreeConfig{
			ShutdownTimeout: 500 * time.Millisecond,
		})

		for i := 0; i < 10; i++ {
			go func(idx int) {
				svc := NewMockService("concurrent-svc")
				switch idx % 3 {
				case 0:
					tree.AddStreamingService(svc)
				case 1:
					tree.AddProjectionService(svc)
				case 2:
					tree.AddMaintenanceService(svc)
				}
			}(i)
		}

		// Let the goroutines land before starting.
		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})
}

// TestSupervisorTreeEdgeCases tests edge cases and error conditions.
func TestSupervisorTreeEdgeCases(t *testing.T) {
	t.Run("empty tree starts and stops gracefully", func(t *testing.T) {
		tree, _ := NewSupervisorTree(testLogger(), TreeConfig{
			ShutdownTimeout: 500 * time.Millisecond,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(500 * time.Millisecond):
			t.Error("tree did not shut down")
		}
	})

	t.Run("root accessor returns non-nil", func(t *testing.T) {
		tree, _ := NewSupervisorTree(testLogger(), TreeConfig{})

		if tree.Root() == nil {
			t.Error("Root() should return non-nil supervisor")
		}
	})
}
