// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"fmt"
	"testing"
	"time"
)

func TestMinHeapPushAndOldest(t *testing.T) {
	t.Parallel()

	h := newMinHeap[string](10)
	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)

	// Insert out of timestamp order; oldest must still win.
	h.push("b", "second", base.Add(time.Minute))
	h.push("a", "first", base)
	h.push("c", "third", base.Add(2*time.Minute))

	if h.len() != 3 {
		t.Fatalf("len() = %d, want 3", h.len())
	}

	oldest := h.oldest()
	if oldest == nil {
		t.Fatal("oldest() = nil, want item")
	}
	if oldest.key != "a" {
		t.Errorf("oldest().key = %q, want %q", oldest.key, "a")
	}
	if oldest.value != "first" {
		t.Errorf("oldest().value = %q, want %q", oldest.value, "first")
	}
}

func TestMinHeapEvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	h := newMinHeap[int](3)
	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if evicted := h.push(fmt.Sprintf("k%d", i), i, base.Add(time.Duration(i)*time.Second)); evicted != nil {
			t.Fatalf("push %d evicted %q before heap was full", i, evicted.key)
		}
	}

	evicted := h.push("k3", 3, base.Add(3*time.Second))
	if evicted == nil {
		t.Fatal("push over capacity evicted nothing")
	}
	if evicted.key != "k0" {
		t.Errorf("evicted key = %q, want %q (the oldest)", evicted.key, "k0")
	}
	if h.len() != 3 {
		t.Errorf("len() = %d, want 3 after eviction", h.len())
	}
	if h.get("k0") != nil {
		t.Error("get(k0) should be nil after eviction")
	}
	if h.get("k3") == nil {
		t.Error("get(k3) should find the new item")
	}
}

func TestMinHeapGetAndRemove(t *testing.T) {
	t.Parallel()

	h := newMinHeap[string](10)
	now := time.Now()
	h.push("x", "payload", now)

	item := h.get("x")
	if item == nil {
		t.Fatal("get(x) = nil, want item")
	}
	if item.value != "payload" {
		t.Errorf("value = %q, want %q", item.value, "payload")
	}
	if h.get("missing") != nil {
		t.Error("get(missing) should be nil")
	}

	removed := h.remove("x")
	if removed == nil {
		t.Fatal("remove(x) = nil, want item")
	}
	if h.len() != 0 {
		t.Errorf("len() = %d after remove, want 0", h.len())
	}
	if h.remove("x") != nil {
		t.Error("second remove(x) should be nil")
	}
}

func TestMinHeapPushReplacesSameKey(t *testing.T) {
	t.Parallel()

	h := newMinHeap[int](10)
	now := time.Now()

	h.push("dup", 1, now)
	h.push("dup", 2, now.Add(time.Second))

	if h.len() != 1 {
		t.Fatalf("len() = %d, want 1 (same key replaces)", h.len())
	}
	if got := h.get("dup").value; got != 2 {
		t.Errorf("value = %d, want 2", got)
	}
}

func TestMinHeapPopBefore(t *testing.T) {
	t.Parallel()

	h := newMinHeap[int](10)
	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		h.push(fmt.Sprintf("k%d", i), i, base.Add(time.Duration(i)*time.Hour))
	}

	// Cutoff between k2 and k3 pops the three oldest.
	popped := h.popBefore(base.Add(2*time.Hour + time.Minute))
	if len(popped) != 3 {
		t.Fatalf("popBefore() returned %d items, want 3", len(popped))
	}
	for i, item := range popped {
		want := fmt.Sprintf("k%d", i)
		if item.key != want {
			t.Errorf("popped[%d].key = %q, want %q", i, item.key, want)
		}
	}
	if h.len() != 2 {
		t.Errorf("len() = %d after popBefore, want 2", h.len())
	}

	if popped := h.popBefore(base.Add(-time.Hour)); len(popped) != 0 {
		t.Errorf("popBefore(past cutoff) returned %d items, want 0", len(popped))
	}
}

func TestMinHeapOrderSurvivesInteriorRemoval(t *testing.T) {
	t.Parallel()

	h := newMinHeap[int](10)
	base := time.Date(2026, 4, 12, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		h.push(fmt.Sprintf("k%d", i), i, base.Add(time.Duration(i)*time.Second))
	}
	h.remove("k0")
	h.remove("k3")
	h.remove("k5")

	// Remaining items must drain in timestamp order.
	want := []string{"k1", "k2", "k4", "k6"}
	for _, key := range want {
		oldest := h.oldest()
		if oldest == nil || oldest.key != key {
			got := "<nil>"
			if oldest != nil {
				got = oldest.key
			}
			t.Fatalf("oldest() = %q, want %q", got, key)
		}
		h.remove(key)
	}
	if h.len() != 0 {
		t.Errorf("len() = %d after draining, want 0", h.len())
	}
}

func TestMinHeapAll(t *testing.T) {
	t.Parallel()

	h := newMinHeap[int](10)
	now := time.Now()
	h.push("a", 1, now)
	h.push("b", 2, now.Add(time.Second))

	items := h.all()
	if len(items) != 2 {
		t.Fatalf("all() returned %d items, want 2", len(items))
	}
	seen := map[string]bool{}
	for _, item := range items {
		seen[item.key] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("all() keys = %v, want a and b", seen)
	}
}
