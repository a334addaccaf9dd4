// Touchline - Football Match Analytics and Event Sourcing Platform
// Copyright 2026 Touchline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/touchlinehq/touchline

package projection

import (
	"sync"
	"time"
)

// heapItem is one keyed, time-ordered element.
type heapItem[T any] struct {
	key   string
	value T
	at    time.Time
	index int // position in the heap slice, kept for O(log n) removal
}

// minHeap is a bounded min-heap ordered by timestamp with O(1) key lookup
// through a parallel map. The dead letter queue uses it to evict the oldest
// entry in O(log n) when at capacity and to pop expired entries during
// retention cleanup.
type minHeap[T any] struct {
	mu     sync.RWMutex
	items  []*heapItem[T]
	byKey  map[string]*heapItem[T]
	maxLen int // 0 = unbounded
}

func newMinHeap[T any](maxLen int) *minHeap[T] {
	return &minHeap[T]{
		byKey:  make(map[string]*heapItem[T]),
		maxLen: maxLen,
	}
}

// push inserts or updates the entry for key. When the heap is at capacity
// the oldest entry is evicted and returned; otherwise push returns nil.
func (h *minHeap[T]) push(key string, value T, at time.Time) *heapItem[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.byKey[key]; ok {
		existing.value = value
		existing.at = at
		h.fix(existing.index)
		return nil
	}

	item := &heapItem[T]{key: key, value: value, at: at, index: len(h.items)}
	h.items = append(h.items, item)
	h.byKey[key] = item
	h.up(item.index)

	if h.maxLen > 0 && len(h.items) > h.maxLen {
		return h.removeAt(0)
	}
	return nil
}

// get returns the entry for key, or nil.
func (h *minHeap[T]) get(key string) *heapItem[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byKey[key]
}

// remove deletes the entry for key and returns it, or nil if absent.
func (h *minHeap[T]) remove(key string) *heapItem[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	item, ok := h.byKey[key]
	if !ok {
		return nil
	}
	return h.removeAt(item.index)
}

// oldest returns the minimum-timestamp entry without removing it.
func (h *minHeap[T]) oldest() *heapItem[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// popBefore removes and returns every entry older than cutoff.
func (h *minHeap[T]) popBefore(cutoff time.Time) []*heapItem[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	var popped []*heapItem[T]
	for len(h.items) > 0 && h.items[0].at.Before(cutoff) {
		popped = append(popped, h.removeAt(0))
	}
	return popped
}

// all returns a snapshot of every entry in no particular order.
func (h *minHeap[T]) all() []*heapItem[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := make([]*heapItem[T], len(h.items))
	copy(snapshot, h.items)
	return snapshot
}

func (h *minHeap[T]) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// removeAt deletes the element at index i. Caller holds h.mu.
func (h *minHeap[T]) removeAt(i int) *heapItem[T] {
	n := len(h.items) - 1
	item := h.items[i]
	delete(h.byKey, item.key)

	if i == n {
		h.items = h.items[:n]
		return item
	}

	h.items[i] = h.items[n]
	h.items[i].index = i
	h.items = h.items[:n]
	h.fix(i)
	return item
}

// fix restores the heap property after the element at i changed.
func (h *minHeap[T]) fix(i int) {
	if !h.up(i) {
		h.down(i)
	}
}

func (h *minHeap[T]) up(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !h.items[i].at.Before(h.items[parent].at) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (h *minHeap[T]) down(i int) {
	n := len(h.items)
	for {
		smallest := i
		if left := 2*i + 1; left < n && h.items[left].at.Before(h.items[smallest].at) {
			smallest = left
		}
		if right := 2*i + 2; right < n && h.items[right].at.Before(h.items[smallest].at) {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.swap(i, smallest)
		i = smallest
	}
}

func (h *minHeap[T]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}
