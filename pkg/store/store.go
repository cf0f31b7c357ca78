// Package store provides a generic, thread-safe, in-memory container keyed by
// small non-negative integers. New items take the smallest free key.
package store

import (
	"encoding/json"
	"sort"
	"sync"
)

// Store is a generic, thread-safe, in-memory store for objects of type T.
// Values are stored and returned by value, so T should not carry pointers
// that callers mutate after insertion.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[int]T
}

// New creates an empty Store.
func New[T any]() *Store[T] {
	return &Store[T]{
		items: make(map[int]T),
	}
}

// Get retrieves an item by ID. Returns the item and true if found, zero value and false otherwise.
func (s *Store[T]) Get(id int) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Insert stores item under the smallest non-negative key not currently in use
// and returns that key together with the stored value. The scan and the write
// happen under one lock acquisition, so concurrent inserts never collide.
func (s *Store[T]) Insert(item T) (int, T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := 0
	for {
		if _, taken := s.items[id]; !taken {
			break
		}
		id++
	}
	s.items[id] = item
	return id, item
}

// Set stores an item with the given ID, overwriting any existing value.
func (s *Store[T]) Set(id int, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = item
}

// IDs returns all keys in ascending order.
func (s *Store[T]) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.items))
	for k := range s.items {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Count returns the number of items in the store.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset clears all items.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]T)
}

// Snapshot returns a copy of all items keyed by ID.
func (s *Store[T]) Snapshot() map[int]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[int]T, len(s.items))
	for k, v := range s.items {
		snapshot[k] = v
	}
	return snapshot
}

// LoadSnapshot replaces all items from snapshot. Existing items are cleared.
func (s *Store[T]) LoadSnapshot(snapshot map[int]T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]T, len(snapshot))
	for k, v := range snapshot {
		s.items[k] = v
	}
}

// MarshalJSON serializes the store to JSON (the items map).
func (s *Store[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON deserializes JSON into the store, replacing existing items.
func (s *Store[T]) UnmarshalJSON(data []byte) error {
	var snapshot map[int]T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	s.LoadSnapshot(snapshot)
	return nil
}
