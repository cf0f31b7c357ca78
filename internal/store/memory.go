package store

import (
	"encoding/json"
	"fmt"

	pkgstore "github.com/wondertwin-ai/srvgraph/pkg/store"
)

// MemoryStore holds all records in memory. It is created once at startup and
// shared by reference with every request handler.
type MemoryStore struct {
	Records *pkgstore.Store[Record]
	seed    []Record
}

// New creates a MemoryStore seeded with the given records at ids 0..n-1.
// With no arguments DefaultSeed is used.
func New(seed ...Record) *MemoryStore {
	if len(seed) == 0 {
		seed = DefaultSeed
	}
	s := &MemoryStore{
		Records: pkgstore.New[Record](),
		seed:    append([]Record(nil), seed...),
	}
	s.applySeed()
	return s
}

// applySeed replaces the whole state with the seed in one step.
func (s *MemoryStore) applySeed() {
	initial := make(map[int]Record, len(s.seed))
	for i, rec := range s.seed {
		initial[i] = rec
	}
	s.Records.LoadSnapshot(initial)
}

// Get returns a copy of the record stored at id.
func (s *MemoryStore) Get(id int) (Record, bool) {
	return s.Records.Get(id)
}

// Add stores a new record built from in under the smallest unused id.
func (s *MemoryStore) Add(in NewRecordInput) Entry {
	id, rec := s.Records.Insert(Record{Name: in.Name, Desc: in.Desc})
	return Entry{ID: id, Record: rec}
}

// stateSnapshot is the JSON-serializable state for admin endpoints.
// Records marshals through the store itself, under its read lock.
type stateSnapshot struct {
	Records *pkgstore.Store[Record] `json:"records"`
}

// Snapshot returns the full state as a JSON-serializable value.
// Used by the admin /state endpoint.
func (s *MemoryStore) Snapshot() any {
	return stateSnapshot{Records: s.Records}
}

// LoadState replaces the full state from a JSON body. The body is decoded
// into a scratch store first, so a rejected body leaves the state untouched.
// Used by admin /state and seed file loading.
func (s *MemoryStore) LoadState(data []byte) error {
	snap := stateSnapshot{Records: pkgstore.New[Record]()}
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Records == nil {
		snap.Records = pkgstore.New[Record]()
	}
	if ids := snap.Records.IDs(); len(ids) > 0 && ids[0] < 0 {
		return fmt.Errorf("record id %d is negative", ids[0])
	}
	s.Records.LoadSnapshot(snap.Records.Snapshot())
	return nil
}

// Reset clears all records and restores the seed.
// Used by the admin /reset endpoint.
func (s *MemoryStore) Reset() {
	s.applySeed()
}
