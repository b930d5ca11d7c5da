// Package meta implements the MetaStore: a generic, schema-free cache of
// per-entity keyed state. Effects use it to read and write arbitrary values
// without touching the core simulation data model.
//
// Entries are created lazily on first write. Semantics are last-write-wins
// per key in dispatch order; batching the flush is purely a performance
// optimization and never changes observable results.
package meta

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openleague/courtside/internal/league/storage"
)

// Store caches keyed per-entity state for one league round.
//
// A single mutex serializes access: writes are cheap map assignments, and
// concurrent game goroutines must observe per-key last-write-wins order.
type Store struct {
	mu     sync.Mutex
	values map[storage.Key]any
	dirty  map[storage.Key]bool
}

// NewStore creates an empty MetaStore.
func NewStore() *Store {
	return &Store{
		values: make(map[storage.Key]any),
		dirty:  make(map[storage.Key]bool),
	}
}

// Get returns the value for (entityType, entityID, field), or def when the
// entry does not exist.
func (s *Store) Get(entityType, entityID, field string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[storage.Key{EntityType: entityType, EntityID: entityID, Field: field}]
	if !ok {
		return def
	}
	return value
}

// GetFloat returns the entry as a float64, or def when the entry is missing
// or not numeric. JSON round-trips store numbers as float64.
func (s *Store) GetFloat(entityType, entityID, field string, def float64) float64 {
	value := s.Get(entityType, entityID, field, nil)
	f, ok := asFloat(value)
	if !ok {
		return def
	}
	return f
}

// Set writes the value for (entityType, entityID, field) and marks it dirty.
func (s *Store) Set(entityType, entityID, field string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.Key{EntityType: entityType, EntityID: entityID, Field: field}
	s.values[key] = value
	s.dirty[key] = true
}

// Add increments a numeric entry by delta, treating a missing or non-numeric
// entry as zero, and returns the new value.
func (s *Store) Add(entityType, entityID, field string, delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.Key{EntityType: entityType, EntityID: entityID, Field: field}
	current, _ := asFloat(s.values[key])
	next := current + delta
	s.values[key] = next
	s.dirty[key] = true
	return next
}

// GetAll returns a copy of every field stored for the entity.
func (s *Store) GetAll(entityType, entityID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any)
	for key, value := range s.values {
		if key.EntityType == entityType && key.EntityID == entityID {
			out[key.Field] = value
		}
	}
	return out
}

// LoadBatch hydrates the cache from persistence for the referenced entities.
// Loaded entries are clean; cached dirty entries are preserved, not
// overwritten, so a retried load after a failed flush cannot lose writes.
func (s *Store) LoadBatch(ctx context.Context, store storage.KeyedStateStore, refs []storage.Ref) error {
	if store == nil {
		return fmt.Errorf("keyed state store is required")
	}
	loaded, err := store.LoadKeyedState(ctx, refs)
	if err != nil {
		return fmt.Errorf("load keyed state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range loaded {
		if s.dirty[key] {
			continue
		}
		s.values[key] = value
	}
	return nil
}

// Flush writes only dirty entries to persistence. On success the entries
// become clean; on failure every entry stays dirty and the in-memory values
// remain authoritative for a retry at the next round boundary.
func (s *Store) Flush(ctx context.Context, store storage.KeyedStateStore) error {
	if store == nil {
		return fmt.Errorf("keyed state store is required")
	}

	s.mu.Lock()
	pending := make(map[storage.Key]any, len(s.dirty))
	for key := range s.dirty {
		pending[key] = s.values[key]
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := store.FlushKeyedState(ctx, pending); err != nil {
		return fmt.Errorf("flush keyed state: %w", err)
	}

	s.mu.Lock()
	for key := range pending {
		delete(s.dirty, key)
	}
	s.mu.Unlock()
	return nil
}

// DirtyCount returns the number of entries awaiting flush.
func (s *Store) DirtyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

// Snapshot returns a deterministic, sorted copy of the full cache contents.
// Simulation determinism tests compare snapshots byte for byte.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.values))
	for key, value := range s.values {
		out = append(out, Entry{Key: key, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Field < b.Field
	})
	return out
}

// Entry is one keyed-state value, used by Snapshot.
type Entry struct {
	Key   storage.Key
	Value any
}

// Clone returns an independent store with the same values, all clean.
func (s *Store) Clone() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := NewStore()
	for key, value := range s.values {
		clone.values[key] = value
	}
	return clone
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
