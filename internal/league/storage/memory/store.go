// Package memory provides in-process implementations of the storage
// interfaces. It backs tests and single-process league runs.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openleague/courtside/internal/league/event"
	"github.com/openleague/courtside/internal/league/storage"
)

// Store keeps the journal and keyed state in memory.
type Store struct {
	mu     sync.Mutex
	events map[string][]event.Event
	keyed  map[storage.Key]any

	// FailFlush forces FlushKeyedState to fail; used to exercise the
	// retry-at-next-boundary path.
	FailFlush bool
	// FailAppendsAfter, when positive, fails any append that would grow a
	// league's journal past this length. A batch that would cross the limit
	// fails whole, with nothing persisted.
	FailAppendsAfter int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		events: make(map[string][]event.Event),
		keyed:  make(map[storage.Key]any),
	}
}

// AppendEvent atomically appends an event and assigns its sequence number.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	stored, err := s.AppendEvents(ctx, []event.Event{evt})
	if err != nil {
		return event.Event{}, err
	}
	return stored[0], nil
}

// AppendEvents atomically appends a batch of events in order. The batch is
// validated and capacity-checked before any event is stored, so a failure
// leaves the journal untouched.
func (s *Store) AppendEvents(ctx context.Context, evts []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(evts) == 0 {
		return nil, nil
	}
	for _, evt := range evts {
		if strings.TrimSpace(evt.LeagueID) == "" {
			return nil, fmt.Errorf("league id is required")
		}
		if !evt.Type.IsValid() {
			return nil, fmt.Errorf("event type is required")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	perLeague := make(map[string]int, 1)
	for _, evt := range evts {
		perLeague[evt.LeagueID]++
	}
	if s.FailAppendsAfter > 0 {
		for leagueID, added := range perLeague {
			if len(s.events[leagueID])+added > s.FailAppendsAfter {
				return nil, fmt.Errorf("append events: store unavailable")
			}
		}
	}

	stored := make([]event.Event, 0, len(evts))
	for _, evt := range evts {
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		evt.Seq = uint64(len(s.events[evt.LeagueID]) + 1)
		s.events[evt.LeagueID] = append(s.events[evt.LeagueID], evt)
		stored = append(stored, evt)
	}
	return stored, nil
}

// ListEventsByTypes returns events of the given types in sequence order.
func (s *Store) ListEventsByTypes(ctx context.Context, leagueID string, types []event.Type) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[event.Type]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event.Event
	for _, evt := range s.events[leagueID] {
		if wanted[evt.Type] {
			out = append(out, evt)
		}
	}
	return out, nil
}

// LoadKeyedState returns stored entries for the referenced entities.
func (s *Store) LoadKeyedState(ctx context.Context, refs []storage.Ref) (map[storage.Key]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[storage.Ref]bool, len(refs))
	for _, ref := range refs {
		wanted[ref] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[storage.Key]any)
	for key, value := range s.keyed {
		if wanted[storage.Ref{EntityType: key.EntityType, EntityID: key.EntityID}] {
			out[key] = value
		}
	}
	return out, nil
}

// FlushKeyedState upserts the given entries atomically.
func (s *Store) FlushKeyedState(ctx context.Context, entries map[storage.Key]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailFlush {
		return fmt.Errorf("flush keyed state: store unavailable")
	}
	for key, value := range entries {
		s.keyed[key] = value
	}
	return nil
}

// KeyedLen returns the number of stored keyed-state entries.
func (s *Store) KeyedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keyed)
}

// KeyedValue returns one stored keyed-state value, for assertions in tests.
func (s *Store) KeyedValue(key storage.Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.keyed[key]
	return value, ok
}
