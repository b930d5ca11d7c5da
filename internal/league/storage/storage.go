// Package storage defines the persistence interfaces consumed by the effect
// engine. Implementations live in subpackages; the engine depends only on
// these contracts so the concrete technology stays swappable.
package storage

import (
	"context"
	"errors"

	"github.com/openleague/courtside/internal/league/event"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Key addresses one keyed-state entry: a single field of a single entity.
type Key struct {
	EntityType string
	EntityID   string
	Field      string
}

// Ref addresses one entity whose keyed state should be hydrated as a batch.
type Ref struct {
	EntityType string
	EntityID   string
}

// EventStore persists the append-only league journal.
type EventStore interface {
	// AppendEvent atomically appends an event, assigning its sequence
	// number, and returns the stored form.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// AppendEvents atomically appends a batch of events in order. Either
	// every event is persisted with consecutive sequence numbers or none
	// is; a partial batch is never observable.
	AppendEvents(ctx context.Context, evts []event.Event) ([]event.Event, error)
	// ListEventsByTypes returns all events of the given types for a league
	// in sequence order.
	ListEventsByTypes(ctx context.Context, leagueID string, types []event.Type) ([]event.Event, error)
}

// KeyedStateStore persists generic per-entity keyed state backing the
// MetaStore. Values must be JSON-encodable.
type KeyedStateStore interface {
	// LoadKeyedState returns all stored entries for the referenced entities.
	LoadKeyedState(ctx context.Context, refs []Ref) (map[Key]any, error)
	// FlushKeyedState upserts the given entries atomically.
	FlushKeyedState(ctx context.Context, entries map[Key]any) error
}
