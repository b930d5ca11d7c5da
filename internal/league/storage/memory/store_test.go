package memory

import (
	"context"
	"testing"

	"github.com/openleague/courtside/internal/league/event"
	"github.com/openleague/courtside/internal/league/storage"
)

func TestAppendEvent_SequencesPerLeague(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first, err := store.AppendEvent(ctx, event.Event{LeagueID: "a", Type: event.TypeEffectRegistered})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := store.AppendEvent(ctx, event.Event{LeagueID: "a", Type: event.TypeEffectExpired})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	other, err := store.AppendEvent(ctx, event.Event{LeagueID: "b", Type: event.TypeEffectRegistered})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.Seq != 1 || second.Seq != 2 || other.Seq != 1 {
		t.Fatalf("seqs = %d/%d/%d, want per-league numbering", first.Seq, second.Seq, other.Seq)
	}
}

func TestAppendEvents_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.FailAppendsAfter = 1

	if _, err := store.AppendEvents(ctx, []event.Event{
		{LeagueID: "a", Type: event.TypeEffectRegistered},
		{LeagueID: "a", Type: event.TypeEffectRegistered},
	}); err == nil {
		t.Fatal("expected failure for a batch past the append limit")
	}
	events, err := store.ListEventsByTypes(ctx, "a", event.EffectLifecycleTypes())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, failed batch must persist nothing", len(events))
	}

	store.FailAppendsAfter = 0
	stored, err := store.AppendEvents(ctx, []event.Event{
		{LeagueID: "a", Type: event.TypeEffectRegistered},
		{LeagueID: "a", Type: event.TypeEffectExpired},
	})
	if err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if len(stored) != 2 || stored[0].Seq != 1 || stored[1].Seq != 2 {
		t.Fatalf("stored = %+v, want consecutive sequence numbers", stored)
	}
}

func TestListEventsByTypes_Filters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, typ := range []event.Type{event.TypeEffectRegistered, event.TypeProposalPassed, event.TypeEffectExpired} {
		if _, err := store.AppendEvent(ctx, event.Event{LeagueID: "a", Type: typ}); err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
	}
	events, err := store.ListEventsByTypes(ctx, "a", event.EffectLifecycleTypes())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
}

func TestKeyedState_RoundTripAndFailureKnob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	key := storage.Key{EntityType: "team", EntityID: "hawks", Field: "wins"}

	store.FailFlush = true
	if err := store.FlushKeyedState(ctx, map[storage.Key]any{key: float64(1)}); err == nil {
		t.Fatal("expected forced flush failure")
	}
	store.FailFlush = false
	if err := store.FlushKeyedState(ctx, map[storage.Key]any{key: float64(1)}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	loaded, err := store.LoadKeyedState(ctx, []storage.Ref{{EntityType: "team", EntityID: "hawks"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := loaded[key]; got != float64(1) {
		t.Fatalf("loaded = %v, want 1", got)
	}
}
