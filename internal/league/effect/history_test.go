package effect

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/openleague/courtside/internal/league/event"
	"github.com/openleague/courtside/internal/league/hook"
)

func registeredEvent(t *testing.T, seq uint64, effectID, proposalID string, spec Specification) event.Event {
	t.Helper()
	hash, err := spec.Identity()
	if err != nil {
		t.Fatalf("spec identity: %v", err)
	}
	payload, err := json.Marshal(RegisteredPayload{
		EffectID:   effectID,
		ProposalID: proposalID,
		SpecHash:   hash,
		Spec:       spec,
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return event.Event{
		LeagueID:    "league-1",
		Seq:         seq,
		Type:        event.TypeEffectRegistered,
		EffectID:    effectID,
		ProposalID:  proposalID,
		PayloadJSON: payload,
	}
}

func TestFromHistory_ActiveSetIsRegisteredMinusRemoved(t *testing.T) {
	events := []event.Event{
		registeredEvent(t, 1, "eff-1", "prop-1", numericSpec(0.1, hook.PointSimActionBefore)),
		registeredEvent(t, 2, "eff-2", "prop-2", numericSpec(0.2, hook.PointSimActionBefore)),
		{LeagueID: "league-1", Seq: 3, Type: event.TypeEffectExpired, EffectID: "eff-1"},
		registeredEvent(t, 4, "eff-3", "prop-3", numericSpec(0.3, hook.PointSimGameEnd)),
		{LeagueID: "league-1", Seq: 5, Type: event.TypeEffectRepealed, EffectID: "eff-2", ProposalID: "prop-9"},
	}

	registry, warnings := FromHistory(events)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	active := registry.AllActive()
	if len(active) != 1 || active[0].ID != "eff-3" {
		t.Fatalf("active = %v, want only eff-3", active)
	}
}

func TestFromHistory_DeterministicAcrossRuns(t *testing.T) {
	events := []event.Event{
		registeredEvent(t, 1, "eff-1", "prop-1", numericSpec(0.1, hook.PointSimActionBefore)),
		registeredEvent(t, 2, "eff-2", "prop-2", numericSpec(0.2, hook.PointSimActionBefore)),
		{LeagueID: "league-1", Seq: 3, Type: event.TypeEffectExpired, EffectID: "eff-1"},
	}

	first, _ := FromHistory(events)
	second, _ := FromHistory(events)
	if !reflect.DeepEqual(first.AllActive(), second.AllActive()) {
		t.Fatal("identical event sequences should reconstruct identical active sets")
	}
}

func TestFromHistory_OrdersBySequence(t *testing.T) {
	// Removal delivered before its registration must still win once sorted.
	events := []event.Event{
		{LeagueID: "league-1", Seq: 2, Type: event.TypeEffectExpired, EffectID: "eff-1"},
		registeredEvent(t, 1, "eff-1", "prop-1", numericSpec(0.1, hook.PointSimActionBefore)),
	}
	registry, warnings := FromHistory(events)
	if registry.Len() != 0 {
		t.Fatalf("active count = %d, want 0", registry.Len())
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestFromHistory_SkipsMalformedEventsWithWarnings(t *testing.T) {
	events := []event.Event{
		{LeagueID: "league-1", Seq: 1, Type: event.TypeEffectRegistered, PayloadJSON: []byte("{broken")},
		registeredEvent(t, 2, "eff-2", "prop-2", numericSpec(0.2, hook.PointSimActionBefore)),
		{LeagueID: "league-1", Seq: 3, Type: event.TypeEffectExpired},
	}

	registry, warnings := FromHistory(events)
	if registry.Len() != 1 {
		t.Fatalf("active count = %d, want 1 surviving effect", registry.Len())
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2 entries", warnings)
	}
}

func TestFromHistory_RestoredRegistryDispatches(t *testing.T) {
	spec := numericSpec(0.25, hook.PointSimActionBefore)
	spec.Target = Target{Kind: TargetOwner, Owner: "ava"}
	events := []event.Event{registeredEvent(t, 1, "eff-1", "prop-1", spec)}

	registry, _ := FromHistory(events)
	ctx := hook.NewContext(1)
	ctx.SetField("entity.owner", "ava")
	merged := NewDispatcher(registry).Dispatch(hook.PointSimActionBefore, ctx)
	if merged.Applied != 1 || merged.ProbabilityDelta != 0.25 {
		t.Fatalf("merged = %+v, want the restored effect to apply", merged)
	}
}
