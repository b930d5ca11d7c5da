package effect

import (
	"testing"

	"github.com/openleague/courtside/internal/league/hook"
)

func validHookCallback() Specification {
	return Specification{
		Kind:     KindHookCallback,
		Target:   Target{Kind: TargetRole, Role: "team"},
		Action:   &Action{Op: OpAdjustNumeric, Field: FieldShotProbability, Amount: 0.05},
		Duration: Duration{Kind: DurationPermanent},
		Hooks:    []string{hook.PointSimActionBefore},
	}
}

func TestSpecificationValidate_AcceptsClosedGrammar(t *testing.T) {
	specs := []Specification{
		validHookCallback(),
		{
			Kind:     KindMetaMutation,
			Action:   &Action{Op: OpWriteMeta, EntityType: "team", Field: "morale", Value: "high"},
			Duration: Duration{Kind: DurationRounds, Rounds: 3},
			Hooks:    []string{hook.PointSimGameEnd},
		},
		{
			Kind:     KindNarrative,
			Action:   &Action{Op: OpEmitNarrative, Text: "The crowd is electric."},
			Duration: Duration{Kind: DurationUntilRepealed},
		},
		{
			Kind:      KindParameterChange,
			Parameter: &ParameterChange{Name: "three_point_rate", Value: 0.4},
		},
	}
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			t.Fatalf("specification %d: unexpected error: %v", i, err)
		}
	}
}

func TestSpecificationValidate_RejectsUnknownKind(t *testing.T) {
	spec := validHookCallback()
	spec.Kind = "lua_script"
	if err := spec.Validate(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestSpecificationValidate_RejectsMissingHooks(t *testing.T) {
	spec := validHookCallback()
	spec.Hooks = nil
	if err := spec.Validate(); err == nil {
		t.Fatal("hook_callback without hook points should be invalid")
	}
}

func TestSpecificationValidate_NarrativeDefaultsToReportHook(t *testing.T) {
	spec := Specification{
		Kind:     KindNarrative,
		Action:   &Action{Op: OpEmitNarrative, Text: "Rivalry week."},
		Duration: Duration{Kind: DurationPermanent},
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hooks := spec.hooksOrDefault()
	if len(hooks) != 1 || hooks[0] != hook.PointReportNarrativeBefore {
		t.Fatalf("hooks = %v, want [%s]", hooks, hook.PointReportNarrativeBefore)
	}
}

func TestSpecificationValidate_CompositeCannotNest(t *testing.T) {
	inner := Specification{Kind: KindComposite, Children: []Specification{validHookCallback()}}
	outer := Specification{Kind: KindComposite, Children: []Specification{inner}}
	if err := outer.Validate(); err == nil {
		t.Fatal("nested composite should be invalid")
	}
}

func TestSpecificationValidate_CompositeValidatesChildren(t *testing.T) {
	bad := validHookCallback()
	bad.Action = &Action{Op: "run_code"}
	outer := Specification{Kind: KindComposite, Children: []Specification{validHookCallback(), bad}}
	if err := outer.Validate(); err == nil {
		t.Fatal("composite with an invalid child should be invalid")
	}
}

func TestSpecificationFlatten_ExpandsCompositeInOrder(t *testing.T) {
	first := validHookCallback()
	second := Specification{
		Kind:      KindParameterChange,
		Parameter: &ParameterChange{Name: "stamina_drain", Value: 1.5},
	}
	outer := Specification{Kind: KindComposite, Children: []Specification{first, second}}

	flat := outer.Flatten()
	if len(flat) != 2 {
		t.Fatalf("flattened count = %d, want 2", len(flat))
	}
	if flat[0].Kind != KindHookCallback || flat[1].Kind != KindParameterChange {
		t.Fatalf("flattened order = %s, %s", flat[0].Kind, flat[1].Kind)
	}
	if single := first.Flatten(); len(single) != 1 || single[0].Kind != KindHookCallback {
		t.Fatalf("non-composite should flatten to itself, got %v", single)
	}
}

func TestSpecificationIdentity_StableAndDiscriminating(t *testing.T) {
	a := validHookCallback()
	b := validHookCallback()

	hashA, err := a.Identity()
	if err != nil {
		t.Fatalf("identity error: %v", err)
	}
	hashB, err := b.Identity()
	if err != nil {
		t.Fatalf("identity error: %v", err)
	}
	if hashA != hashB {
		t.Fatal("identical specifications should share an identity")
	}

	b.Action.Amount = 0.10
	hashC, err := b.Identity()
	if err != nil {
		t.Fatalf("identity error: %v", err)
	}
	if hashA == hashC {
		t.Fatal("differing specifications should have different identities")
	}
}

func TestTargetValidate_RequiresSelectorFields(t *testing.T) {
	cases := []Target{
		{Kind: TargetEntity},
		{Kind: TargetRole},
		{Kind: TargetOwner},
		{Kind: "conference"},
	}
	for i, target := range cases {
		if err := target.Validate(); err == nil {
			t.Fatalf("target %d: expected validation error", i)
		}
	}
	if err := (Target{}).Validate(); err != nil {
		t.Fatalf("empty target should default to all: %v", err)
	}
}
