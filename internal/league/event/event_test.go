package event

import "testing"

func TestTypeIsValid(t *testing.T) {
	if !TypeEffectRegistered.IsValid() {
		t.Fatal("built-in type should be valid")
	}
	if Type("").IsValid() || Type("  ").IsValid() {
		t.Fatal("blank types should be invalid")
	}
	if !Type("governance.custom").IsValid() {
		t.Fatal("unknown but non-empty types are usable")
	}
}

func TestEffectLifecycleTypes_CoversActiveSetReconstruction(t *testing.T) {
	types := EffectLifecycleTypes()
	want := map[Type]bool{
		TypeEffectRegistered: true,
		TypeEffectExpired:    true,
		TypeEffectRepealed:   true,
	}
	if len(types) != len(want) {
		t.Fatalf("lifecycle types = %v", types)
	}
	for _, typ := range types {
		if !want[typ] {
			t.Fatalf("unexpected lifecycle type %q", typ)
		}
	}
}
