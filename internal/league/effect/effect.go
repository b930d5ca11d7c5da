package effect

import (
	"fmt"
	"strings"
)

// Registered is the live, persisted form of one enacted specification. It is
// never mutated in place after registration: countdown and one-shot
// exhaustion live in the registry's per-effect state, and removal is always
// exclusion (expiry or repeal events), never history rewriting.
type Registered struct {
	// ID uniquely identifies the effect.
	ID string
	// ProposalID is the lineage: the passed proposal that produced this
	// effect. No effect exists without lineage.
	ProposalID string
	// SpecHash is the canonical content hash of Spec, paired with
	// ProposalID to detect duplicate enactment.
	SpecHash string
	// Kind is the specification variant this effect was compiled from.
	Kind Kind
	// Hooks is the set of hook points the effect participates in.
	Hooks []string
	// Lifetime is the starting expiry policy.
	Lifetime Lifetime
	// Condition is the compiled condition, target clauses included.
	Condition Condition
	// Action is the compiled closed-vocabulary action.
	Action Action
	// Spec is the originating specification, kept for event payloads and
	// history reconstruction.
	Spec Specification
}

// Compile turns a validated, non-composite specification into a registered
// effect. parameter_change specifications are not compilable; they delegate
// to the ruleset update path.
func Compile(spec Specification, effectID, proposalID string) (Registered, error) {
	if strings.TrimSpace(effectID) == "" {
		return Registered{}, fmt.Errorf("effect id is required")
	}
	if strings.TrimSpace(proposalID) == "" {
		return Registered{}, fmt.Errorf("proposal lineage is required")
	}
	if err := spec.Validate(); err != nil {
		return Registered{}, fmt.Errorf("invalid specification: %w", err)
	}
	switch spec.Kind {
	case KindParameterChange:
		return Registered{}, fmt.Errorf("parameter_change specifications are not registrable")
	case KindComposite:
		return Registered{}, fmt.Errorf("composite specifications must be flattened before compiling")
	}

	hash, err := spec.Identity()
	if err != nil {
		return Registered{}, err
	}

	condition := Condition{}
	condition.All = append(condition.All, spec.Target.clauses()...)
	condition.All = append(condition.All, spec.Condition.All...)

	return Registered{
		ID:         effectID,
		ProposalID: proposalID,
		SpecHash:   hash,
		Kind:       spec.Kind,
		Hooks:      append([]string(nil), spec.hooksOrDefault()...),
		Lifetime:   NewLifetime(spec.Duration),
		Condition:  condition,
		Action:     *spec.Action,
		Spec:       spec,
	}, nil
}

// Describe returns a one-line human-readable digest of the effect, consumed
// by report generation as descriptive context, never executed.
func (r Registered) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s on %s", r.ID, r.Kind, strings.Join(r.Hooks, ", "))
	switch r.Lifetime.Kind {
	case DurationRounds:
		fmt.Fprintf(&b, " (expires in %d rounds)", r.Lifetime.Remaining)
	case DurationSingleOccurrence:
		b.WriteString(" (single use)")
	case DurationUntilRepealed:
		b.WriteString(" (until repealed)")
	}
	if desc := strings.TrimSpace(r.Spec.Description); desc != "" {
		b.WriteString(": ")
		b.WriteString(desc)
	}
	return b.String()
}
