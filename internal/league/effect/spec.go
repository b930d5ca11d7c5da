// Package effect implements the effect model: specifications produced by
// interpretation, the closed condition grammar and action vocabulary they are
// restricted to, the live registry of registered effects, and dispatch
// against hook points.
package effect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openleague/courtside/internal/league/hook"
)

// Kind tags a specification variant. Unknown kinds are rejected at
// validation time and never reach execution.
type Kind string

const (
	// KindParameterChange adjusts a league ruleset parameter. Delegated to
	// the ruleset updater; never registered as a live effect.
	KindParameterChange Kind = "parameter_change"
	// KindMetaMutation writes keyed per-entity state when its hooks fire.
	KindMetaMutation Kind = "meta_mutation"
	// KindHookCallback runs any closed-vocabulary action when its hooks
	// fire.
	KindHookCallback Kind = "hook_callback"
	// KindNarrative injects flavor text into report generation.
	KindNarrative Kind = "narrative"
	// KindComposite is an ordered list of non-composite specifications.
	KindComposite Kind = "composite"
)

// TargetKind selects which entities an effect applies to.
type TargetKind string

const (
	// TargetAll applies to every dispatch regardless of entity.
	TargetAll TargetKind = "all"
	// TargetEntity applies to one specific entity.
	TargetEntity TargetKind = "entity"
	// TargetRole applies to all entities of a role.
	TargetRole TargetKind = "role"
	// TargetOwner applies to all entities under an owner.
	TargetOwner TargetKind = "owner"
)

// Target is a specification's entity selector. It compiles into implied
// condition clauses on the context's entity fields.
type Target struct {
	Kind TargetKind `json:"kind,omitempty"`
	// EntityID is required for TargetEntity.
	EntityID string `json:"entity_id,omitempty"`
	// Role is required for TargetRole.
	Role string `json:"role,omitempty"`
	// Owner is required for TargetOwner.
	Owner string `json:"owner,omitempty"`
}

// Context fields the target selector matches against.
const (
	fieldEntityID    = "entity.id"
	fieldEntityRole  = "entity.role"
	fieldEntityOwner = "entity.owner"
)

// Validate rejects selectors outside the closed set.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetAll, "":
		return nil
	case TargetEntity:
		if strings.TrimSpace(t.EntityID) == "" {
			return fmt.Errorf("entity target requires entity_id")
		}
		return nil
	case TargetRole:
		if strings.TrimSpace(t.Role) == "" {
			return fmt.Errorf("role target requires role")
		}
		return nil
	case TargetOwner:
		if strings.TrimSpace(t.Owner) == "" {
			return fmt.Errorf("owner target requires owner")
		}
		return nil
	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}
}

// clauses returns the implied condition clauses for the selector.
func (t Target) clauses() []Clause {
	switch t.Kind {
	case TargetEntity:
		return []Clause{{Source: SourceContext, Field: fieldEntityID, Op: OpEq, Value: t.EntityID}}
	case TargetRole:
		return []Clause{{Source: SourceContext, Field: fieldEntityRole, Op: OpEq, Value: t.Role}}
	case TargetOwner:
		return []Clause{{Source: SourceContext, Field: fieldEntityOwner, Op: OpEq, Value: t.Owner}}
	default:
		return nil
	}
}

// ParameterChange is the payload of a parameter_change specification.
type ParameterChange struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Specification is the validated output of interpretation and the input to
// enactment.
type Specification struct {
	Kind      Kind       `json:"kind"`
	Target    Target     `json:"target,omitempty"`
	Condition Condition  `json:"condition,omitempty"`
	Action    *Action    `json:"action,omitempty"`
	Duration  Duration   `json:"duration"`
	Hooks     []string   `json:"hooks,omitempty"`
	Parameter *ParameterChange `json:"parameter,omitempty"`
	// Children holds the ordered parts of a composite specification.
	Children []Specification `json:"children,omitempty"`
	// Description is optional human-readable intent, surfaced in the
	// registry summary.
	Description string `json:"description,omitempty"`
}

// Validate checks the specification against the closed grammar. Composite
// children are validated recursively; nested composites are rejected.
func (s Specification) Validate() error {
	return s.validate(false)
}

func (s Specification) validate(nested bool) error {
	switch s.Kind {
	case KindParameterChange:
		if s.Parameter == nil || strings.TrimSpace(s.Parameter.Name) == "" {
			return fmt.Errorf("parameter_change requires parameter name")
		}
		return nil
	case KindMetaMutation:
		if s.Action == nil || s.Action.Op != OpWriteMeta {
			return fmt.Errorf("meta_mutation requires a write_meta action")
		}
	case KindHookCallback:
		if s.Action == nil {
			return fmt.Errorf("hook_callback requires an action")
		}
	case KindNarrative:
		if s.Action == nil || s.Action.Op != OpEmitNarrative {
			return fmt.Errorf("narrative requires an emit_narrative action")
		}
	case KindComposite:
		if nested {
			return fmt.Errorf("composite specifications cannot nest")
		}
		if len(s.Children) == 0 {
			return fmt.Errorf("composite requires children")
		}
		for i, child := range s.Children {
			if err := child.validate(true); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown specification kind %q", s.Kind)
	}

	// Common checks for the registerable, non-composite kinds.
	if err := s.Target.Validate(); err != nil {
		return err
	}
	if err := s.Condition.Validate(); err != nil {
		return err
	}
	if err := s.Action.Validate(); err != nil {
		return err
	}
	if err := s.Duration.Validate(); err != nil {
		return err
	}
	for _, h := range s.Hooks {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("hook point identifiers must be non-empty")
		}
	}
	if len(s.hooksOrDefault()) == 0 {
		return fmt.Errorf("%s requires at least one hook point", s.Kind)
	}
	return nil
}

// hooksOrDefault returns the subscription set, defaulting narrative effects
// to the report hook.
func (s Specification) hooksOrDefault() []string {
	if len(s.Hooks) > 0 {
		return s.Hooks
	}
	if s.Kind == KindNarrative {
		return []string{hook.PointReportNarrativeBefore}
	}
	return nil
}

// Flatten expands a composite into its ordered children; non-composite
// specifications flatten to themselves.
func (s Specification) Flatten() []Specification {
	if s.Kind != KindComposite {
		return []Specification{s}
	}
	out := make([]Specification, 0, len(s.Children))
	out = append(out, s.Children...)
	return out
}

// Identity returns the canonical content hash of the specification, used
// with the proposal lineage to detect duplicate enactment after crash
// replay. Struct field order makes the JSON encoding canonical.
func (s Specification) Identity() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode specification: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
