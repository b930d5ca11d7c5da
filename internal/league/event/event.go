// Package event defines the append-only journal envelope for the effect
// engine. Events are facts that have occurred, never commands; the journal is
// ordered per league and is the sole source of truth for reconstructing the
// active effect set.
package event

import (
	"strings"
	"time"
)

// Type identifies the type of a journal event.
type Type string

// Effect lifecycle events.
const (
	// TypeEffectRegistered records a passed proposal's specification becoming
	// a live effect. The payload carries the serialized specification so the
	// effect can be recompiled during reconstruction.
	TypeEffectRegistered Type = "effect.registered"
	// TypeEffectExpired records an effect's lifetime reaching exhaustion.
	TypeEffectExpired Type = "effect.expired"
	// TypeEffectRepealed records an effect retracted by a passed repeal
	// proposal.
	TypeEffectRepealed Type = "effect.repealed"
)

// Governance events consumed from upstream.
const (
	// TypeProposalPassed records a proposal passing its vote, carrying zero
	// or more validated effect specifications.
	TypeProposalPassed Type = "proposal.passed"
	// TypeParameterApplied records a ruleset parameter change applied on
	// behalf of a passed proposal. Parameter changes are forward-only; the
	// event preserves their not-repealable lineage across restarts.
	TypeParameterApplied Type = "parameter.applied"
)

// Event represents an immutable entry in the league journal.
type Event struct {
	// LeagueID is the league this event belongs to.
	LeagueID string
	// Seq is the event sequence number within the league (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// EffectID is the effect affected, when the event concerns one effect.
	EffectID string
	// ProposalID is the lineage proposal that produced or retracted the
	// effect.
	ProposalID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// EffectLifecycleTypes returns the event types that participate in active-set
// reconstruction, in no particular order.
func EffectLifecycleTypes() []Type {
	return []Type{TypeEffectRegistered, TypeEffectExpired, TypeEffectRepealed}
}
