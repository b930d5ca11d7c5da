package effect

import "fmt"

// DurationKind is the expiry policy named by a specification.
type DurationKind string

const (
	// DurationPermanent never expires via ticking.
	DurationPermanent DurationKind = "permanent"
	// DurationRounds expires after a fixed number of round ticks.
	DurationRounds DurationKind = "n_rounds"
	// DurationSingleOccurrence expires after the first successful
	// application.
	DurationSingleOccurrence DurationKind = "single_occurrence"
	// DurationUntilRepealed ticks like permanent; the effect is intended to
	// be retracted by a repeal proposal.
	DurationUntilRepealed DurationKind = "until_repealed"
)

// Duration is the specification form of an effect lifetime.
type Duration struct {
	Kind DurationKind `json:"kind"`
	// Rounds is required for DurationRounds, ignored otherwise.
	Rounds int `json:"rounds,omitempty"`
}

// Validate rejects durations outside the closed set.
func (d Duration) Validate() error {
	switch d.Kind {
	case DurationPermanent, DurationSingleOccurrence, DurationUntilRepealed:
		return nil
	case DurationRounds:
		if d.Rounds <= 0 {
			return fmt.Errorf("n_rounds duration requires rounds > 0")
		}
		return nil
	default:
		return fmt.Errorf("unknown duration kind %q", d.Kind)
	}
}

// Lifetime is the live expiry state of a registered effect.
type Lifetime struct {
	Kind DurationKind
	// Remaining counts rounds left for DurationRounds.
	Remaining int
}

// NewLifetime derives the live lifetime from a specification duration.
func NewLifetime(d Duration) Lifetime {
	return Lifetime{Kind: d.Kind, Remaining: d.Rounds}
}

// Tick advances the lifetime by one round and reports whether it expired.
// One-shot exhaustion is tracked separately by the registry; Tick only
// handles round counting.
func (l *Lifetime) Tick() (expired bool) {
	if l.Kind != DurationRounds {
		return false
	}
	l.Remaining--
	return l.Remaining <= 0
}
