package hook

import (
	"strings"

	"github.com/openleague/courtside/internal/league/meta"
)

// Result is the output of one effect's application at one hook point.
type Result struct {
	// ProbabilityDelta adjusts the success probability of the default
	// action. Deltas from multiple effects are additive; the consumer clamps
	// the final probability to [0, 1].
	ProbabilityDelta float64
	// ScoreDelta adjusts points awarded by the default action. Additive.
	ScoreDelta float64
	// StaminaDelta adjusts entity stamina. Additive; the consumer clamps to
	// [0, 100].
	StaminaDelta float64
	// MetaWrites are keyed-state writes to apply after merging.
	MetaWrites []MetaWrite
	// Narrative is flavor text contributed to report generation.
	Narrative string
	// Cancel short-circuits the default action at this hook point.
	Cancel bool
	// Expire marks the effect spent after this application (one-shot
	// lifetimes).
	Expire bool
}

// MetaWrite is one proposed keyed-state write.
type MetaWrite struct {
	EntityType string
	EntityID   string
	Field      string
	Value      any
	// Increment adds Value (numeric) to the current entry instead of
	// replacing it.
	Increment bool
}

// Merged is the combined outcome of every effect that applied at one
// dispatch.
//
// Merge rules, in registration order: numeric deltas sum (additive
// composition per modifier kind; consumers clamp), meta writes apply
// last-write-wins in evaluation order, narrative fragments concatenate, and
// any cancel flag short-circuits the default action.
type Merged struct {
	ProbabilityDelta float64
	ScoreDelta       float64
	StaminaDelta     float64
	MetaWrites       []MetaWrite
	Narrative        []string
	Cancel           bool
	// Applied counts effects whose condition held and whose action ran.
	Applied int
	// Faulted counts effects that panicked and contributed nothing.
	Faulted int
}

// Absorb folds one effect result into the merged outcome.
func (m *Merged) Absorb(r Result) {
	m.ProbabilityDelta += r.ProbabilityDelta
	m.ScoreDelta += r.ScoreDelta
	m.StaminaDelta += r.StaminaDelta
	m.MetaWrites = append(m.MetaWrites, r.MetaWrites...)
	if text := strings.TrimSpace(r.Narrative); text != "" {
		m.Narrative = append(m.Narrative, text)
	}
	if r.Cancel {
		m.Cancel = true
	}
	m.Applied++
}

// NarrativeText joins the collected fragments with single spaces.
func (m *Merged) NarrativeText() string {
	return strings.Join(m.Narrative, " ")
}

// ApplyMetaWrites applies the merged writes to the store in order, which
// yields last-write-wins per key. A nil store drops the writes.
func (m *Merged) ApplyMetaWrites(store *meta.Store) {
	if store == nil {
		return
	}
	for _, w := range m.MetaWrites {
		if w.Increment {
			delta, ok := asFloat(w.Value)
			if !ok {
				continue
			}
			store.Add(w.EntityType, w.EntityID, w.Field, delta)
			continue
		}
		store.Set(w.EntityType, w.EntityID, w.Field, w.Value)
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
