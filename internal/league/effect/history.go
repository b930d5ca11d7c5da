package effect

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/openleague/courtside/internal/league/event"
)

// RegisteredPayload is the JSON payload of an effect.registered event. It
// carries the full specification so the effect can be recompiled during
// reconstruction.
type RegisteredPayload struct {
	EffectID   string        `json:"effect_id"`
	ProposalID string        `json:"proposal_id"`
	SpecHash   string        `json:"spec_hash"`
	Spec       Specification `json:"spec"`
}

// FromHistory rebuilds the active effect set as a pure fold over the ordered
// event sequence: active = registered − expired − repealed.
//
// The result depends only on the input events: calling FromHistory twice
// with the same sequence yields identical registries, with no dependency on
// process memory. Malformed events are skipped and reported as warnings
// rather than aborting reconstruction of the remaining active set.
func FromHistory(events []event.Event) (*Registry, []string) {
	ordered := make([]event.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	registry := NewRegistry()
	var warnings []string

	for _, evt := range ordered {
		switch evt.Type {
		case event.TypeEffectRegistered:
			var payload RegisteredPayload
			if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
				warnings = append(warnings, fmt.Sprintf("seq %d: malformed registered payload: %v", evt.Seq, err))
				continue
			}
			eff, err := Compile(payload.Spec, payload.EffectID, payload.ProposalID)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("seq %d: uncompilable effect %s: %v", evt.Seq, payload.EffectID, err))
				continue
			}
			if err := registry.Register(eff); err != nil {
				warnings = append(warnings, fmt.Sprintf("seq %d: register effect %s: %v", evt.Seq, payload.EffectID, err))
			}
		case event.TypeEffectExpired, event.TypeEffectRepealed:
			if evt.EffectID == "" {
				warnings = append(warnings, fmt.Sprintf("seq %d: %s event without effect id", evt.Seq, evt.Type))
				continue
			}
			if err := registry.Deregister(evt.EffectID); err != nil {
				warnings = append(warnings, fmt.Sprintf("seq %d: remove effect %s: %v", evt.Seq, evt.EffectID, err))
			}
		default:
			// Other event types do not participate in the active set.
		}
	}
	return registry, warnings
}
