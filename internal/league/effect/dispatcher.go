package effect

import (
	"log"

	"github.com/openleague/courtside/internal/league/hook"
)

// Dispatcher fires hook points against the active effect set. Dispatch is
// fully synchronous and performs no I/O: it runs inside the simulation hot
// path, so cost is proportional only to the effects subscribed to the fired
// point.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch evaluates every effect subscribed to the hook point against the
// context, in registration order, and merges their results.
//
// A condition referencing a missing context field evaluates to false; the
// effect simply does not apply. A panicking effect contributes nothing and
// is counted in Merged.Faulted; no error ever propagates into the
// simulation loop. Merged meta writes are applied to ctx.Meta before
// returning, so later dispatches in the same phase observe them.
func (d *Dispatcher) Dispatch(point string, ctx *hook.Context) hook.Merged {
	var merged hook.Merged
	if d == nil || d.registry == nil || ctx == nil {
		return merged
	}

	for _, st := range d.registry.forHook(point) {
		if st.spent.Load() {
			continue
		}
		result, applied, faulted := applyOne(st, ctx)
		if faulted {
			merged.Faulted++
			continue
		}
		if !applied {
			continue
		}
		if st.eff.Lifetime.Kind == DurationSingleOccurrence {
			// First successful application wins; a concurrent game that
			// lost the race discards its result.
			if !st.spent.CompareAndSwap(false, true) {
				continue
			}
		} else if result.Expire {
			d.registry.markSpent(st.eff.ID)
		}
		merged.Absorb(result)
	}

	merged.ApplyMetaWrites(ctx.Meta)
	return merged
}

// applyOne isolates a single effect application so a panic degrades to
// "this effect contributed nothing this call".
func applyOne(st *state, ctx *hook.Context) (result hook.Result, applied, faulted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("effect %s panicked during dispatch: %v", st.eff.ID, rec)
			result = hook.Result{}
			applied = false
			faulted = true
		}
	}()

	if !st.eff.Condition.Eval(ctx) {
		return hook.Result{}, false, false
	}
	return st.eff.Action.Apply(ctx), true, false
}
