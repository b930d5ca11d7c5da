package effect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrEffectExists indicates a duplicate effect id registration.
	ErrEffectExists = errors.New("effect already registered")
	// ErrEffectNotFound indicates the effect is not in the active set.
	ErrEffectNotFound = errors.New("effect is not registered")
)

// Registry holds the active effect set for one league, indexed by hook
// point. It is read-mostly: registration and removal happen only at round
// boundaries, while dispatch reads run concurrently from game goroutines.
type Registry struct {
	mu sync.RWMutex
	// effects maps effect id to its live state.
	effects map[string]*state
	// byHook partitions effects at registration time so dispatch cost is
	// proportional to the effects subscribed to a point, not the registry.
	byHook map[string][]*state
	// lineage indexes (proposal id, spec hash) for duplicate detection.
	lineage map[lineageKey]string
	nextSeq int
}

type lineageKey struct {
	proposalID string
	specHash   string
}

// state is the registry-owned mutable wrapper around an immutable
// registered effect.
type state struct {
	eff Registered
	seq int
	// remaining counts rounds left for counted lifetimes.
	remaining int
	// spent marks a one-shot effect that has applied and awaits its expiry
	// event at the round boundary. Atomic because concurrent game
	// goroutines may dispatch against the same effect.
	spent atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		effects: make(map[string]*state),
		byHook:  make(map[string][]*state),
		lineage: make(map[lineageKey]string),
	}
}

// Register inserts an effect into the active set.
func (r *Registry) Register(eff Registered) error {
	if strings.TrimSpace(eff.ID) == "" {
		return fmt.Errorf("effect id is required")
	}
	if strings.TrimSpace(eff.ProposalID) == "" {
		return fmt.Errorf("proposal lineage is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.effects[eff.ID]; exists {
		return fmt.Errorf("%w: %s", ErrEffectExists, eff.ID)
	}

	st := &state{
		eff:       eff,
		seq:       r.nextSeq,
		remaining: eff.Lifetime.Remaining,
	}
	r.nextSeq++
	r.effects[eff.ID] = st
	for _, point := range eff.Hooks {
		r.byHook[point] = append(r.byHook[point], st)
	}
	r.lineage[lineageKey{proposalID: eff.ProposalID, specHash: eff.SpecHash}] = eff.ID
	return nil
}

// Deregister removes an effect from the active set. The caller is
// responsible for having persisted the corresponding expiry or repeal event.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) error {
	st, ok := r.effects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEffectNotFound, id)
	}
	delete(r.effects, id)
	for _, point := range st.eff.Hooks {
		subscribed := r.byHook[point]
		for i, candidate := range subscribed {
			if candidate == st {
				r.byHook[point] = append(subscribed[:i], subscribed[i+1:]...)
				break
			}
		}
		if len(r.byHook[point]) == 0 {
			delete(r.byHook, point)
		}
	}
	delete(r.lineage, lineageKey{proposalID: st.eff.ProposalID, specHash: st.eff.SpecHash})
	return nil
}

// forHook returns the live states subscribed to a hook point in
// registration order. Callers must treat the slice as read-only.
func (r *Registry) forHook(point string) []*state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byHook[point]
}

// ForHook returns the effects subscribed to a hook point in registration
// order.
func (r *Registry) ForHook(point string) []Registered {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := r.byHook[point]
	out := make([]Registered, 0, len(states))
	for _, st := range states {
		out = append(out, st.snapshot())
	}
	return out
}

// AllActive returns every active effect in registration order.
func (r *Registry) AllActive() []Registered {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]*state, 0, len(r.effects))
	for _, st := range r.effects {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].seq < states[j].seq })

	out := make([]Registered, 0, len(states))
	for _, st := range states {
		out = append(out, st.snapshot())
	}
	return out
}

// Get returns one active effect by id.
func (r *Registry) Get(id string) (Registered, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.effects[id]
	if !ok {
		return Registered{}, false
	}
	return st.snapshot(), true
}

// HasLineage reports whether an effect with the given proposal lineage and
// specification identity is already active.
func (r *Registry) HasLineage(proposalID, specHash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lineage[lineageKey{proposalID: proposalID, specHash: specHash}]
	return ok
}

// TickRound advances every lifetime by one round and removes the effects
// that expired, returning their ids in registration order. The transition is
// pure in-memory state; callers persist the resulting expiry events.
func (r *Registry) TickRound(round int) []string {
	_ = round // rounds are ticked exactly once each; the number is for callers' bookkeeping

	r.mu.Lock()
	defer r.mu.Unlock()

	var expiring []*state
	for _, st := range r.effects {
		switch {
		case st.spent.Load():
			expiring = append(expiring, st)
		case st.eff.Lifetime.Kind == DurationRounds:
			st.remaining--
			if st.remaining <= 0 {
				expiring = append(expiring, st)
			}
		}
	}
	sort.Slice(expiring, func(i, j int) bool { return expiring[i].seq < expiring[j].seq })

	expired := make([]string, 0, len(expiring))
	for _, st := range expiring {
		expired = append(expired, st.eff.ID)
		_ = r.removeLocked(st.eff.ID)
	}
	return expired
}

// markSpent records a one-shot effect's first successful application. The
// effect stops applying immediately and expires at the next round tick.
func (r *Registry) markSpent(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.effects[id]; ok {
		st.spent.Store(true)
	}
}

// Len returns the number of active effects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.effects)
}

// Summary returns a human-readable digest of the active set, one effect per
// line, for report and narrative generation.
func (r *Registry) Summary() string {
	active := r.AllActive()
	if len(active) == 0 {
		return "No active rule effects."
	}
	lines := make([]string, 0, len(active))
	for _, eff := range active {
		lines = append(lines, eff.Describe())
	}
	return strings.Join(lines, "\n")
}

// snapshot copies the immutable effect with the live remaining count filled
// in.
func (st *state) snapshot() Registered {
	eff := st.eff
	eff.Lifetime.Remaining = st.remaining
	return eff
}
