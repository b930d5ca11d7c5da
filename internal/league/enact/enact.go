// Package enact converts passed proposals into registered effects and
// handles their repeal. Enactment is atomic per proposal and idempotent
// under crash replay.
package enact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openleague/courtside/internal/league/effect"
	"github.com/openleague/courtside/internal/league/event"
	"github.com/openleague/courtside/internal/league/storage"
	"github.com/openleague/courtside/internal/platform/id"
)

var (
	// ErrNotRepealable signals a repeal aimed at a parameter-change
	// lineage. Ruleset parameters move only by new forward proposals, never
	// by structural rollback; the repeal is a deliberate no-op.
	ErrNotRepealable = errors.New("parameter changes are not repealable")
)

// ParameterApplier is the external ruleset-update path that
// parameter_change specifications delegate to.
type ParameterApplier interface {
	ApplyParameterChange(change effect.ParameterChange) error
}

// Proposal is a community proposal that has passed its vote, carrying
// validated effect specifications.
type Proposal struct {
	ID    string
	Specs []effect.Specification
}

// Outcome reports what one enactment produced.
type Outcome struct {
	// RegisteredIDs are the ids of newly registered effects, in
	// specification order.
	RegisteredIDs []string
	// ParameterIDs identify applied parameter changes so repeal attempts
	// against them can be answered with the not-repealable signal.
	ParameterIDs []string
	// Duplicates counts specifications suppressed by lineage identity
	// (crash replay of an already-enacted proposal).
	Duplicates int
}

// Pipeline enacts proposals against one league's registry and journal.
type Pipeline struct {
	LeagueID   string
	Events     storage.EventStore
	Registry   *effect.Registry
	Parameters ParameterApplier
	// NewID generates effect ids; defaults to id.NewID.
	NewID func() (string, error)

	mu sync.Mutex
	// paramOrigin remembers parameter-change lineage ids issued by this
	// pipeline. Parameter changes are never registered, so this is the
	// only place a repeal can learn the target was parameter-origin.
	paramOrigin map[string]bool
}

// EnactProposal registers every non-parameter specification of a passed
// proposal and delegates parameter changes to the ruleset updater.
//
// Atomicity: every specification is validated and compiled before any event
// is appended or any registry insert happens; a single invalid specification
// means zero effects registered. Idempotence: lineage plus specification
// identity suppresses duplicates when the same proposal-passed signal is
// replayed after a crash.
func (p *Pipeline) EnactProposal(ctx context.Context, proposal Proposal) (Outcome, error) {
	var out Outcome
	if p == nil || p.Events == nil || p.Registry == nil {
		return out, fmt.Errorf("pipeline is not configured")
	}
	if strings.TrimSpace(proposal.ID) == "" {
		return out, fmt.Errorf("proposal id is required")
	}

	// Validate the whole proposal up front so a failure in any
	// specification leaves nothing registered.
	var flat []effect.Specification
	for i, spec := range proposal.Specs {
		if err := spec.Validate(); err != nil {
			return out, fmt.Errorf("specification %d: %w", i, err)
		}
		flat = append(flat, spec.Flatten()...)
	}

	var (
		params   []effect.ParameterChange
		compiled []effect.Registered
		seen     = make(map[string]bool)
	)
	for i, spec := range flat {
		if spec.Kind == effect.KindParameterChange {
			params = append(params, *spec.Parameter)
			continue
		}
		effectID, err := p.newID()
		if err != nil {
			return out, fmt.Errorf("assign effect id: %w", err)
		}
		eff, err := effect.Compile(spec, effectID, proposal.ID)
		if err != nil {
			return out, fmt.Errorf("specification %d: %w", i, err)
		}
		if p.Registry.HasLineage(proposal.ID, eff.SpecHash) || seen[eff.SpecHash] {
			out.Duplicates++
			continue
		}
		seen[eff.SpecHash] = true
		compiled = append(compiled, eff)
	}

	// Journal the whole proposal as one atomic batch before touching the
	// live registry. A journal failure persists nothing, so reconstruction
	// can never observe a partial registration of a multi-effect proposal.
	batch := make([]event.Event, 0, len(compiled))
	for _, eff := range compiled {
		payload, err := json.Marshal(effect.RegisteredPayload{
			EffectID:   eff.ID,
			ProposalID: eff.ProposalID,
			SpecHash:   eff.SpecHash,
			Spec:       eff.Spec,
		})
		if err != nil {
			return out, fmt.Errorf("encode effect %s: %w", eff.ID, err)
		}
		batch = append(batch, event.Event{
			LeagueID:    p.LeagueID,
			Type:        event.TypeEffectRegistered,
			EffectID:    eff.ID,
			ProposalID:  eff.ProposalID,
			PayloadJSON: payload,
		})
	}
	if len(batch) > 0 {
		if _, err := p.Events.AppendEvents(ctx, batch); err != nil {
			return out, fmt.Errorf("append registered events for proposal %s: %w", proposal.ID, err)
		}
	}
	for _, eff := range compiled {
		if err := p.Registry.Register(eff); err != nil {
			return out, fmt.Errorf("register effect %s: %w", eff.ID, err)
		}
		out.RegisteredIDs = append(out.RegisteredIDs, eff.ID)
	}

	for _, change := range params {
		if p.Parameters == nil {
			return out, fmt.Errorf("parameter change %q: no ruleset updater configured", change.Name)
		}
		if err := p.Parameters.ApplyParameterChange(change); err != nil {
			return out, fmt.Errorf("apply parameter change %q: %w", change.Name, err)
		}
		paramID, err := p.newID()
		if err != nil {
			return out, fmt.Errorf("assign parameter lineage id: %w", err)
		}
		payload, err := json.Marshal(change)
		if err != nil {
			return out, fmt.Errorf("encode parameter change %q: %w", change.Name, err)
		}
		if _, err := p.Events.AppendEvent(ctx, event.Event{
			LeagueID:    p.LeagueID,
			Type:        event.TypeParameterApplied,
			EffectID:    paramID,
			ProposalID:  proposal.ID,
			PayloadJSON: payload,
		}); err != nil {
			return out, fmt.Errorf("append parameter event for %q: %w", change.Name, err)
		}
		p.rememberParamOrigin(paramID)
		out.ParameterIDs = append(out.ParameterIDs, paramID)
	}
	return out, nil
}

// RestoreParameterLineage reloads parameter-change lineage from the journal
// so repeal attempts against parameter-origin ids answer ErrNotRepealable
// across process restarts.
func (p *Pipeline) RestoreParameterLineage(ctx context.Context) error {
	if p == nil || p.Events == nil {
		return fmt.Errorf("pipeline is not configured")
	}
	events, err := p.Events.ListEventsByTypes(ctx, p.LeagueID, []event.Type{event.TypeParameterApplied})
	if err != nil {
		return fmt.Errorf("list parameter lineage: %w", err)
	}
	for _, evt := range events {
		if evt.EffectID != "" {
			p.rememberParamOrigin(evt.EffectID)
		}
	}
	return nil
}

// Repeal retracts a previously registered effect on behalf of a passed
// repeal proposal. The repealed event is appended before the live registry
// drops the effect, so reconstruction excludes it by construction.
//
// Repealing a parameter-change lineage returns ErrNotRepealable with no
// event appended and no state change.
func (p *Pipeline) Repeal(ctx context.Context, repealProposalID, effectID string) error {
	if p == nil || p.Events == nil || p.Registry == nil {
		return fmt.Errorf("pipeline is not configured")
	}
	if strings.TrimSpace(repealProposalID) == "" {
		return fmt.Errorf("repeal proposal id is required")
	}
	if p.isParamOrigin(effectID) {
		return ErrNotRepealable
	}
	if _, ok := p.Registry.Get(effectID); !ok {
		return fmt.Errorf("%w: %s", effect.ErrEffectNotFound, effectID)
	}

	if _, err := p.Events.AppendEvent(ctx, event.Event{
		LeagueID:   p.LeagueID,
		Type:       event.TypeEffectRepealed,
		EffectID:   effectID,
		ProposalID: repealProposalID,
	}); err != nil {
		return fmt.Errorf("append repealed event for %s: %w", effectID, err)
	}
	if err := p.Registry.Deregister(effectID); err != nil {
		return fmt.Errorf("deregister effect %s: %w", effectID, err)
	}
	return nil
}

func (p *Pipeline) newID() (string, error) {
	if p.NewID != nil {
		return p.NewID()
	}
	return id.NewID()
}

func (p *Pipeline) rememberParamOrigin(paramID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paramOrigin == nil {
		p.paramOrigin = make(map[string]bool)
	}
	p.paramOrigin[paramID] = true
}

func (p *Pipeline) isParamOrigin(effectID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paramOrigin[effectID]
}
