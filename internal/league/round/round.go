// Package round orchestrates one league round end to end: load persisted
// state, tally governance, enact passed proposals, simulate the scheduled
// games, render the report, and finalize lifetimes and keyed state.
package round

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openleague/courtside/internal/league/effect"
	"github.com/openleague/courtside/internal/league/enact"
	"github.com/openleague/courtside/internal/league/event"
	"github.com/openleague/courtside/internal/league/governance"
	"github.com/openleague/courtside/internal/league/hook"
	"github.com/openleague/courtside/internal/league/interpret"
	"github.com/openleague/courtside/internal/league/meta"
	"github.com/openleague/courtside/internal/league/narrative"
	"github.com/openleague/courtside/internal/league/ruleset"
	"github.com/openleague/courtside/internal/league/sim"
	"github.com/openleague/courtside/internal/league/storage"
	"github.com/openleague/courtside/internal/platform/timeouts"
)

const tracerName = "courtside/round"

// Matchup schedules one game.
type Matchup struct {
	Home sim.Team
	Away sim.Team
}

// PendingProposal is a proposal up for tallying this round. Specs, when
// non-nil, skip interpretation; otherwise Text is sent to the interpreter
// after the proposal passes.
type PendingProposal struct {
	ID       string
	Text     string
	Specs    []effect.Specification
	Votes    map[string]string
	Eligible int
}

// Input is everything one round consumes.
type Input struct {
	Round     int
	Proposals []PendingProposal
	Schedule  []Matchup
}

// Result is everything one round produces.
type Result struct {
	Round    int
	Outcomes []governance.Outcome
	Enacted  []enact.Outcome
	Games    []sim.GameResult
	Report   narrative.Report
	Expired  []string
}

// Orchestrator owns one league's live engine state across rounds.
type Orchestrator struct {
	LeagueID    string
	Events      storage.EventStore
	Keyed       storage.KeyedStateStore
	Rules       *ruleset.Ruleset
	Interpreter interpret.Interpreter
	Policy      governance.Policy
	// Concurrency caps parallel game simulation; values below 2 run the
	// schedule sequentially.
	Concurrency int

	registry   *effect.Registry
	dispatcher *effect.Dispatcher
	meta       *meta.Store
	pipeline   *enact.Pipeline
	engine     *sim.Engine
}

// Load builds an orchestrator by replaying the league journal into a fresh
// registry and hydrating keyed state for the scheduled teams.
func Load(ctx context.Context, leagueID string, events storage.EventStore, keyed storage.KeyedStateStore, rules *ruleset.Ruleset) (*Orchestrator, error) {
	if rules == nil {
		rules = ruleset.Default()
	}
	history, err := events.ListEventsByTypes(ctx, leagueID, event.EffectLifecycleTypes())
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	registry, warnings := effect.FromHistory(history)
	for _, w := range warnings {
		log.Printf("league %s journal: %s", leagueID, w)
	}

	o := &Orchestrator{
		LeagueID: leagueID,
		Events:   events,
		Keyed:    keyed,
		Rules:    rules,
		Policy:   governance.DefaultPolicy(),

		registry:   registry,
		dispatcher: effect.NewDispatcher(registry),
		meta:       meta.NewStore(),
	}
	o.pipeline = &enact.Pipeline{
		LeagueID:   leagueID,
		Events:     events,
		Registry:   registry,
		Parameters: rules,
	}
	if err := o.pipeline.RestoreParameterLineage(ctx); err != nil {
		return nil, err
	}
	o.engine = &sim.Engine{Rules: rules, Dispatcher: o.dispatcher}
	return o, nil
}

// Registry exposes the live effect set, mostly for tests and tooling.
func (o *Orchestrator) Registry() *effect.Registry { return o.registry }

// Meta exposes the live keyed-state view.
func (o *Orchestrator) Meta() *meta.Store { return o.meta }

// Pipeline exposes the enactment pipeline so callers can repeal directly.
func (o *Orchestrator) Pipeline() *enact.Pipeline { return o.pipeline }

// RunRound executes one round. Journal appends made by enactment are facts
// and survive a later cancellation; keyed state only persists if the round
// reaches finalization, so a cancelled round leaves the previous round's
// flushed state untouched.
func (o *Orchestrator) RunRound(ctx context.Context, in Input) (*Result, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "round.run")
	span.SetAttributes(attribute.String("league.id", o.LeagueID), attribute.Int("round", in.Round))
	defer span.End()

	result := &Result{Round: in.Round}

	if err := o.hydrate(ctx, in); err != nil {
		return nil, err
	}

	hookCtx := hook.NewContext(in.Round)
	hookCtx.Meta = o.meta
	o.dispatcher.Dispatch(hook.PointRoundStart, hookCtx)

	if err := o.govern(ctx, in, result); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.simulate(ctx, in, result); err != nil {
		return nil, err
	}

	builder := narrative.Builder{Dispatcher: o.dispatcher, Registry: o.registry}
	result.Report = builder.BuildRoundReport(in.Round, result.Games, result.Outcomes, o.meta)

	if err := o.finalize(ctx, in, result); err != nil {
		return result, err
	}
	return result, nil
}

// hydrate pulls keyed state for every team in the schedule into the round's
// working view.
func (o *Orchestrator) hydrate(ctx context.Context, in Input) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "round.hydrate")
	defer span.End()

	var refs []storage.Ref
	for _, m := range in.Schedule {
		refs = append(refs,
			storage.Ref{EntityType: "team", EntityID: m.Home.ID},
			storage.Ref{EntityType: "team", EntityID: m.Away.ID})
	}
	if len(refs) == 0 {
		return nil
	}
	if err := o.meta.LoadBatch(ctx, o.Keyed, refs); err != nil {
		return fmt.Errorf("hydrate keyed state: %w", err)
	}
	return nil
}

// govern tallies each pending proposal and enacts the ones that pass. An
// interpreter failure or timeout degrades to skipping that proposal; it
// never aborts the round.
func (o *Orchestrator) govern(ctx context.Context, in Input, result *Result) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "round.govern")
	defer span.End()

	hookCtx := hook.NewContext(in.Round)
	hookCtx.Meta = o.meta

	for _, pending := range in.Proposals {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := o.Policy.Tally(o.dispatcher, hookCtx, pending.ID, pending.Votes, pending.Eligible)
		result.Outcomes = append(result.Outcomes, outcome)
		if !outcome.Passed {
			continue
		}

		specs := pending.Specs
		if specs == nil {
			var err error
			specs, err = o.interpretProposal(ctx, pending)
			if err != nil {
				log.Printf("league %s proposal %s: interpretation failed, no effects this round: %v", o.LeagueID, pending.ID, err)
				continue
			}
		}

		enacted, err := o.pipeline.EnactProposal(ctx, enact.Proposal{ID: pending.ID, Specs: specs})
		if err != nil {
			log.Printf("league %s proposal %s: enactment rejected: %v", o.LeagueID, pending.ID, err)
			continue
		}
		result.Enacted = append(result.Enacted, enacted)
	}
	return nil
}

func (o *Orchestrator) interpretProposal(ctx context.Context, pending PendingProposal) ([]effect.Specification, error) {
	if o.Interpreter == nil {
		return nil, fmt.Errorf("no interpreter configured")
	}
	guarded := interpret.Guarded{Inner: o.Interpreter, Timeout: timeouts.Interpret}
	return guarded.Interpret(ctx, pending.Text, o.Rules)
}

// simulate plays the schedule. Game seeds derive from league, round, and
// schedule position, so a replayed round reproduces identical games.
func (o *Orchestrator) simulate(ctx context.Context, in Input, result *Result) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "round.simulate")
	span.SetAttributes(attribute.Int("games", len(in.Schedule)))
	defer span.End()

	hookCtx := hook.NewContext(in.Round)
	hookCtx.Meta = o.meta
	for _, m := range in.Schedule {
		hookCtx.SetField("game.home", m.Home.ID)
		hookCtx.SetField("game.away", m.Away.ID)
		o.dispatcher.Dispatch(hook.PointRoundGameBefore, hookCtx)
	}

	result.Games = make([]sim.GameResult, len(in.Schedule))
	if o.Concurrency > 1 && len(in.Schedule) > 1 {
		o.simulateParallel(in, result.Games)
	} else {
		for i, m := range in.Schedule {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Games[i] = o.engine.PlayGame(in.Round, GameSeed(o.LeagueID, in.Round, i), m.Home, m.Away, o.meta)
		}
	}

	for _, g := range result.Games {
		hookCtx.SetField("game.home", g.Home.Team.ID)
		hookCtx.SetField("game.away", g.Away.Team.ID)
		hookCtx.SetField("game.margin", float64(g.Home.Score-g.Away.Score))
		o.dispatcher.Dispatch(hook.PointRoundGameAfter, hookCtx)
	}
	return ctx.Err()
}

func (o *Orchestrator) simulateParallel(in Input, games []sim.GameResult) {
	limit := o.Concurrency
	if limit > len(in.Schedule) {
		limit = len(in.Schedule)
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, m := range in.Schedule {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, m Matchup) {
			defer wg.Done()
			defer func() { <-sem }()
			games[i] = o.engine.PlayGame(in.Round, GameSeed(o.LeagueID, in.Round, i), m.Home, m.Away, o.meta)
		}(i, m)
	}
	wg.Wait()
}

// finalize ticks effect lifetimes, journals expirations, fires the
// round-end hook, and flushes keyed state. A flush failure leaves the
// entries dirty so the next attempt retries them.
func (o *Orchestrator) finalize(ctx context.Context, in Input, result *Result) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "round.finalize")
	defer span.End()

	// Capture lineage before ticking; expired effects leave the registry.
	origins := make(map[string]string)
	for _, eff := range o.registry.AllActive() {
		origins[eff.ID] = eff.ProposalID
	}

	result.Expired = o.registry.TickRound(in.Round)
	for _, id := range result.Expired {
		_, err := o.Events.AppendEvent(ctx, event.Event{
			LeagueID:   o.LeagueID,
			Timestamp:  time.Now().UTC(),
			Type:       event.TypeEffectExpired,
			EffectID:   id,
			ProposalID: origins[id],
		})
		if err != nil {
			return fmt.Errorf("journal expiry of effect %s: %w", id, err)
		}
	}

	hookCtx := hook.NewContext(in.Round)
	hookCtx.Meta = o.meta
	hookCtx.SetField("round.games", float64(len(result.Games)))
	o.dispatcher.Dispatch(hook.PointRoundEnd, hookCtx)

	if err := o.meta.Flush(ctx, o.Keyed); err != nil {
		return fmt.Errorf("flush keyed state: %w", err)
	}
	return nil
}

// GameSeed derives the deterministic seed for one scheduled game.
func GameSeed(leagueID string, round, index int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d", leagueID, round, index)
	return int64(h.Sum64())
}
