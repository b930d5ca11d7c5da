// Package sim runs deterministic basketball games over the league ruleset.
// A game is a fixed possession loop: given the same seed, ruleset, and
// active effect set, two runs produce identical results.
package sim

import (
	"math"
	"math/rand"

	"github.com/openleague/courtside/internal/league/effect"
	"github.com/openleague/courtside/internal/league/hook"
	"github.com/openleague/courtside/internal/league/meta"
	"github.com/openleague/courtside/internal/league/ruleset"
)

// Team identifies one side of a matchup.
type Team struct {
	ID    string
	Name  string
	Owner string
}

// TeamBox is one team's line in a finished game.
type TeamBox struct {
	Team          Team
	Score         int
	FieldGoals    int
	ThreePointers int
	Blocked       int
	Stamina       float64
}

// GameResult is the complete outcome of one simulated game.
type GameResult struct {
	Round    int
	Seed     int64
	Home     TeamBox
	Away     TeamBox
	Quarters []QuarterScore
}

// QuarterScore is the running score at the end of one quarter.
type QuarterScore struct {
	Quarter int
	Home    int
	Away    int
}

// Winner returns the winning team's box score and the margin of victory.
// Ties report the home team with margin zero.
func (g GameResult) Winner() (TeamBox, int) {
	if g.Away.Score > g.Home.Score {
		return g.Away, g.Away.Score - g.Home.Score
	}
	return g.Home, g.Home.Score - g.Away.Score
}

// Engine simulates games. The dispatcher is consulted at every hook point;
// a nil dispatcher runs the baseline ruleset untouched.
type Engine struct {
	Rules      *ruleset.Ruleset
	Dispatcher *effect.Dispatcher
}

const fullStamina = 100

// PlayGame simulates one game between home and away for the given round.
// All randomness flows from the seed. Keyed-state writes proposed by
// effects land in store; a nil store drops them.
func (e *Engine) PlayGame(round int, seed int64, home, away Team, store *meta.Store) GameResult {
	rules := e.Rules
	if rules == nil {
		rules = ruleset.Default()
	}
	rng := rand.New(rand.NewSource(seed))

	result := GameResult{
		Round: round,
		Seed:  seed,
		Home:  TeamBox{Team: home, Stamina: fullStamina},
		Away:  TeamBox{Team: away, Stamina: fullStamina},
	}

	ctx := hook.NewContext(round)
	ctx.Meta = store
	ctx.RNG = rng
	ctx.SetField("game.home", home.ID)
	ctx.SetField("game.away", away.ID)
	e.dispatch(hook.PointSimGameStart, ctx)

	for quarter := 1; quarter <= rules.QuarterCount; quarter++ {
		for possession := 1; possession <= rules.PossessionsPerQuarter; possession++ {
			offense, defense := &result.Home, &result.Away
			if possession%2 == 0 {
				offense, defense = &result.Away, &result.Home
			}
			e.playPossession(ctx, rules, rng, quarter, possession, offense, defense)
		}

		result.Quarters = append(result.Quarters, QuarterScore{
			Quarter: quarter,
			Home:    result.Home.Score,
			Away:    result.Away.Score,
		})
		ctx.SetField("segment.index", quarter)
		ctx.SetField("game.score.home", result.Home.Score)
		ctx.SetField("game.score.away", result.Away.Score)
		e.dispatch(hook.PointSimSegmentEnd, ctx)
	}

	e.finishGame(ctx, &result, store)
	return result
}

// playPossession runs one atomic game action: a single shot attempt by the
// offense. Effects fire before the attempt (cancel blocks the shot, deltas
// shift probability, points, and stamina) and again after, observing the
// outcome.
func (e *Engine) playPossession(ctx *hook.Context, rules *ruleset.Ruleset, rng *rand.Rand, quarter, possession int, offense, defense *TeamBox) {
	threePoint := rng.Float64() < rules.ThreePointRate

	ctx.SetField("entity.id", offense.Team.ID)
	ctx.SetField("entity.role", "team")
	ctx.SetField("entity.owner", offense.Team.Owner)
	ctx.SetField("entity.stamina", offense.Stamina)
	ctx.SetField("opponent.id", defense.Team.ID)
	ctx.SetField("game.quarter", quarter)
	ctx.SetField("game.possession", possession)
	ctx.SetField("game.score.diff", float64(offense.Score-defense.Score))
	ctx.SetField("action.type", "shot")
	ctx.SetField("shot.three_point", threePoint)

	before := e.dispatch(hook.PointSimActionBefore, ctx)
	made := false
	points := 0
	if before.Cancel {
		offense.Blocked++
	} else {
		probability := rules.BaseShotProbability + before.ProbabilityDelta
		// Tired teams shoot worse: scale by a stamina factor in [0.5, 1].
		probability *= 0.5 + offense.Stamina/(2*fullStamina)
		probability = clamp(probability, 0, 1)

		if rng.Float64() < probability {
			made = true
			points = 2
			if threePoint {
				points = 3
				offense.ThreePointers++
			}
			points += int(math.Round(before.ScoreDelta))
			if points < 0 {
				points = 0
			}
			offense.Score += points
			offense.FieldGoals++
		}
	}

	offense.Stamina = clamp(offense.Stamina-rules.StaminaDrain+before.StaminaDelta, 0, fullStamina)

	ctx.SetField("entity.stamina", offense.Stamina)
	ctx.SetField("shot.made", made)
	ctx.SetField("shot.blocked", before.Cancel)
	ctx.SetField("shot.points", float64(points))
	after := e.dispatch(hook.PointSimActionAfter, ctx)
	offense.Stamina = clamp(offense.Stamina+after.StaminaDelta, 0, fullStamina)
}

// finishGame fires the game-end hook once per team so effects can react to
// each side's margin independently, then records final state in the store.
func (e *Engine) finishGame(ctx *hook.Context, result *GameResult, store *meta.Store) {
	boxes := [2]*TeamBox{&result.Home, &result.Away}
	for i, box := range boxes {
		opponent := boxes[1-i]
		margin := box.Score - opponent.Score
		ctx.SetField("entity.id", box.Team.ID)
		ctx.SetField("entity.role", "team")
		ctx.SetField("entity.owner", box.Team.Owner)
		ctx.SetField("entity.stamina", box.Stamina)
		ctx.SetField("game.margin", float64(margin))
		ctx.SetField("game.won", margin > 0)
		e.dispatch(hook.PointSimGameEnd, ctx)
	}

	if store == nil {
		return
	}
	for i, box := range boxes {
		opponent := boxes[1-i]
		store.Set("team", box.Team.ID, "stamina", box.Stamina)
		store.Add("team", box.Team.ID, "points_scored", float64(box.Score))
		store.Add("team", box.Team.ID, "points_allowed", float64(opponent.Score))
		if box.Score > opponent.Score {
			store.Add("team", box.Team.ID, "wins", 1)
		} else if box.Score < opponent.Score {
			store.Add("team", box.Team.ID, "losses", 1)
		}
	}
}

func (e *Engine) dispatch(point hook.Point, ctx *hook.Context) hook.Merged {
	if e.Dispatcher == nil {
		return hook.Merged{}
	}
	return e.Dispatcher.Dispatch(point, ctx)
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
