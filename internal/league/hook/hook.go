// Package hook defines the extension points where registered effects observe
// and mutate engine behavior: the hook point catalog, the per-dispatch
// context, and the result merge rules.
//
// Hook points are flat dotted identifiers so new ones can be introduced by
// specification alone, without new code paths.
package hook

// Point identifies a hook point.
type Point = string

// Simulation hooks, fired from the hot path. Handlers must be cheap: these
// fire once per atomic game action, potentially thousands of times per game.
const (
	PointSimGameStart    Point = "sim.game.start"
	PointSimActionBefore Point = "sim.action.before"
	PointSimActionAfter  Point = "sim.action.after"
	PointSimSegmentEnd   Point = "sim.segment.end"
	PointSimGameEnd      Point = "sim.game.end"
)

// Round hooks, fired a handful of times per round.
const (
	PointRoundStart      Point = "round.start"
	PointRoundGameBefore Point = "round.game.before"
	PointRoundGameAfter  Point = "round.game.after"
	PointRoundEnd        Point = "round.end"
)

// Governance hooks, fired around vote tallying.
const (
	PointGovernanceTallyBefore Point = "governance.tally.before"
	PointGovernanceTallyAfter  Point = "governance.tally.after"
)

// Report hooks, fired before narrative text is produced.
const (
	PointReportNarrativeBefore Point = "report.narrative.before"
)

// KnownPoints returns the built-in hook catalog. The catalog is
// representative, not exhaustive: effects may subscribe to identifiers not
// listed here.
func KnownPoints() []Point {
	return []Point{
		PointSimGameStart,
		PointSimActionBefore,
		PointSimActionAfter,
		PointSimSegmentEnd,
		PointSimGameEnd,
		PointRoundStart,
		PointRoundGameBefore,
		PointRoundGameAfter,
		PointRoundEnd,
		PointGovernanceTallyBefore,
		PointGovernanceTallyAfter,
		PointReportNarrativeBefore,
	}
}
