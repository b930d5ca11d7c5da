// Package narrative renders the human-readable round report from game
// results, governance outcomes, and effect-contributed flavor text.
package narrative

import (
	"fmt"
	"strings"

	"github.com/openleague/courtside/internal/league/effect"
	"github.com/openleague/courtside/internal/league/governance"
	"github.com/openleague/courtside/internal/league/hook"
	"github.com/openleague/courtside/internal/league/meta"
	"github.com/openleague/courtside/internal/league/sim"
)

// Report is the rendered summary of one round.
type Report struct {
	Round int
	Lines []string
}

// Text renders the report as newline-joined prose.
func (r Report) Text() string {
	return strings.Join(r.Lines, "\n")
}

// Builder assembles round reports. Registry may be nil when no effect
// digest is wanted.
type Builder struct {
	Dispatcher *effect.Dispatcher
	Registry   *effect.Registry
}

// BuildRoundReport renders one round: a line per game, a line per tallied
// proposal, effect narrative gathered from the report hook, and the active
// effect digest.
func (b Builder) BuildRoundReport(round int, games []sim.GameResult, outcomes []governance.Outcome, store *meta.Store) Report {
	report := Report{Round: round}
	report.Lines = append(report.Lines, fmt.Sprintf("Round %d", round))

	for _, g := range games {
		winner, margin := g.Winner()
		line := fmt.Sprintf("%s %d, %s %d", g.Home.Team.Name, g.Home.Score, g.Away.Team.Name, g.Away.Score)
		if margin == 0 {
			line += " (tie)"
		} else {
			line += fmt.Sprintf(" (%s by %d)", winner.Team.Name, margin)
		}
		report.Lines = append(report.Lines, line)
	}

	for _, o := range outcomes {
		verdict := "failed"
		switch {
		case o.Vetoed:
			verdict = "vetoed"
		case !o.Quorum:
			verdict = "failed quorum"
		case o.Passed:
			verdict = "passed"
		}
		report.Lines = append(report.Lines,
			fmt.Sprintf("proposal %s %s (%d yes, %d no, %d abstain)", o.ProposalID, verdict, o.Yes, o.No, o.Abstain))
	}

	if b.Dispatcher != nil {
		ctx := hook.NewContext(round)
		ctx.Meta = store
		ctx.SetField("report.games", float64(len(games)))
		merged := b.Dispatcher.Dispatch(hook.PointReportNarrativeBefore, ctx)
		if text := merged.NarrativeText(); text != "" {
			report.Lines = append(report.Lines, text)
		}
	}

	if b.Registry != nil && b.Registry.Len() > 0 {
		report.Lines = append(report.Lines, "active effects: "+b.Registry.Summary())
	}
	return report
}
