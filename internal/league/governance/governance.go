// Package governance tallies community votes on rule proposals. Tallying is
// deterministic and fires the governance hook points so registered effects
// can observe or steer outcomes.
package governance

import (
	"strings"

	"github.com/openleague/courtside/internal/league/effect"
	"github.com/openleague/courtside/internal/league/hook"
)

// Vote choices after normalization.
const (
	ChoiceYes     = "YES"
	ChoiceNo      = "NO"
	ChoiceAbstain = "ABSTAIN"
)

// NormalizeChoice maps the accepted spellings of a vote onto the canonical
// choices. Unrecognized input returns "" and does not count.
func NormalizeChoice(choice string) string {
	switch strings.ToUpper(strings.TrimSpace(choice)) {
	case "YES", "Y", "1", "TRUE":
		return ChoiceYes
	case "NO", "N", "0", "FALSE":
		return ChoiceNo
	case "ABSTAIN":
		return ChoiceAbstain
	default:
		return ""
	}
}

// CountVotes tallies a voter-to-choice map. A voter appears at most once by
// construction of the map; unrecognized choices are ignored.
func CountVotes(votes map[string]string) (yes, no, abstain int) {
	for _, v := range votes {
		switch NormalizeChoice(v) {
		case ChoiceYes:
			yes++
		case ChoiceNo:
			no++
		case ChoiceAbstain:
			abstain++
		}
	}
	return yes, no, abstain
}

// Policy decides whether a tally passes.
type Policy struct {
	// QuorumFraction is the minimum share of eligible voters that must cast
	// a countable vote (abstentions count toward quorum).
	QuorumFraction float64
	// PassFraction is the share of yes among yes+no required to pass.
	// Abstentions do not dilute the ratio. Ties at exactly the fraction
	// pass.
	PassFraction float64
}

// DefaultPolicy is simple majority with half the league showing up.
func DefaultPolicy() Policy {
	return Policy{QuorumFraction: 0.5, PassFraction: 0.5}
}

// Outcome is one proposal's tally result.
type Outcome struct {
	ProposalID string
	Yes        int
	No         int
	Abstain    int
	Eligible   int
	Quorum     bool
	Passed     bool
	// Vetoed reports that a registered effect cancelled the tally; a vetoed
	// proposal never passes regardless of the count.
	Vetoed bool
}

// Tally counts the votes for one proposal under the policy, firing the
// governance hooks around the count. The dispatcher may be nil.
func (p Policy) Tally(dispatcher *effect.Dispatcher, ctx *hook.Context, proposalID string, votes map[string]string, eligible int) Outcome {
	out := Outcome{ProposalID: proposalID, Eligible: eligible}

	if ctx == nil {
		ctx = hook.NewContext(0)
	}
	ctx.SetField("proposal.id", proposalID)
	ctx.SetField("tally.eligible", float64(eligible))
	if dispatcher != nil {
		before := dispatcher.Dispatch(hook.PointGovernanceTallyBefore, ctx)
		out.Vetoed = before.Cancel
	}

	out.Yes, out.No, out.Abstain = CountVotes(votes)
	cast := out.Yes + out.No + out.Abstain
	out.Quorum = eligible <= 0 || float64(cast) >= p.QuorumFraction*float64(eligible)

	decisive := out.Yes + out.No
	out.Passed = !out.Vetoed && out.Quorum && decisive > 0 &&
		float64(out.Yes) >= p.PassFraction*float64(decisive)

	ctx.SetField("tally.yes", float64(out.Yes))
	ctx.SetField("tally.no", float64(out.No))
	ctx.SetField("tally.abstain", float64(out.Abstain))
	ctx.SetField("tally.passed", out.Passed)
	if dispatcher != nil {
		dispatcher.Dispatch(hook.PointGovernanceTallyAfter, ctx)
	}
	return out
}
