// Package ruleset holds the league's tunable parameters. Parameters move
// only forward: a parameter_change specification applies a new value, and
// repeal of a past change is refused at the enactment boundary.
package ruleset

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/openleague/courtside/internal/league/effect"
)

// Ruleset is the set of league parameters the simulation consumes.
type Ruleset struct {
	// QuarterCount is the number of segments per game.
	QuarterCount int `yaml:"quarter_count"`
	// PossessionsPerQuarter is the number of atomic actions per segment.
	PossessionsPerQuarter int `yaml:"possessions_per_quarter"`
	// BaseShotProbability is the unmodified chance a possession scores.
	BaseShotProbability float64 `yaml:"base_shot_probability"`
	// ThreePointRate is the chance a made shot counts three.
	ThreePointRate float64 `yaml:"three_point_rate"`
	// StaminaDrain is the stamina cost per possession.
	StaminaDrain float64 `yaml:"stamina_drain"`
	// Parameters holds governance-introduced parameters with no dedicated
	// field.
	Parameters map[string]float64 `yaml:"parameters,omitempty"`

	mu      sync.Mutex
	applied []effect.ParameterChange
}

// Default returns the stock league parameters.
func Default() *Ruleset {
	return &Ruleset{
		QuarterCount:          4,
		PossessionsPerQuarter: 25,
		BaseShotProbability:   0.45,
		ThreePointRate:        0.3,
		StaminaDrain:          0.4,
	}
}

// Load reads a ruleset from a YAML file.
func Load(path string) (*Ruleset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates YAML ruleset contents.
func Parse(raw []byte) (*Ruleset, error) {
	rules := Default()
	if err := yaml.Unmarshal(raw, rules); err != nil {
		return nil, fmt.Errorf("parse ruleset yaml: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Validate rejects parameter values the simulation cannot run with.
func (r *Ruleset) Validate() error {
	if r.QuarterCount <= 0 {
		return fmt.Errorf("quarter_count must be positive")
	}
	if r.PossessionsPerQuarter <= 0 {
		return fmt.Errorf("possessions_per_quarter must be positive")
	}
	if r.BaseShotProbability < 0 || r.BaseShotProbability > 1 {
		return fmt.Errorf("base_shot_probability must be within [0, 1]")
	}
	if r.ThreePointRate < 0 || r.ThreePointRate > 1 {
		return fmt.Errorf("three_point_rate must be within [0, 1]")
	}
	if r.StaminaDrain < 0 {
		return fmt.Errorf("stamina_drain must be non-negative")
	}
	return nil
}

// Named parameter identifiers accepted by ApplyParameterChange.
const (
	ParamBaseShotProbability   = "base_shot_probability"
	ParamThreePointRate        = "three_point_rate"
	ParamStaminaDrain          = "stamina_drain"
	ParamPossessionsPerQuarter = "possessions_per_quarter"
	ParamQuarterCount          = "quarter_count"
)

// ApplyParameterChange applies one governed parameter change, forward-only.
// Known names update their dedicated field with clamping; unknown names land
// in the generic Parameters map so new governed values need no code change.
func (r *Ruleset) ApplyParameterChange(change effect.ParameterChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch change.Name {
	case ParamBaseShotProbability:
		r.BaseShotProbability = clamp01(change.Value)
	case ParamThreePointRate:
		r.ThreePointRate = clamp01(change.Value)
	case ParamStaminaDrain:
		if change.Value < 0 {
			return fmt.Errorf("stamina_drain must be non-negative")
		}
		r.StaminaDrain = change.Value
	case ParamPossessionsPerQuarter:
		if change.Value < 1 {
			return fmt.Errorf("possessions_per_quarter must be positive")
		}
		r.PossessionsPerQuarter = int(change.Value)
	case ParamQuarterCount:
		if change.Value < 1 {
			return fmt.Errorf("quarter_count must be positive")
		}
		r.QuarterCount = int(change.Value)
	default:
		if r.Parameters == nil {
			r.Parameters = make(map[string]float64)
		}
		r.Parameters[change.Name] = change.Value
	}
	r.applied = append(r.applied, change)
	return nil
}

// AppliedChanges returns the parameter changes applied so far, in order.
func (r *Ruleset) AppliedChanges() []effect.ParameterChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]effect.ParameterChange(nil), r.applied...)
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
