package interpret

import (
	"context"
	"testing"
	"time"

	"github.com/openleague/courtside/internal/league/effect"
	"github.com/openleague/courtside/internal/league/ruleset"
)

const validSpecsJSON = `[
  {
    "kind": "hook_callback",
    "target": {"kind": "role", "role": "team"},
    "condition": {"all": [
      {"source": "context", "field": "game.quarter", "op": "eq", "value": 4}
    ]},
    "action": {"op": "adjust_numeric", "field": "shot_probability", "amount": 0.05},
    "duration": {"kind": "n_rounds", "rounds": 3},
    "hooks": ["sim.action.before"],
    "description": "clutch shooting boost"
  },
  {
    "kind": "parameter_change",
    "duration": {"kind": "permanent"},
    "parameter": {"name": "three_point_rate", "value": 0.4}
  }
]`

func TestValidateSpecificationsJSON_AcceptsClosedGrammar(t *testing.T) {
	specs, err := ValidateSpecificationsJSON([]byte(validSpecsJSON))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("specs = %d, want 2", len(specs))
	}
	if specs[0].Kind != effect.KindHookCallback || specs[1].Kind != effect.KindParameterChange {
		t.Fatalf("kinds = %s, %s", specs[0].Kind, specs[1].Kind)
	}
	if specs[0].Action.Amount != 0.05 {
		t.Fatalf("amount = %v, want 0.05", specs[0].Action.Amount)
	}
}

func TestValidateSpecificationsJSON_RejectsMalformedJSON(t *testing.T) {
	if _, err := ValidateSpecificationsJSON([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestValidateSpecificationsJSON_RejectsNonArray(t *testing.T) {
	if _, err := ValidateSpecificationsJSON([]byte(`{"kind":"narrative"}`)); err == nil {
		t.Fatal("expected schema error for non-array output")
	}
}

func TestValidateSpecificationsJSON_RejectsUnknownKind(t *testing.T) {
	raw := `[{"kind": "lua_script", "duration": {"kind": "permanent"}}]`
	if _, err := ValidateSpecificationsJSON([]byte(raw)); err == nil {
		t.Fatal("expected schema error for unknown kind")
	}
}

func TestValidateSpecificationsJSON_RejectsUnknownProperties(t *testing.T) {
	raw := `[{
	  "kind": "narrative",
	  "action": {"op": "emit_narrative", "text": "hi"},
	  "duration": {"kind": "permanent"},
	  "shell": "rm -rf /"
	}]`
	if _, err := ValidateSpecificationsJSON([]byte(raw)); err == nil {
		t.Fatal("expected schema error for additional properties")
	}
}

func TestValidateSpecificationsJSON_RunsGrammarValidation(t *testing.T) {
	// Schema-shaped but semantically invalid: n_rounds needs rounds > 0.
	raw := `[{
	  "kind": "narrative",
	  "action": {"op": "emit_narrative", "text": "hi"},
	  "duration": {"kind": "n_rounds"}
	}]`
	if _, err := ValidateSpecificationsJSON([]byte(raw)); err == nil {
		t.Fatal("expected grammar validation error")
	}
}

// slowInterpreter blocks until its context is cancelled.
type slowInterpreter struct{}

func (slowInterpreter) Interpret(ctx context.Context, rawText string, rules *ruleset.Ruleset) ([]effect.Specification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGuarded_TimesOut(t *testing.T) {
	g := Guarded{Inner: slowInterpreter{}, Timeout: 10 * time.Millisecond}
	start := time.Now()
	_, err := g.Interpret(context.Background(), "slow proposal", ruleset.Default())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("guarded call took %v, should be bounded by the timeout", elapsed)
	}
}

// cannedInterpreter returns fixed specifications.
type cannedInterpreter struct {
	specs []effect.Specification
}

func (c cannedInterpreter) Interpret(ctx context.Context, rawText string, rules *ruleset.Ruleset) ([]effect.Specification, error) {
	return c.specs, nil
}

func TestGuarded_RevalidatesInnerOutput(t *testing.T) {
	rogue := effect.Specification{
		Kind:     effect.KindHookCallback,
		Action:   &effect.Action{Op: "exec_shell"},
		Duration: effect.Duration{Kind: effect.DurationPermanent},
		Hooks:    []string{"sim.action.before"},
	}
	g := Guarded{Inner: cannedInterpreter{specs: []effect.Specification{rogue}}}
	if _, err := g.Interpret(context.Background(), "proposal", ruleset.Default()); err == nil {
		t.Fatal("expected validation error for out-of-grammar output")
	}
}

func TestGuarded_RoundTripsOutputThroughSchema(t *testing.T) {
	// No target selector: the marshaled form must still satisfy the
	// schema's closed enums.
	good := effect.Specification{
		Kind:     effect.KindNarrative,
		Action:   &effect.Action{Op: effect.OpEmitNarrative, Text: "the crowd roars"},
		Duration: effect.Duration{Kind: effect.DurationPermanent},
	}
	g := Guarded{Inner: cannedInterpreter{specs: []effect.Specification{good}}}
	specs, err := g.Interpret(context.Background(), "proposal", ruleset.Default())
	if err != nil {
		t.Fatalf("guarded interpret: %v", err)
	}
	if len(specs) != 1 || specs[0].Kind != effect.KindNarrative || specs[0].Action.Text != "the crowd roars" {
		t.Fatalf("specs = %+v, want the narrative specification back", specs)
	}
}

func TestGuarded_EmptyOutputIsAllowed(t *testing.T) {
	g := Guarded{Inner: cannedInterpreter{}}
	specs, err := g.Interpret(context.Background(), "proposal", ruleset.Default())
	if err != nil {
		t.Fatalf("guarded interpret: %v", err)
	}
	if len(specs) != 0 {
		t.Fatalf("specs = %+v, want none", specs)
	}
}

func TestGuarded_RequiresInner(t *testing.T) {
	if _, err := (Guarded{}).Interpret(context.Background(), "x", ruleset.Default()); err == nil {
		t.Fatal("expected error when no interpreter is configured")
	}
}
