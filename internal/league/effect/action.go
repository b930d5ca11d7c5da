package effect

import (
	"fmt"
	"strings"

	"github.com/openleague/courtside/internal/league/hook"
)

// ActionOp is one primitive in the closed action vocabulary. Actions are
// compiled once at enactment into typed values; nothing is interpreted as
// code at dispatch time.
type ActionOp string

const (
	// OpAdjustNumeric contributes an additive delta to one numeric modifier.
	OpAdjustNumeric ActionOp = "adjust_numeric"
	// OpWriteMeta sets or increments one keyed-state value.
	OpWriteMeta ActionOp = "write_meta"
	// OpBlockAction cancels the default action at the hook point.
	OpBlockAction ActionOp = "block_action"
	// OpEmitNarrative contributes flavor text to report generation.
	OpEmitNarrative ActionOp = "emit_narrative"
)

// Numeric modifier fields accepted by OpAdjustNumeric.
const (
	FieldShotProbability = "shot_probability"
	FieldScore           = "score"
	FieldStamina         = "stamina"
)

// Action is one primitive from the closed vocabulary, in both its
// specification and compiled form. The vocabulary is closed, so the typed
// struct is already executable.
type Action struct {
	Op ActionOp `json:"op"`
	// Field selects the numeric modifier (OpAdjustNumeric) or the
	// keyed-state field (OpWriteMeta).
	Field string `json:"field,omitempty"`
	// Amount is the additive delta for OpAdjustNumeric, or the increment
	// for OpWriteMeta in increment mode.
	Amount float64 `json:"amount,omitempty"`
	// EntityType qualifies the keyed-state write for OpWriteMeta.
	EntityType string `json:"entity_type,omitempty"`
	// EntityFrom names the context field holding the target entity id for
	// OpWriteMeta. Defaults to "entity.id".
	EntityFrom string `json:"entity_from,omitempty"`
	// Value is the literal written by OpWriteMeta in set mode.
	Value any `json:"value,omitempty"`
	// Increment switches OpWriteMeta from set to add-Amount mode.
	Increment bool `json:"increment,omitempty"`
	// Text is the fragment emitted by OpEmitNarrative.
	Text string `json:"text,omitempty"`
}

// Validate rejects actions outside the closed vocabulary.
func (a Action) Validate() error {
	switch a.Op {
	case OpAdjustNumeric:
		switch a.Field {
		case FieldShotProbability, FieldScore, FieldStamina:
			return nil
		default:
			return fmt.Errorf("unknown numeric field %q", a.Field)
		}
	case OpWriteMeta:
		if strings.TrimSpace(a.EntityType) == "" {
			return fmt.Errorf("write_meta requires entity_type")
		}
		if strings.TrimSpace(a.Field) == "" {
			return fmt.Errorf("write_meta requires field")
		}
		if !a.Increment && a.Value == nil {
			return fmt.Errorf("write_meta requires value or increment mode")
		}
		return nil
	case OpBlockAction:
		return nil
	case OpEmitNarrative:
		if strings.TrimSpace(a.Text) == "" {
			return fmt.Errorf("emit_narrative requires text")
		}
		return nil
	default:
		return fmt.Errorf("unknown action op %q", a.Op)
	}
}

// Apply executes the compiled action against the context and returns its
// contribution. Apply performs no I/O and never blocks.
func (a Action) Apply(ctx *hook.Context) hook.Result {
	switch a.Op {
	case OpAdjustNumeric:
		switch a.Field {
		case FieldShotProbability:
			return hook.Result{ProbabilityDelta: a.Amount}
		case FieldScore:
			return hook.Result{ScoreDelta: a.Amount}
		case FieldStamina:
			return hook.Result{StaminaDelta: a.Amount}
		}
		return hook.Result{}
	case OpWriteMeta:
		entityFrom := a.EntityFrom
		if entityFrom == "" {
			entityFrom = DefaultEntityFrom
		}
		rawID, ok := ctx.Field(entityFrom)
		if !ok {
			return hook.Result{}
		}
		entityID, ok := rawID.(string)
		if !ok || entityID == "" {
			return hook.Result{}
		}
		write := hook.MetaWrite{
			EntityType: a.EntityType,
			EntityID:   entityID,
			Field:      a.Field,
			Value:      a.Value,
			Increment:  a.Increment,
		}
		if a.Increment {
			write.Value = a.Amount
		}
		return hook.Result{MetaWrites: []hook.MetaWrite{write}}
	case OpBlockAction:
		return hook.Result{Cancel: true}
	case OpEmitNarrative:
		return hook.Result{Narrative: a.Text}
	default:
		return hook.Result{}
	}
}
