package effect

import (
	"fmt"
	"strings"

	"github.com/openleague/courtside/internal/league/hook"
)

// Op is a comparison operator in the closed condition grammar.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	// OpIn tests membership of the field value in a list of literals.
	OpIn Op = "in"
)

// ClauseSource identifies where a clause reads its field from.
type ClauseSource string

const (
	// SourceContext reads a flat field from the dispatch context.
	SourceContext ClauseSource = "context"
	// SourceMeta reads a keyed-state field of an entity named by the
	// context.
	SourceMeta ClauseSource = "meta"
)

// Clause is one field comparison. A clause referencing a missing field
// evaluates to false; it never raises.
type Clause struct {
	Source ClauseSource `json:"source"`
	// Field is the context field name (SourceContext) or the keyed-state
	// field name (SourceMeta).
	Field string `json:"field"`
	// EntityType qualifies the keyed-state lookup for SourceMeta.
	EntityType string `json:"entity_type,omitempty"`
	// EntityFrom names the context field holding the entity id for
	// SourceMeta lookups. Defaults to "entity.id".
	EntityFrom string `json:"entity_from,omitempty"`
	Op         Op     `json:"op"`
	// Value is the comparison literal; a list of literals for OpIn.
	Value any `json:"value"`
}

// Condition is a conjunction of clauses. An empty condition always holds.
type Condition struct {
	All []Clause `json:"all,omitempty"`
}

// DefaultEntityFrom is the context field consulted when a meta clause does
// not name one.
const DefaultEntityFrom = "entity.id"

var validOps = map[Op]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpIn: true,
}

// Validate rejects clauses outside the closed grammar.
func (c Condition) Validate() error {
	for i, clause := range c.All {
		if err := clause.validate(); err != nil {
			return fmt.Errorf("clause %d: %w", i, err)
		}
	}
	return nil
}

func (cl Clause) validate() error {
	switch cl.Source {
	case SourceContext:
	case SourceMeta:
		if strings.TrimSpace(cl.EntityType) == "" {
			return fmt.Errorf("meta clause requires entity_type")
		}
	default:
		return fmt.Errorf("unknown clause source %q", cl.Source)
	}
	if strings.TrimSpace(cl.Field) == "" {
		return fmt.Errorf("clause field is required")
	}
	if !validOps[cl.Op] {
		return fmt.Errorf("unknown comparison op %q", cl.Op)
	}
	if cl.Op == OpIn {
		if _, ok := cl.Value.([]any); !ok {
			return fmt.Errorf("op %q requires a list value", OpIn)
		}
	}
	return nil
}

// Eval reports whether every clause holds against the context. Missing
// fields and type mismatches evaluate the clause to false.
func (c Condition) Eval(ctx *hook.Context) bool {
	for _, clause := range c.All {
		if !clause.eval(ctx) {
			return false
		}
	}
	return true
}

func (cl Clause) eval(ctx *hook.Context) bool {
	value, ok := cl.resolve(ctx)
	if !ok {
		return false
	}
	return compare(value, cl.Op, cl.Value)
}

func (cl Clause) resolve(ctx *hook.Context) (any, bool) {
	switch cl.Source {
	case SourceContext:
		return ctx.Field(cl.Field)
	case SourceMeta:
		if ctx == nil || ctx.Meta == nil {
			return nil, false
		}
		entityFrom := cl.EntityFrom
		if entityFrom == "" {
			entityFrom = DefaultEntityFrom
		}
		rawID, ok := ctx.Field(entityFrom)
		if !ok {
			return nil, false
		}
		entityID, ok := rawID.(string)
		if !ok || entityID == "" {
			return nil, false
		}
		value := ctx.Meta.Get(cl.EntityType, entityID, cl.Field, nil)
		if value == nil {
			return nil, false
		}
		return value, true
	default:
		return nil, false
	}
}

func compare(field any, op Op, literal any) bool {
	switch op {
	case OpEq:
		return equal(field, literal)
	case OpNe:
		return !equal(field, literal)
	case OpGt, OpGte, OpLt, OpLte:
		a, okA := asFloat(field)
		b, okB := asFloat(literal)
		if !okA || !okB {
			return false
		}
		switch op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpIn:
		list, ok := literal.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if equal(field, item) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equal(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	default:
		return false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
