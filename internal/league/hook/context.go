package hook

import (
	"math/rand"

	"github.com/openleague/courtside/internal/league/meta"
)

// Context carries the data one dispatch call exposes to effects. It is built
// fresh per phase (hot-path callers reuse one instance and mutate Fields
// between dispatches) and is never persisted.
type Context struct {
	// Round is the league round being processed.
	Round int
	// Fields exposes phase data to conditions and actions under flat dotted
	// names ("entity.id", "game.margin", "tally.yes", ...). A condition
	// referencing an absent field evaluates to false, never errors.
	Fields map[string]any
	// Meta is the round's MetaStore handle, nil in phases without state.
	Meta *meta.Store
	// RNG is the deterministic random source owned by the calling phase,
	// nil where determinism is not at stake.
	RNG *rand.Rand
}

// NewContext creates a context for the given round with an empty field set.
func NewContext(round int) *Context {
	return &Context{Round: round, Fields: make(map[string]any)}
}

// Field returns the named field value and whether it is present.
func (c *Context) Field(name string) (any, bool) {
	if c == nil || c.Fields == nil {
		return nil, false
	}
	value, ok := c.Fields[name]
	return value, ok
}

// SetField sets one field, allocating the map when needed.
func (c *Context) SetField(name string, value any) {
	if c.Fields == nil {
		c.Fields = make(map[string]any)
	}
	c.Fields[name] = value
}
