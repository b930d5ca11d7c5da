// Package interpret defines the boundary to the external service that turns
// free proposal text into effect specifications. The engine never trusts
// free text at execution time: interpreter output is validated against an
// embedded JSON Schema and the closed specification grammar before it can
// reach enactment.
package interpret

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openleague/courtside/internal/league/effect"
	"github.com/openleague/courtside/internal/league/ruleset"
)

// ErrRejected indicates the interpreter declined to produce specifications
// for the proposal text.
var ErrRejected = errors.New("proposal rejected by interpreter")

//go:embed specifications.schema.json
var schemaFS embed.FS

const schemaName = "specifications.schema.json"

var specSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	raw, err := schemaFS.ReadFile(schemaName)
	if err != nil {
		panic(fmt.Sprintf("read embedded schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaName, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add schema resource: %v", err))
	}
	schema, err := compiler.Compile(schemaName)
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// Interpreter produces validated effect specifications from raw proposal
// text. Implementations live outside this engine (model-backed services);
// tests use fakes.
type Interpreter interface {
	Interpret(ctx context.Context, rawText string, rules *ruleset.Ruleset) ([]effect.Specification, error)
}

// ValidateSpecificationsJSON checks raw interpreter output against the
// embedded schema and the closed specification grammar, returning the
// decoded specifications.
func ValidateSpecificationsJSON(raw []byte) ([]effect.Specification, error) {
	var shape any
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("decode interpreter output: %w", err)
	}
	if err := specSchema.Validate(shape); err != nil {
		return nil, fmt.Errorf("interpreter output failed schema validation: %w", err)
	}

	var specs []effect.Specification
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("decode specifications: %w", err)
	}
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("specification %d: %w", i, err)
		}
	}
	return specs, nil
}

// Guarded wraps an interpreter with a timeout and output validation. A
// timeout or rejection degrades to "no new effects this round" at the
// caller; it never blocks or corrupts the round.
type Guarded struct {
	Inner   Interpreter
	Timeout time.Duration
}

// Interpret calls the inner interpreter under the configured timeout and
// re-validates its output by round-tripping it through the embedded schema
// and the closed grammar, regardless of what the inner implementation
// claims to have checked.
func (g Guarded) Interpret(ctx context.Context, rawText string, rules *ruleset.Ruleset) ([]effect.Specification, error) {
	if g.Inner == nil {
		return nil, fmt.Errorf("no interpreter configured")
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	specs, err := g.Inner.Interpret(ctx, rawText, rules)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(specs)
	if err != nil {
		return nil, fmt.Errorf("encode interpreter output: %w", err)
	}
	return ValidateSpecificationsJSON(raw)
}
