package event

import (
	"fmt"
	"time"

	"github.com/roach88/mirage/internal/schema"
)

// HintNow is the generation hint resolved by the builder itself: the value
// is the session's local clock at build time. Keeping it out of the
// ValueGenerator keeps the generator pure with respect to its random source.
const HintNow = "now"

// ValueGenerator produces a concrete value for a schema field from its
// generation hint. Implementations must be pure with respect to an injected
// random source so a fixed seed reproduces identical value sequences.
type ValueGenerator interface {
	Generate(hint string, params map[string]any) (any, error)
}

// IDGenerator produces unique identifiers. Production implementations draw
// from the simulation's seeded random source; tests use fixed sequences.
type IDGenerator interface {
	Generate() string
}

// Context carries the per-session inputs of one build: explicit field
// overrides from the action, primary-key values of the entities attached to
// the session, and the session id and local clock for metadata.
type Context struct {
	Overrides map[string]any
	// EntityKeys maps primary-key field name to the attached entity's id,
	// used to backfill key fields the schema does not generate.
	EntityKeys map[string]any
	SessionID  string
	Clock      time.Time
}

// Builder assembles events from registered schemas.
type Builder struct {
	reg *schema.Registry
	gen ValueGenerator
	ids IDGenerator
}

// NewBuilder creates a builder over the given registry, value generator,
// and event id generator.
func NewBuilder(reg *schema.Registry, gen ValueGenerator, ids IDGenerator) *Builder {
	return &Builder{reg: reg, gen: gen, ids: ids}
}

// Build resolves every declared field of the named schema and attaches
// system metadata.
//
// Per-field resolution: a generated value when the field declares a hint,
// then a primary-key backfill from the session's attached entities for
// fields still unresolved, then the explicit override (which always wins),
// then the declared default. Generation draws happen in field declaration
// order so a fixed seed replays identically.
//
// Fails with MISSING_PRIMARY_KEY when a primary-key field resolves to nil.
func (b *Builder) Build(schemaName string, bctx Context) (Event, error) {
	def, ok := b.reg.Event(schemaName)
	if !ok {
		return Event{}, &BuildError{
			Code:    CodeUnknownSchema,
			Schema:  schemaName,
			Message: "event schema is not registered",
		}
	}

	fields := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		v, err := b.resolveField(def.Name, f, bctx)
		if err != nil {
			return Event{}, err
		}
		fields[f.Name] = v
	}

	for _, f := range def.Fields {
		if f.PrimaryKey && fields[f.Name] == nil {
			return Event{}, &BuildError{
				Code:    CodeMissingPrimaryKey,
				Schema:  schemaName,
				Field:   f.Name,
				Message: "primary-key field resolved to nil",
			}
		}
	}

	return Event{
		Schema:    schemaName,
		ID:        b.ids.Generate(),
		Timestamp: bctx.Clock,
		SessionID: bctx.SessionID,
		Fields:    fields,
	}, nil
}

func (b *Builder) resolveField(schemaName string, f schema.Field, bctx Context) (any, error) {
	var v any

	switch {
	case f.Hint == HintNow:
		v = bctx.Clock
	case f.Hint != "":
		gv, err := b.gen.Generate(f.Hint, f.Params)
		if err != nil {
			return nil, &BuildError{
				Code:    CodeGeneratorFailed,
				Schema:  schemaName,
				Field:   f.Name,
				Message: fmt.Sprintf("hint %q: %v", f.Hint, err),
			}
		}
		v = gv
	}

	if v == nil {
		if ev, ok := bctx.EntityKeys[f.Name]; ok {
			v = ev
		}
	}
	if ov, ok := bctx.Overrides[f.Name]; ok {
		v = ov
	}
	if v == nil {
		v = f.Default
	}
	return v, nil
}
