package engine

import (
	"iter"
	"time"

	"github.com/roach88/mirage/internal/store"
)

// Action is one tagged instruction yielded by a flow body.
// The variants are NewEvent, AddDecay, SetState, and Select.
type Action interface {
	isAction()
}

// NewEvent emits an event built from the named schema.
type NewEvent struct {
	// Schema names the event schema to build.
	Schema string

	// Overrides are explicit field values that win over generated ones.
	Overrides map[string]any

	// CreateEntity, when non-empty, names an entity type to create from
	// the built event and attach to the session.
	CreateEntity string

	// Mutate, when set, applies a state mutation to the entity of the
	// mutation's type already attached to the session.
	Mutate *SetState
}

func (NewEvent) isAction() {}

// AddDecay advances the session's local clock by Wait, then terminates the
// session with probability Rate. The clock advance is unconditional: a
// dropped-off session's final clock already reflects the elapsed duration.
type AddDecay struct {
	Wait time.Duration
	Rate float64
}

func (AddDecay) isAction() {}

// SetState applies the listed updates atomically as one new version of the
// entity of the given type attached to the session, timestamped at the
// session's local clock.
type SetState struct {
	Entity  string
	Updates []store.Update
}

func (SetState) isAction() {}

// Select is a filter over entities of one type. As a flow's Filter it is
// the prerequisite the scheduler checks before launching the flow. Yielded
// inside a flow body it is a no-op: the matching entity was pinned at
// session start and is read through Session.Entity.
type Select struct {
	Entity string
	Where  []store.Condition
}

func (Select) isAction() {}

// FlowBody produces a flow's lazy instruction stream. The runner consumes
// one action at a time and performs its effects before resuming, so the
// body observes entity state changes made by its earlier actions.
type FlowBody func(s *Session) iter.Seq[Action]

// Flow is one registered flow definition. Immutable after registration.
type Flow struct {
	// Name identifies the flow in logs and tests.
	Name string

	// Weight is the relative selection probability among feasible flows.
	// Must be non-negative; zero means the flow is never selected.
	Weight float64

	// Filter, when set, is the prerequisite for starting: at least one
	// unattached entity must satisfy the full conjunction at the sampled
	// start time. The matching entity is attached to the new session.
	Filter *Select

	// Body generates the instruction stream.
	Body FlowBody
}
