package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/mirage/internal/event"
	"github.com/roach88/mirage/internal/store"
)

// runSession drives one session's instruction stream to completion.
//
// Entity release is fail-safe: whether the stream ends normally, drops off
// through a decay draw, or aborts on an error, every attached entity has
// its owner cleared before the error propagates.
func (sim *Simulation) runSession(f Flow, sess *Session) (err error) {
	defer sim.releaseAll(sess)

	for act := range f.Body(sess) {
		stop, aerr := sim.applyAction(f, sess, act)
		if aerr != nil {
			return aerr
		}
		if stop {
			sess.terminated = true
			slog.Debug("session dropped off",
				"flow", f.Name,
				"session", sess.ID(),
				"clock", sess.Clock(),
			)
			break
		}
	}
	return nil
}

// releaseAll detaches every entity the session attached, in attach order,
// preserving all other accumulated state. Store errors during release are
// logged, not propagated: release is best-effort cleanup on the error path
// and must not mask the original failure.
func (sim *Simulation) releaseAll(sess *Session) {
	for _, typ := range sess.attachOrder {
		id := sess.attached[typ]
		if err := sim.st.Release(typ, id); err != nil {
			slog.Error("entity release failed",
				"session", sess.ID(),
				"entity_type", typ,
				"entity_id", id,
				"error", err,
			)
		}
	}
}

// applyAction interprets one action. Returns stop=true when a decay draw
// terminates the session.
func (sim *Simulation) applyAction(f Flow, sess *Session, act Action) (stop bool, err error) {
	switch a := act.(type) {
	case NewEvent:
		return false, sim.applyNewEvent(f, sess, a)

	case AddDecay:
		// The advance is unconditional; the termination check comes after,
		// so the dropped-off session's clock reflects the elapsed wait.
		sess.advance(a.Wait)
		return sim.rng.Float64() < a.Rate, nil

	case SetState:
		return false, sim.applySetState(f, sess, a)

	case Select:
		// In-flow lookups go through Session.Entity; the matching entity
		// was pinned at session start.
		slog.Debug("in-flow select ignored",
			"flow", f.Name,
			"session", sess.ID(),
			"entity_type", a.Entity,
		)
		return false, nil

	default:
		return false, fmt.Errorf("unknown action type %T (flow=%s)", act, f.Name)
	}
}

func (sim *Simulation) applyNewEvent(f Flow, sess *Session, a NewEvent) error {
	ev, err := sim.builder.Build(a.Schema, event.Context{
		Overrides:  a.Overrides,
		EntityKeys: sim.entityKeys(sess),
		SessionID:  sess.ID(),
		Clock:      sess.Clock(),
	})
	if err != nil {
		return fmt.Errorf("build event %s: %w", a.Schema, err)
	}

	if a.CreateEntity != "" {
		if err := sim.createAndAttach(f, sess, a.CreateEntity, ev); err != nil {
			return err
		}
	}

	if a.Mutate != nil {
		if err := sim.applySetState(f, sess, *a.Mutate); err != nil {
			return err
		}
	}

	sim.dispatch.Dispatch(ev)
	sim.stats.EventsEmitted++
	return nil
}

// createAndAttach creates a new entity from the built event's fields and
// binds it to the session. The attach happens on the same single-threaded
// path as the scheduler's feasibility checks, so no other draw can observe
// the entity as available in between.
func (sim *Simulation) createAndAttach(f Flow, sess *Session, entityType string, ev event.Event) error {
	def, ok := sim.reg.Entity(entityType)
	if !ok {
		return &SessionError{
			Code:       CodeUnknownEntityType,
			SessionID:  sess.ID(),
			FlowName:   f.Name,
			EntityType: entityType,
			Message:    "entity type is not registered",
		}
	}

	id, ok := ev.Fields[def.PrimaryKey].(string)
	if !ok || id == "" {
		return &SessionError{
			Code:       CodeInvalidEntityID,
			SessionID:  sess.ID(),
			FlowName:   f.Name,
			EntityType: entityType,
			Message:    fmt.Sprintf("event field %s is not a usable entity id", def.PrimaryKey),
		}
	}

	if err := sim.st.Create(entityType, id, def.InitialState(ev.Fields), sess.Clock()); err != nil {
		return fmt.Errorf("create entity %s/%s: %w", entityType, id, err)
	}
	if err := sim.st.Attach(entityType, id, sess.ID()); err != nil {
		return fmt.Errorf("attach entity %s/%s: %w", entityType, id, err)
	}
	sess.attach(entityType, id)
	return nil
}

func (sim *Simulation) applySetState(f Flow, sess *Session, a SetState) error {
	for _, u := range a.Updates {
		if u.Field == store.OwnerField {
			return &SessionError{
				Code:       CodeReservedField,
				SessionID:  sess.ID(),
				FlowName:   f.Name,
				EntityType: a.Entity,
				Message:    "owner_session is managed by the attach/release protocol",
			}
		}
	}

	id, ok := sess.EntityID(a.Entity)
	if !ok {
		return &SessionError{
			Code:       CodeNoAttachedEntity,
			SessionID:  sess.ID(),
			FlowName:   f.Name,
			EntityType: a.Entity,
			Message:    "session has no attached entity of this type",
		}
	}

	if _, err := sim.st.Mutate(a.Entity, id, a.Updates, sess.Clock()); err != nil {
		return fmt.Errorf("mutate entity %s/%s: %w", a.Entity, id, err)
	}
	return nil
}

// entityKeys maps each attached entity's primary-key field name to its id,
// in attach order, for backfilling key fields of built events.
func (sim *Simulation) entityKeys(sess *Session) map[string]any {
	if len(sess.attachOrder) == 0 {
		return nil
	}
	keys := make(map[string]any, len(sess.attachOrder))
	for _, typ := range sess.attachOrder {
		def, ok := sim.reg.Entity(typ)
		if !ok {
			continue
		}
		if _, exists := keys[def.PrimaryKey]; !exists {
			keys[def.PrimaryKey] = sess.attached[typ]
		}
	}
	return keys
}
