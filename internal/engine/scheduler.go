package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/roach88/mirage/internal/event"
	"github.com/roach88/mirage/internal/schema"
	"github.com/roach88/mirage/internal/store"
)

// State is the scheduler's lifecycle state.
type State int

const (
	// StateIdle means Run has not been called.
	StateIdle State = iota
	// StateRunning means the window loop is advancing.
	StateRunning
	// StateDrained means the window loop reached the configured end time.
	// No further draws occur; a Simulation runs once.
	StateDrained
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDrained:
		return "drained"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dispatcher receives every built event. Satisfied by sink.Dispatcher.
type Dispatcher interface {
	Dispatch(ev event.Event)
}

// Config holds the scheduling parameters of one simulation run.
type Config struct {
	// Start is the simulation start time.
	Start time.Time

	// Duration is the total simulated time span.
	Duration time.Duration

	// Step is the scheduling window size.
	Step time.Duration

	// DrawsPerStep is the number of independent flow draws per window.
	DrawsPerStep int

	// InitialEntities maps entity type name to the number of instances
	// seeded from the type's source event before the first window.
	InitialEntities map[string]int
}

// Deps are the collaborators a Simulation is wired with.
type Deps struct {
	Registry   *schema.Registry
	Store      *store.Store
	Dispatcher Dispatcher

	// Generator produces field values; must be pure with respect to Rand.
	Generator event.ValueGenerator

	// Rand is the single random source every draw is consumed from.
	Rand *rand.Rand

	// SessionIDs and EventIDs override the id generators; defaults draw
	// UUIDs and short ids from Rand.
	SessionIDs event.IDGenerator
	EventIDs   event.IDGenerator
}

// Stats counts what a run produced.
type Stats struct {
	SessionsStarted int64
	SessionsFailed  int64
	EventsEmitted   int64
	DrawsSkipped    int64
}

// Simulation is the scheduler: a state machine over simulation time that
// samples flow start times, selects feasible flows by weight, and runs one
// flow session per successful draw.
//
// Not safe for concurrent use; one Simulation performs one run.
type Simulation struct {
	cfg Config

	reg      *schema.Registry
	st       *store.Store
	dispatch Dispatcher
	builder  *event.Builder
	rng      *rand.Rand
	sessions event.IDGenerator

	flows []Flow
	state State
	stats Stats
}

// New creates a Simulation. All of Registry, Store, Dispatcher, Generator,
// and Rand are required.
func New(cfg Config, deps Deps) (*Simulation, error) {
	switch {
	case deps.Registry == nil:
		return nil, fmt.Errorf("simulation requires a schema registry")
	case deps.Store == nil:
		return nil, fmt.Errorf("simulation requires an entity store")
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("simulation requires a dispatcher")
	case deps.Generator == nil:
		return nil, fmt.Errorf("simulation requires a value generator")
	case deps.Rand == nil:
		return nil, fmt.Errorf("simulation requires a random source")
	}
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("time step must be positive, got %s", cfg.Step)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", cfg.Duration)
	}
	if cfg.DrawsPerStep < 1 {
		return nil, fmt.Errorf("draws per step must be at least 1, got %d", cfg.DrawsPerStep)
	}

	sessionIDs := deps.SessionIDs
	if sessionIDs == nil {
		sessionIDs = UUIDGenerator{R: deps.Rand}
	}
	eventIDs := deps.EventIDs
	if eventIDs == nil {
		eventIDs = ShortIDGenerator{R: deps.Rand}
	}

	return &Simulation{
		cfg:      cfg,
		reg:      deps.Registry,
		st:       deps.Store,
		dispatch: deps.Dispatcher,
		builder:  event.NewBuilder(deps.Registry, deps.Generator, eventIDs),
		rng:      deps.Rand,
		sessions: sessionIDs,
	}, nil
}

// RegisterFlow adds a flow definition. Flows are evaluated and selected in
// registration order; registration is rejected after the run has started.
func (sim *Simulation) RegisterFlow(f Flow) error {
	if sim.state != StateIdle {
		return fmt.Errorf("cannot register flow %q: simulation is %s", f.Name, sim.state)
	}
	if f.Name == "" {
		return fmt.Errorf("flow name must not be empty")
	}
	if f.Weight < 0 {
		return fmt.Errorf("flow %q: weight must be non-negative, got %v", f.Name, f.Weight)
	}
	if f.Body == nil {
		return fmt.Errorf("flow %q: body is required", f.Name)
	}
	for _, existing := range sim.flows {
		if existing.Name == f.Name {
			return fmt.Errorf("duplicate flow: %s", f.Name)
		}
	}
	sim.flows = append(sim.flows, f)
	return nil
}

// State returns the scheduler state.
func (sim *Simulation) State() State { return sim.state }

// Stats returns the run counters.
func (sim *Simulation) Stats() Stats { return sim.stats }

// Store returns the entity store, for post-run inspection.
func (sim *Simulation) Store() *store.Store { return sim.st }

// Run executes the window loop from Start until Start+Duration, then
// transitions to Drained. Every draw in window i is dispatched before
// window i+1 begins; flow sessions run to completion on this goroutine.
//
// Per-draw failures are logged and do not stop the run. Run returns an
// error only for a second Run call, a failed initial-population seed, or
// context cancellation.
func (sim *Simulation) Run(ctx context.Context) error {
	if sim.state != StateIdle {
		return fmt.Errorf("simulation already run (state=%s)", sim.state)
	}
	sim.state = StateRunning

	if err := sim.seedInitialEntities(); err != nil {
		return fmt.Errorf("seed initial entities: %w", err)
	}

	end := sim.cfg.Start.Add(sim.cfg.Duration)
	slog.Info("simulation starting",
		"start", sim.cfg.Start,
		"end", end,
		"step", sim.cfg.Step,
		"draws_per_step", sim.cfg.DrawsPerStep,
		"flows", len(sim.flows),
	)

	for ti := sim.cfg.Start; ti.Before(end); ti = ti.Add(sim.cfg.Step) {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation stopping: context cancelled", "at", ti)
			return err
		}

		tj := ti.Add(sim.cfg.Step)
		if tj.After(end) {
			tj = end
		}
		for d := 0; d < sim.cfg.DrawsPerStep; d++ {
			sim.draw(ti, tj)
		}
	}

	sim.state = StateDrained
	slog.Info("simulation drained",
		"sessions_started", sim.stats.SessionsStarted,
		"sessions_failed", sim.stats.SessionsFailed,
		"events_emitted", sim.stats.EventsEmitted,
		"draws_skipped", sim.stats.DrawsSkipped,
	)
	return nil
}

// draw performs one scheduling draw inside the window [ti, tj).
func (sim *Simulation) draw(ti, tj time.Time) {
	// Draw 1: start time, uniform in the window.
	tf := ti
	if span := tj.Sub(ti); span > 0 {
		tf = ti.Add(time.Duration(sim.rng.Float64() * float64(span)))
	}

	feasible := sim.feasibleFlows(tf)
	if len(feasible) == 0 {
		sim.stats.DrawsSkipped++
		slog.Debug("draw skipped: no feasible flow", "at", tf)
		return
	}

	// Draw 2: weighted flow selection over the feasible subset.
	flow, ok := sim.pickWeighted(feasible)
	if !ok {
		sim.stats.DrawsSkipped++
		slog.Debug("draw skipped: feasible flows carry zero weight", "at", tf)
		return
	}

	// Draw 3: candidate entity, uniform over the filter's matching
	// unattached entities.
	candidateID, err := sim.pickCandidate(flow, tf)
	if err != nil {
		sim.stats.SessionsFailed++
		slog.Error("candidate pick failed", "flow", flow.Name, "error", err)
		return
	}

	// Draw 4: session id.
	sess := newSession(sim.sessions.Generate(), flow.Name, tf, sim.st)

	// Attach before any later draw can observe the entity as available.
	if flow.Filter != nil {
		if err := sim.st.Attach(flow.Filter.Entity, candidateID, sess.ID()); err != nil {
			sim.stats.SessionsFailed++
			slog.Error("candidate attach failed",
				"flow", flow.Name,
				"session", sess.ID(),
				"entity_type", flow.Filter.Entity,
				"entity_id", candidateID,
				"error", err,
			)
			return
		}
		sess.attach(flow.Filter.Entity, candidateID)
	}

	sim.stats.SessionsStarted++
	slog.Debug("session starting", "flow", flow.Name, "session", sess.ID(), "start", tf)

	if err := sim.runSession(flow, sess); err != nil {
		// One bad flow must not halt the simulation.
		sim.stats.SessionsFailed++
		slog.Error("flow session failed",
			"flow", flow.Name,
			"session", sess.ID(),
			"error", err,
		)
	}
}

// feasibleFlows returns, in registration order, the flows whose filter has
// at least one unattached entity satisfying the full conjunction at time t.
// Flows without a filter are always feasible.
func (sim *Simulation) feasibleFlows(t time.Time) []Flow {
	var out []Flow
	for _, f := range sim.flows {
		if f.Filter == nil {
			out = append(out, f)
			continue
		}
		for range sim.st.Query(f.Filter.Entity, withUnattached(f.Filter.Where), t, 1) {
			out = append(out, f)
			break
		}
	}
	return out
}

// pickWeighted selects one flow with probability proportional to weight.
// One uniform draw over the cumulative weight, scanned in registration
// order; equal-weight ties resolve to the earlier registration, which is
// deterministic under a fixed seed.
func (sim *Simulation) pickWeighted(flows []Flow) (Flow, bool) {
	total := 0.0
	for _, f := range flows {
		total += f.Weight
	}
	if total <= 0 {
		return Flow{}, false
	}

	r := sim.rng.Float64() * total
	cum := 0.0
	for _, f := range flows {
		cum += f.Weight
		if r < cum {
			return f, true
		}
	}
	// Float accumulation can leave r == total; the last positive-weight
	// flow takes it.
	for i := len(flows) - 1; i >= 0; i-- {
		if flows[i].Weight > 0 {
			return flows[i], true
		}
	}
	return Flow{}, false
}

// pickCandidate selects one of the filter's matching unattached entities
// uniformly. Returns "" without consuming a draw for unfiltered flows.
func (sim *Simulation) pickCandidate(flow Flow, t time.Time) (string, error) {
	if flow.Filter == nil {
		return "", nil
	}
	var candidates []store.Match
	for m := range sim.st.Query(flow.Filter.Entity, withUnattached(flow.Filter.Where), t, 0) {
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		// Feasibility said otherwise moments ago; nothing else runs in
		// between on the single-writer path.
		return "", fmt.Errorf("no candidate entity for filter on %s at %s", flow.Filter.Entity, t)
	}
	return candidates[sim.rng.Intn(len(candidates))].ID, nil
}

// seedInitialEntities creates the configured starting population. Types
// seed in registration order so generation draws replay identically.
// Seed events are not dispatched; they exist only to initialize state.
func (sim *Simulation) seedInitialEntities() error {
	for _, def := range sim.reg.Entities() {
		count := sim.cfg.InitialEntities[def.Name]
		if count <= 0 {
			continue
		}
		if def.SourceEvent == "" {
			return fmt.Errorf("entity type %s has no source event to seed from", def.Name)
		}
		for i := 0; i < count; i++ {
			ev, err := sim.builder.Build(def.SourceEvent, event.Context{Clock: sim.cfg.Start})
			if err != nil {
				return fmt.Errorf("build seed event for %s: %w", def.Name, err)
			}
			id, ok := ev.Fields[def.PrimaryKey].(string)
			if !ok || id == "" {
				return fmt.Errorf("seed %s: field %s is not a usable entity id", def.Name, def.PrimaryKey)
			}
			if err := sim.st.Create(def.Name, id, def.InitialState(ev.Fields), sim.cfg.Start); err != nil {
				return fmt.Errorf("seed %s/%s: %w", def.Name, id, err)
			}
		}
		slog.Debug("seeded initial entities", "entity_type", def.Name, "count", count)
	}
	return nil
}

// withUnattached prepends the implicit availability condition to a
// filter's conditions.
func withUnattached(where []store.Condition) []store.Condition {
	conds := make([]store.Condition, 0, len(where)+1)
	conds = append(conds, store.Where(store.OwnerField, store.OpIs, nil))
	conds = append(conds, where...)
	return conds
}
