package engine

import (
	"context"
	"iter"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirage/internal/event"
	"github.com/roach88/mirage/internal/gen"
	"github.com/roach88/mirage/internal/schema"
	"github.com/roach88/mirage/internal/store"
)

var simStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// captureDispatcher records every dispatched event in order.
type captureDispatcher struct {
	events []event.Event
}

func (d *captureDispatcher) Dispatch(ev event.Event) {
	d.events = append(d.events, ev)
}

func userRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.RegisterEvent(schema.EventDef{
		Name: "UserRegistered",
		Fields: []schema.Field{
			{Name: "user_id", Hint: "uuid", PrimaryKey: true},
			{Name: "registered_at", Hint: event.HintNow},
		},
	}))
	require.NoError(t, reg.RegisterEvent(schema.EventDef{
		Name: "UserLoggedIn",
		Fields: []schema.Field{
			{Name: "user_id"},
			{Name: "login_time", Hint: event.HintNow},
		},
	}))
	require.NoError(t, reg.RegisterEntity(schema.EntityDef{
		Name:        "User",
		SourceEvent: "UserRegistered",
		PrimaryKey:  "user_id",
		Fields: []schema.StateField{
			{Name: "is_logged_in", Default: false},
			{Name: "logins", Default: int64(0)},
		},
	}))
	return reg
}

func newTestSim(t *testing.T, seed int64, cfg Config, reg *schema.Registry) (*Simulation, *captureDispatcher, *store.Store) {
	t.Helper()
	if cfg.Start.IsZero() {
		cfg.Start = simStart
	}
	if cfg.Duration == 0 {
		cfg.Duration = time.Hour
	}
	if cfg.Step == 0 {
		cfg.Step = 10 * time.Minute
	}
	if cfg.DrawsPerStep == 0 {
		cfg.DrawsPerStep = 1
	}

	rng := rand.New(rand.NewSource(seed))
	st := store.New()
	d := &captureDispatcher{}
	sim, err := New(cfg, Deps{
		Registry:   reg,
		Store:      st,
		Dispatcher: d,
		Generator:  gen.New(rng),
		Rand:       rng,
	})
	require.NoError(t, err)
	return sim, d, st
}

func registrationFlow() Flow {
	return Flow{
		Name:   "registration",
		Weight: 1.0,
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				yield(NewEvent{Schema: "UserRegistered", CreateEntity: "User"})
			}
		},
	}
}

func TestNew_Validation(t *testing.T) {
	reg := userRegistry(t)
	rng := rand.New(rand.NewSource(1))
	deps := Deps{
		Registry:   reg,
		Store:      store.New(),
		Dispatcher: &captureDispatcher{},
		Generator:  gen.New(rng),
		Rand:       rng,
	}
	cfg := Config{Start: simStart, Duration: time.Hour, Step: time.Minute, DrawsPerStep: 1}

	tests := []struct {
		name   string
		mutate func(*Config, *Deps)
	}{
		{"missing registry", func(c *Config, d *Deps) { d.Registry = nil }},
		{"missing store", func(c *Config, d *Deps) { d.Store = nil }},
		{"missing dispatcher", func(c *Config, d *Deps) { d.Dispatcher = nil }},
		{"missing generator", func(c *Config, d *Deps) { d.Generator = nil }},
		{"missing rand", func(c *Config, d *Deps) { d.Rand = nil }},
		{"zero step", func(c *Config, d *Deps) { c.Step = 0 }},
		{"zero duration", func(c *Config, d *Deps) { c.Duration = 0 }},
		{"zero draws", func(c *Config, d *Deps) { c.DrawsPerStep = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, d := cfg, deps
			tt.mutate(&c, &d)
			_, err := New(c, d)
			require.Error(t, err)
		})
	}

	_, err := New(cfg, deps)
	require.NoError(t, err)
}

func TestRegisterFlow_Validation(t *testing.T) {
	sim, _, _ := newTestSim(t, 1, Config{}, userRegistry(t))

	require.NoError(t, sim.RegisterFlow(registrationFlow()))

	err := sim.RegisterFlow(registrationFlow())
	require.Error(t, err, "duplicate name")

	err = sim.RegisterFlow(Flow{Name: "", Weight: 1, Body: registrationFlow().Body})
	require.Error(t, err, "empty name")

	err = sim.RegisterFlow(Flow{Name: "neg", Weight: -1, Body: registrationFlow().Body})
	require.Error(t, err, "negative weight")

	err = sim.RegisterFlow(Flow{Name: "nobody", Weight: 1})
	require.Error(t, err, "nil body")
}

func TestState_Lifecycle(t *testing.T) {
	sim, _, _ := newTestSim(t, 1, Config{}, userRegistry(t))
	require.NoError(t, sim.RegisterFlow(registrationFlow()))

	assert.Equal(t, StateIdle, sim.State())
	require.NoError(t, sim.Run(context.Background()))
	assert.Equal(t, StateDrained, sim.State())

	// One Simulation runs once.
	err := sim.Run(context.Background())
	require.Error(t, err)

	// And accepts no new flows afterwards.
	err = sim.RegisterFlow(Flow{Name: "late", Weight: 1, Body: registrationFlow().Body})
	require.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "drained", StateDrained.String())
}

func TestRun_EventsStayInsideWindowAndOrdered(t *testing.T) {
	reg := userRegistry(t)
	sim, d, _ := newTestSim(t, 42, Config{Duration: time.Hour, Step: 10 * time.Minute, DrawsPerStep: 1}, reg)
	require.NoError(t, sim.RegisterFlow(registrationFlow()))
	require.NoError(t, sim.Run(context.Background()))

	require.NotEmpty(t, d.events)
	end := simStart.Add(time.Hour)
	for _, ev := range d.events {
		assert.False(t, ev.Timestamp.Before(simStart))
		assert.True(t, ev.Timestamp.Before(end))
	}

	// One draw per window: every window's session completes before the
	// next window begins, so dispatch order is non-decreasing in event time.
	for i := 1; i < len(d.events); i++ {
		assert.False(t, d.events[i].Timestamp.Before(d.events[i-1].Timestamp))
	}

	stats := sim.Stats()
	assert.Equal(t, int64(len(d.events)), stats.EventsEmitted)
	assert.Equal(t, stats.SessionsStarted, stats.EventsEmitted)
	assert.Zero(t, stats.SessionsFailed)
}

func TestRun_CreateEntityFromEvent(t *testing.T) {
	reg := userRegistry(t)
	sim, d, st := newTestSim(t, 7, Config{}, reg)
	require.NoError(t, sim.RegisterFlow(registrationFlow()))
	require.NoError(t, sim.Run(context.Background()))

	require.NotEmpty(t, d.events)
	ids := st.IDs("User")
	require.Len(t, ids, len(d.events), "one entity per registration event")

	// Entity id comes from the event's primary key; initial state from the
	// entity definition; released when the session ended.
	first := d.events[0]
	cur, ok := st.Current("User", first.Fields["user_id"].(string))
	require.True(t, ok)
	assert.Equal(t, false, cur["is_logged_in"])
	assert.Equal(t, int64(0), cur["logins"])
	assert.Nil(t, cur[store.OwnerField])
}

func TestRun_SeedsInitialEntities(t *testing.T) {
	reg := userRegistry(t)
	sim, d, st := newTestSim(t, 1, Config{
		Duration:        time.Minute,
		Step:            time.Minute,
		InitialEntities: map[string]int{"User": 5},
	}, reg)
	// No flows: nothing runs, but the population is seeded.
	require.NoError(t, sim.Run(context.Background()))

	assert.Len(t, st.IDs("User"), 5)
	assert.Empty(t, d.events, "seed events are not dispatched")

	for _, id := range st.IDs("User") {
		versions := st.Versions("User", id)
		require.Len(t, versions, 1)
		assert.Equal(t, simStart, versions[0].ValidFrom)
	}
}

func TestRun_FilterGatesFlow(t *testing.T) {
	reg := userRegistry(t)
	sim, d, _ := newTestSim(t, 3, Config{Duration: 30 * time.Minute, Step: 10 * time.Minute, DrawsPerStep: 2}, reg)

	// The only flow requires a logged-in user, and there are none.
	require.NoError(t, sim.RegisterFlow(Flow{
		Name:   "browse",
		Weight: 5.0,
		Filter: &Select{Entity: "User", Where: []store.Condition{
			store.Where("is_logged_in", store.OpIs, true),
		}},
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				yield(NewEvent{Schema: "UserLoggedIn"})
			}
		},
	}))
	require.NoError(t, sim.Run(context.Background()))

	assert.Empty(t, d.events)
	stats := sim.Stats()
	assert.Zero(t, stats.SessionsStarted)
	assert.Equal(t, int64(6), stats.DrawsSkipped, "every draw skips: no feasible flow")
}

func TestRun_FilterMatchAttachesAndBackfills(t *testing.T) {
	reg := userRegistry(t)
	sim, d, st := newTestSim(t, 5, Config{
		Duration:        20 * time.Minute,
		Step:            10 * time.Minute,
		InitialEntities: map[string]int{"User": 1},
	}, reg)

	require.NoError(t, sim.RegisterFlow(Flow{
		Name:   "login",
		Weight: 1.0,
		Filter: &Select{Entity: "User", Where: []store.Condition{
			store.Where("is_logged_in", store.OpIs, false),
		}},
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				yield(NewEvent{
					Schema: "UserLoggedIn",
					Mutate: &SetState{Entity: "User", Updates: []store.Update{
						store.Set("is_logged_in", true),
						store.Add("logins", int64(1)),
					}},
				})
			}
		},
	}))
	require.NoError(t, sim.Run(context.Background()))

	// The single user logs in once; afterwards the filter never matches.
	require.Len(t, d.events, 1)
	userID := st.IDs("User")[0]
	assert.Equal(t, userID, d.events[0].Fields["user_id"], "user_id backfilled from the attached entity")

	cur, _ := st.Current("User", userID)
	assert.Equal(t, true, cur["is_logged_in"])
	assert.Equal(t, int64(1), cur["logins"])
	assert.Nil(t, cur[store.OwnerField], "released after the session")

	stats := sim.Stats()
	assert.Equal(t, int64(1), stats.SessionsStarted)
	assert.Equal(t, int64(1), stats.DrawsSkipped)
}

func TestRun_OwnerFrozenIntoClosedInterval(t *testing.T) {
	reg := userRegistry(t)
	sim, d, st := newTestSim(t, 5, Config{
		Duration:        20 * time.Minute,
		Step:            10 * time.Minute,
		InitialEntities: map[string]int{"User": 1},
	}, reg)

	require.NoError(t, sim.RegisterFlow(Flow{
		Name:   "login",
		Weight: 1.0,
		Filter: &Select{Entity: "User", Where: []store.Condition{
			store.Where("is_logged_in", store.OpIs, false),
		}},
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				yield(NewEvent{
					Schema: "UserLoggedIn",
					Mutate: &SetState{Entity: "User", Updates: []store.Update{
						store.Set("is_logged_in", true),
					}},
				})
			}
		},
	}))
	require.NoError(t, sim.Run(context.Background()))
	require.Len(t, d.events, 1)

	sessID := d.events[0].SessionID
	userID := st.IDs("User")[0]

	// The mutation mid-session closed an interval that still carries the
	// session as owner; the current version is released.
	versions := st.Versions("User", userID)
	require.Len(t, versions, 2)
	assert.Equal(t, sessID, versions[0].State[store.OwnerField])
	require.NotNil(t, versions[0].ValidTo)
	assert.Nil(t, versions[1].State[store.OwnerField])
	assert.Nil(t, versions[1].ValidTo)
}

func TestRun_CreateThenSetYieldsTwoVersions(t *testing.T) {
	reg := userRegistry(t)
	sim, d, st := newTestSim(t, 11, Config{Duration: 10 * time.Minute, Step: 10 * time.Minute}, reg)

	require.NoError(t, sim.RegisterFlow(Flow{
		Name:   "register_and_login",
		Weight: 1.0,
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				if !yield(NewEvent{Schema: "UserRegistered", CreateEntity: "User"}) {
					return
				}
				yield(SetState{Entity: "User", Updates: []store.Update{
					store.Set("is_logged_in", true),
				}})
			}
		},
	}))
	require.NoError(t, sim.Run(context.Background()))

	require.Len(t, d.events, 1)
	userID := st.IDs("User")[0]
	versions := st.Versions("User", userID)
	require.Len(t, versions, 2)

	// Initial state, closed; mutated state, current.
	assert.Equal(t, false, versions[0].State["is_logged_in"])
	require.NotNil(t, versions[0].ValidTo)
	assert.Equal(t, true, versions[1].State["is_logged_in"])
	assert.Nil(t, versions[1].ValidTo)
}

func TestDecay_TerminatesAndAdvancesClock(t *testing.T) {
	reg := userRegistry(t)
	sim, d, _ := newTestSim(t, 9, Config{Duration: 10 * time.Minute, Step: 10 * time.Minute}, reg)

	require.NoError(t, sim.RegisterFlow(Flow{
		Name:   "always_drops",
		Weight: 1.0,
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				if !yield(NewEvent{Schema: "UserRegistered", CreateEntity: "User"}) {
					return
				}
				if !yield(AddDecay{Wait: 30 * time.Second, Rate: 1.0}) {
					return
				}
				yield(NewEvent{Schema: "UserLoggedIn"})
			}
		},
	}))
	require.NoError(t, sim.Run(context.Background()))

	// Rate 1.0 always terminates: only the first event of each session is
	// ever emitted.
	require.NotEmpty(t, d.events)
	for _, ev := range d.events {
		assert.Equal(t, "UserRegistered", ev.Schema)
	}
}

func TestDecay_RateZeroNeverTerminates(t *testing.T) {
	reg := userRegistry(t)
	sim, d, _ := newTestSim(t, 9, Config{Duration: 10 * time.Minute, Step: 10 * time.Minute}, reg)

	require.NoError(t, sim.RegisterFlow(Flow{
		Name:   "never_drops",
		Weight: 1.0,
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				if !yield(NewEvent{Schema: "UserRegistered", CreateEntity: "User"}) {
					return
				}
				if !yield(AddDecay{Wait: 45 * time.Second, Rate: 0.0}) {
					return
				}
				yield(NewEvent{Schema: "UserLoggedIn"})
			}
		},
	}))
	require.NoError(t, sim.Run(context.Background()))

	require.Len(t, d.events, 2)
	assert.Equal(t, "UserRegistered", d.events[0].Schema)
	assert.Equal(t, "UserLoggedIn", d.events[1].Schema)

	// The wait moved the session clock, so the second event is stamped
	// exactly 45s after the first.
	assert.Equal(t, d.events[0].Timestamp.Add(45*time.Second), d.events[1].Timestamp)
	// Both belong to the same session.
	assert.Equal(t, d.events[0].SessionID, d.events[1].SessionID)
}

func TestSetState_WithoutAttachedEntityFailsSession(t *testing.T) {
	reg := userRegistry(t)
	sim, d, _ := newTestSim(t, 2, Config{Duration: 10 * time.Minute, Step: 10 * time.Minute}, reg)

	require.NoError(t, sim.RegisterFlow(Flow{
		Name:   "broken",
		Weight: 1.0,
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				yield(SetState{Entity: "User", Updates: []store.Update{
					store.Set("is_logged_in", true),
				}})
			}
		},
	}))
	require.NoError(t, sim.Run(context.Background()), "a failing flow does not stop the run")

	stats := sim.Stats()
	assert.Equal(t, stats.SessionsStarted, stats.SessionsFailed)
	assert.Empty(t, d.events)
}

func TestSetState_OwnerFieldIsReserved(t *testing.T) {
	reg := userRegistry(t)
	sim, _, st := newTestSim(t, 2, Config{Duration: 10 * time.Minute, Step: 10 * time.Minute}, reg)

	require.NoError(t, sim.RegisterFlow(Flow{
		Name:   "sneaky",
		Weight: 1.0,
		Body: func(s *Session) iter.Seq[Action] {
			return func(yield func(Action) bool) {
				if !yield(NewEvent{Schema: "UserRegistered", CreateEntity: "User"}) {
					return
				}
				yield(SetState{Entity: "User", Updates: []store.Update{
					store.Set(store.OwnerField, "hijack"),
				}})
			}
		},
	}))
	require.NoError(t, sim.Run(context.Background()))

	stats := sim.Stats()
	assert.Equal(t, stats.SessionsStarted, stats.SessionsFailed)

	// The fail-safe release still ran: nothing stays owned.
	for _, id := range st.IDs("User") {
		cur, _ := st.Current("User", id)
		assert.Nil(t, cur[store.OwnerField])
	}
}

func TestRun_ContextCancellationStopsBetweenWindows(t *testing.T) {
	sim, _, _ := newTestSim(t, 1, Config{}, userRegistry(t))
	require.NoError(t, sim.RegisterFlow(registrationFlow()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sim.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_Reproducibility(t *testing.T) {
	run := func() ([]event.Event, Stats) {
		reg := userRegistry(t)
		sim, d, _ := newTestSim(t, 1234, Config{
			Duration:        2 * time.Hour,
			Step:            10 * time.Minute,
			DrawsPerStep:    3,
			InitialEntities: map[string]int{"User": 4},
		}, reg)

		require.NoError(t, sim.RegisterFlow(registrationFlow()))
		require.NoError(t, sim.RegisterFlow(Flow{
			Name:   "login",
			Weight: 4.0,
			Filter: &Select{Entity: "User", Where: []store.Condition{
				store.Where("is_logged_in", store.OpIs, false),
			}},
			Body: func(s *Session) iter.Seq[Action] {
				return func(yield func(Action) bool) {
					if !yield(AddDecay{Wait: 5 * time.Second, Rate: 0.25}) {
						return
					}
					yield(NewEvent{
						Schema: "UserLoggedIn",
						Mutate: &SetState{Entity: "User", Updates: []store.Update{
							store.Set("is_logged_in", true),
							store.Add("logins", int64(1)),
						}},
					})
				}
			},
		}))
		require.NoError(t, sim.Run(context.Background()))
		return d.events, sim.Stats()
	}

	eventsA, statsA := run()
	eventsB, statsB := run()

	assert.Equal(t, statsA, statsB)
	require.Equal(t, len(eventsA), len(eventsB))
	for i := range eventsA {
		a, err := event.MarshalRecord(eventsA[i].Record())
		require.NoError(t, err)
		b, err := event.MarshalRecord(eventsB[i].Record())
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "event %d diverged", i)
	}
}

func TestPickWeighted_Distribution(t *testing.T) {
	sim, _, _ := newTestSim(t, 99, Config{}, userRegistry(t))

	flows := []Flow{
		{Name: "heavy", Weight: 9.0},
		{Name: "light", Weight: 1.0},
	}
	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		f, ok := sim.pickWeighted(flows)
		require.True(t, ok)
		counts[f.Name]++
	}
	// Weight 9:1 should land near a 90/10 split.
	assert.InDelta(t, 9000, counts["heavy"], 300)
	assert.InDelta(t, 1000, counts["light"], 300)
}

func TestPickWeighted_ZeroTotalWeight(t *testing.T) {
	sim, _, _ := newTestSim(t, 1, Config{}, userRegistry(t))
	_, ok := sim.pickWeighted([]Flow{{Name: "a", Weight: 0}, {Name: "b", Weight: 0}})
	assert.False(t, ok)
}

func TestPickWeighted_ZeroWeightFlowNeverSelected(t *testing.T) {
	sim, _, _ := newTestSim(t, 123, Config{}, userRegistry(t))
	flows := []Flow{
		{Name: "never", Weight: 0},
		{Name: "always", Weight: 2.0},
	}
	for i := 0; i < 1000; i++ {
		f, ok := sim.pickWeighted(flows)
		require.True(t, ok)
		require.Equal(t, "always", f.Name)
	}
}

func TestSession_EntityLookup(t *testing.T) {
	st := store.New()
	require.NoError(t, st.Create("User", "u1", map[string]any{"is_logged_in": true}, simStart))

	sess := newSession("s1", "f", simStart, st)
	_, ok := sess.Entity("User")
	assert.False(t, ok, "nothing attached yet")

	sess.attach("User", "u1")
	state, ok := sess.Entity("User")
	require.True(t, ok)
	assert.Equal(t, true, state["is_logged_in"])

	id, ok := sess.EntityID("User")
	require.True(t, ok)
	assert.Equal(t, "u1", id)
}

func TestIdentityGenerators_Deterministic(t *testing.T) {
	a := UUIDGenerator{R: rand.New(rand.NewSource(4))}
	b := UUIDGenerator{R: rand.New(rand.NewSource(4))}
	assert.Equal(t, a.Generate(), b.Generate())

	sa := ShortIDGenerator{R: rand.New(rand.NewSource(4))}
	sb := ShortIDGenerator{R: rand.New(rand.NewSource(4))}
	id := sa.Generate()
	assert.Equal(t, id, sb.Generate())
	assert.Len(t, id, 12)
}
