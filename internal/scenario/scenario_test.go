package scenario

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirage/internal/engine"
	"github.com/roach88/mirage/internal/event"
	"github.com/roach88/mirage/internal/gen"
	"github.com/roach88/mirage/internal/schema"
	"github.com/roach88/mirage/internal/store"
)

func TestLookup(t *testing.T) {
	sc, err := Lookup("ecommerce")
	require.NoError(t, err)
	assert.Equal(t, "ecommerce", sc.Name)

	_, err = Lookup("nope")
	require.Error(t, err)

	assert.Contains(t, Names(), "ecommerce")
}

func TestEcommerce_Registration(t *testing.T) {
	sc, err := Lookup("ecommerce")
	require.NoError(t, err)

	reg := schema.NewRegistry()
	require.NoError(t, sc.Register(reg))

	assert.Len(t, reg.Events(), 7)
	assert.Len(t, reg.Entities(), 2)

	user, ok := reg.Entity("User")
	require.True(t, ok)
	assert.Equal(t, "UserRegistered", user.SourceEvent)
	assert.Equal(t, "user_id", user.PrimaryKey)

	product, ok := reg.Entity("Product")
	require.True(t, ok)
	assert.Equal(t, "ProductCreated", product.SourceEvent)

	// Product state copies status and price from the source event.
	state := product.InitialState(map[string]any{
		"product_id": "4006381333931",
		"status":     "available",
		"price":      19.5,
	})
	assert.Equal(t, "available", state["current_status"])
	assert.Equal(t, 19.5, state["current_price"])
	assert.Equal(t, int64(50), state["inventory"])
}

func TestEcommerce_FlowWeights(t *testing.T) {
	sc, err := Lookup("ecommerce")
	require.NoError(t, err)

	flows := sc.Flows()
	require.Len(t, flows, 4)

	weights := map[string]float64{}
	for _, f := range flows {
		weights[f.Name] = f.Weight
	}
	assert.Equal(t, 3.0, weights["new_user_registration"])
	assert.Equal(t, 8.0, weights["user_browsing_session"])
	assert.Equal(t, 5.0, weights["returning_user_login"])
	assert.Equal(t, 1.5, weights["new_product_listing"])

	for _, f := range flows {
		switch f.Name {
		case "user_browsing_session", "returning_user_login":
			assert.NotNil(t, f.Filter, "%s requires an existing user", f.Name)
			assert.Equal(t, "User", f.Filter.Entity)
		default:
			assert.Nil(t, f.Filter)
		}
	}
}

func TestEcommerce_EndToEnd(t *testing.T) {
	sc, err := Lookup("ecommerce")
	require.NoError(t, err)

	reg := schema.NewRegistry()
	require.NoError(t, sc.Register(reg))

	rng := rand.New(rand.NewSource(42))
	st := store.New()
	d := &captureDispatcher{}
	sim, err := engine.New(engine.Config{
		Start:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:        2 * time.Hour,
		Step:            5 * time.Minute,
		DrawsPerStep:    2,
		InitialEntities: map[string]int{"User": 25, "Product": 15},
	}, engine.Deps{
		Registry:   reg,
		Store:      st,
		Dispatcher: d,
		Generator:  gen.New(rng),
		Rand:       rng,
	})
	require.NoError(t, err)
	for _, f := range sc.Flows() {
		require.NoError(t, sim.RegisterFlow(f))
	}

	require.NoError(t, sim.Run(context.Background()))

	stats := sim.Stats()
	assert.Zero(t, stats.SessionsFailed)
	assert.NotZero(t, stats.EventsEmitted)
	assert.Len(t, st.IDs("User"), 25+countBySchema(d.events, "UserRegistered"))
	assert.Len(t, st.IDs("Product"), 15+countBySchema(d.events, "ProductCreated"))

	// Nothing stays attached once the run drains.
	for _, typ := range []string{"User", "Product"} {
		for _, id := range st.IDs(typ) {
			cur, ok := st.Current(typ, id)
			require.True(t, ok)
			assert.Nil(t, cur[store.OwnerField])
		}
	}
}

type captureDispatcher struct {
	events []event.Event
}

func (d *captureDispatcher) Dispatch(ev event.Event) {
	d.events = append(d.events, ev)
}

func countBySchema(events []event.Event, schemaName string) int {
	n := 0
	for _, ev := range events {
		if ev.Schema == schemaName {
			n++
		}
	}
	return n
}
