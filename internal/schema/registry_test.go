package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterEvent(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterEvent(EventDef{Name: "A"}))

	require.Error(t, reg.RegisterEvent(EventDef{Name: "A"}), "duplicate")
	require.Error(t, reg.RegisterEvent(EventDef{}), "empty name")

	_, ok := reg.Event("A")
	assert.True(t, ok)
	_, ok = reg.Event("B")
	assert.False(t, ok)
}

func TestRegisterEntity_Validation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterEvent(EventDef{
		Name:   "ThingCreated",
		Fields: []Field{{Name: "thing_id", PrimaryKey: true}},
	}))

	require.NoError(t, reg.RegisterEntity(EntityDef{
		Name: "Thing", SourceEvent: "ThingCreated", PrimaryKey: "thing_id",
	}))

	tests := []struct {
		name string
		def  EntityDef
	}{
		{"duplicate", EntityDef{Name: "Thing", SourceEvent: "ThingCreated", PrimaryKey: "thing_id"}},
		{"empty name", EntityDef{PrimaryKey: "x"}},
		{"missing primary key", EntityDef{Name: "NoPK", SourceEvent: "ThingCreated"}},
		{"unknown source event", EntityDef{Name: "Orphan", SourceEvent: "Nope", PrimaryKey: "thing_id"}},
		{"pk not in source event", EntityDef{Name: "BadPK", SourceEvent: "ThingCreated", PrimaryKey: "other_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, reg.RegisterEntity(tt.def))
		})
	}
}

func TestRegistry_IterationOrderIsRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"C", "A", "B"} {
		require.NoError(t, reg.RegisterEvent(EventDef{Name: name}))
	}
	var names []string
	for _, def := range reg.Events() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"C", "A", "B"}, names)
}

func TestEventDef_PrimaryKeyFields(t *testing.T) {
	def := EventDef{Name: "E", Fields: []Field{
		{Name: "a", PrimaryKey: true},
		{Name: "b"},
		{Name: "c", PrimaryKey: true},
	}}
	assert.Equal(t, []string{"a", "c"}, def.PrimaryKeyFields())

	f, ok := def.FieldByName("b")
	require.True(t, ok)
	assert.Equal(t, "b", f.Name)
	_, ok = def.FieldByName("z")
	assert.False(t, ok)
}

func TestEntityDef_InitialState(t *testing.T) {
	def := EntityDef{
		Name: "Product", SourceEvent: "ProductCreated", PrimaryKey: "product_id",
		Fields: []StateField{
			{Name: "current_status", FromField: "status"},
			{Name: "inventory", Default: int64(50)},
			{Name: "missing_source", FromField: "not_there", Default: "fallback"},
		},
	}
	state := def.InitialState(map[string]any{"status": "available", "price": 1.0})

	assert.Equal(t, "available", state["current_status"])
	assert.Equal(t, int64(50), state["inventory"])
	assert.Equal(t, "fallback", state["missing_source"], "absent source field falls back to default")
	assert.NotContains(t, state, "price", "unmapped event fields are not copied")
}
