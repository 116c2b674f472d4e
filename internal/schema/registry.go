package schema

import "fmt"

// Registry is the explicit lookup table from names to static definitions.
//
// Built once at configuration load, read-only afterwards. Registration
// order is preserved so that iteration is deterministic.
type Registry struct {
	events      map[string]EventDef
	entities    map[string]EntityDef
	eventOrder  []string
	entityOrder []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		events:   make(map[string]EventDef),
		entities: make(map[string]EntityDef),
	}
}

// RegisterEvent adds an event schema definition.
// Returns an error on an empty name or a duplicate registration.
func (r *Registry) RegisterEvent(def EventDef) error {
	if def.Name == "" {
		return fmt.Errorf("event schema name must not be empty")
	}
	if _, ok := r.events[def.Name]; ok {
		return fmt.Errorf("duplicate event schema: %s", def.Name)
	}
	r.events[def.Name] = def
	r.eventOrder = append(r.eventOrder, def.Name)
	return nil
}

// RegisterEntity adds an entity type definition.
//
// Validates that the source event, if named, is already registered and
// declares the entity's primary-key field.
func (r *Registry) RegisterEntity(def EntityDef) error {
	if def.Name == "" {
		return fmt.Errorf("entity type name must not be empty")
	}
	if _, ok := r.entities[def.Name]; ok {
		return fmt.Errorf("duplicate entity type: %s", def.Name)
	}
	if def.PrimaryKey == "" {
		return fmt.Errorf("entity type %s: primary key field is required", def.Name)
	}
	if def.SourceEvent != "" {
		src, ok := r.events[def.SourceEvent]
		if !ok {
			return fmt.Errorf("entity type %s: unknown source event %s", def.Name, def.SourceEvent)
		}
		if _, ok := src.FieldByName(def.PrimaryKey); !ok {
			return fmt.Errorf("entity type %s: source event %s has no field %s",
				def.Name, def.SourceEvent, def.PrimaryKey)
		}
	}
	r.entities[def.Name] = def
	r.entityOrder = append(r.entityOrder, def.Name)
	return nil
}

// Event returns the event schema with the given name.
func (r *Registry) Event(name string) (EventDef, bool) {
	def, ok := r.events[name]
	return def, ok
}

// Entity returns the entity type with the given name.
func (r *Registry) Entity(name string) (EntityDef, bool) {
	def, ok := r.entities[name]
	return def, ok
}

// Events returns all event schemas in registration order.
func (r *Registry) Events() []EventDef {
	defs := make([]EventDef, 0, len(r.eventOrder))
	for _, name := range r.eventOrder {
		defs = append(defs, r.events[name])
	}
	return defs
}

// Entities returns all entity types in registration order.
func (r *Registry) Entities() []EntityDef {
	defs := make([]EntityDef, 0, len(r.entityOrder))
	for _, name := range r.entityOrder {
		defs = append(defs, r.entities[name])
	}
	return defs
}
