package schema

// StateField declares one managed state attribute of an entity type.
type StateField struct {
	// Name of the state field.
	Name string

	// Default is the initial value when FromField does not apply.
	Default any

	// FromField, when non-empty, names the source-event field whose value
	// initializes this state field on entity creation.
	FromField string
}

// EntityDef is the immutable definition of one entity type.
//
// Instances are created from a source event: the primary-key field of the
// event becomes the entity id, and state fields are initialized from their
// defaults or copied from the named source-event fields.
type EntityDef struct {
	Name string

	// SourceEvent names the event schema that creates instances of this
	// entity type. Optional; entities without one can only be pre-seeded.
	SourceEvent string

	// PrimaryKey is the source-event field holding the entity id.
	PrimaryKey string

	// Fields are the declared state fields in declaration order.
	Fields []StateField
}

// InitialState builds the first state snapshot for a new instance from the
// source event's resolved field values. Unknown source fields are ignored.
func (d EntityDef) InitialState(source map[string]any) map[string]any {
	state := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		if f.FromField != "" {
			if v, ok := source[f.FromField]; ok {
				state[f.Name] = v
				continue
			}
		}
		state[f.Name] = f.Default
	}
	return state
}
