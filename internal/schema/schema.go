package schema

// Field describes one declared field of an event schema.
//
// Resolution order at build time: explicit override, generated value
// (when Hint is set), primary-key backfill from the session's attached
// entities, then Default.
type Field struct {
	// Name is the field name as it appears in the emitted event.
	Name string

	// Hint names the generator used to produce a value ("uuid", "email",
	// "float", ...). Empty means the field is never generated.
	Hint string

	// Params carries generator parameters ("min", "max", "elements", ...).
	Params map[string]any

	// Default is used when no override, generated value, or backfill
	// resolves the field. May be nil.
	Default any

	// PrimaryKey marks the field as the identity of entities created from
	// this event. Primary-key fields must resolve to a non-nil value.
	PrimaryKey bool
}

// EventDef is the immutable definition of one event schema.
// Fields are ordered; generation draws happen in declaration order.
type EventDef struct {
	Name   string
	Fields []Field
}

// PrimaryKeyFields returns the names of all primary-key fields in
// declaration order.
func (d EventDef) PrimaryKeyFields() []string {
	var keys []string
	for _, f := range d.Fields {
		if f.PrimaryKey {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// FieldByName returns the field with the given name.
func (d EventDef) FieldByName(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
