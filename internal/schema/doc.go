// Package schema holds the static definitions a simulation is built from:
// event schemas (ordered fields with generation hints) and entity types
// (stateful objects created from a source event).
//
// Definitions are registered once at configuration time through a Registry
// and are never mutated afterwards. Runtime code consults the registry by
// value; there is no reflection-based registration.
package schema
