// Package store implements the bitemporal entity store.
//
// Every entity is a list of state versions keyed by (entity type, entity
// id). A version covers the half-open interval [valid_from, valid_to); at
// most one version per entity is open (valid_to unset) and represents the
// current state. Versions are never physically deleted, so any past point
// of simulation time can be queried.
//
// # Invariants
//
//   - Version intervals per entity are contiguous and non-overlapping,
//     ordered by valid_from.
//   - Mutations are monotonically increasing in time per entity; a mutation
//     before the open version's valid_from is a TIME_TRAVEL_VIOLATION.
//   - The implicit owner_session field exists on every entity and is only
//     written through Attach/Release, never through ordinary updates.
//     Locking is runtime metadata, not state history: Attach and Release
//     write the open version in place, so a lock/unlock pair leaves the
//     version chain untouched. Mutations clone the snapshot, so a closed
//     interval keeps the owner that held the entity when it closed.
//
// # Determinism
//
// Query iterates entities in creation order, which is a pure function of
// the write history. Selection randomness belongs to the caller; the store
// itself draws nothing.
//
// State values are scalars: strings, bools, integers, floats, time.Time,
// or nil. The store does not interpret nested structures.
package store
