// Package engine implements the simulation core: the time-windowed
// scheduler that selects and launches flows, and the flow runner that
// interprets each session's action stream against the entity store.
//
// # Single-writer scheduling
//
// One simulation run makes every decision on one goroutine: start-time
// draws, feasibility checks, weighted flow selection, candidate entity
// picks, and the flow bodies themselves all execute in the Run loop. This
// makes the feasibility check and the subsequent entity attach atomic with
// respect to later draws, and it makes a seeded run fully reproducible.
//
// # Random draw order
//
// All randomness is consumed from the single injected *rand.Rand in a
// fixed order. Per scheduler draw:
//
//  1. start-time draw (uniform in the window)
//  2. flow-selection draw (one uniform over the feasible cumulative weight;
//     skipped when no flow is feasible)
//  3. candidate-entity draw (uniform over the filter's matching unattached
//     entities; only for filtered flows)
//  4. session-id draw
//
// then, inside the flow body in action order: one draw per generated event
// field (field declaration order) and one draw per decay action.
//
// # Error handling
//
// Store and builder errors are fatal to the session that triggered them:
// the runner releases the session's entities and returns the error, which
// the scheduler logs and drops. One bad flow never halts the run.
package engine
