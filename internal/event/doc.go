// Package event defines the emitted event value and the builder that
// assembles events from a schema definition and a flow session's context.
//
// An event is a resolved field map plus system metadata: a unique event id
// (sys__eid), the session's local clock at build time in epoch milliseconds
// (sys__ets), and the session id (sys__sid) shared by every event of one
// flow session.
package event
