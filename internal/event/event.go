package event

import (
	"maps"
	"time"
)

// Metadata field names attached to every emitted record.
const (
	FieldEventID   = "sys__eid"
	FieldTimestamp = "sys__ets"
	FieldSessionID = "sys__sid"
	FieldEventType = "event_type"
)

// Event is one fully built event ready for dispatch.
type Event struct {
	// Schema is the event schema name.
	Schema string

	// ID is the unique event id (sys__eid).
	ID string

	// Timestamp is the session's local clock at build time (sys__ets).
	Timestamp time.Time

	// SessionID correlates every event of one flow session (sys__sid).
	SessionID string

	// Fields holds the resolved schema fields.
	Fields map[string]any
}

// Record flattens the event into the wire shape consumed by sinks:
// schema fields plus the sys__ metadata and the event_type marker.
func (e Event) Record() map[string]any {
	rec := make(map[string]any, len(e.Fields)+4)
	maps.Copy(rec, e.Fields)
	rec[FieldEventID] = e.ID
	rec[FieldTimestamp] = e.Timestamp.UnixMilli()
	rec[FieldSessionID] = e.SessionID
	rec[FieldEventType] = e.Schema
	return rec
}
