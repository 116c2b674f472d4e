package engine

import (
	"time"

	"github.com/roach88/mirage/internal/store"
)

// Session is one running instance of a flow: its own local clock, the
// entities attached to it, and a termination flag.
//
// The local clock starts at the sampled start time and advances only
// through decay actions. Attached entities are held by id; the store
// remains the single source of truth for their state.
type Session struct {
	id       string
	flowName string
	clock    time.Time

	st *store.Store

	// attached maps entity type to entity id. attachOrder preserves attach
	// order so release is deterministic.
	attached    map[string]string
	attachOrder []string

	terminated bool
}

func newSession(id, flowName string, start time.Time, st *store.Store) *Session {
	return &Session{
		id:       id,
		flowName: flowName,
		clock:    start,
		st:       st,
		attached: make(map[string]string),
	}
}

// ID returns the session id shared by every event of this session.
func (s *Session) ID() string { return s.id }

// FlowName returns the name of the flow this session runs.
func (s *Session) FlowName() string { return s.flowName }

// Clock returns the session's local clock.
func (s *Session) Clock() time.Time { return s.clock }

// Terminated reports whether the session ended early through a decay draw.
func (s *Session) Terminated() bool { return s.terminated }

// EntityID returns the id of the attached entity of the given type.
func (s *Session) EntityID(entityType string) (string, bool) {
	id, ok := s.attached[entityType]
	return id, ok
}

// Entity returns the current state snapshot of the attached entity of the
// given type. Attachment pinned the entity at session start, so this is
// the in-flow lookup path; it never searches the store.
func (s *Session) Entity(entityType string) (map[string]any, bool) {
	id, ok := s.attached[entityType]
	if !ok {
		return nil, false
	}
	return s.st.Current(entityType, id)
}

// attach records the entity and its attach position. The store-side
// owner_session write happens at the call site.
func (s *Session) attach(entityType, id string) {
	if _, ok := s.attached[entityType]; !ok {
		s.attachOrder = append(s.attachOrder, entityType)
	}
	s.attached[entityType] = id
}

// advance moves the local clock forward.
func (s *Session) advance(d time.Duration) {
	s.clock = s.clock.Add(d)
}
