package store

import (
	"fmt"
	"iter"
	"maps"
	"sync"
	"time"
)

// OwnerField is the implicit state field holding the id of the session an
// entity is currently attached to. nil means the entity is available.
const OwnerField = "owner_session"

// Version is one time-bounded snapshot of an entity's state.
type Version struct {
	EntityType string
	EntityID   string
	State      map[string]any
	ValidFrom  time.Time
	ValidTo    *time.Time // nil = open (current)
}

// Covers reports whether the version is valid at t.
// Intervals are half-open: [ValidFrom, ValidTo).
func (v Version) Covers(t time.Time) bool {
	if t.Before(v.ValidFrom) {
		return false
	}
	return v.ValidTo == nil || t.Before(*v.ValidTo)
}

// Match is one entity returned by Query: its id and the state snapshot of
// the version covering the queried time. The snapshot is a copy; callers
// may retain or modify it freely.
type Match struct {
	ID    string
	State map[string]any
}

// Store owns all entity state versions for one simulation run.
//
// All methods are safe for concurrent use, but the simulation's
// single-writer scheduling means writes are serialized through one
// goroutine in practice.
type Store struct {
	mu       sync.RWMutex
	versions map[string]map[string][]*Version // type -> id -> versions in valid_from order
	order    map[string][]string              // type -> ids in creation order
	journal  *Journal
	seq      int64 // journal row counter
}

// Option configures a Store.
type Option func(*Store)

// WithJournal attaches an append-only version journal. Every version
// insert and close is mirrored to it.
func WithJournal(j *Journal) Option {
	return func(s *Store) { s.journal = j }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		versions: make(map[string]map[string][]*Version),
		order:    make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts the first version of an entity: valid_from = at, valid_to
// open. The snapshot is copied and the implicit owner_session field is
// initialized to nil.
//
// Returns DUPLICATE_ENTITY if a current version already exists for the id.
func (s *Store) Create(typ, id string, initial map[string]any, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.openVersion(typ, id); cur != nil {
		return &Error{
			Code:       CodeDuplicateEntity,
			EntityType: typ,
			EntityID:   id,
			Message:    "entity already has a current version",
		}
	}

	state := maps.Clone(initial)
	if state == nil {
		state = make(map[string]any, 1)
	}
	if _, ok := state[OwnerField]; !ok {
		state[OwnerField] = nil
	}

	v := &Version{EntityType: typ, EntityID: id, State: state, ValidFrom: at}

	if s.versions[typ] == nil {
		s.versions[typ] = make(map[string][]*Version)
	}
	if len(s.versions[typ][id]) == 0 {
		s.order[typ] = append(s.order[typ], id)
	}
	s.versions[typ][id] = append(s.versions[typ][id], v)

	return s.journalAppend(v)
}

// Mutate closes the entity's open version at time at and opens a new one
// whose snapshot is the prior snapshot with updates applied. All updates
// land in the same new version.
//
// Returns ENTITY_NOT_FOUND if there is no current version,
// TIME_TRAVEL_VIOLATION if at precedes the current version's valid_from,
// and TYPE_MISMATCH for arithmetic on non-numeric fields (in which case
// nothing is changed).
func (s *Store) Mutate(typ, id string, updates []Update, at time.Time) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(typ, id, updates, at)
}

// Attach marks the entity's open version as owned by the given session.
// Ownership is the runtime locking protocol, not entity state history: the
// owner field is written in place and does not open a new version. A later
// mutation clones the snapshot as usual, so the interval it closes keeps
// the owner that held the entity at the time.
//
// Returns ENTITY_ATTACHED if another session already holds the entity.
func (s *Store) Attach(typ, id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.openVersion(typ, id)
	if cur == nil {
		return &Error{
			Code:       CodeEntityNotFound,
			EntityType: typ,
			EntityID:   id,
			Message:    "no current version",
		}
	}
	if owner := cur.State[OwnerField]; owner != nil {
		return &Error{
			Code:       CodeEntityAttached,
			EntityType: typ,
			EntityID:   id,
			Message:    fmt.Sprintf("already attached to session %v", owner),
		}
	}
	cur.State[OwnerField] = sessionID
	return nil
}

// Release clears the owner on the entity's open version in place,
// preserving all other state. Releasing an unowned entity is a no-op.
func (s *Store) Release(typ, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.openVersion(typ, id)
	if cur == nil {
		return &Error{
			Code:       CodeEntityNotFound,
			EntityType: typ,
			EntityID:   id,
			Message:    "no current version",
		}
	}
	cur.State[OwnerField] = nil
	return nil
}

// mutate is the single write path. Caller holds s.mu.
func (s *Store) mutate(typ, id string, updates []Update, at time.Time) (map[string]any, error) {
	cur := s.openVersion(typ, id)
	if cur == nil {
		return nil, &Error{
			Code:       CodeEntityNotFound,
			EntityType: typ,
			EntityID:   id,
			Message:    "no current version",
		}
	}
	if at.Before(cur.ValidFrom) {
		return nil, &Error{
			Code:       CodeTimeTravel,
			EntityType: typ,
			EntityID:   id,
			Message: fmt.Sprintf("mutation at %s precedes current version valid_from %s",
				at.Format(time.RFC3339Nano), cur.ValidFrom.Format(time.RFC3339Nano)),
		}
	}

	// Apply all updates to a private copy before touching the version
	// chain, so a TYPE_MISMATCH leaves the entity untouched.
	next := maps.Clone(cur.State)
	for _, u := range updates {
		if err := u.apply(typ, id, next); err != nil {
			return nil, err
		}
	}

	closedAt := at
	cur.ValidTo = &closedAt

	v := &Version{EntityType: typ, EntityID: id, State: next, ValidFrom: at}
	s.versions[typ][id] = append(s.versions[typ][id], v)

	if err := s.journalClose(cur); err != nil {
		return nil, err
	}
	if err := s.journalAppend(v); err != nil {
		return nil, err
	}
	return maps.Clone(next), nil
}

// Query returns entities of the given type whose version covering time at
// satisfies every condition. The sequence is lazy, finite, and restartable;
// entities are visited in creation order. limit <= 0 means no limit.
//
// The read lock is held while the sequence is being consumed, so callers
// must not write to the store from inside the loop. Collect the matches
// first when a write is needed.
func (s *Store) Query(typ string, where []Condition, at time.Time, limit int) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		n := 0
		for _, id := range s.order[typ] {
			if limit > 0 && n >= limit {
				return
			}
			v := s.versionAt(typ, id, at)
			if v == nil {
				continue
			}
			matched := true
			for _, c := range where {
				if !c.Matches(v.State) {
					matched = false
					break
				}
			}
			if !matched {
				continue
			}
			n++
			if !yield(Match{ID: id, State: maps.Clone(v.State)}) {
				return
			}
		}
	}
}

// StateAt returns a copy of the entity's snapshot at time at.
func (s *Store) StateAt(typ, id string, at time.Time) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.versionAt(typ, id, at)
	if v == nil {
		return nil, false
	}
	return maps.Clone(v.State), true
}

// Current returns a copy of the entity's open snapshot.
func (s *Store) Current(typ, id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.openVersion(typ, id)
	if v == nil {
		return nil, false
	}
	return maps.Clone(v.State), true
}

// Versions returns copies of all versions of an entity in valid_from
// order. Intended for tests and inspection.
func (s *Store) Versions(typ, id string) []Version {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.versions[typ][id]
	out := make([]Version, 0, len(chain))
	for _, v := range chain {
		c := *v
		c.State = maps.Clone(v.State)
		if v.ValidTo != nil {
			t := *v.ValidTo
			c.ValidTo = &t
		}
		out = append(out, c)
	}
	return out
}

// IDs returns the entity ids of a type in creation order.
func (s *Store) IDs(typ string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order[typ]))
	copy(out, s.order[typ])
	return out
}

// openVersion returns the entity's open version. Caller holds a lock.
// The open version is always the last element of the chain.
func (s *Store) openVersion(typ, id string) *Version {
	chain := s.versions[typ][id]
	if len(chain) == 0 {
		return nil
	}
	last := chain[len(chain)-1]
	if last.ValidTo != nil {
		return nil
	}
	return last
}

// versionAt returns the version covering t. Caller holds a lock.
func (s *Store) versionAt(typ, id string, t time.Time) *Version {
	for _, v := range s.versions[typ][id] {
		if v.Covers(t) {
			return v
		}
	}
	return nil
}

func (s *Store) journalAppend(v *Version) error {
	if s.journal == nil {
		return nil
	}
	s.seq++
	if err := s.journal.Append(s.seq, v); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

func (s *Store) journalClose(v *Version) error {
	if s.journal == nil {
		return nil
	}
	if err := s.journal.CloseVersion(v); err != nil {
		return fmt.Errorf("journal close: %w", err)
	}
	return nil
}
