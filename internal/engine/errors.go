package engine

import (
	"errors"
	"fmt"
)

// SessionErrorCode categorizes errors raised while interpreting a flow
// session's action stream.
type SessionErrorCode string

const (
	// CodeNoAttachedEntity indicates a mutation against an entity type the
	// session has no entity attached for.
	CodeNoAttachedEntity SessionErrorCode = "NO_ATTACHED_ENTITY"

	// CodeReservedField indicates a flow tried to write owner_session
	// directly; only the runner's attach/release protocol may.
	CodeReservedField SessionErrorCode = "RESERVED_FIELD"

	// CodeUnknownEntityType indicates an action referenced an entity type
	// that is not registered.
	CodeUnknownEntityType SessionErrorCode = "UNKNOWN_ENTITY_TYPE"

	// CodeInvalidEntityID indicates a created entity's primary key did not
	// resolve to a usable id.
	CodeInvalidEntityID SessionErrorCode = "INVALID_ENTITY_ID"
)

// SessionError is a structured flow-session error carrying the session and
// entity coordinates for diagnostics.
type SessionError struct {
	Code       SessionErrorCode
	SessionID  string
	FlowName   string
	EntityType string
	Message    string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.EntityType != "" {
		return fmt.Sprintf("%s: %s (flow=%s, session=%s, entity_type=%s)",
			e.Code, e.Message, e.FlowName, e.SessionID, e.EntityType)
	}
	return fmt.Sprintf("%s: %s (flow=%s, session=%s)", e.Code, e.Message, e.FlowName, e.SessionID)
}

// IsNoAttachedEntity reports whether err is a NO_ATTACHED_ENTITY error.
// Uses errors.As to handle wrapped errors.
func IsNoAttachedEntity(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == CodeNoAttachedEntity
	}
	return false
}
