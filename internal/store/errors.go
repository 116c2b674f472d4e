package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeDuplicateEntity indicates a create for an id that already has a
	// current version.
	CodeDuplicateEntity ErrorCode = "DUPLICATE_ENTITY"

	// CodeEntityNotFound indicates a mutation against an entity with no
	// current version.
	CodeEntityNotFound ErrorCode = "ENTITY_NOT_FOUND"

	// CodeTimeTravel indicates a mutation timestamped before the open
	// version's valid_from.
	CodeTimeTravel ErrorCode = "TIME_TRAVEL_VIOLATION"

	// CodeTypeMismatch indicates an arithmetic update against a
	// non-numeric field.
	CodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// CodeEntityAttached indicates an attach against an entity another
	// session already holds.
	CodeEntityAttached ErrorCode = "ENTITY_ATTACHED"
)

// Error is a structured store error with the entity coordinates that
// triggered it.
type Error struct {
	Code       ErrorCode
	EntityType string
	EntityID   string
	Field      string
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (entity=%s/%s, field=%s)", e.Code, e.Message, e.EntityType, e.EntityID, e.Field)
	}
	return fmt.Sprintf("%s: %s (entity=%s/%s)", e.Code, e.Message, e.EntityType, e.EntityID)
}

// IsDuplicateEntity reports whether err is a DUPLICATE_ENTITY store error.
// Uses errors.As to handle wrapped errors.
func IsDuplicateEntity(err error) bool { return hasCode(err, CodeDuplicateEntity) }

// IsEntityNotFound reports whether err is an ENTITY_NOT_FOUND store error.
func IsEntityNotFound(err error) bool { return hasCode(err, CodeEntityNotFound) }

// IsTimeTravel reports whether err is a TIME_TRAVEL_VIOLATION store error.
func IsTimeTravel(err error) bool { return hasCode(err, CodeTimeTravel) }

// IsTypeMismatch reports whether err is a TYPE_MISMATCH store error.
func IsTypeMismatch(err error) bool { return hasCode(err, CodeTypeMismatch) }

// IsEntityAttached reports whether err is an ENTITY_ATTACHED store error.
func IsEntityAttached(err error) bool { return hasCode(err, CodeEntityAttached) }

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
