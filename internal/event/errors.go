package event

import (
	"errors"
	"fmt"
)

// BuildError is a structured event assembly error.
type BuildError struct {
	Code    BuildErrorCode
	Schema  string
	Field   string
	Message string
}

// BuildErrorCode categorizes build errors.
type BuildErrorCode string

const (
	// CodeMissingPrimaryKey indicates a primary-key field resolved to nil.
	CodeMissingPrimaryKey BuildErrorCode = "MISSING_PRIMARY_KEY"

	// CodeUnknownSchema indicates a build against an unregistered schema.
	CodeUnknownSchema BuildErrorCode = "UNKNOWN_SCHEMA"

	// CodeGeneratorFailed indicates the value generator returned an error.
	CodeGeneratorFailed BuildErrorCode = "GENERATOR_FAILED"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (schema=%s, field=%s)", e.Code, e.Message, e.Schema, e.Field)
	}
	return fmt.Sprintf("%s: %s (schema=%s)", e.Code, e.Message, e.Schema)
}

// IsMissingPrimaryKey reports whether err is a MISSING_PRIMARY_KEY build
// error. Uses errors.As to handle wrapped errors.
func IsMissingPrimaryKey(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == CodeMissingPrimaryKey
	}
	return false
}
