package models

import (
	"errors"
	"strings"
)

// Failure kinds. Callers match them with errors.Is; none is retried.
var (
	ErrSourceFetch  = errors.New("source fetch failed")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")
)

// MissingFieldsError is a validation failure naming the absent inputs.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error { return ErrValidation }
