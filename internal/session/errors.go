package session

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound means the access code resolves to no exam, or the exam does
	// not accept entry.
	ErrNotFound = errors.New("exam not found")
	// ErrValidation wraps every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrTerminalConflict means the examinee already has a submitted or
	// disqualified session for this exam.
	ErrTerminalConflict = errors.New("session already finalized")
	// ErrTransientStore marks a store failure that left local state intact.
	ErrTransientStore = errors.New("store temporarily unavailable")
	// ErrFatalStore means the terminal write could not be persisted.
	ErrFatalStore = errors.New("final write failed")
	// ErrInvalidState means the operation is not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrOutOfRange means a question or option index is outside the exam.
	ErrOutOfRange = errors.New("index out of range")
)

// ValidationError carries per-field messages for a rejected registration.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
