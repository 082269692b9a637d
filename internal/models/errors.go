package models

import (
	"github.com/myrjola/decisionverse/internal/errors"
	"strings"
)

var (
	// ErrValidation marks input that was rejected before touching any store.
	ErrValidation = errors.NewSentinel("validation failed")
	// ErrNotFound is returned when a session, question or leaderboard record does not exist.
	ErrNotFound = errors.NewSentinel("not found")
	// ErrDependency marks a failed call to a store or the feedback generator.
	ErrDependency = errors.NewSentinel("dependency failed")
	// ErrNoContent is returned when a game cannot start because there are no active questions.
	ErrNoContent = errors.NewSentinel("no content available")
	// ErrConflict is returned for stale or duplicate transitions.
	ErrConflict = errors.NewSentinel("conflicting state transition")
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is the list of field errors for a single form or operation.
//
// It matches [ErrValidation] with errors.Is.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation //nolint:errorlint // sentinel identity
}

// For returns the joined messages for field, or "" when the field is valid.
func (v ValidationErrors) For(field string) string {
	var msgs []string
	for _, e := range v {
		if e.Field == field {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, " ")
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

func (v ValidationErrors) errOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
