package report

import (
	"errors"
	"strings"
)

// ErrMissingConfiguration marks a report that cannot be built because a
// required metadata field is not configured.
var ErrMissingConfiguration = errors.New("missing configuration")

// MissingFieldsError names the logical fields that could not be resolved.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing configuration: unresolved session fields " + strings.Join(e.Fields, ", ")
}

// Unwrap allows errors.Is(err, ErrMissingConfiguration).
func (e *MissingFieldsError) Unwrap() error { return ErrMissingConfiguration }
