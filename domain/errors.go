package domain

import (
	"errors"
	"fmt"
)

// ErrNotFoundLocal marks a mutation whose target is absent from the local
// snapshot. It is never shown to users.
var ErrNotFoundLocal = errors.New("target not present in local snapshot")

// ValidationError is returned when a required field is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
