package repository

import (
	"errors"
	"fmt"

	"github.com/noah-isme/event-registration-api/internal/models"
)

// ErrNotFound is returned when no registration matches a lookup.
var ErrNotFound = errors.New("registration not found")

// UniqueViolationError reports a write rejected by a uniqueness constraint.
type UniqueViolationError struct {
	Field models.UniqueField
	Err   error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s: %v", e.Field, e.Err)
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}

// AsUniqueViolation extracts a UniqueViolationError from err.
func AsUniqueViolation(err error) (*UniqueViolationError, bool) {
	var target *UniqueViolationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
