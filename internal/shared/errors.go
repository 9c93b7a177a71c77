package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConcurrencyConflict indicates an atomic re-check detected
	// over-allocation; callers should retry the whole operation.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

// InvalidTransitionError is raised when an edit attempts a status change
// outside the currently allowed set.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: status transition %s -> %s not allowed", e.Entity, e.From, e.To)
}

// UserSafeMessage returns an error message suitable for API consumers.
// Internal errors collapse to a generic message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var transition *InvalidTransitionError
	if errors.As(err, &transition) {
		return transition.Error()
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConcurrencyConflict) {
		return err.Error()
	}
	return "operation failed"
}
