package cards

import (
	"errors"
	"fmt"
)

// ErrCardNotFound reports an unknown card code or ID.
var ErrCardNotFound = errors.New("card not found")

// ErrCardExpired reports a card past its validity window.
var ErrCardExpired = errors.New("card has expired")

// ValidationError reports an invalid card configuration.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid card configuration: " + e.Reason
}

// StateError reports an operation attempted against a card in the wrong
// status, carrying the status actually observed.
type StateError struct {
	Status string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("card is %s", e.Status)
}
