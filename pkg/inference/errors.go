package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrNoClients is returned when a failover has no endpoints.
	ErrNoClients = errors.New("inference: no clients configured")

	// ErrEmptyCompletion is returned when a model answers with nothing.
	ErrEmptyCompletion = errors.New("inference: empty completion")
)

// FailoverError aggregates the errors from every endpoint tried.
type FailoverError struct {
	Errors []error
}

// Error implements the error interface.
func (e *FailoverError) Error() string {
	if len(e.Errors) == 0 {
		return "inference: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("inference: %v", e.Errors[0])
	}
	return fmt.Sprintf("inference: all %d endpoints failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error recorded.
func (e *FailoverError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
