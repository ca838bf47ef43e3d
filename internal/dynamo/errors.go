package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for portal operations.
var (
	// ErrInvalidState indicates a particle buffer holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrInvalidRect indicates a window rectangle without positive size.
	ErrInvalidRect = errors.New("dynamo: window rect must have positive width and height")

	// ErrDesync indicates the local step count fell too far behind the shared epoch.
	ErrDesync = errors.New("dynamo: simulation clock desynchronized from shared epoch")

	// ErrUnavailable indicates the shared medium could not be used.
	ErrUnavailable = errors.New("dynamo: shared medium unavailable")

	// ErrUnmounted indicates an operation on a portal that is not mounted.
	ErrUnmounted = errors.New("dynamo: portal is not mounted")

	// ErrAlreadyMounted indicates Mount was called twice without Unmount.
	ErrAlreadyMounted = errors.New("dynamo: portal is already mounted")

	// ErrNoWindows indicates a query over an empty window set.
	ErrNoWindows = errors.New("dynamo: no live windows")
)

// StepError wraps an error with the simulation step it was detected at.
type StepError struct {
	Step    int64
	Slot    int
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (slot %d): %v", e.Step, e.Slot, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
