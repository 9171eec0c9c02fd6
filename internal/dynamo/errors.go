package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrStepTooSmall indicates adaptive step control fell below the minimum step.
	ErrStepTooSmall = errors.New("dynamo: adaptive step below minimum")

	// ErrTooManySteps indicates the step budget ran out before the span end.
	ErrTooManySteps = errors.New("dynamo: step budget exhausted")

	// ErrDimensionMismatch indicates a right-hand side returned the wrong length.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and derivative")

	// ErrInvalidSpan indicates an empty or reversed span, or samples outside it.
	ErrInvalidSpan = errors.New("dynamo: invalid integration span")

	// ErrIntegrationFailure is matched by every error a solver returns after
	// it has started stepping.
	ErrIntegrationFailure = errors.New("dynamo: integration failed")
)

// IntegrationError wraps a solver failure with the position it occurred at.
type IntegrationError struct {
	Solver  string
	Step    int
	X       float64
	H       float64
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s: step %d (x=%.6g, h=%.3g): %v", e.Solver, e.Step, e.X, e.H, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}

func (e *IntegrationError) Is(target error) bool {
	return target == ErrIntegrationFailure
}
