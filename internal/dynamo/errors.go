package dynamo

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidState      = errors.New("dynamo: state is not finite")
	ErrParameterBounds   = errors.New("dynamo: parameter out of range")
	ErrUnknownParameter  = errors.New("dynamo: unknown parameter")
	ErrStepTooSmall      = errors.New("dynamo: adaptive step below minimum")
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")
)

// SimulationError is a plant failure at a control tick. State is a copy
// of the last good state.
type SimulationError struct {
	Tick    int32
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("tick %d: %v", e.Tick, e.Wrapped)
}

func (e *SimulationError) Unwrap() error { return e.Wrapped }
