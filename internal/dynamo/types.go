package dynamo

import (
	"math"

	"github.com/pkg/errors"
)

// State is a plant state vector. Each plant documents its entries.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Finite reports whether no entry is NaN or infinite.
func (s State) Finite() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AddScaled writes s + h·k into dst. All three must have the same length.
func (s State) AddScaled(dst State, h float64, k State) {
	for i := range s {
		dst[i] = s[i] + h*k[i]
	}
}

// Control is the plant input, in the units of its drive mode.
type Control []float64

// System is an ODE dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Constrained systems project a state back onto their algebraic
// constraints, such as a clamped current, after each step.
type Constrained interface {
	System
	Settle(x State, u Control)
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Advancer integrates across a whole span, choosing its own substeps.
type Advancer interface {
	Advance(dyn System, x State, u Control, t, span, tol float64) (State, error)
}

// Check reports whether x and u fit the dimensions of sys.
func Check(sys System, x State, u Control) error {
	if len(x) != sys.StateDim() || len(u) != sys.ControlDim() {
		return errors.Wrapf(ErrDimensionMismatch, "state %d (want %d), control %d (want %d)",
			len(x), sys.StateDim(), len(u), sys.ControlDim())
	}
	return nil
}
