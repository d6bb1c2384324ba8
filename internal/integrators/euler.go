package integrators

import "github.com/san-kum/servoloop/internal/dynamo"

// Euler is the explicit first-order method. It needs small substeps for
// the electrical time constant of a motor.
type Euler struct{}

func NewEuler() *Euler { return &Euler{} }

func (Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	next := make(dynamo.State, len(x))
	x.AddScaled(next, dt, dyn.Derive(x, u, t))
	return next
}
