// Package dynamo provides the continuous-time primitives behind the
// simulated motor plants.
//
//   - [State]: plant state vector
//   - [System]: an ODE dX/dt = f(X, u, t)
//   - [Constrained]: a [System] with algebraic constraints
//   - [Integrator]: a fixed-step stepper for a [System]
//   - [Advancer]: an integrator that picks its own substeps
//
// # Example
//
//	params, _ := models.ParamsFor(motor.TypeTechnicMAngular)
//	plant := models.NewDCMotor(params)
//	x := dynamo.State{0, 0, 0}
//	x = integrators.NewRK4().Step(plant, x, dynamo.Control{6}, 0, 0.00025)
package dynamo
