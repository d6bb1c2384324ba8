// Package integrators provides fixed and adaptive ODE steppers for
// [dynamo.System] plants.
//
// Steppers keep scratch buffers between calls and are not safe for
// concurrent use; give each simulated port its own.
package integrators
