// Package viz provides a terminal monitor for one simulated servo.
//
// The monitor is a Bubble Tea program fed by a real-time [sim.Loop]:
//
//   - [Monitor]: state, angle, speed and load of the servo, a dial drawn
//     on a Braille [Canvas] and an angle history graph
//   - Theme selection with 3 built-in color schemes
//
// # Key Bindings
//
//	←/→   - Run to target -90°/+90° from the current target
//	F     - Run forever
//	Space - Stop and hold
//	S     - Stop and coast
//	B     - Stop and brake
//	X     - Block or release the shaft
//	R     - Reset the angle to zero
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
