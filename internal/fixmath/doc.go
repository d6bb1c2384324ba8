// Package fixmath provides the integer arithmetic used on the control path.
//
// All quantities are fixed-point integers:
//
//   - angles in millidegrees, split into whole rotations and a remainder ([Angle])
//   - speeds in millidegrees per second
//   - currents in milliamps, voltages in millivolts, torques in micronewton-meters
//
// Products of two 32-bit quantities are always formed in 64 bits before
// being scaled back down. Division truncates toward zero, as Go does.
package fixmath
