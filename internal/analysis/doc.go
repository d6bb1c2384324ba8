// Package analysis characterizes logged servo runs.
//
//   - [StepResponseOf]: rise time, overshoot, settling time and
//     steady-state error of a move to a fixed target
//   - [TrackingPercentile]: a percentile of the reference tracking error
//   - [PhasePortraitFromRows]: the angle/speed trajectory, drawn by
//     [PhasePortraitToASCII]
//
// # Step response
//
// A run_target with a hold policy gives the cleanest step:
//
//	sr, err := analysis.StepResponseOf(rows, analysis.DefaultBand)
//	if err == nil && sr.Overshoot > 5 {
//	    // gains too aggressive
//	}
package analysis
