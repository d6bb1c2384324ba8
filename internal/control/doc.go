// Package control computes servo actuation from a trajectory reference
// and an observer estimate.
//
// A [Controller] owns the active [trajectory.Trajectory], the completion
// [Policy] and the [PID] integrator. Each update evaluates the reference,
// runs PID with model feedforward and reports whether the maneuver is
// done:
//
//	ctl := control.New(model, &settings)
//	ctl.Start(traj, control.TypePosition, control.PolicyHold)
//	out := ctl.Update(now, obs.Estimate())
//	// out.Torque is clamped to settings.ActuationMax
//
// Torques are in µNm. The PID gains implement [Tunable] for live tuning.
package control
