// Package trajectory generates trapezoidal reference motions.
//
// A trajectory has up to three phases after its start time: a speed ramp
// from the initial speed w0 to the cruise speed w1, a cruise at w1 and a
// ramp from w1 to the final speed w3. Phase boundaries are stored as tick
// offsets t1 <= t2 <= t3 and angle offsets th1, th2, th3 relative to the
// start angle. Past t3 the reference extrapolates at w3.
//
// Plans are made for forward motion and mirrored for reverse motion, so
// all phase speeds carry the sign of the direction of travel.
package trajectory

import (
	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/motor"
)

const tps = motor.TicksPerSecond

// Reference is the commanded motion at one instant.
type Reference struct {
	Angle        fixmath.Angle
	Speed        int32 // mdeg/s
	Acceleration int32 // mdeg/s²
}

// Start is the state a new trajectory departs from.
type Start struct {
	Time  int32
	Angle fixmath.Angle
	Speed int32
}

// Limits bound the generated profile.
type Limits struct {
	SpeedMax     int32
	Acceleration int32
	Deceleration int32
}

// LimitsFrom extracts the profile limits from control settings.
func LimitsFrom(s *motor.Settings) Limits {
	return Limits{SpeedMax: s.SpeedMax, Acceleration: s.Acceleration, Deceleration: s.Deceleration}
}

type Trajectory struct {
	t0  int32
	th0 fixmath.Angle

	t1, t2, t3    int64
	w0, w1, w3    int64
	th1, th2, th3 int64
	a1, a3        int64

	forever bool
}

// Eval returns the reference at the given time. Times before the start
// evaluate to the start, and so does any time more than MaxInt32 ticks
// after it; see Rebase.
func (tr *Trajectory) Eval(time int32) Reference {
	t := int64(time - tr.t0)
	if t < 0 {
		t = 0
	}

	var th, w, a int64
	switch {
	case t < tr.t1:
		w = tr.w0 + (tr.w1-tr.w0)*t/tr.t1
		th = fixmath.MulDiv64(t, 2*tr.w0*tr.t1+(tr.w1-tr.w0)*t, 2*tr.t1*tps)
		a = tr.a1
	case t < tr.t2:
		w = tr.w1
		th = tr.th1 + fixmath.MulDiv64(tr.th2-tr.th1, t-tr.t1, tr.t2-tr.t1)
	case t < tr.t3:
		td := tr.t3 - tr.t2
		left := tr.t3 - t
		w = tr.w3 + (tr.w1-tr.w3)*left/td
		th = tr.th3 - fixmath.MulDiv64(left, 2*tr.w3*td+(tr.w1-tr.w3)*left, 2*td*tps)
		a = tr.a3
	default:
		w = tr.w3
		th = tr.th3 + fixmath.MulDiv64(tr.w3, t-tr.t3, tps)
	}

	return Reference{
		Angle:        tr.th0.Add(th),
		Speed:        fixmath.SaturateInt32(w),
		Acceleration: fixmath.SaturateInt32(a),
	}
}

// Rebase moves the start of a trajectory that is past its final ramp to
// time without changing the reference, so an endless cruise can be
// evaluated beyond the int32 tick range. Before the end of the final ramp
// it does nothing.
func (tr *Trajectory) Rebase(time int32) {
	t := int64(time - tr.t0)
	if t < tr.t3 {
		return
	}
	th := tr.th3 + fixmath.MulDiv64(tr.w3, t-tr.t3, tps)
	*tr = Trajectory{
		t0:      time,
		th0:     tr.th0.Add(th),
		w0:      tr.w3,
		w1:      tr.w3,
		w3:      tr.w3,
		forever: tr.forever,
	}
}

// StartTime is the tick at which the trajectory begins.
func (tr *Trajectory) StartTime() int32 { return tr.t0 }

// EndTime is the tick at which the final ramp ends.
func (tr *Trajectory) EndTime() int32 { return tr.t0 + int32(tr.t3) }

// Duration is the length of the profile in ticks, up to the end of the final ramp.
func (tr *Trajectory) Duration() int64 { return tr.t3 }

// Forever reports whether the trajectory never ends.
func (tr *Trajectory) Forever() bool { return tr.forever }

// End returns the reference at the end of the final ramp.
func (tr *Trajectory) End() Reference {
	return tr.Eval(tr.EndTime())
}

// Cruise returns the signed cruise speed in mdeg/s.
func (tr *Trajectory) Cruise() int32 { return fixmath.SaturateInt32(tr.w1) }

// Phases reports the phase boundaries as tick offsets from the start.
func (tr *Trajectory) Phases() (t1, t2, t3 int64) { return tr.t1, tr.t2, tr.t3 }
