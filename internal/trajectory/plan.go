package trajectory

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/fixmath"
)

// ErrInvalidArgument indicates a request no profile can satisfy.
var ErrInvalidArgument = errors.New("trajectory: invalid argument")

// maxTicks bounds durations so that end times stay representable.
const maxTicks = math.MaxInt32 / 2

// NewHold returns a trajectory that stays at angle from time onward.
func NewHold(time int32, angle fixmath.Angle) Trajectory {
	return Trajectory{t0: time, th0: angle}
}

// NewForever accelerates to speed and keeps going.
func NewForever(start Start, speed int32, lim Limits) (Trajectory, error) {
	if err := lim.validate(); err != nil {
		return Trajectory{}, err
	}
	dir := direction(int64(speed))
	w0 := int64(start.Speed) * dir
	wmax := min(fixmath.Abs(int64(speed)), int64(lim.SpeedMax))

	rate := int64(lim.Acceleration)
	if wmax < w0 {
		rate = int64(lim.Deceleration)
	}
	ramp := fixmath.Abs(wmax-w0) * tps / rate

	tr := planTime(start, w0, wmax, ramp, lim, true)
	tr.mirror(dir)
	tr.forever = true
	return tr, nil
}

// NewTime runs at speed for duration ticks. Unless cont is set, the
// duration includes the ramps down to standstill, and the cruise speed is
// lowered when the duration is too short to reach speed.
func NewTime(start Start, speed int32, duration int64, lim Limits, cont bool) (Trajectory, error) {
	if err := lim.validate(); err != nil {
		return Trajectory{}, err
	}
	if duration < 0 || duration > maxTicks {
		return Trajectory{}, errors.Wrapf(ErrInvalidArgument, "duration %d ticks out of range", duration)
	}
	dir := direction(int64(speed))
	w0 := int64(start.Speed) * dir
	wmax := min(fixmath.Abs(int64(speed)), int64(lim.SpeedMax))

	tr := planTime(start, w0, wmax, duration, lim, cont)
	tr.mirror(dir)
	return tr, nil
}

// NewAngle moves to target at up to speed. Unless cont is set, it comes to
// rest exactly at target; with cont it passes the target at cruise speed
// and continues.
func NewAngle(start Start, target fixmath.Angle, speed int32, lim Limits, cont bool) (Trajectory, error) {
	if err := lim.validate(); err != nil {
		return Trajectory{}, err
	}
	if speed == 0 {
		return Trajectory{}, errors.Wrap(ErrInvalidArgument, "speed must not be zero")
	}
	distance := target.Sub(start.Angle)
	if fixmath.Abs(distance) > math.MaxInt32 {
		return Trajectory{}, errors.Wrapf(ErrInvalidArgument, "distance %d mdeg out of range", distance)
	}
	dir := direction(distance)
	w0 := int64(start.Speed) * dir
	wmax := min(fixmath.Abs(int64(speed)), int64(lim.SpeedMax))

	tr := planAngle(start, fixmath.Abs(distance), w0, wmax, lim, cont)
	tr.mirror(dir)
	return tr, nil
}

func (l Limits) validate() error {
	if l.SpeedMax <= 0 || l.Acceleration <= 0 || l.Deceleration <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "limits must be positive: %+v", l)
	}
	return nil
}

func direction(v int64) int64 {
	if v < 0 {
		return -1
	}
	return 1
}

// planAngle plans a forward move over distance mdeg.
func planAngle(start Start, distance, w0, wmax int64, lim Limits, cont bool) Trajectory {
	a := int64(lim.Acceleration)
	d := int64(lim.Deceleration)

	var w1, w3 int64
	if cont {
		w1 = wmax
		if w0 < wmax {
			w1 = min(wmax, fixmath.Sqrt(2*a*distance+w0*w0))
		}
		w3 = w1
	} else {
		// Too fast to stop in time: start from the fastest speed that still can.
		if w0 > 0 && w0*w0 > 2*d*distance {
			w0 = fixmath.Sqrt(2 * d * distance)
		}
		switch {
		case w0 > wmax:
			w1 = wmax
		case (wmax*wmax-w0*w0)/(2*a)+wmax*wmax/(2*d) <= distance:
			w1 = wmax
		default:
			// Accelerate and decelerate with no cruise, meeting at the
			// peak speed where both ramps cover the distance.
			w1 = fixmath.Sqrt(fixmath.MulDiv64(d, 2*a*distance+w0*w0, a+d))
			w1 = min(max(w1, w0), wmax)
		}
		w3 = 0
	}

	rate := a
	if w1 < w0 {
		rate = d
	}
	t1 := fixmath.Abs(w1-w0) * tps / rate
	td := fixmath.Abs(w1-w3) * tps / d

	th1 := (w0 + w1) * t1 / (2 * tps)
	dist3 := (w1 + w3) * td / (2 * tps)
	cruise := max(distance-th1-dist3, 0)
	th3 := distance
	if cont {
		// Slowing down to cruise speed may already carry past the target.
		th3 = max(distance, th1)
	}

	var tc int64
	if cruise > 0 {
		if w1 > 0 {
			tc = max(cruise*tps/w1, 1)
		} else {
			tc = 1
		}
	}

	return Trajectory{
		t0:  start.Time,
		th0: start.Angle,
		t1:  t1,
		t2:  t1 + tc,
		t3:  t1 + tc + td,
		w0:  w0,
		w1:  w1,
		w3:  w3,
		th1: th1,
		th2: th3 - dist3,
		th3: th3,
		a1:  rampRate(w0, w1, t1),
		a3:  rampRate(w1, w3, td),
	}
}

// planTime plans forward motion lasting duration ticks.
func planTime(start Start, w0, wmax, duration int64, lim Limits, cont bool) Trajectory {
	a := int64(lim.Acceleration)
	d := int64(lim.Deceleration)

	var w1, w3, t1, td int64
	if cont {
		rate := a
		if wmax < w0 {
			rate = d
		}
		t1 = fixmath.Abs(wmax-w0) * tps / rate
		w1 = wmax
		if t1 > duration {
			t1 = duration
			w1 = w0 + fixmath.Sign(wmax-w0)*rate*duration/tps
		}
		w3 = w1
	} else {
		// Reverse motion at the start is dropped: the speed steps to zero.
		w0 = max(w0, 0)
		stop := w0 * tps / d
		switch {
		case stop >= duration:
			// Standstill is out of reach; ramp down at full deceleration
			// for the whole duration.
			w1, t1, td = w0, 0, duration
			w3 = w0 - d*duration/tps
		case w0 > wmax:
			w1 = wmax
			t1 = (w0 - wmax) * tps / d
			td = wmax * tps / d
		default:
			w1 = wmax
			t1 = (wmax - w0) * tps / a
			td = wmax * tps / d
			if t1+td > duration {
				w1 = (fixmath.MulDiv64(duration, a*d, tps) + d*w0) / (a + d)
				w1 = min(max(w1, w0), wmax)
				t1 = (w1 - w0) * tps / a
				td = min(w1*tps/d, duration-t1)
			}
		}
	}

	tc := duration - t1 - td
	th1 := (w0 + w1) * t1 / (2 * tps)
	th2 := th1 + w1*tc/tps
	th3 := th2 + (w1+w3)*td/(2*tps)

	return Trajectory{
		t0:  start.Time,
		th0: start.Angle,
		t1:  t1,
		t2:  t1 + tc,
		t3:  duration,
		w0:  w0,
		w1:  w1,
		w3:  w3,
		th1: th1,
		th2: th2,
		th3: th3,
		a1:  rampRate(w0, w1, t1),
		a3:  rampRate(w1, w3, td),
	}
}

func rampRate(from, to, ticks int64) int64 {
	if ticks == 0 {
		return 0
	}
	return (to - from) * tps / ticks
}

func (tr *Trajectory) mirror(dir int64) {
	if dir > 0 {
		return
	}
	tr.w0, tr.w1, tr.w3 = -tr.w0, -tr.w1, -tr.w3
	tr.th1, tr.th2, tr.th3 = -tr.th1, -tr.th2, -tr.th3
	tr.a1, tr.a3 = -tr.a1, -tr.a3
}
