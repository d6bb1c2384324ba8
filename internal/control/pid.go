package control

import (
	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/motor"
)

// integralScale converts Ki·integral from (µNm/(deg·s))·(mdeg·ticks) to µNm.
const integralScale = 1000 * motor.TicksPerSecond

// PID is a fixed-point PID with a windup-limited integrator. Errors are in
// millidegrees, speed errors in mdeg/s and outputs in µNm.
type PID struct {
	Kp int32 // µNm per degree
	Ki int32 // µNm per degree-second
	Kd int32 // µNm per deg/s

	Deadzone  int32 // integrate only while |e| is at most this
	ChangeMax int32 // per-tick clamp of the integrated error

	integral int64 // mdeg·ticks
}

var _ Tunable = (*PID)(nil)

func NewPID(s *motor.Settings) *PID {
	return &PID{
		Kp:        s.Kp,
		Ki:        s.Ki,
		Kd:        s.Kd,
		Deadzone:  s.IntegralDeadzone,
		ChangeMax: s.IntegralChangeMax,
	}
}

// Compute returns the torque for position error e and speed error es, given
// feedforward ff and the actuation limit. dt is the elapsed time in ticks
// since the previous call. The integral term is bounded so that it never
// pushes the total past the limit.
func (p *PID) Compute(e, es, ff, limit, dt int32) (torque int32, saturated bool) {
	prop := int64(p.Kp) * int64(e) / 1000
	deriv := int64(p.Kd) * int64(es) / 1000
	rest := prop + deriv + int64(ff)

	if fixmath.Abs(e) <= p.Deadzone {
		p.integral += int64(fixmath.ClampAbs(e, p.ChangeMax)) * int64(dt)
	}

	var integ int64
	if p.Ki > 0 {
		room := max(0, int64(limit)-fixmath.Abs(rest))
		p.integral = fixmath.ClampAbs(p.integral, room*integralScale/int64(p.Ki))
		integ = int64(p.Ki) * p.integral / integralScale
	} else {
		p.integral = 0
	}

	total := rest + integ
	saturated = fixmath.Abs(total) >= int64(limit)
	return fixmath.SaturateInt32(fixmath.ClampAbs(total, int64(limit))), saturated
}

// Integral returns the current integral torque contribution in µNm.
func (p *PID) Integral() int32 {
	return fixmath.SaturateInt32(int64(p.Ki) * p.integral / integralScale)
}

// Reset clears the integrator.
func (p *PID) Reset() {
	p.integral = 0
}

// GetParams returns tunable parameters for live adjustment.
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"kp": float64(p.Kp),
		"ki": float64(p.Ki),
		"kd": float64(p.Kd),
	}
}

// SetParam adjusts a gain. Unknown names are ignored.
func (p *PID) SetParam(name string, value float64) {
	v := fixmath.SaturateInt32(int64(max(value, 0)))
	switch name {
	case "kp":
		p.Kp = v
	case "ki":
		p.Ki = v
	case "kd":
		p.Kd = v
	}
}
