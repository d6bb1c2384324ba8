// Package observer estimates motor state from angle measurements.
//
// The estimator is a Luenberger observer: each tick it propagates the
// discrete motor model one period forward using the applied voltage, and
// feeds the angle error back as an extra voltage so the estimate tracks
// the encoder. Speed and current come from the model's cross-coupling
// terms. A Coulomb friction torque opposes motion and holds the estimate
// at rest while the drive is too weak to break friction. While coasting
// the winding carries no current and the correction acts on the rotor.
package observer

import (
	"math"

	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/motor"
)

// Factors that bring current, voltage and torque columns to the speed prescale.
const (
	currentToBase = motor.PrescaleSpeed / motor.PrescaleCurrent
	voltageToBase = motor.PrescaleSpeed / motor.PrescaleVoltage
	torqueToBase  = motor.PrescaleSpeed / motor.PrescaleTorque
)

// State is the estimate: angle in mdeg, speed in mdeg/s, current in mA.
type State struct {
	Angle   fixmath.Angle
	Speed   int32
	Current int32
}

type Observer struct {
	model    *motor.Model
	settings *motor.Settings

	est             State
	feedbackVoltage int32

	stallTime int32
	stalled   bool
	lastTime  int32
	started   bool
}

// New creates an observer. The settings are read on every update, so
// changes made by the owner take effect on the next tick.
func New(model *motor.Model, settings *motor.Settings) *Observer {
	return &Observer{model: model, settings: settings}
}

// Reset places the estimate at rest at the given angle and clears stall state.
func (o *Observer) Reset(angle fixmath.Angle) {
	o.est = State{Angle: angle}
	o.feedbackVoltage = 0
	o.stallTime = 0
	o.stalled = false
	o.started = false
}

// Update advances the estimate by one control period. The actuation and
// voltage are the ones applied during the period that just ended; for
// torque actuation the caller passes the equivalent voltage. saturated
// reports whether that actuation was at its limit.
func (o *Observer) Update(time int32, measured fixmath.Angle, act motor.Actuation, voltage int32, saturated bool) {
	m := o.model

	angleErr := fixmath.Diff(measured, o.est.Angle)
	o.feedbackVoltage = fixmath.Scale(angleErr, m.FeedbackGain, 1000)

	// Open terminals sit at the back-EMF of the rotor, so the model sees
	// no drive current. Shorted terminals sit at zero.
	coasting := act == motor.Coast
	switch act {
	case motor.Coast:
		voltage = m.BackEMFVoltage(o.est.Speed)
	case motor.Brake:
		voltage = 0
	}

	speed := int64(o.est.Speed)
	current := int64(o.est.Current)
	v := int64(voltage)

	// Friction is sized on the prediction without correction so that the
	// feedback term can always pull the estimate out of stiction.
	speedFree := speed*int64(m.DSpeedDSpeed) +
		current*int64(m.DSpeedDCurrent)*currentToBase +
		v*int64(m.DSpeedDVoltage)*voltageToBase
	friction := o.friction(speedFree / motor.PrescaleSpeed)

	fb := int64(o.feedbackVoltage)
	tq := int64(friction)
	if coasting {
		// No current can carry the correction, so it acts on the rotor.
		tq -= int64(m.VoltageToTorque(o.feedbackVoltage))
		fb = 0
	}
	v += fb

	dAngle := (speed*int64(m.DAngleDSpeed) +
		current*int64(m.DAngleDCurrent)*currentToBase +
		v*int64(m.DAngleDVoltage)*voltageToBase +
		tq*int64(m.DAngleDTorque)*torqueToBase) / motor.PrescaleSpeed

	nextSpeed := (speedFree +
		fb*int64(m.DSpeedDVoltage)*voltageToBase +
		tq*int64(m.DSpeedDTorque)*torqueToBase) / motor.PrescaleSpeed

	nextCurrent := (speed*int64(m.DCurrentDSpeed) +
		current*int64(m.DCurrentDCurrent)*currentToBase +
		v*int64(m.DCurrentDVoltage)*voltageToBase +
		tq*int64(m.DCurrentDTorque)*torqueToBase) / motor.PrescaleSpeed

	// A coasting model has no electrical damping, so the angle is also
	// pulled halfway to the measurement.
	if coasting {
		dAngle += int64(angleErr / 2)
	}

	o.est.Angle = o.est.Angle.Add(dAngle)
	o.est.Speed = fixmath.SaturateInt32(nextSpeed)
	o.est.Current = fixmath.SaturateInt32(nextCurrent)

	o.updateStall(time, saturated)
}

// friction returns the load torque (µNm) opposing the predicted speed,
// capped so it can at most bring the speed to zero within this period.
func (o *Observer) friction(predicted int64) int32 {
	if predicted == 0 {
		return 0
	}
	m := o.model
	limit := fixmath.Abs(predicted) * motor.PrescaleTorque / fixmath.Abs(int64(m.DSpeedDTorque))
	mag := min(int64(m.TorqueFriction), limit)
	return int32(fixmath.Sign(predicted) * mag)
}

func (o *Observer) updateStall(time int32, saturated bool) {
	s := o.settings
	if o.started && saturated && fixmath.Abs(o.est.Speed) < s.StallSpeedLimit {
		elapsed := int64(time - o.lastTime)
		o.stallTime = int32(min(int64(o.stallTime)+elapsed, math.MaxInt32))
	} else {
		o.stallTime = 0
	}
	o.stalled = o.stallTime >= s.StallTime
	o.lastTime = time
	o.started = true
}

// Estimate returns the current state estimate.
func (o *Observer) Estimate() State {
	return o.est
}

// IsStalled reports the stall flag and how long (in ticks) the stall
// condition has held.
func (o *Observer) IsStalled() (bool, int32) {
	return o.stalled, o.stallTime
}

// FeedbackVoltage is the correction applied on the last update (mV).
func (o *Observer) FeedbackVoltage() int32 {
	return o.feedbackVoltage
}

// Load estimates the external torque (µNm) acting against the motor.
// A load that holds the shaft back makes the measured angle lag the
// estimate, which shows up as a negative feedback voltage.
func (o *Observer) Load() int32 {
	return -o.model.VoltageToTorque(o.feedbackVoltage)
}
