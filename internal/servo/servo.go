// Package servo runs closed-loop control of geared DC motors.
//
// A [Servo] combines a driver, a state observer, a trajectory and a PID
// controller. Commands replace the trajectory under the servo's lock, and
// the periodic [Servo.Update] tick reads the sensor, updates the observer,
// runs the controller and writes the actuation, all under the same lock.
// Command arguments are in degrees and degrees per second at the output
// of the gear train; internally everything is in millidegrees at the
// motor shaft.
package servo

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/servoloop/internal/control"
	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/observer"
	"github.com/san-kum/servoloop/internal/trajectory"
)

// ControlPeriod is the expected interval between updates, in ticks.
const ControlPeriod = 5 * motor.TicksPerMs

// maxGearRatio bounds the output-to-shaft scale.
const maxGearRatio = 1000

type Servo struct {
	mu sync.Mutex

	name   string
	typ    motor.Type
	driver Driver
	logger *zap.Logger

	settings motor.Settings
	model    *motor.Model
	obs      *observer.Observer
	ctl      *control.Controller

	state     State
	direction Direction
	scale     int64 // shaft mdeg per output degree
	offset    int64 // mdeg removed from the direction-corrected reading
	actuation motor.Actuation
	passive   motor.Actuation

	time      int32
	measured  fixmath.Angle
	applied   motor.Actuation
	torque    int32
	voltage   int32
	saturated bool

	parent Parent
	log    datalog.Logger
	last   datalog.Row
}

// New returns an inactive servo for a motor type on a driver. Call Setup
// before issuing commands.
func New(name string, typ motor.Type, driver Driver, logger *zap.Logger) *Servo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Servo{
		name:      name,
		typ:       typ,
		driver:    driver,
		logger:    logger,
		direction: Clockwise,
		scale:     1000,
		actuation: motor.Voltage,
	}
}

// Setup loads the settings for the motor type, reads the sensor and
// leaves the servo Idle and coasting. With resetAngle the angle is reset
// to the absolute sensor position, or to zero for relative sensors.
func (s *Servo) Setup(direction Direction, gearRatio float64, resetAngle bool) error {
	if direction != Clockwise && direction != Counterclockwise {
		return errors.Wrapf(ErrInvalidArgument, "%s: direction %d", s.name, direction)
	}
	if math.IsNaN(gearRatio) || gearRatio <= 0 || gearRatio > maxGearRatio {
		return errors.Wrapf(ErrInvalidArgument, "%s: gear ratio %v", s.name, gearRatio)
	}
	scale := int64(math.Round(gearRatio * 1000))
	if scale < 1 {
		return errors.Wrapf(ErrInvalidArgument, "%s: gear ratio %v", s.name, gearRatio)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateInactive
	settings, model, err := motor.LoadSettings(s.typ)
	if err != nil {
		return errors.Wrapf(err, "%s: setup", s.name)
	}
	s.settings = settings
	s.model = model
	s.obs = observer.New(model, &s.settings)
	s.ctl = control.New(model, &s.settings)
	s.direction = direction
	s.scale = scale

	raw, err := s.driver.Angle()
	if err != nil {
		return errors.Wrapf(err, "%s: setup", s.name)
	}
	s.offset = 0
	if resetAngle {
		var target int64
		if abs, ok := s.driver.(AbsoluteAngleSensor); ok {
			a, err := abs.AbsoluteAngle()
			if err != nil {
				return errors.Wrapf(err, "%s: setup", s.name)
			}
			target = int64(direction) * a.Mdeg()
		}
		s.offset = int64(direction)*raw.Mdeg() - target
	}
	s.measured = s.correct(raw)
	s.obs.Reset(s.measured)

	s.passive = motor.Coast
	if err := s.apply(motor.Coast, 0); err != nil {
		return errors.Wrapf(err, "%s: setup", s.name)
	}
	s.setState(StateIdle)
	s.logger.Debug("setup",
		zap.Stringer("type", s.typ),
		zap.Stringer("direction", direction),
		zap.Float64("gear_ratio", gearRatio),
		zap.Int64("angle", s.measured.Mdeg()))
	return nil
}

func (s *Servo) Name() string { return s.name }

func (s *Servo) Type() motor.Type { return s.typ }

// SetParent links the servo to a mechanism that commands it. A nil parent
// removes the link.
func (s *Servo) SetParent(p Parent) {
	s.mu.Lock()
	s.parent = p
	s.mu.Unlock()
}

// SetActuationType selects whether control output is written to the
// driver as voltage or as torque.
func (s *Servo) SetActuationType(act motor.Actuation) error {
	if act != motor.Voltage && act != motor.Torque {
		return errors.Wrapf(ErrInvalidArgument, "%s: actuation type %s", s.name, act)
	}
	s.mu.Lock()
	s.actuation = act
	s.mu.Unlock()
	return nil
}

// Settings returns a copy of the active control settings.
func (s *Servo) Settings() motor.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the control settings, including the PID gains.
func (s *Servo) SetSettings(settings motor.Settings) error {
	if err := settings.Validate(); err != nil {
		return errors.Wrapf(ErrInvalidArgument, "%s: %v", s.name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	s.settings = settings
	pid := s.ctl.PID()
	pid.Kp, pid.Ki, pid.Kd = settings.Kp, settings.Ki, settings.Kd
	pid.Deadzone, pid.ChangeMax = settings.IntegralDeadzone, settings.IntegralChangeMax
	return nil
}

// Snapshot returns the row recorded by the latest update, whether or not
// the logger is running.
func (s *Servo) Snapshot() datalog.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Log returns the telemetry logger. It is stopped until Start is called.
func (s *Servo) Log() *datalog.Logger { return &s.log }

// RunForever accelerates to speed (deg/s) and keeps going.
func (s *Servo) RunForever(speed int32) error {
	return s.command("run_forever", control.TypeTimed, control.PolicyCoast, func(start trajectory.Start) (trajectory.Trajectory, error) {
		return trajectory.NewForever(start, s.toSpeed(speed), s.limits())
	})
}

// RunTime runs at speed (deg/s) for duration, then applies policy.
func (s *Servo) RunTime(speed int32, duration time.Duration, policy control.Policy) error {
	ticks := duration.Microseconds() * motor.TicksPerSecond / 1_000_000
	return s.command("run_time", control.TypeTimed, policy, func(start trajectory.Start) (trajectory.Trajectory, error) {
		return trajectory.NewTime(start, s.toSpeed(speed), ticks, s.limits(), policy == control.PolicyContinue)
	})
}

// RunAngle turns by angle degrees relative to the current reference, or
// to the estimated angle when the servo is not under control. A negative
// speed reverses the direction of travel.
func (s *Servo) RunAngle(speed int32, angle int64, policy control.Policy) error {
	if speed < 0 {
		speed, angle = -speed, -angle
	}
	return s.command("run_angle", control.TypePosition, policy, func(start trajectory.Start) (trajectory.Trajectory, error) {
		delta, err := s.toAngle(angle)
		if err != nil {
			return trajectory.Trajectory{}, err
		}
		return trajectory.NewAngle(start, start.Angle.Add(delta), s.toSpeed(speed), s.limits(), policy == control.PolicyContinue)
	})
}

// RunTarget moves to the absolute target angle (degrees). The sign of
// speed is ignored.
func (s *Servo) RunTarget(speed int32, target int64, policy control.Policy) error {
	return s.command("run_target", control.TypePosition, policy, func(start trajectory.Start) (trajectory.Trajectory, error) {
		mdeg, err := s.toAngle(target)
		if err != nil {
			return trajectory.Trajectory{}, err
		}
		return trajectory.NewAngle(start, fixmath.NewAngle(mdeg), s.toSpeed(fixmath.Abs(speed)), s.limits(), policy == control.PolicyContinue)
	})
}

// TrackTarget regulates toward target (degrees) immediately, without a
// profile. It never completes.
func (s *Servo) TrackTarget(target int64) error {
	return s.command("track_target", control.TypePosition, control.PolicyContinue, func(start trajectory.Start) (trajectory.Trajectory, error) {
		mdeg, err := s.toAngle(target)
		if err != nil {
			return trajectory.Trajectory{}, err
		}
		return trajectory.NewHold(start.Time, fixmath.NewAngle(mdeg)), nil
	})
}

// Stop ends the current maneuver. Coast and brake end control and apply
// that actuation right away; hold regulates the estimated angle.
func (s *Servo) Stop(policy control.Policy) error {
	if policy == control.PolicyContinue {
		return errors.Wrapf(ErrInvalidArgument, "%s: stop with %s", s.name, policy)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}

	if policy == control.PolicyHold {
		s.hold(s.obs.Estimate().Angle)
		return nil
	}
	s.ctl.Stop()
	s.passive = passiveActuation(policy)
	s.saturated = false
	s.torque, s.voltage = 0, 0
	if err := s.apply(s.passive, 0); err != nil {
		return s.fail(err)
	}
	s.setState(StateIdle)
	return nil
}

// ResetAngle redefines the current angle as angle degrees, or as the
// absolute sensor reading when absolute is set. A servo under control
// holds at the new angle.
func (s *Servo) ResetAngle(angle int64, absolute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}

	var measured int64
	if absolute {
		abs, ok := s.driver.(AbsoluteAngleSensor)
		if !ok {
			return errors.Wrapf(ErrNotSupported, "%s: no absolute sensor", s.name)
		}
		a, err := abs.AbsoluteAngle()
		if err != nil {
			return s.fail(err)
		}
		measured = int64(s.direction) * a.Mdeg()
	} else {
		mdeg, err := s.toAngle(angle)
		if err != nil {
			return err
		}
		measured = mdeg
	}

	raw, err := s.driver.Angle()
	if err != nil {
		return s.fail(err)
	}
	s.offset = int64(s.direction)*raw.Mdeg() - measured
	s.measured = s.correct(raw)
	s.obs.Reset(s.measured)

	if s.ctl.IsActive() {
		s.hold(s.measured)
	}
	return nil
}

// State returns the state machine position.
func (s *Servo) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AngleSpeed returns the measured angle (deg) and estimated speed (deg/s)
// at the gear train output.
func (s *Servo) AngleSpeed() (int64, int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	speed := int32(0)
	if s.obs != nil {
		speed = int32(int64(s.obs.Estimate().Speed) / s.scale)
	}
	return s.measured.Mdeg() / s.scale, speed
}

// ControlState returns the estimated shaft angle and speed used by the
// controller.
func (s *Servo) ControlState() (fixmath.Angle, int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.obs == nil {
		return fixmath.Angle{}, 0
	}
	est := s.obs.Estimate()
	return est.Angle, est.Speed
}

// Reference returns the current reference, and false when the servo is
// not under control.
func (s *Servo) Reference() (trajectory.Reference, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctl == nil || !s.ctl.IsActive() {
		return trajectory.Reference{}, false
	}
	return s.ctl.Reference(s.time), true
}

// IsStalled reports whether the motor is stalled and for how long the
// stall condition has held.
func (s *Servo) IsStalled() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.obs == nil {
		return false, 0
	}
	stalled, ticks := s.obs.IsStalled()
	return stalled, time.Duration(ticks) * time.Second / motor.TicksPerSecond
}

// Load returns the estimated external load in mNm.
func (s *Servo) Load() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.obs == nil {
		return 0
	}
	return int32(s.direction) * s.obs.Load() / 1000
}

// Actuation returns the actuation written on the last update or stop, with
// its value in mV or µNm at the driver.
func (s *Servo) Actuation() (motor.Actuation, int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.applied {
	case motor.Voltage:
		return s.applied, int32(s.direction) * s.voltage
	case motor.Torque:
		return s.applied, int32(s.direction) * s.torque
	}
	return s.applied, 0
}

// Update runs one control tick at time now (in ticks). An inactive servo
// is skipped. A driver failure deactivates the servo and is returned.
func (s *Servo) Update(now int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInactive {
		return nil
	}

	s.time = now
	raw, err := s.driver.Angle()
	if err != nil {
		return s.fail(err)
	}
	s.measured = s.correct(raw)
	s.obs.Update(now, s.measured, s.applied, s.voltage, s.saturated)
	est := s.obs.Estimate()

	var out control.Output
	if s.ctl.IsActive() {
		out = s.ctl.Update(now, est)
		if out.Done {
			s.complete(now, out.Reference)
		}
	}

	act, value := s.passive, int32(0)
	if s.ctl.IsActive() {
		s.saturated = out.Saturated
		s.torque = out.Torque
		s.voltage = s.model.TorqueToVoltage(out.Torque)
		act, value = s.actuation, s.voltage
		if act == motor.Torque {
			value = s.torque
		}
	} else {
		s.saturated = false
		s.torque, s.voltage = 0, 0
	}

	stalled, _ := s.obs.IsStalled()
	switch {
	case s.state == StateRunning && stalled:
		s.setState(StateStalled)
	case s.state == StateStalled && !stalled:
		s.setState(StateRunning)
	}

	if err := s.apply(act, value); err != nil {
		return s.fail(err)
	}

	s.last = datalog.Row{
		Time:       now,
		Measured:   s.measured.Mdeg(),
		RefAngle:   out.Reference.Angle.Mdeg(),
		RefSpeed:   out.Reference.Speed,
		EstAngle:   est.Angle.Mdeg(),
		EstSpeed:   est.Speed,
		EstCurrent: est.Current,
		Torque:     s.torque,
		Voltage:    s.voltage,
		State:      uint8(s.state),
		Stalled:    stalled,
	}
	s.log.Log(s.last)
	return nil
}

// resync re-reads the sensor and restarts the observer at rest, leaving
// the servo Idle and coasting.
func (s *Servo) resync(now int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInactive {
		return nil
	}
	s.time = now
	raw, err := s.driver.Angle()
	if err != nil {
		return s.fail(err)
	}
	s.measured = s.correct(raw)
	s.obs.Reset(s.measured)
	s.ctl.Stop()
	s.passive = motor.Coast
	s.saturated = false
	s.torque, s.voltage = 0, 0
	if err := s.apply(motor.Coast, 0); err != nil {
		return s.fail(err)
	}
	s.setState(StateIdle)
	return nil
}

// deactivate marks the servo unplugged. Output is not touched since the
// device is gone.
func (s *Servo) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctl != nil {
		s.ctl.Stop()
	}
	s.setState(StateInactive)
}

func (s *Servo) command(op string, kind control.Type, policy control.Policy, build func(trajectory.Start) (trajectory.Trajectory, error)) error {
	s.mu.Lock()
	if parent := s.parent; parent != nil {
		// Validate before disturbing the parent, then stop it unlocked
		// since it may command this servo.
		_, err := s.plan(build)
		s.mu.Unlock()
		if err != nil {
			return errors.Wrapf(err, "%s: %s", s.name, op)
		}
		if err := parent.StopFromChild(); err != nil {
			return errors.Wrapf(err, "%s: stop parent", s.name)
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	tr, err := s.plan(build)
	if err != nil {
		return errors.Wrapf(err, "%s: %s", s.name, op)
	}
	s.ctl.Start(tr, kind, policy)
	s.setState(StateRunning)
	s.logger.Debug(op,
		zap.Stringer("policy", policy),
		zap.Int32("speed", tr.Cruise()),
		zap.Int64("duration", tr.Duration()))
	return nil
}

func (s *Servo) plan(build func(trajectory.Start) (trajectory.Trajectory, error)) (trajectory.Trajectory, error) {
	if err := s.ready(); err != nil {
		return trajectory.Trajectory{}, err
	}
	return build(s.startState())
}

// startState continues from the reference while tracking, so that
// back-to-back commands join smoothly, and from the estimate otherwise.
func (s *Servo) startState() trajectory.Start {
	if s.ctl.IsActive() && s.state != StateStalled {
		ref := s.ctl.Reference(s.time)
		return trajectory.Start{Time: s.time, Angle: ref.Angle, Speed: ref.Speed}
	}
	est := s.obs.Estimate()
	return trajectory.Start{Time: s.time, Angle: est.Angle, Speed: est.Speed}
}

func (s *Servo) complete(now int32, ref trajectory.Reference) {
	switch policy := s.ctl.Policy(); policy {
	case control.PolicyCoast, control.PolicyBrake:
		s.ctl.Stop()
		s.passive = passiveActuation(policy)
		s.setState(StateIdle)
	case control.PolicyHold:
		if s.state == StateHolding {
			return
		}
		if ref.Speed != 0 {
			s.ctl.Start(trajectory.NewHold(now, ref.Angle), control.TypePosition, control.PolicyHold)
		}
		s.setState(StateHolding)
	}
}

func (s *Servo) hold(angle fixmath.Angle) {
	s.ctl.Start(trajectory.NewHold(s.time, angle), control.TypePosition, control.PolicyHold)
	s.setState(StateHolding)
}

func (s *Servo) ready() error {
	if s.state == StateInactive {
		return errors.Wrapf(ErrNoDevice, "%s: inactive", s.name)
	}
	return nil
}

func (s *Servo) fail(err error) error {
	if s.ctl != nil {
		s.ctl.Stop()
	}
	s.saturated = false
	s.torque, s.voltage = 0, 0
	err = multierr.Append(err, s.apply(motor.Coast, 0))
	s.setState(StateInactive)
	s.logger.Warn("deactivated", zap.Error(err))
	return errors.Wrapf(err, "%s", s.name)
}

func (s *Servo) apply(act motor.Actuation, value int32) error {
	s.applied = act
	return s.driver.SetActuation(act, int32(s.direction)*value)
}

func (s *Servo) setState(to State) {
	if s.state == to {
		return
	}
	s.logger.Debug("state change", zap.Stringer("from", s.state), zap.Stringer("to", to))
	s.state = to
}

func (s *Servo) correct(raw fixmath.Angle) fixmath.Angle {
	return fixmath.NewAngle(int64(s.direction)*raw.Mdeg() - s.offset)
}

func (s *Servo) limits() trajectory.Limits {
	return trajectory.LimitsFrom(&s.settings)
}

func (s *Servo) toSpeed(degPerSec int32) int32 {
	return fixmath.SaturateInt32(int64(degPerSec) * s.scale)
}

func (s *Servo) toAngle(deg int64) (int64, error) {
	if fixmath.Abs(deg) > math.MaxInt64/s.scale/2 {
		return 0, errors.Wrapf(ErrInvalidArgument, "angle %d out of range", deg)
	}
	return deg * s.scale, nil
}

func passiveActuation(p control.Policy) motor.Actuation {
	if p == control.PolicyBrake {
		return motor.Brake
	}
	return motor.Coast
}
