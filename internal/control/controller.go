package control

import (
	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/observer"
	"github.com/san-kum/servoloop/internal/trajectory"
)

// Tunable is implemented by controllers whose gains can be adjusted live.
type Tunable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64)
}

// Output is the result of one control update.
type Output struct {
	Reference trajectory.Reference
	Torque    int32 // µNm, within ±ActuationMax
	Saturated bool
	OnTarget  bool
	// Done is set once the maneuver has completed under its policy.
	Done bool
}

// rebaseAfter is how long a trajectory runs before it is re-anchored,
// well inside the int32 tick range.
const rebaseAfter = 1 << 30

type Controller struct {
	settings *motor.Settings
	model    *motor.Model
	pid      *PID

	traj     trajectory.Trajectory
	kind     Type
	policy   Policy
	lastTime int32
	onTarget bool
}

// New returns an idle controller. The gains are copied into the PID; the
// limits and tolerances are read from settings on every update.
func New(model *motor.Model, settings *motor.Settings) *Controller {
	return &Controller{
		settings: settings,
		model:    model,
		pid:      NewPID(settings),
	}
}

// Start replaces the active maneuver and clears the integrator.
func (c *Controller) Start(traj trajectory.Trajectory, kind Type, policy Policy) {
	c.pid.Reset()
	c.traj = traj
	c.kind = kind
	c.policy = policy
	c.lastTime = traj.StartTime()
	c.onTarget = false
}

// Stop ends control. The next update produces no output until Start.
func (c *Controller) Stop() {
	c.kind = TypeNone
	c.onTarget = false
	c.pid.Reset()
}

func (c *Controller) IsActive() bool { return c.kind != TypeNone }

func (c *Controller) Type() Type { return c.kind }

func (c *Controller) Policy() Policy { return c.policy }

// Trajectory returns the active trajectory. It is only meaningful while
// the controller is active.
func (c *Controller) Trajectory() trajectory.Trajectory { return c.traj }

// Reference evaluates the active trajectory at time.
func (c *Controller) Reference(time int32) trajectory.Reference {
	return c.traj.Eval(time)
}

// OnTarget reports the result of the latest update.
func (c *Controller) OnTarget() bool { return c.onTarget }

// PID exposes the gains for tuning.
func (c *Controller) PID() *PID { return c.pid }

// Feedforward is the model torque needed to follow ref with no error.
func (c *Controller) Feedforward(ref trajectory.Reference) int32 {
	ff := int64(c.model.TorqueFriction/2) * int64(fixmath.Sign(ref.Speed))
	ff += int64(c.model.SpeedTorque(ref.Speed))
	ff += int64(c.model.AccelerationTorque(ref.Acceleration))
	return fixmath.SaturateInt32(ff)
}

// Update runs one control step against the estimate at time.
func (c *Controller) Update(time int32, est observer.State) Output {
	if c.kind == TypeNone {
		return Output{}
	}

	dt := max(time-c.lastTime, 0)
	c.lastTime = time

	if time-c.traj.StartTime() >= rebaseAfter {
		c.traj.Rebase(time)
	}
	ref := c.traj.Eval(time)
	e := fixmath.Diff(ref.Angle, est.Angle)
	es := fixmath.SaturateInt32(int64(ref.Speed) - int64(est.Speed))

	torque, saturated := c.pid.Compute(e, es, c.Feedforward(ref), c.settings.ActuationMax, dt)

	c.onTarget = fixmath.Abs(e) <= c.settings.PositionTolerance &&
		fixmath.Abs(es) <= c.settings.SpeedTolerance

	return Output{
		Reference: ref,
		Torque:    torque,
		Saturated: saturated,
		OnTarget:  c.onTarget,
		Done:      c.done(time),
	}
}

func (c *Controller) done(time int32) bool {
	if c.traj.Forever() || c.policy == PolicyContinue {
		return false
	}
	if time-c.traj.EndTime() < 0 {
		return false
	}
	return c.kind == TypeTimed || c.onTarget
}
