// Package experiment turns a scenario config into a wired simulation and
// runs it.
package experiment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/servoloop/internal/config"
	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/models"
	"github.com/san-kum/servoloop/internal/servo"
	"github.com/san-kum/servoloop/internal/sim"
)

var ErrNotSetup = errors.New("experiment: not set up")

type Experiment struct {
	cfg    *config.Config
	logger *zap.Logger

	simulator *sim.Simulator
	port      *sim.Port
	servo     *servo.Servo
	portID    servo.Port
}

// Result is the simulation result together with the servo's logged rows.
type Result struct {
	*sim.Result
	Config *config.Config
	Rows   []datalog.Row
	// Final is the servo state when the run ended.
	Final servo.State
	// Angle is the final output angle in degrees.
	Angle int64
}

// Metric returns a named metric of the scenario's servo.
func (r *Result) Metric(name string) (float64, bool) {
	port, err := r.Config.ServoPort()
	if err != nil {
		return 0, false
	}
	return r.Result.Metric(port, name)
}

func New(cfg *config.Config, logger *zap.Logger) *Experiment {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Experiment{cfg: cfg.Clone(), logger: logger}
}

// Setup validates the scenario, builds the plant and servo, and attaches
// metrics to it.
func (e *Experiment) Setup(metrics []sim.Metric) error {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	typ, _ := cfg.MotorType()
	portID, _ := cfg.ServoPort()
	direction, _ := cfg.ServoDirection()
	actuation, _ := cfg.ActuationType()

	pc := sim.DefaultPortConfig(typ)
	pc.Integrator = cfg.Integrator
	if cfg.Substeps > 0 {
		pc.Substeps = cfg.Substeps
	}
	pc.Quantize = cfg.Plant.Quantize
	pc.InitialAngle = cfg.Plant.InitialAngle
	if cfg.Plant.InertiaScale > 0 {
		pc.InertiaScale = cfg.Plant.InertiaScale
	}
	port, err := sim.NewPort(pc, e.logger.Named("plant"))
	if err != nil {
		return err
	}
	if err := e.shapePlant(port); err != nil {
		return err
	}

	simulator := sim.New(servo.NewRegistry(e.logger), e.logger)
	sv, err := simulator.Attach(portID, port)
	if err != nil {
		return err
	}
	if err := sv.Setup(direction, cfg.GearRatio, cfg.ResetAngle); err != nil {
		return err
	}
	if err := sv.SetActuationType(actuation); err != nil {
		return err
	}
	if g := cfg.Gains; g != (config.GainsConfig{}) {
		settings := sv.Settings()
		if g.Kp > 0 {
			settings.Kp = g.Kp
		}
		if g.Ki > 0 {
			settings.Ki = g.Ki
		}
		if g.Kd > 0 {
			settings.Kd = g.Kd
		}
		if err := sv.SetSettings(settings); err != nil {
			return err
		}
	}
	if cfg.LogCapacity > 0 {
		if err := sv.Log().Start(cfg.LogCapacity); err != nil {
			return err
		}
	}
	for _, m := range metrics {
		simulator.AddMetric(portID, m)
	}

	e.simulator, e.port, e.servo, e.portID = simulator, port, sv, portID
	return nil
}

func (e *Experiment) shapePlant(port *sim.Port) error {
	plant := e.cfg.Plant
	m := port.Motor()
	if plant.FrictionScale > 0 && plant.FrictionScale != 1 {
		if err := m.SetParam("friction", m.Friction*plant.FrictionScale); err != nil {
			return err
		}
	}
	if plant.LoadTorque != 0 {
		port.AddLoad(models.ConstantLoad{Magnitude: plant.LoadTorque})
	}
	if plant.ArmMass > 0 && plant.ArmLength > 0 {
		arm := models.NewArm(plant.ArmMass, plant.ArmLength, e.cfg.GearRatio)
		if err := m.SetParam("j", m.J+arm.Inertia()); err != nil {
			return err
		}
		port.AddLoad(arm)
	}
	return nil
}

// Run plays the scenario's commands for its duration.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.simulator == nil {
		return nil, ErrNotSetup
	}

	cfg := sim.Config{
		Duration: seconds(e.cfg.Duration),
		Events:   e.events(),
	}
	for _, c := range e.cfg.Commands {
		cmd, err := e.command(c)
		if err != nil {
			return nil, err
		}
		cfg.Commands = append(cfg.Commands, cmd)
	}

	res, err := e.simulator.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	angle, _ := e.servo.AngleSpeed()
	return &Result{
		Result: res,
		Config: e.cfg.Clone(),
		Rows:   e.servo.Log().Rows(),
		Final:  e.servo.State(),
		Angle:  angle,
	}, nil
}

func (e *Experiment) events() []sim.Event {
	b := e.cfg.Plant.Block
	if b == nil {
		return nil
	}
	events := []sim.Event{{
		At:    seconds(b.From),
		Port:  e.portID,
		Name:  "block",
		Apply: func(p *sim.Port) { p.Block(true) },
	}}
	if b.Until > 0 {
		events = append(events, sim.Event{
			At:    seconds(b.Until),
			Port:  e.portID,
			Name:  "release",
			Apply: func(p *sim.Port) { p.Block(false) },
		})
	}
	return events
}

func (e *Experiment) command(c config.CommandConfig) (sim.Command, error) {
	policy, err := c.Policy()
	if err != nil {
		return sim.Command{}, errors.Wrap(config.ErrInvalid, err.Error())
	}
	cmd := sim.Command{At: seconds(c.At), Port: e.portID, Name: c.Op}
	switch c.Op {
	case config.OpRunForever:
		cmd.Apply = func(sv *servo.Servo) error { return sv.RunForever(c.Speed) }
	case config.OpRunTime:
		cmd.Apply = func(sv *servo.Servo) error { return sv.RunTime(c.Speed, seconds(c.Time), policy) }
	case config.OpRunAngle:
		cmd.Apply = func(sv *servo.Servo) error { return sv.RunAngle(c.Speed, c.Angle, policy) }
	case config.OpRunTarget:
		cmd.Apply = func(sv *servo.Servo) error { return sv.RunTarget(c.Speed, c.Angle, policy) }
	case config.OpTrackTarget:
		cmd.Apply = func(sv *servo.Servo) error { return sv.TrackTarget(c.Angle) }
	case config.OpStop:
		cmd.Apply = func(sv *servo.Servo) error { return sv.Stop(policy) }
	case config.OpResetAngle:
		cmd.Apply = func(sv *servo.Servo) error { return sv.ResetAngle(c.Angle, c.Absolute) }
	default:
		return sim.Command{}, errors.Wrapf(config.ErrInvalid, "op %q", c.Op)
	}
	return cmd, nil
}

// GetSimulator returns the underlying simulator for adding observers.
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

func (e *Experiment) Servo() *servo.Servo { return e.servo }

func (e *Experiment) Port() *sim.Port { return e.port }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
