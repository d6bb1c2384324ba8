// Package config loads simulation scenarios from YAML.
package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/servoloop/internal/control"
	"github.com/san-kum/servoloop/internal/integrators"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
)

const (
	DefaultMotor       = "technic_l_angular"
	DefaultIntegrator  = "rk4"
	DefaultDuration    = 3.0
	DefaultGearRatio   = 1.0
	DefaultLogCapacity = 10_000
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid scenario")

// Operations accepted in a command list.
const (
	OpRunForever  = "run_forever"
	OpRunTime     = "run_time"
	OpRunAngle    = "run_angle"
	OpRunTarget   = "run_target"
	OpTrackTarget = "track_target"
	OpStop        = "stop"
	OpResetAngle  = "reset_angle"
)

var knownOps = map[string]bool{
	OpRunForever: true, OpRunTime: true, OpRunAngle: true, OpRunTarget: true,
	OpTrackTarget: true, OpStop: true, OpResetAngle: true,
}

// Config is one simulated scenario: a motor on a port, its plant and a
// timed list of commands.
type Config struct {
	Motor       string          `yaml:"motor"`
	Port        string          `yaml:"port"`
	Direction   string          `yaml:"direction"`
	GearRatio   float64         `yaml:"gear_ratio"`
	ResetAngle  bool            `yaml:"reset_angle"`
	Actuation   string          `yaml:"actuation"`
	Integrator  string          `yaml:"integrator"`
	Substeps    int             `yaml:"substeps,omitempty"`
	Duration    float64         `yaml:"duration"`
	Seed        int64           `yaml:"seed,omitempty"`
	LogCapacity int             `yaml:"log_capacity"`
	Plant       PlantConfig     `yaml:"plant"`
	Gains       GainsConfig     `yaml:"gains,omitempty"`
	Commands    []CommandConfig `yaml:"commands"`
}

// PlantConfig perturbs the simulated motor. Angles are in degrees at the
// motor shaft, times in seconds and torques in Nm.
type PlantConfig struct {
	InitialAngle  float64 `yaml:"initial_angle,omitempty"`
	InertiaScale  float64 `yaml:"inertia_scale,omitempty"`
	FrictionScale float64 `yaml:"friction_scale,omitempty"`
	Quantize      bool    `yaml:"quantize"`
	LoadTorque    float64 `yaml:"load_torque,omitempty"`
	// ArmMass and ArmLength hang a pendulum on the output shaft.
	ArmMass   float64      `yaml:"arm_mass,omitempty"`
	ArmLength float64      `yaml:"arm_length,omitempty"`
	Block     *BlockConfig `yaml:"block,omitempty"`
}

// BlockConfig holds the shaft still from From until Until. A zero Until
// keeps it blocked.
type BlockConfig struct {
	From  float64 `yaml:"from"`
	Until float64 `yaml:"until,omitempty"`
}

// GainsConfig overrides the PID gains of the motor type. Zero keeps the
// calibrated value.
type GainsConfig struct {
	Kp int32 `yaml:"kp,omitempty"`
	Ki int32 `yaml:"ki,omitempty"`
	Kd int32 `yaml:"kd,omitempty"`
}

// CommandConfig is a servo command issued At seconds into the run. Speed
// is in deg/s and Angle in degrees at the output; Time is in seconds.
type CommandConfig struct {
	At       float64 `yaml:"at"`
	Op       string  `yaml:"op"`
	Speed    int32   `yaml:"speed,omitempty"`
	Angle    int64   `yaml:"angle,omitempty"`
	Time     float64 `yaml:"time,omitempty"`
	Then     string  `yaml:"then,omitempty"`
	Absolute bool    `yaml:"absolute,omitempty"`
}

// Policy returns the completion policy, hold when unset.
func (c CommandConfig) Policy() (control.Policy, error) {
	if c.Then == "" {
		return control.PolicyHold, nil
	}
	return control.ParsePolicy(c.Then)
}

func DefaultConfig() *Config {
	return &Config{
		Motor:       DefaultMotor,
		Port:        "A",
		Direction:   "clockwise",
		GearRatio:   DefaultGearRatio,
		ResetAngle:  true,
		Actuation:   "voltage",
		Integrator:  DefaultIntegrator,
		Duration:    DefaultDuration,
		LogCapacity: DefaultLogCapacity,
		Plant:       PlantConfig{Quantize: true, InertiaScale: 1, FrictionScale: 1},
		Commands: []CommandConfig{
			{Op: OpRunTarget, Speed: 500, Angle: 180, Then: "hold"},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	cfg := DefaultConfig()
	cfg.Commands = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "config: encode")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "config: write")
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Commands = append([]CommandConfig(nil), c.Commands...)
	if c.Plant.Block != nil {
		b := *c.Plant.Block
		out.Plant.Block = &b
	}
	return &out
}

// MotorType resolves the motor name.
func (c *Config) MotorType() (motor.Type, error) {
	return motor.ParseType(c.Motor)
}

// ServoPort resolves the port letter.
func (c *Config) ServoPort() (servo.Port, error) {
	return servo.ParsePort(c.Port)
}

// ServoDirection resolves the direction name.
func (c *Config) ServoDirection() (servo.Direction, error) {
	switch c.Direction {
	case "", "clockwise":
		return servo.Clockwise, nil
	case "counterclockwise":
		return servo.Counterclockwise, nil
	}
	return 0, errors.Wrapf(ErrInvalid, "direction %q", c.Direction)
}

// ActuationType resolves the actuation name.
func (c *Config) ActuationType() (motor.Actuation, error) {
	switch c.Actuation {
	case "", "voltage":
		return motor.Voltage, nil
	case "torque":
		return motor.Torque, nil
	}
	return 0, errors.Wrapf(ErrInvalid, "actuation %q", c.Actuation)
}

// Validate reports every problem in the scenario at once.
func (c *Config) Validate() error {
	var err error
	if _, e := c.MotorType(); e != nil {
		err = multierr.Append(err, errors.Wrapf(ErrInvalid, "motor: %v", e))
	}
	if _, e := c.ServoPort(); e != nil {
		err = multierr.Append(err, errors.Wrapf(ErrInvalid, "port: %v", e))
	}
	if _, e := c.ServoDirection(); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := c.ActuationType(); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := integrators.New(c.Integrator); e != nil {
		err = multierr.Append(err, errors.Wrapf(ErrInvalid, "integrator: %v", e))
	}
	if c.GearRatio <= 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalid, "gear ratio %v", c.GearRatio))
	}
	if c.Duration <= 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalid, "duration %v", c.Duration))
	}
	if c.LogCapacity < 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalid, "log capacity %d", c.LogCapacity))
	}
	if c.Plant.InertiaScale < 0 || c.Plant.FrictionScale < 0 {
		err = multierr.Append(err, errors.Wrap(ErrInvalid, "plant scales must not be negative"))
	}
	if b := c.Plant.Block; b != nil && (b.From < 0 || (b.Until != 0 && b.Until < b.From)) {
		err = multierr.Append(err, errors.Wrapf(ErrInvalid, "block window %v..%v", b.From, b.Until))
	}
	for i, cmd := range c.Commands {
		if !knownOps[cmd.Op] {
			err = multierr.Append(err, errors.Wrapf(ErrInvalid, "command %d: unknown op %q", i, cmd.Op))
			continue
		}
		if cmd.At < 0 {
			err = multierr.Append(err, errors.Wrapf(ErrInvalid, "command %d: negative time", i))
		}
		if _, e := cmd.Policy(); e != nil {
			err = multierr.Append(err, errors.Wrapf(ErrInvalid, "command %d: %v", i, e))
		}
		if cmd.Op == OpRunTime && cmd.Time < 0 {
			err = multierr.Append(err, errors.Wrapf(ErrInvalid, "command %d: negative run time", i))
		}
	}
	return err
}
