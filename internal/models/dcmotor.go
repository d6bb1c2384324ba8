// Package models holds continuous-time plants for simulating motors.
package models

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/dynamo"
	"github.com/san-kum/servoloop/internal/motor"
)

// Drive is how the terminals of a simulated motor are driven.
type Drive int

const (
	// DriveVoltage applies u[0] volts.
	DriveVoltage Drive = iota
	// DriveCoast leaves the terminals open; no current flows.
	DriveCoast
	// DriveBrake shorts the terminals.
	DriveBrake
	// DriveCurrent forces the current to u[0] amperes.
	DriveCurrent
)

// DCMotorParams are the physical constants of a geared DC motor, in SI
// units at the motor shaft.
type DCMotorParams struct {
	Km       float64 // torque constant, Nm/A (equal to the back-EMF constant)
	R        float64 // winding resistance, Ω
	L        float64 // winding inductance, H
	J        float64 // rotor and gear inertia, kg·m²
	Friction float64 // Coulomb friction, Nm
	Damping  float64 // viscous friction, Nm·s/rad
	// FrictionSpeed smooths the friction sign through zero, rad/s.
	FrictionSpeed float64
	MaxVoltage    float64 // V
}

var paramTable = map[motor.Type]DCMotorParams{
	motor.TypeTechnicSAngular: {Km: 0.30, R: 14.0, L: 0.012, J: 2.2e-4, Friction: 0.009, MaxVoltage: 6},
	motor.TypeTechnicMAngular: {Km: 0.42, R: 16.0, L: 0.015, J: 5.0e-4, Friction: 0.021, MaxVoltage: 9},
	motor.TypeTechnicLAngular: {Km: 0.47, R: 10.0, L: 0.010, J: 9.0e-4, Friction: 0.023, MaxVoltage: 9},
	motor.TypeInteractive:     {Km: 0.45, R: 13.0, L: 0.012, J: 4.0e-4, Friction: 0.011, MaxVoltage: 9},
	motor.TypeTechnicL:        {Km: 0.31, R: 9.0, L: 0.009, J: 6.0e-4, Friction: 0.026, MaxVoltage: 9},
	motor.TypeTechnicXL:       {Km: 0.30, R: 7.5, L: 0.008, J: 7.0e-4, Friction: 0.013, MaxVoltage: 9},
	motor.TypeMoveHub:         {Km: 0.31, R: 11.0, L: 0.010, J: 4.5e-4, Friction: 0.025, MaxVoltage: 9},
	motor.TypeEV3Large:        {Km: 0.43, R: 7.0, L: 0.008, J: 1.4e-3, Friction: 0.016, MaxVoltage: 9},
	motor.TypeEV3Medium:       {Km: 0.22, R: 8.5, L: 0.008, J: 2.0e-4, Friction: 0.018, MaxVoltage: 9},
}

// ParamsFor returns the plant constants matching the calibration of a
// motor type.
func ParamsFor(t motor.Type) (DCMotorParams, error) {
	p, ok := paramTable[t]
	if !ok {
		return DCMotorParams{}, errors.Wrapf(motor.ErrNotSupported, "no plant for %s", t)
	}
	p.Damping = 2e-4
	p.FrictionSpeed = 0.05
	return p, nil
}

// DCMotor is a geared DC motor with state [angle rad, speed rad/s,
// current A] and control [volts] or [amperes] depending on Drive.
type DCMotor struct {
	DCMotorParams

	Drive Drive
	// Blocked holds the shaft still, as a mechanical stop would.
	Blocked bool
	// Loads add external torques opposing the motor.
	Loads []Load
}

var _ dynamo.Constrained = (*DCMotor)(nil)

func NewDCMotor(p DCMotorParams) *DCMotor {
	return &DCMotor{DCMotorParams: p, Drive: DriveCoast}
}

func (m *DCMotor) StateDim() int   { return 3 }
func (m *DCMotor) ControlDim() int { return 1 }

func (m *DCMotor) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta, omega, current := x[0], x[1], x[2]

	var input float64
	if len(u) > 0 {
		input = u[0]
	}
	switch m.Drive {
	case DriveCoast:
		current = 0
	case DriveCurrent:
		current = input
	}

	if m.Blocked {
		return dynamo.State{0, 0, m.currentRate(current, 0, input)}
	}

	load := m.Damping*omega + m.Friction*math.Tanh(omega/m.FrictionSpeed)
	for _, l := range m.Loads {
		load += l.Torque(theta, omega, t)
	}
	alpha := (m.Km*current - load) / m.J

	return dynamo.State{omega, alpha, m.currentRate(current, omega, input)}
}

func (m *DCMotor) currentRate(current, omega, input float64) float64 {
	switch m.Drive {
	case DriveVoltage:
		return (input - m.R*current - m.Km*omega) / m.L
	case DriveBrake:
		return (-m.R*current - m.Km*omega) / m.L
	}
	return 0
}

// Settle enforces the algebraic constraints of the drive mode after an
// integration step.
func (m *DCMotor) Settle(x dynamo.State, u dynamo.Control) {
	switch m.Drive {
	case DriveCoast:
		x[2] = 0
	case DriveCurrent:
		if len(u) > 0 {
			x[2] = u[0]
		}
	}
	if m.Blocked {
		x[1] = 0
	}
}

// StallTorque is the torque at rated voltage and zero speed, Nm.
func (m *DCMotor) StallTorque() float64 {
	return m.Km * m.MaxVoltage / m.R
}

// NoLoadSpeed is the speed at rated voltage without friction, rad/s.
func (m *DCMotor) NoLoadSpeed() float64 {
	return m.MaxVoltage / m.Km
}

// GetParams returns tunable parameters for live adjustment.
func (m *DCMotor) GetParams() map[string]float64 {
	return map[string]float64{
		"km":       m.Km,
		"r":        m.R,
		"l":        m.L,
		"j":        m.J,
		"friction": m.Friction,
		"damping":  m.Damping,
	}
}

// SetParam adjusts a plant constant. Km, R, L and J must stay positive,
// the friction terms non-negative.
func (m *DCMotor) SetParam(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.Wrapf(dynamo.ErrParameterBounds, "%s = %v", name, value)
	}
	positive := func(dst *float64) error {
		if value <= 0 {
			return errors.Wrapf(dynamo.ErrParameterBounds, "%s must be positive, got %v", name, value)
		}
		*dst = value
		return nil
	}
	nonNegative := func(dst *float64) error {
		if value < 0 {
			return errors.Wrapf(dynamo.ErrParameterBounds, "%s must not be negative, got %v", name, value)
		}
		*dst = value
		return nil
	}
	switch name {
	case "km":
		return positive(&m.Km)
	case "r":
		return positive(&m.R)
	case "l":
		return positive(&m.L)
	case "j":
		return positive(&m.J)
	case "friction":
		return nonNegative(&m.Friction)
	case "damping":
		return nonNegative(&m.Damping)
	}
	return errors.Wrapf(dynamo.ErrUnknownParameter, "%q", name)
}
