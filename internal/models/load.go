package models

import "math"

// Load is an external torque on the motor shaft, in Nm, positive when it
// opposes positive rotation.
type Load interface {
	Torque(angle, speed, t float64) float64
}

// ConstantLoad resists rotation in either direction with a fixed torque,
// like a brake pad. Below Slip rad/s it fades out so the shaft can rest.
type ConstantLoad struct {
	Magnitude float64 // Nm
	Slip      float64 // rad/s, 0.05 when zero
}

func (c ConstantLoad) Torque(angle, speed, t float64) float64 {
	slip := c.Slip
	if slip <= 0 {
		slip = 0.05
	}
	return c.Magnitude * math.Tanh(speed/slip)
}

// Arm is a rigid pendulum on the gear train output: a point mass at the
// end of a massless arm, hanging down at output angle zero.
type Arm struct {
	Mass      float64 // kg
	Length    float64 // m
	GearRatio float64 // shaft turns per output turn
	Gravity   float64 // m/s², 9.81 when zero
}

func NewArm(mass, length, gearRatio float64) *Arm {
	return &Arm{Mass: mass, Length: length, GearRatio: gearRatio, Gravity: 9.81}
}

// Torque is the gravity torque reflected to the motor shaft.
func (a *Arm) Torque(angle, speed, t float64) float64 {
	g := a.Gravity
	if g == 0 {
		g = 9.81
	}
	ratio := a.ratio()
	return a.Mass * g * a.Length * math.Sin(angle/ratio) / ratio
}

// Inertia is the arm's inertia reflected to the motor shaft, kg·m².
func (a *Arm) Inertia() float64 {
	ratio := a.ratio()
	return a.Mass * a.Length * a.Length / (ratio * ratio)
}

func (a *Arm) ratio() float64 {
	if a.GearRatio <= 0 {
		return 1
	}
	return a.GearRatio
}
