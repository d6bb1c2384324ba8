package motor

import "github.com/san-kum/servoloop/internal/fixmath"

// Coefficient scale factors. A coefficient c in the table stands for
// c/Prescale* in the physical units of the quantity it multiplies.
const (
	PrescaleSpeed        = 100_000_000
	PrescaleCurrent      = 1_000_000
	PrescaleVoltage      = 1_000_000
	PrescaleTorque       = 100_000_000
	PrescaleAcceleration = 100_000_000
)

// Model is the discrete linear model of one motor type, relating voltage,
// load torque, angle, speed and current over one control period. The
// d_X_d_Y names read as "change in X per unit of Y".
type Model struct {
	DAngleDSpeed   int32
	DSpeedDSpeed   int32
	DCurrentDSpeed int32

	DAngleDCurrent   int32
	DSpeedDCurrent   int32
	DCurrentDCurrent int32

	DAngleDVoltage   int32
	DSpeedDVoltage   int32
	DCurrentDVoltage int32

	DAngleDTorque   int32
	DSpeedDTorque   int32
	DCurrentDTorque int32

	DVoltageDTorque      int32
	DTorqueDVoltage      int32
	DTorqueDSpeed        int32
	DTorqueDAcceleration int32

	// TorqueFriction is the Coulomb friction in µNm.
	TorqueFriction int32
	// FeedbackGain is the observer correction in mV per degree of error.
	FeedbackGain int32
}

// VoltageToTorque returns the stall torque (µNm) produced by a voltage (mV).
func (m *Model) VoltageToTorque(voltage int32) int32 {
	return fixmath.Scale(voltage, m.DTorqueDVoltage, PrescaleVoltage)
}

// TorqueToVoltage returns the voltage (mV) needed for a torque (µNm) at standstill.
func (m *Model) TorqueToVoltage(torque int32) int32 {
	return fixmath.Scale(torque, m.DVoltageDTorque, PrescaleTorque)
}

// SpeedTorque is the torque (µNm) that cancels back-EMF at a speed (mdeg/s).
func (m *Model) SpeedTorque(speed int32) int32 {
	return fixmath.Scale(speed, m.DTorqueDSpeed, PrescaleSpeed)
}

// AccelerationTorque is the torque (µNm) that accelerates the rotor at
// the given rate (mdeg/s²).
func (m *Model) AccelerationTorque(acceleration int32) int32 {
	return fixmath.Scale(acceleration, m.DTorqueDAcceleration, PrescaleAcceleration)
}

// BackEMFVoltage is the voltage a free-running motor generates at a speed.
func (m *Model) BackEMFVoltage(speed int32) int32 {
	return m.TorqueToVoltage(m.SpeedTorque(speed))
}

// ModelFor returns the model of a motor type.
func ModelFor(t Type) (*Model, error) {
	m, ok := models[t]
	if !ok {
		return nil, ErrNotSupported
	}
	return m, nil
}
