package motor

// Actuation selects how a motor driver applies its output.
type Actuation int

const (
	// Coast leaves the terminals open so the motor free-wheels.
	Coast Actuation = iota
	// Brake shorts the terminals.
	Brake
	// Voltage applies a duty cycle equivalent to a voltage in mV.
	Voltage
	// Torque applies a current equivalent to a torque in µNm.
	Torque
)

func (a Actuation) String() string {
	switch a {
	case Coast:
		return "coast"
	case Brake:
		return "brake"
	case Voltage:
		return "voltage"
	case Torque:
		return "torque"
	}
	return "unknown"
}
