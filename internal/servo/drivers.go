package servo

import (
	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/motor"
)

// Actuator drives a motor. The value is in mV for voltage actuation, µNm
// for torque actuation and ignored for coast and brake.
type Actuator interface {
	SetActuation(act motor.Actuation, value int32) error
}

// AngleSensor reads the accumulated shaft angle.
type AngleSensor interface {
	Angle() (fixmath.Angle, error)
}

// AbsoluteAngleSensor is implemented by sensors that also know the
// absolute shaft position within one rotation.
type AbsoluteAngleSensor interface {
	AbsoluteAngle() (fixmath.Angle, error)
}

// Driver is the hardware of one port.
type Driver interface {
	Actuator
	AngleSensor
}

// Parent is a composite mechanism, such as a drive base, that commands a
// servo. A direct command to the servo stops the parent first.
type Parent interface {
	StopFromChild() error
}
