package servo

import (
	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/trajectory"
)

var (
	// ErrNotSupported is returned for unknown motor types and for
	// features the attached hardware lacks.
	ErrNotSupported = motor.ErrNotSupported
	// ErrInvalidArgument is returned for requests no trajectory can satisfy.
	ErrInvalidArgument = trajectory.ErrInvalidArgument
	// ErrNoDevice is returned for ports without an active servo and by
	// drivers whose device has been unplugged.
	ErrNoDevice = errors.New("servo: no device")
	// ErrIO is returned by drivers that fail to communicate.
	ErrIO = errors.New("servo: i/o error")
)
