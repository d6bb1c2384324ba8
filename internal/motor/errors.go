package motor

import "github.com/pkg/errors"

var (
	// ErrNotSupported indicates a motor type without calibration data.
	ErrNotSupported = errors.New("motor: type not supported")

	// ErrInvalidSettings indicates a limit that is not strictly positive or a negative tolerance.
	ErrInvalidSettings = errors.New("motor: invalid control settings")
)
