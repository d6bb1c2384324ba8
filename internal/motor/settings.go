package motor

import (
	"time"

	"github.com/pkg/errors"
)

// Ticks are the control-path unit of time: 100 µs.
const (
	TicksPerSecond = 10_000
	TicksPerMs     = 10
)

// Settings are the control parameters of a servo, copied into each
// instance at setup. Angles are in millidegrees, speeds in mdeg/s,
// accelerations in mdeg/s², torques in µNm and times in ticks.
type Settings struct {
	SpeedMax          int32
	SpeedDefault      int32
	Acceleration      int32
	Deceleration      int32
	ActuationMax      int32
	PositionTolerance int32
	SpeedTolerance    int32
	StallSpeedLimit   int32
	StallTime         int32
	IntegralDeadzone  int32
	IntegralChangeMax int32
	// Kp is in µNm per degree, Ki in µNm per degree-second, Kd in µNm per deg/s.
	Kp int32
	Ki int32
	Kd int32
}

// Validate checks that limits are strictly positive and tolerances non-negative.
func (s Settings) Validate() error {
	limits := []struct {
		name  string
		value int32
	}{
		{"speed_max", s.SpeedMax},
		{"speed_default", s.SpeedDefault},
		{"acceleration", s.Acceleration},
		{"deceleration", s.Deceleration},
		{"actuation_max", s.ActuationMax},
		{"stall_speed_limit", s.StallSpeedLimit},
		{"stall_time", s.StallTime},
		{"integral_change_max", s.IntegralChangeMax},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return errors.Wrapf(ErrInvalidSettings, "%s must be positive, got %d", l.name, l.value)
		}
	}
	tolerances := []struct {
		name  string
		value int32
	}{
		{"position_tolerance", s.PositionTolerance},
		{"speed_tolerance", s.SpeedTolerance},
		{"integral_deadzone", s.IntegralDeadzone},
		{"kp", s.Kp},
		{"ki", s.Ki},
		{"kd", s.Kd},
	}
	for _, l := range tolerances {
		if l.value < 0 {
			return errors.Wrapf(ErrInvalidSettings, "%s must not be negative, got %d", l.name, l.value)
		}
	}
	return nil
}

// StallDuration converts the stall threshold to a duration.
func (s Settings) StallDuration() time.Duration {
	return time.Duration(s.StallTime) * time.Second / TicksPerSecond
}

type typeSettings struct {
	speedMax     int32
	acceleration int32
	kp           int32
	kd           int32
	maxVoltage   int32
}

var baseSettings = Settings{
	SpeedTolerance:    50_000,
	PositionTolerance: 10_000,
	StallSpeedLimit:   20_000,
	StallTime:         200 * TicksPerMs,
	IntegralChangeMax: 15_000,
	IntegralDeadzone:  8_000,
}

var settingsTable = map[Type]typeSettings{
	TypeEV3Medium:       {speedMax: 2_000_000, acceleration: 8_000_000, kp: 3000, kd: 30, maxVoltage: 9000},
	TypeEV3Large:        {speedMax: 1_600_000, acceleration: 3_200_000, kp: 15000, kd: 250, maxVoltage: 9000},
	TypeInteractive:     {speedMax: 1_000_000, acceleration: 2_000_000, kp: 13500, kd: 1350, maxVoltage: 9000},
	TypeMoveHub:         {speedMax: 1_500_000, acceleration: 5_000_000, kp: 15000, kd: 500, maxVoltage: 9000},
	TypeTechnicL:        {speedMax: 1_470_000, acceleration: 2_000_000, kp: 17500, kd: 2500, maxVoltage: 9000},
	TypeTechnicXL:       {speedMax: 1_525_000, acceleration: 2_500_000, kp: 17500, kd: 2500, maxVoltage: 9000},
	TypeTechnicSAngular: {speedMax: 620_000, acceleration: 2_000_000, kp: 7500, kd: 1000, maxVoltage: 6000},
	TypeTechnicMAngular: {speedMax: 1_080_000, acceleration: 2_000_000, kp: 15000, kd: 1800, maxVoltage: 9000},
	TypeTechnicLAngular: {speedMax: 970_000, acceleration: 1_500_000, kp: 35000, kd: 6000, maxVoltage: 9000},
}

// MaxVoltage returns the rated voltage (mV) of a motor type.
func MaxVoltage(t Type) (int32, error) {
	ts, ok := settingsTable[t]
	if !ok {
		return 0, ErrNotSupported
	}
	return ts.maxVoltage, nil
}

// LoadSettings returns the control settings and model for a motor type.
// Dependent values are derived rather than tabulated: the actuation limit
// is the torque at rated voltage, the integral gain saturates that limit
// in two seconds at the position tolerance, deceleration mirrors
// acceleration and the default speed is the maximum speed.
func LoadSettings(t Type) (Settings, *Model, error) {
	ts, ok := settingsTable[t]
	if !ok {
		return Settings{}, nil, errors.Wrapf(ErrNotSupported, "load settings for %s", t)
	}
	model, err := ModelFor(t)
	if err != nil {
		return Settings{}, nil, errors.Wrapf(err, "load settings for %s", t)
	}

	s := baseSettings
	s.SpeedMax = ts.speedMax
	s.SpeedDefault = ts.speedMax
	s.Acceleration = ts.acceleration
	s.Deceleration = ts.acceleration
	s.Kp = ts.kp
	s.Kd = ts.kd
	s.ActuationMax = model.VoltageToTorque(ts.maxVoltage)
	s.Ki = int32(int64(s.ActuationMax) * 1000 / int64(s.PositionTolerance) / 2)
	return s, model, nil
}
