package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/servoloop/internal/config"
	"github.com/san-kum/servoloop/internal/logging"
	"github.com/san-kum/servoloop/internal/metrics"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
)

func run(t *testing.T, cfg *config.Config) *Result {
	t.Helper()
	e := New(cfg, logging.NewTestLogger(t))
	require.NoError(t, e.Setup(metrics.Default()))
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestStepPreset(t *testing.T) {
	res := run(t, config.GetPreset("step"))

	assert.Empty(t, res.Errors)
	assert.Equal(t, servo.StateHolding, res.Final)
	assert.InDelta(t, 180, res.Angle, 2)
	assert.Len(t, res.Rows, res.Ticks)

	final, ok := res.Metric("final_error")
	require.True(t, ok)
	assert.Less(t, final, 2.0)
	stall, _ := res.Metric("stall_time")
	assert.Zero(t, stall)
	peak, _ := res.Metric("peak_speed")
	assert.InDelta(t, 500, peak, 100)
}

func TestStallPreset(t *testing.T) {
	res := run(t, config.GetPreset("stall"))

	assert.Equal(t, servo.StateStalled, res.Final)
	stall, ok := res.Metric("stall_time")
	require.True(t, ok)
	assert.Greater(t, stall, 0.0)
	assert.Less(t, stall, 1.5)
}

func TestTimedPresetCoasts(t *testing.T) {
	res := run(t, config.GetPreset("timed"))
	assert.Equal(t, servo.StateIdle, res.Final)
	last := res.Rows[len(res.Rows)-1]
	assert.Equal(t, uint8(servo.StateIdle), last.State)
}

func TestBumpRecovers(t *testing.T) {
	res := run(t, config.GetPreset("bump"))

	assert.Equal(t, servo.StateHolding, res.Final)
	assert.InDelta(t, 360, res.Angle, 5)
	stall, _ := res.Metric("stall_time")
	assert.Greater(t, stall, 0.0)
}

func TestGainsOverride(t *testing.T) {
	cfg := config.GetPreset("step")
	cfg.Gains = config.GainsConfig{Kp: 1234, Kd: 56}

	e := New(cfg, nil)
	require.NoError(t, e.Setup(nil))
	settings := e.Servo().Settings()
	assert.Equal(t, int32(1234), settings.Kp)
	assert.Equal(t, int32(56), settings.Kd)

	defaults, _, err := motor.LoadSettings(motor.TypeTechnicLAngular)
	require.NoError(t, err)
	assert.Equal(t, defaults.Ki, settings.Ki)
}

func TestPlantShaping(t *testing.T) {
	cfg := config.GetPreset("arm")
	cfg.Plant.FrictionScale = 2
	cfg.Plant.LoadTorque = 0.01

	e := New(cfg, nil)
	require.NoError(t, e.Setup(nil))
	plant := e.Port().Motor()
	assert.Len(t, plant.Loads, 2)

	fresh := New(config.GetPreset("arm"), nil)
	fresh.cfg.Plant.ArmMass = 0
	require.NoError(t, fresh.Setup(nil))
	base := fresh.Port().Motor()
	assert.InDelta(t, 2*base.Friction, plant.Friction, 1e-12)
	assert.Greater(t, plant.J, base.J)
}

func TestSetupErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Motor = "nxt"
	err := New(cfg, nil).Setup(nil)
	assert.True(t, errors.Is(err, config.ErrInvalid))

	_, err = New(config.DefaultConfig(), nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrNotSetup)
}

func TestCommandErrorsAreCollected(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Duration = 0.1
	cfg.Commands = []config.CommandConfig{{Op: config.OpStop, Then: "continue"}}

	res := run(t, cfg)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], servo.ErrInvalidArgument)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	typ, err := r.GetMotor("ev3_l")
	require.NoError(t, err)
	assert.Equal(t, motor.TypeEV3Large, typ)
	_, err = r.GetMotor("nxt")
	assert.ErrorIs(t, err, motor.ErrNotSupported)

	assert.Len(t, r.ListMotors(), len(motor.Types()))
	assert.Equal(t, []string{"euler", "rk4", "rk45"}, r.ListIntegrators())

	ms, err := r.GetMetrics("tracking_rms", "energy")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "energy", ms[1].Name())
	_, err = r.GetMetrics("overshoot")
	assert.ErrorIs(t, err, metrics.ErrUnknown)

	assert.Len(t, r.DefaultMetrics(), len(r.ListMetrics()))
}
