package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/servoloop/internal/integrators"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
)

func newPort(t *testing.T, modify func(*PortConfig)) *Port {
	t.Helper()
	cfg := DefaultPortConfig(motor.TypeTechnicLAngular)
	if modify != nil {
		modify(&cfg)
	}
	p, err := NewPort(cfg, nil)
	require.NoError(t, err)
	return p
}

func spin(t *testing.T, p *Port, ticks int) {
	t.Helper()
	for i := 0; i < ticks; i++ {
		require.NoError(t, p.Step(int32(i), TickDuration.Seconds()))
	}
}

func TestPortEncoder(t *testing.T) {
	tests := []struct {
		name     string
		initial  float64
		quantize bool
		angle    int64
		absolute int64
	}{
		{"quantized", 10.7, true, 10_000, 10_000},
		{"fine", 10.7, false, 10_700, 10_700},
		{"negative floors down", -0.5, true, -1_000, -1_000},
		{"wraps past a turn", 370.4, true, 370_000, 10_000},
		{"wraps below minus half turn", -190, true, -190_000, 170_000},
		{"half turn", 180, true, 180_000, -180_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPort(t, func(c *PortConfig) {
				c.InitialAngle = tt.initial
				c.Quantize = tt.quantize
			})
			a, err := p.Angle()
			require.NoError(t, err)
			assert.Equal(t, tt.angle, a.Mdeg())

			abs, err := p.AbsoluteAngle()
			require.NoError(t, err)
			assert.Equal(t, tt.absolute, abs.Mdeg())
		})
	}
}

func TestPortVoltageSpins(t *testing.T) {
	p := newPort(t, nil)
	require.NoError(t, p.SetActuation(motor.Voltage, 6000))
	spin(t, p, 200)

	angle, speed, current := p.Plant()
	assert.Greater(t, angle, 360.0)
	assert.Greater(t, speed, 500.0)
	assert.Greater(t, current, 0.0)

	act, value := p.Actuation()
	assert.Equal(t, motor.Voltage, act)
	assert.Equal(t, int32(6000), value)
}

func TestPortVoltageIsClamped(t *testing.T) {
	full := newPort(t, nil)
	over := newPort(t, nil)
	require.NoError(t, full.SetActuation(motor.Voltage, 9000))
	require.NoError(t, over.SetActuation(motor.Voltage, 50000))
	spin(t, full, 100)
	spin(t, over, 100)

	_, a, _ := full.Plant()
	_, b, _ := over.Plant()
	assert.InDelta(t, a, b, 1e-9)
}

func TestPortBrakeStopsSoonerThanCoast(t *testing.T) {
	speedAfter := func(act motor.Actuation) float64 {
		p := newPort(t, nil)
		require.NoError(t, p.SetActuation(motor.Voltage, 9000))
		spin(t, p, 200)
		require.NoError(t, p.SetActuation(act, 0))
		spin(t, p, 10)
		_, speed, current := p.Plant()
		if act == motor.Coast {
			assert.Zero(t, current)
		}
		return speed
	}

	coast := speedAfter(motor.Coast)
	brake := speedAfter(motor.Brake)
	assert.Greater(t, coast, 0.0)
	assert.Less(t, brake, coast)
}

func TestPortTorqueSetsCurrent(t *testing.T) {
	p := newPort(t, nil)
	require.NoError(t, p.SetActuation(motor.Torque, 47_000))
	spin(t, p, 1)

	_, speed, current := p.Plant()
	assert.InDelta(t, 0.1, current, 1e-9)
	assert.Greater(t, speed, 0.0)
}

func TestPortBlock(t *testing.T) {
	p := newPort(t, nil)
	p.Block(true)
	require.NoError(t, p.SetActuation(motor.Voltage, 6000))
	spin(t, p, 50)

	angle, speed, current := p.Plant()
	assert.Zero(t, angle)
	assert.Zero(t, speed)
	assert.InDelta(t, 6/p.Motor().R, current, 1e-3)

	p.Block(false)
	spin(t, p, 50)
	angle, _, _ = p.Plant()
	assert.Greater(t, angle, 0.0)
}

func TestPortDisconnect(t *testing.T) {
	p := newPort(t, nil)
	require.NoError(t, p.SetActuation(motor.Voltage, 6000))
	p.Disconnect()

	_, err := p.Angle()
	assert.ErrorIs(t, err, servo.ErrNoDevice)
	_, err = p.AbsoluteAngle()
	assert.ErrorIs(t, err, servo.ErrNoDevice)
	assert.ErrorIs(t, p.SetActuation(motor.Coast, 0), servo.ErrNoDevice)

	act, _ := p.Actuation()
	assert.Equal(t, motor.Coast, act)

	p.Reconnect()
	_, err = p.Angle()
	assert.NoError(t, err)
}

func TestPortInjectFault(t *testing.T) {
	p := newPort(t, nil)
	p.InjectFault(servo.ErrIO)

	_, err := p.Angle()
	assert.ErrorIs(t, err, servo.ErrIO)
	_, err = p.Angle()
	assert.NoError(t, err)
}

func TestPortRejectsUnknownActuation(t *testing.T) {
	p := newPort(t, nil)
	assert.ErrorIs(t, p.SetActuation(motor.Actuation(99), 0), servo.ErrInvalidArgument)
}

func TestNewPortErrors(t *testing.T) {
	_, err := NewPort(DefaultPortConfig(motor.TypeNone), nil)
	assert.ErrorIs(t, err, motor.ErrNotSupported)

	cfg := DefaultPortConfig(motor.TypeTechnicL)
	cfg.Integrator = "leapfrog"
	_, err = NewPort(cfg, nil)
	assert.ErrorIs(t, err, integrators.ErrUnknown)
}

func TestPortIntegratorsAgree(t *testing.T) {
	final := func(name string) float64 {
		p := newPort(t, func(c *PortConfig) {
			c.Integrator = name
			c.Substeps = 0
		})
		require.NoError(t, p.SetActuation(motor.Voltage, 6000))
		spin(t, p, 100)
		_, speed, _ := p.Plant()
		return speed
	}

	rk4 := final("rk4")
	assert.InEpsilon(t, rk4, final("rk45"), 1e-3)
	assert.InEpsilon(t, rk4, final("euler"), 2e-2)
}

func TestPortInertiaScale(t *testing.T) {
	light := newPort(t, nil)
	heavy := newPort(t, func(c *PortConfig) { c.InertiaScale = 4 })
	assert.InDelta(t, 4*light.Motor().J, heavy.Motor().J, 1e-12)
}
