package sim

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/servoloop/internal/dynamo"
	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/integrators"
	"github.com/san-kum/servoloop/internal/models"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
)

// PortConfig describes the simulated motor behind a port.
type PortConfig struct {
	Type       motor.Type
	Integrator string
	// Substeps per tick for fixed-step integrators.
	Substeps int
	// Tolerance for adaptive integrators.
	Tolerance float64
	// Quantize rounds the encoder down to whole degrees, as the real
	// sensors report.
	Quantize bool
	// InitialAngle of the shaft in degrees.
	InitialAngle float64
	// InertiaScale multiplies the rotor inertia, for attached mechanisms.
	InertiaScale float64
}

func DefaultPortConfig(t motor.Type) PortConfig {
	return PortConfig{
		Type:         t,
		Integrator:   "rk4",
		Substeps:     20,
		Tolerance:    1e-7,
		Quantize:     true,
		InertiaScale: 1,
	}
}

// Port is a simulated motor and encoder. It implements [servo.Driver] and
// [servo.AbsoluteAngleSensor].
type Port struct {
	mu sync.Mutex

	cfg    PortConfig
	motor  *models.DCMotor
	integ  dynamo.Integrator
	logger *zap.Logger

	x dynamo.State
	u dynamo.Control
	t float64

	act          motor.Actuation
	value        int32
	disconnected bool
	fault        error
}

// NewPort builds the plant for cfg.Type at rest.
func NewPort(cfg PortConfig, logger *zap.Logger) (*Port, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	params, err := models.ParamsFor(cfg.Type)
	if err != nil {
		return nil, err
	}
	if cfg.InertiaScale > 0 {
		params.J *= cfg.InertiaScale
	}
	if cfg.Integrator == "" {
		cfg.Integrator = "rk4"
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	if cfg.Substeps <= 0 {
		cfg.Substeps = 20
		if cfg.Integrator == "euler" {
			cfg.Substeps = 100
		}
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-7
	}

	p := &Port{
		cfg:    cfg,
		motor:  models.NewDCMotor(params),
		integ:  integ,
		logger: logger,
		x:      dynamo.State{cfg.InitialAngle * math.Pi / 180, 0, 0},
		u:      dynamo.Control{0},
		act:    motor.Coast,
	}
	if err := dynamo.Check(p.motor, p.x, p.u); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Port) Type() motor.Type { return p.cfg.Type }

// Motor exposes the plant for parameter changes and loads. Do not modify
// it while the port is being stepped.
func (p *Port) Motor() *models.DCMotor { return p.motor }

// Angle returns the encoder reading at the motor shaft.
func (p *Port) Angle() (fixmath.Angle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return fixmath.Angle{}, err
	}
	return fixmath.NewAngle(p.encoder(p.x[0])), nil
}

// AbsoluteAngle returns the shaft position within one rotation, in
// [-180, 180) degrees.
func (p *Port) AbsoluteAngle() (fixmath.Angle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return fixmath.Angle{}, err
	}
	mdeg := p.encoder(p.x[0])
	wrapped := ((mdeg+180_000)%360_000+360_000)%360_000 - 180_000
	return fixmath.NewAngle(wrapped), nil
}

// SetActuation drives the plant terminals. Voltage is in mV and torque in
// µNm, both at the motor shaft.
func (p *Port) SetActuation(act motor.Actuation, value int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}

	switch act {
	case motor.Coast:
		p.motor.Drive = models.DriveCoast
		p.u[0] = 0
	case motor.Brake:
		p.motor.Drive = models.DriveBrake
		p.u[0] = 0
	case motor.Voltage:
		v := float64(value) / 1000
		p.motor.Drive = models.DriveVoltage
		p.u[0] = math.Max(-p.motor.MaxVoltage, math.Min(p.motor.MaxVoltage, v))
	case motor.Torque:
		p.motor.Drive = models.DriveCurrent
		p.u[0] = float64(value) / 1e6 / p.motor.Km
	default:
		return errors.Wrapf(servo.ErrInvalidArgument, "actuation %s", act)
	}
	p.act, p.value = act, value
	return nil
}

// Actuation returns what the servo last wrote.
func (p *Port) Actuation() (motor.Actuation, int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.act, p.value
}

// Step advances the plant by span seconds ending at tick.
func (p *Port) Step(tick int32, span float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if adv, ok := p.integ.(dynamo.Advancer); ok {
		x, err := adv.Advance(p.motor, p.x, p.u, p.t, span, p.cfg.Tolerance)
		if err != nil {
			return &dynamo.SimulationError{Tick: tick, State: p.x.Clone(), Wrapped: err}
		}
		p.motor.Settle(x, p.u)
		p.x = x
	} else {
		h := span / float64(p.cfg.Substeps)
		for i := 0; i < p.cfg.Substeps; i++ {
			p.x = p.integ.Step(p.motor, p.x, p.u, p.t+float64(i)*h, h)
			p.motor.Settle(p.x, p.u)
		}
	}
	p.t += span

	if !p.x.Finite() {
		return &dynamo.SimulationError{Tick: tick, State: p.x.Clone(), Wrapped: dynamo.ErrInvalidState}
	}
	return nil
}

// Plant returns the shaft angle (deg), speed (deg/s) and current (A).
func (p *Port) Plant() (angle, speed, current float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x[0] * 180 / math.Pi, p.x[1] * 180 / math.Pi, p.x[2]
}

// Block holds the shaft still, or releases it.
func (p *Port) Block(blocked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.motor.Blocked != blocked {
		p.logger.Debug("block", zap.Bool("blocked", blocked))
	}
	p.motor.Blocked = blocked
	if blocked {
		p.x[1] = 0
	}
}

// AddLoad attaches an external torque to the shaft.
func (p *Port) AddLoad(l models.Load) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.motor.Loads = append(p.motor.Loads, l)
}

// Disconnect makes every driver call fail with servo.ErrNoDevice until
// Reconnect. The plant coasts.
func (p *Port) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Debug("disconnect")
	p.disconnected = true
	p.motor.Drive = models.DriveCoast
	p.u[0] = 0
	p.act, p.value = motor.Coast, 0
}

func (p *Port) Reconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = false
}

// InjectFault makes the next driver call fail with err.
func (p *Port) InjectFault(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fault = err
}

func (p *Port) check() error {
	if p.disconnected {
		return errors.Wrap(servo.ErrNoDevice, "sim: disconnected")
	}
	if err := p.fault; err != nil {
		p.fault = nil
		return err
	}
	return nil
}

func (p *Port) encoder(rad float64) int64 {
	deg := rad * 180 / math.Pi
	if p.cfg.Quantize {
		return int64(math.Floor(deg)) * 1000
	}
	return int64(math.Round(deg * 1000))
}
