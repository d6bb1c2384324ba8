package metrics

import (
	"math"

	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/motor"
)

// ControlEffort is the mean drive voltage magnitude in volts.
type ControlEffort struct {
	volts   float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (m *ControlEffort) Name() string { return "control_effort" }

func (m *ControlEffort) Observe(row datalog.Row) {
	m.volts += math.Abs(float64(row.Voltage)) / 1000
	m.samples++
}

func (m *ControlEffort) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.volts / float64(m.samples)
}

func (m *ControlEffort) Reset() { *m = ControlEffort{} }

// Stability is the fraction of controlled samples whose estimated angle
// stays within a band, in mdeg, around the reference. A run without
// control scores 1.
type Stability struct {
	band    int64
	inside  int
	samples int
}

func NewStability(band int64) *Stability { return &Stability{band: band} }

func (m *Stability) Name() string { return "stability" }

func (m *Stability) Observe(row datalog.Row) {
	if !controlled(row) {
		return
	}
	m.samples++
	if fixmath.Abs(row.RefAngle-row.EstAngle) <= m.band {
		m.inside++
	}
}

func (m *Stability) Value() float64 {
	if m.samples == 0 {
		return 1
	}
	return float64(m.inside) / float64(m.samples)
}

func (m *Stability) Reset() { m.inside, m.samples = 0, 0 }

// Energy integrates the electrical input power V·I, in joules, from the
// estimated current. Power flowing back from the motor is not credited.
type Energy struct {
	joules  float64
	last    int32
	started bool
}

func NewEnergy() *Energy { return &Energy{} }

func (m *Energy) Name() string { return "energy" }

func (m *Energy) Observe(row datalog.Row) {
	if m.started {
		dt := float64(row.Time-m.last) / motor.TicksPerSecond
		if p := float64(row.Voltage) / 1000 * float64(row.EstCurrent) / 1000; p > 0 {
			m.joules += p * dt
		}
	}
	m.last, m.started = row.Time, true
}

func (m *Energy) Value() float64 { return m.joules }

func (m *Energy) Reset() { *m = Energy{} }
