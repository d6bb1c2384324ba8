package metrics

import (
	"math"

	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
)

func controlled(row datalog.Row) bool {
	s := servo.State(row.State)
	return s == servo.StateRunning || s == servo.StateStalled || s == servo.StateHolding
}

// TrackingRMS is the root mean square of reference minus estimated angle
// in degrees, over the samples under control.
type TrackingRMS struct {
	sumSq   float64
	samples int
}

func NewTrackingRMS() *TrackingRMS { return &TrackingRMS{} }

func (m *TrackingRMS) Name() string { return "tracking_rms" }

func (m *TrackingRMS) Observe(row datalog.Row) {
	if !controlled(row) {
		return
	}
	e := float64(row.RefAngle-row.EstAngle) / 1000
	m.sumSq += e * e
	m.samples++
}

func (m *TrackingRMS) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *TrackingRMS) Reset() { *m = TrackingRMS{} }

// PeakSpeed is the largest estimated speed magnitude in deg/s.
type PeakSpeed struct {
	peak float64
}

func NewPeakSpeed() *PeakSpeed { return &PeakSpeed{} }

func (m *PeakSpeed) Name() string { return "peak_speed" }

func (m *PeakSpeed) Observe(row datalog.Row) {
	m.peak = math.Max(m.peak, math.Abs(float64(row.EstSpeed))/1000)
}

func (m *PeakSpeed) Value() float64 { return m.peak }

func (m *PeakSpeed) Reset() { m.peak = 0 }

// StallTime is the total time in seconds spent with the stall flag set.
type StallTime struct {
	ticks   int64
	last    int32
	started bool
}

func NewStallTime() *StallTime { return &StallTime{} }

func (m *StallTime) Name() string { return "stall_time" }

func (m *StallTime) Observe(row datalog.Row) {
	if m.started && row.Stalled {
		m.ticks += int64(row.Time - m.last)
	}
	m.last = row.Time
	m.started = true
}

func (m *StallTime) Value() float64 { return float64(m.ticks) / motor.TicksPerSecond }

func (m *StallTime) Reset() { *m = StallTime{} }

// FinalError is the distance in degrees between the last reference and
// the last measured angle. It is zero when the run ends without control.
type FinalError struct {
	err float64
}

func NewFinalError() *FinalError { return &FinalError{} }

func (m *FinalError) Name() string { return "final_error" }

func (m *FinalError) Observe(row datalog.Row) {
	if !controlled(row) {
		m.err = 0
		return
	}
	m.err = math.Abs(float64(row.RefAngle-row.Measured)) / 1000
}

func (m *FinalError) Value() float64 { return m.err }

func (m *FinalError) Reset() { m.err = 0 }
