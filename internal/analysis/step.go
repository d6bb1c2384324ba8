package analysis

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
)

var (
	ErrTooShort = errors.New("analysis: not enough rows")
	ErrNoStep   = errors.New("analysis: reference does not move")
)

// DefaultBand is the settling band as a fraction of the step.
const DefaultBand = 0.02

// minBand keeps tiny steps from demanding sub-degree settling, in degrees.
const minBand = 1.0

// StepResponse describes how the measured angle followed a move from its
// initial value to the final reference. Times are seconds from the first
// row, angles degrees.
type StepResponse struct {
	Start, Target float64
	// RiseTime is the time from 10% to 90% of the step.
	RiseTime float64
	// Overshoot past the target in percent of the step.
	Overshoot float64
	// SettlingTime is when the angle last entered the settling band.
	SettlingTime float64
	Settled      bool
	Peak         float64
	// SteadyMean and SteadyStdDev are the error statistics after
	// settling, or over the last fifth of the run if it never settled.
	SteadyMean   float64
	SteadyStdDev float64
}

// StepResponseOf analyzes rows from a single move. band is the settling
// band as a fraction of the step size.
func StepResponseOf(rows []datalog.Row, band float64) (*StepResponse, error) {
	if len(rows) < 3 {
		return nil, errors.Wrapf(ErrTooShort, "%d rows", len(rows))
	}
	if band <= 0 {
		band = DefaultBand
	}

	t0 := rows[0].Time
	start := deg(rows[0].Measured)
	target := deg(rows[len(rows)-1].RefAngle)
	step := target - start
	if math.Abs(step) < minBand {
		return nil, errors.Wrapf(ErrNoStep, "from %.1f to %.1f", start, target)
	}
	dir := math.Copysign(1, step)
	tol := math.Max(band*math.Abs(step), minBand)

	sr := &StepResponse{Start: start, Target: target, Peak: start}
	rise10, rise90 := -1.0, -1.0
	lastOut := -1
	for i, r := range rows {
		angle := deg(r.Measured)
		progress := (angle - start) / step
		t := seconds(r.Time - t0)
		if rise10 < 0 && progress >= 0.1 {
			rise10 = t
		}
		if rise90 < 0 && progress >= 0.9 {
			rise90 = t
		}
		if (angle-sr.Peak)*dir > 0 {
			sr.Peak = angle
		}
		if math.Abs(angle-target) > tol {
			lastOut = i
		}
	}
	if rise10 >= 0 && rise90 >= 0 {
		sr.RiseTime = rise90 - rise10
	}
	if over := (sr.Peak - target) * dir; over > 0 {
		sr.Overshoot = over / math.Abs(step) * 100
	}

	steady := rows[len(rows)*4/5:]
	if lastOut < len(rows)-1 {
		sr.Settled = true
		sr.SettlingTime = seconds(rows[lastOut+1].Time - t0)
		steady = rows[lastOut+1:]
	}
	errs := make([]float64, len(steady))
	for i, r := range steady {
		errs[i] = deg(r.Measured) - target
	}
	sr.SteadyMean, sr.SteadyStdDev = stat.MeanStdDev(errs, nil)
	if len(errs) < 2 {
		sr.SteadyStdDev = 0
	}
	return sr, nil
}

// TrackingPercentile returns the given percentile of |reference - estimate|
// in degrees over the rows under closed-loop control.
func TrackingPercentile(rows []datalog.Row, percent float64) (float64, error) {
	var data stats.Float64Data
	for _, r := range rows {
		switch servo.State(r.State) {
		case servo.StateRunning, servo.StateStalled, servo.StateHolding:
			data = append(data, math.Abs(deg(r.RefAngle-r.EstAngle)))
		}
	}
	if len(data) == 0 {
		return 0, errors.Wrap(ErrTooShort, "no controlled rows")
	}
	p, err := stats.Percentile(data, percent)
	return p, errors.Wrap(err, "analysis")
}

func deg(mdeg int64) float64 {
	return float64(mdeg) / 1000
}

func seconds(ticks int32) float64 {
	return float64(ticks) / motor.TicksPerSecond
}
