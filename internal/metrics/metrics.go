// Package metrics scores servo runs from their logged rows.
package metrics

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/sim"
)

// ErrUnknown is returned by New for an unrecognized metric name.
var ErrUnknown = errors.New("metrics: unknown metric")

// DefaultStabilityThreshold is the stability band, in mdeg.
const DefaultStabilityThreshold = 10_000

var constructors = map[string]func() sim.Metric{
	"tracking_rms":   func() sim.Metric { return NewTrackingRMS() },
	"control_effort": func() sim.Metric { return NewControlEffort() },
	"peak_speed":     func() sim.Metric { return NewPeakSpeed() },
	"stall_time":     func() sim.Metric { return NewStallTime() },
	"final_error":    func() sim.Metric { return NewFinalError() },
	"stability":      func() sim.Metric { return NewStability(DefaultStabilityThreshold) },
	"energy":         func() sim.Metric { return NewEnergy() },
}

// New returns a fresh metric by name.
func New(name string) (sim.Metric, error) {
	fn, ok := constructors[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "%q", name)
	}
	return fn(), nil
}

// Names lists the available metrics.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns one of every metric.
func Default() []sim.Metric {
	names := Names()
	out := make([]sim.Metric, 0, len(names))
	for _, name := range names {
		out = append(out, constructors[name]())
	}
	return out
}
