package experiment

import (
	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/integrators"
	"github.com/san-kum/servoloop/internal/metrics"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/sim"
)

// Registry lists what a scenario can name: motor types, integrators and
// metrics.
type Registry struct {
	motors  map[string]motor.Type
	metrics map[string]func() sim.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		motors:  make(map[string]motor.Type),
		metrics: make(map[string]func() sim.Metric),
	}
	for _, t := range motor.Types() {
		r.motors[t.String()] = t
	}
	for _, name := range metrics.Names() {
		name := name
		r.metrics[name] = func() sim.Metric {
			m, _ := metrics.New(name)
			return m
		}
	}
	return r
}

func (r *Registry) GetMotor(name string) (motor.Type, error) {
	t, ok := r.motors[name]
	if !ok {
		return motor.TypeNone, errors.Wrapf(motor.ErrNotSupported, "unknown motor %q", name)
	}
	return t, nil
}

// GetMetrics builds fresh metrics by name.
func (r *Registry) GetMetrics(names ...string) ([]sim.Metric, error) {
	out := make([]sim.Metric, 0, len(names))
	for _, name := range names {
		fn, ok := r.metrics[name]
		if !ok {
			_, err := metrics.New(name)
			return nil, err
		}
		out = append(out, fn())
	}
	return out, nil
}

// ListMotors returns the motor names ordered by type identifier.
func (r *Registry) ListMotors() []string {
	types := motor.Types()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	return names
}

func (r *Registry) ListIntegrators() []string {
	return integrators.Names()
}

func (r *Registry) ListMetrics() []string {
	return metrics.Names()
}

func (r *Registry) DefaultMetrics() []sim.Metric {
	return metrics.Default()
}
