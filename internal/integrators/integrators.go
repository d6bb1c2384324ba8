package integrators

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/dynamo"
)

// ErrUnknown is returned by New for an unrecognized integrator name.
var ErrUnknown = errors.New("integrators: unknown integrator")

var constructors = map[string]func() dynamo.Integrator{
	"euler": func() dynamo.Integrator { return NewEuler() },
	"rk4":   func() dynamo.Integrator { return NewRK4() },
	"rk45":  func() dynamo.Integrator { return NewRK45() },
}

// New returns a fresh integrator by name.
func New(name string) (dynamo.Integrator, error) {
	fn, ok := constructors[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "%q", name)
	}
	return fn(), nil
}

// Names lists the available integrators.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
