package servo

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/servoloop/internal/motor"
)

// NumPorts is the number of motor ports on a hub.
const NumPorts = 6

// Port identifies a motor port, A through F.
type Port int

func (p Port) String() string {
	if p < 0 || p >= NumPorts {
		return "?"
	}
	return string(rune('A' + p))
}

// ParsePort converts a port letter to a Port.
func ParsePort(name string) (Port, error) {
	if len(name) == 1 {
		c := name[0] | 0x20
		if c >= 'a' && c < 'a'+NumPorts {
			return Port(c - 'a'), nil
		}
	}
	return 0, errors.Wrapf(ErrNoDevice, "port %q", name)
}

// Registry holds the servo of every port and runs their periodic update.
type Registry struct {
	mu      sync.Mutex
	servos  [NumPorts]*Servo
	running bool
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{running: true, logger: logger}
}

// Attach creates the servo for a newly detected motor. The servo stays
// inactive until its Setup succeeds.
func (r *Registry) Attach(port Port, typ motor.Type, driver Driver) (*Servo, error) {
	if port < 0 || port >= NumPorts {
		return nil, errors.Wrapf(ErrNoDevice, "port %d", port)
	}
	if driver == nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "port %s: nil driver", port)
	}
	s := New(port.String(), typ, driver, r.logger.Named("servo").With(zap.Stringer("port", port)))

	r.mu.Lock()
	defer r.mu.Unlock()
	if old := r.servos[port]; old != nil {
		old.deactivate()
	}
	r.servos[port] = s
	return s, nil
}

// Detach deactivates and forgets the servo on port, as when the motor is
// unplugged.
func (r *Registry) Detach(port Port) {
	if port < 0 || port >= NumPorts {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.servos[port]; s != nil {
		s.deactivate()
		r.servos[port] = nil
	}
}

// Servo returns the servo on port.
func (r *Registry) Servo(port Port) (*Servo, error) {
	if port < 0 || port >= NumPorts {
		return nil, errors.Wrapf(ErrNoDevice, "port %d", port)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.servos[port]
	if s == nil {
		return nil, errors.Wrapf(ErrNoDevice, "port %s", port)
	}
	return s, nil
}

// Each calls fn for every attached servo in port order.
func (r *Registry) Each(fn func(Port, *Servo)) {
	r.mu.Lock()
	servos := r.servos
	r.mu.Unlock()
	for i, s := range servos {
		if s != nil {
			fn(Port(i), s)
		}
	}
}

// UpdateAll runs one tick on every active servo. Failing servos are
// deactivated and their errors combined; the others still run.
func (r *Registry) UpdateAll(now int32) error {
	r.mu.Lock()
	servos := r.servos
	running := r.running
	r.mu.Unlock()
	if !running {
		return nil
	}

	var err error
	for i, s := range servos {
		if s == nil {
			continue
		}
		if uerr := s.Update(now); uerr != nil {
			r.logger.Warn("update failed", zap.Stringer("port", Port(i)), zap.Error(uerr))
			err = multierr.Append(err, uerr)
		}
	}
	return err
}

// SetRunning suspends or resumes the update loop. Suspending coasts every
// servo. Resuming restarts each observer from the measured angle and
// leaves the servos Idle, discarding commands issued while suspended.
func (r *Registry) SetRunning(running bool, now int32) error {
	r.mu.Lock()
	servos := r.servos
	was := r.running
	r.running = running
	r.mu.Unlock()
	if was == running {
		return nil
	}

	var err error
	for _, s := range servos {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.resync(now))
	}
	return err
}

// Running reports whether the update loop is enabled.
func (r *Registry) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
