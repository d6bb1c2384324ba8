// Package sim runs servos against simulated motors in virtual or real time.
package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
)

// TickDuration is the simulated time between servo updates.
const TickDuration = time.Duration(servo.ControlPeriod) * time.Second / motor.TicksPerSecond

type boundMetric struct {
	port   servo.Port
	metric Metric
}

// Simulator steps the plants of its ports and the servo registry in
// lockstep, one control period per tick.
type Simulator struct {
	mu sync.Mutex

	registry  *servo.Registry
	ports     [servo.NumPorts]*Port
	metrics   []boundMetric
	observers []Observer
	logger    *zap.Logger

	now int32
}

func New(registry *servo.Registry, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{registry: registry, logger: logger}
}

func (s *Simulator) Registry() *servo.Registry { return s.registry }

// Attach plugs a simulated motor into port and returns its servo, not yet
// set up.
func (s *Simulator) Attach(port servo.Port, p *Port) (*servo.Servo, error) {
	sv, err := s.registry.Attach(port, p.Type(), p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ports[port] = p
	s.mu.Unlock()
	return sv, nil
}

// Port returns the simulated motor on port, or nil.
func (s *Simulator) Port(port servo.Port) *Port {
	if port < 0 || port >= servo.NumPorts {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ports[port]
}

func (s *Simulator) AddMetric(port servo.Port, m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, boundMetric{port: port, metric: m})
}

func (s *Simulator) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Now returns the simulated time in ticks.
func (s *Simulator) Now() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Step advances every plant by one control period and then updates the
// servos. Plant failures end the step; servo failures are returned after
// all servos have run.
func (s *Simulator) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.advance(); err != nil {
		return err
	}
	return s.update()
}

func (s *Simulator) advance() error {
	now := s.now + servo.ControlPeriod
	for _, p := range s.ports {
		if p == nil {
			continue
		}
		if err := p.Step(now, TickDuration.Seconds()); err != nil {
			return err
		}
	}
	s.now = now
	return nil
}

// update runs the servos and feeds the metrics and observers. Observers
// must not call back into the simulator.
func (s *Simulator) update() error {
	now := s.now
	err := s.registry.UpdateAll(now)

	if len(s.metrics) == 0 && len(s.observers) == 0 {
		return err
	}
	s.registry.Each(func(port servo.Port, sv *servo.Servo) {
		if sv.State() == servo.StateInactive {
			return
		}
		row := sv.Snapshot()
		for _, b := range s.metrics {
			if b.port == port {
				b.metric.Observe(row)
			}
		}
		for _, o := range s.observers {
			o.OnTick(now, port, row)
		}
	})
	return err
}

// Run simulates cfg.Duration of virtual time as fast as possible, issuing
// the scheduled commands and events on the way.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Duration <= 0 {
		return nil, errors.Errorf("sim: duration must be positive, got %v", cfg.Duration)
	}
	for _, c := range cfg.Commands {
		if c.Apply == nil {
			return nil, errors.Errorf("sim: command %q has no action", c.Name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	commands := append([]Command(nil), cfg.Commands...)
	sort.SliceStable(commands, func(i, j int) bool { return commands[i].At < commands[j].At })
	events := append([]Event(nil), cfg.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	for _, b := range s.metrics {
		b.metric.Reset()
	}

	steps := int(cfg.Duration / TickDuration)
	result := &Result{Metrics: make(map[servo.Port]map[string]float64)}
	start := s.now
	s.logger.Debug("run", zap.Duration("duration", cfg.Duration), zap.Int("ticks", steps))

	var runErr error
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		default:
		}
		if runErr != nil {
			break
		}

		elapsed := time.Duration(s.now-start) * time.Second / motor.TicksPerSecond
		for len(events) > 0 && events[0].At <= elapsed {
			if p := s.ports[events[0].Port]; p != nil && events[0].Apply != nil {
				events[0].Apply(p)
			}
			events = events[1:]
		}
		for len(commands) > 0 && commands[0].At <= elapsed {
			c := commands[0]
			commands = commands[1:]
			if err := s.issue(c); err != nil {
				if cfg.StopOnError {
					runErr = err
					break
				}
				result.Errors = append(result.Errors, err)
			}
		}
		if runErr != nil {
			break
		}

		if err := s.advance(); err != nil {
			runErr = err
			break
		}
		if err := s.update(); err != nil {
			if cfg.StopOnError {
				runErr = err
				break
			}
			result.Errors = append(result.Errors, err)
		}
		result.Ticks++
	}

	result.Duration = time.Duration(result.Ticks) * TickDuration
	for _, b := range s.metrics {
		m, ok := result.Metrics[b.port]
		if !ok {
			m = make(map[string]float64)
			result.Metrics[b.port] = m
		}
		m[b.metric.Name()] = b.metric.Value()
	}
	return result, runErr
}

func (s *Simulator) issue(c Command) error {
	sv, err := s.registry.Servo(c.Port)
	if err != nil {
		return errors.Wrapf(err, "command %s", c.Name)
	}
	if err := c.Apply(sv); err != nil {
		return errors.Wrapf(err, "command %s", c.Name)
	}
	return nil
}
