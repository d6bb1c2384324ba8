package sim

import (
	"time"

	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/servo"
)

// Metric accumulates a figure of merit from the rows of one servo.
type Metric interface {
	Name() string
	Observe(row datalog.Row)
	Value() float64
	Reset()
}

// Observer is notified after every tick.
type Observer interface {
	OnTick(now int32, port servo.Port, row datalog.Row)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(now int32, port servo.Port, row datalog.Row)

func (f ObserverFunc) OnTick(now int32, port servo.Port, row datalog.Row) { f(now, port, row) }

// Command is issued to the servo on Port once simulated time reaches At.
type Command struct {
	At    time.Duration
	Port  servo.Port
	Name  string
	Apply func(*servo.Servo) error
}

// Event is applied to the simulated port itself, such as blocking the
// shaft, once simulated time reaches At.
type Event struct {
	At    time.Duration
	Port  servo.Port
	Name  string
	Apply func(*Port)
}

type Config struct {
	Duration time.Duration
	Commands []Command
	Events   []Event
	// StopOnError ends the run at the first servo or command error
	// instead of recording it.
	StopOnError bool
}

type Result struct {
	Ticks    int
	Duration time.Duration
	Metrics  map[servo.Port]map[string]float64
	Errors   []error
}

// Metric returns the value of a named metric on port.
func (r *Result) Metric(port servo.Port, name string) (float64, bool) {
	m, ok := r.Metrics[port]
	if !ok {
		return 0, false
	}
	v, ok := m[name]
	return v, ok
}
