// Package datalog records per-tick servo telemetry in a fixed-capacity
// ring buffer.
package datalog

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrInvalidCapacity is returned by Start for a non-positive capacity.
var ErrInvalidCapacity = errors.New("datalog: capacity must be positive")

// Row is one control tick. Angles are millidegrees at the motor shaft,
// speeds mdeg/s, current mA, torque µNm and voltage mV.
type Row struct {
	Time       int32 `json:"time"`
	Measured   int64 `json:"measured"`
	RefAngle   int64 `json:"ref_angle"`
	RefSpeed   int32 `json:"ref_speed"`
	EstAngle   int64 `json:"est_angle"`
	EstSpeed   int32 `json:"est_speed"`
	EstCurrent int32 `json:"est_current"`
	Torque     int32 `json:"torque"`
	Voltage    int32 `json:"voltage"`
	State      uint8 `json:"state"`
	Stalled    bool  `json:"stalled"`
}

// Header names the Row columns in order, for tabular export.
var Header = []string{
	"time", "measured", "ref_angle", "ref_speed", "est_angle", "est_speed",
	"est_current", "torque", "voltage", "state", "stalled",
}

// Logger keeps the most recent rows. The zero value is stopped and
// discards rows.
type Logger struct {
	mu     sync.Mutex
	buf    []Row
	next   int
	count  int
	active bool
	// Dropped counts rows overwritten after the buffer filled.
	dropped int
}

// Start allocates room for capacity rows and enables logging, discarding
// anything logged before.
func (l *Logger) Start(capacity int) error {
	if capacity <= 0 {
		return errors.Wrapf(ErrInvalidCapacity, "got %d", capacity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cap(l.buf) >= capacity {
		l.buf = l.buf[:capacity]
	} else {
		l.buf = make([]Row, capacity)
	}
	l.next, l.count, l.dropped = 0, 0, 0
	l.active = true
	return nil
}

// Stop disables logging. Recorded rows stay readable.
func (l *Logger) Stop() {
	l.mu.Lock()
	l.active = false
	l.mu.Unlock()
}

func (l *Logger) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Log appends a row, overwriting the oldest one when full.
func (l *Logger) Log(r Row) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return
	}
	l.buf[l.next] = r
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	} else {
		l.dropped++
	}
}

// Len is the number of rows held.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Dropped is the number of rows lost to overwriting since Start.
func (l *Logger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Rows returns the held rows, oldest first.
func (l *Logger) Rows() []Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Row, l.count)
	start := (l.next - l.count + len(l.buf)) % max(len(l.buf), 1)
	for i := range out {
		out[i] = l.buf[(start+i)%len(l.buf)]
	}
	return out
}
