package servo_test

import (
	"sync"

	"github.com/san-kum/servoloop/internal/fixmath"
	"github.com/san-kum/servoloop/internal/motor"
)

// fakeDriver is a motor that never moves.
type fakeDriver struct {
	mu sync.Mutex

	angle    int64
	act      motor.Actuation
	value    int32
	reads    int
	angleErr error
	actErr   error
}

func (d *fakeDriver) Angle() (fixmath.Angle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.angleErr != nil {
		return fixmath.Angle{}, d.angleErr
	}
	return fixmath.NewAngle(d.angle), nil
}

func (d *fakeDriver) SetActuation(act motor.Actuation, value int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.actErr != nil {
		return d.actErr
	}
	d.act, d.value = act, value
	return nil
}

func (d *fakeDriver) last() (motor.Actuation, int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.act, d.value
}

func (d *fakeDriver) readCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

func (d *fakeDriver) fail(angleErr, actErr error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.angleErr, d.actErr = angleErr, actErr
}

type fakeParent struct {
	calls int
	err   error
}

func (p *fakeParent) StopFromChild() error {
	p.calls++
	return p.err
}
