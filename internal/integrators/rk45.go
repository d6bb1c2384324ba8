package integrators

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is the Dormand-Prince embedded pair. Used through Advance it picks
// its own substeps, which suits the stiff current dynamics of a motor
// during fast transients.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	minStep  float64

	k       [7]dynamo.State
	scratch dynamo.State
	next    float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		minStep:  1e-9,
	}
}

func (r *RK45) ensureScratch(n int) {
	if len(r.scratch) != n {
		for i := range r.k {
			r.k[i] = make(dynamo.State, n)
		}
		r.scratch = make(dynamo.State, n)
	}
}

// Step takes one fifth-order step of size dt without error control.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	xNew, _ := r.attempt(dyn, x, u, t, dt)
	return xNew
}

// StepAdaptive takes one step of size dt and proposes the next step size
// for the tolerance.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, error) {
	xNew, errMax := r.attempt(dyn, x, u, t, dt)
	dtNew := dt * r.scale(errMax/tol)
	if dtNew < r.minStep {
		return xNew, dtNew, errors.Wrapf(dynamo.ErrStepTooSmall, "dt %g at t=%g", dtNew, t)
	}
	return xNew, dtNew, nil
}

// Advance integrates over span, rejecting and retrying steps whose error
// exceeds tol. The last accepted step size seeds the next call.
func (r *RK45) Advance(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, span, tol float64) (dynamo.State, error) {
	h := r.next
	if h <= 0 || h > span {
		h = span
	}
	elapsed := 0.0
	for span-elapsed > span*1e-12 {
		h = min(h, span-elapsed)
		xNew, errMax := r.attempt(dyn, x, u, t+elapsed, h)
		ratio := errMax / tol
		if ratio <= 1 {
			x = xNew
			elapsed += h
			r.next = h
		}
		h *= r.scale(ratio)
		if h < r.minStep {
			return x, errors.Wrapf(dynamo.ErrStepTooSmall, "dt %g at t=%g", h, t+elapsed)
		}
	}
	return x, nil
}

func (r *RK45) scale(ratio float64) float64 {
	switch {
	case ratio > 1:
		return math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25))
	case ratio > 0:
		return math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2))
	default:
		return r.maxScale
	}
}

// attempt returns the fifth-order solution and the relative error estimate.
func (r *RK45) attempt(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (dynamo.State, float64) {
	n := len(x)
	r.ensureScratch(n)
	k := &r.k

	eval := func(dst dynamo.State, tt float64, coef ...float64) {
		for i := 0; i < n; i++ {
			sum := 0.0
			for j, c := range coef {
				sum += c * k[j][i]
			}
			r.scratch[i] = x[i] + dt*sum
		}
		copy(dst, dyn.Derive(r.scratch, u, tt))
	}

	copy(k[0], dyn.Derive(x, u, t))
	eval(k[1], t+a2*dt, b21)
	eval(k[2], t+a3*dt, b31, b32)
	eval(k[3], t+a4*dt, b41, b42, b43)
	eval(k[4], t+a5*dt, b51, b52, b53, b54)
	eval(k[5], t+dt, b61, b62, b63, b64, b65)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k[0][i]+c3*k[2][i]+c4*k[3][i]+c5*k[4][i]+c6*k[5][i])
	}
	copy(k[6], dyn.Derive(xNew, u, t+dt))

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}
	return xNew, errMax
}
