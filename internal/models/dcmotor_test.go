package models

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/servoloop/internal/dynamo"
	"github.com/san-kum/servoloop/internal/motor"
)

func technicM(t *testing.T) *DCMotor {
	t.Helper()
	p, err := ParamsFor(motor.TypeTechnicMAngular)
	if err != nil {
		t.Fatal(err)
	}
	return NewDCMotor(p)
}

func TestParamsForAllTypes(t *testing.T) {
	for _, typ := range motor.Types() {
		p, err := ParamsFor(typ)
		if err != nil {
			t.Errorf("%s: %v", typ, err)
			continue
		}
		if p.Km <= 0 || p.R <= 0 || p.L <= 0 || p.J <= 0 || p.MaxVoltage <= 0 {
			t.Errorf("%s: non-positive constant in %+v", typ, p)
		}
		maxV, _ := motor.MaxVoltage(typ)
		if int32(p.MaxVoltage*1000) != maxV {
			t.Errorf("%s: plant rated at %v V, calibration at %d mV", typ, p.MaxVoltage, maxV)
		}
	}
	if _, err := ParamsFor(motor.TypeNone); !errors.Is(err, motor.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}

func TestDCMotorDimensions(t *testing.T) {
	m := technicM(t)
	if m.StateDim() != 3 {
		t.Errorf("expected state dim 3, got %d", m.StateDim())
	}
	if m.ControlDim() != 1 {
		t.Errorf("expected control dim 1, got %d", m.ControlDim())
	}
}

func TestDCMotorAtRest(t *testing.T) {
	m := technicM(t)
	for _, drive := range []Drive{DriveVoltage, DriveCoast, DriveBrake, DriveCurrent} {
		m.Drive = drive
		dx := m.Derive(dynamo.State{1, 0, 0}, dynamo.Control{0}, 0)
		for i, v := range dx {
			if math.Abs(v) > 1e-12 {
				t.Errorf("drive %d: dx[%d] = %v, want 0", drive, i, v)
			}
		}
	}
}

func TestDCMotorVoltageDrivesCurrent(t *testing.T) {
	m := technicM(t)
	m.Drive = DriveVoltage

	dx := m.Derive(dynamo.State{0, 0, 0}, dynamo.Control{9}, 0)
	if want := 9 / m.L; math.Abs(dx[2]-want) > 1e-9 {
		t.Errorf("di/dt = %v, want %v", dx[2], want)
	}

	// At steady current the torque accelerates the rotor.
	dx = m.Derive(dynamo.State{0, 0, 0.5}, dynamo.Control{9}, 0)
	if want := m.Km * 0.5 / m.J; math.Abs(dx[1]-want) > 1e-9 {
		t.Errorf("dω/dt = %v, want %v", dx[1], want)
	}
}

func TestDCMotorFrictionOpposesMotion(t *testing.T) {
	m := technicM(t)
	m.Drive = DriveCoast
	fwd := m.Derive(dynamo.State{0, 10, 0}, nil, 0)
	rev := m.Derive(dynamo.State{0, -10, 0}, nil, 0)
	if fwd[1] >= 0 || rev[1] <= 0 {
		t.Errorf("friction should decelerate: fwd=%v rev=%v", fwd[1], rev[1])
	}
	if math.Abs(fwd[1]+rev[1]) > 1e-9 {
		t.Errorf("friction should be symmetric: fwd=%v rev=%v", fwd[1], rev[1])
	}
}

func TestDCMotorBlocked(t *testing.T) {
	m := technicM(t)
	m.Drive = DriveVoltage
	m.Blocked = true
	dx := m.Derive(dynamo.State{0, 0, 0}, dynamo.Control{9}, 0)
	if dx[0] != 0 || dx[1] != 0 {
		t.Errorf("blocked shaft moved: %v", dx)
	}
	if dx[2] <= 0 {
		t.Error("current should still build up against a stop")
	}

	x := dynamo.State{0, 3, 0.1}
	m.Settle(x, dynamo.Control{9})
	if x[1] != 0 {
		t.Errorf("settle left speed %v on a blocked shaft", x[1])
	}
}

func TestDCMotorSettle(t *testing.T) {
	m := technicM(t)
	x := dynamo.State{0, 1, 0.3}

	m.Drive = DriveCoast
	m.Settle(x, nil)
	if x[2] != 0 {
		t.Errorf("coast current = %v, want 0", x[2])
	}

	m.Drive = DriveCurrent
	m.Settle(x, dynamo.Control{0.2})
	if x[2] != 0.2 {
		t.Errorf("forced current = %v, want 0.2", x[2])
	}
}

func TestDCMotorParams(t *testing.T) {
	m := technicM(t)
	if err := m.SetParam("j", 1e-3); err != nil {
		t.Fatal(err)
	}
	if m.GetParams()["j"] != 1e-3 {
		t.Error("inertia not updated")
	}
	if err := m.SetParam("r", 0); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected bounds error, got %v", err)
	}
	if err := m.SetParam("friction", -1); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected bounds error, got %v", err)
	}
	if err := m.SetParam("mass", 1); !errors.Is(err, dynamo.ErrUnknownParameter) {
		t.Errorf("expected unknown parameter, got %v", err)
	}
}

func TestArmLoad(t *testing.T) {
	arm := NewArm(0.1, 0.2, 1)
	if tq := arm.Torque(0, 0, 0); math.Abs(tq) > 1e-12 {
		t.Errorf("hanging arm torque = %v, want 0", tq)
	}
	if tq := arm.Torque(math.Pi/2, 0, 0); math.Abs(tq-0.1*9.81*0.2) > 1e-9 {
		t.Errorf("horizontal arm torque = %v", tq)
	}

	geared := NewArm(0.1, 0.2, 5)
	if tq := geared.Torque(5*math.Pi/2, 0, 0); math.Abs(tq-0.1*9.81*0.2/5) > 1e-9 {
		t.Errorf("geared torque = %v", tq)
	}
	if j := geared.Inertia(); math.Abs(j-0.1*0.04/25) > 1e-12 {
		t.Errorf("reflected inertia = %v", j)
	}
}

func TestConstantLoad(t *testing.T) {
	l := ConstantLoad{Magnitude: 0.05}
	if tq := l.Torque(0, 100, 0); math.Abs(tq-0.05) > 1e-6 {
		t.Errorf("load at speed = %v, want 0.05", tq)
	}
	if tq := l.Torque(0, 0, 0); tq != 0 {
		t.Errorf("load at rest = %v, want 0", tq)
	}
}

// The observer model of each motor type is the plant below discretized at
// the control period, so the two must describe the same motor.
func TestPlantMatchesObserverModel(t *testing.T) {
	const tol = 0.005
	near := func(got, want float64) bool {
		return math.Abs(got-want) <= tol*math.Abs(want)
	}
	mdegPerRad := 180e3 / math.Pi

	for _, typ := range motor.Types() {
		p, err := ParamsFor(typ)
		if err != nil {
			t.Fatal(err)
		}
		m, err := motor.ModelFor(typ)
		if err != nil {
			t.Fatal(err)
		}
		plant := NewDCMotor(p)
		maxV := int32(p.MaxVoltage * 1000)

		if got, want := float64(m.VoltageToTorque(maxV)), plant.StallTorque()*1e6; !near(got, want) {
			t.Errorf("%s: stall torque %v µNm, plant %v µNm", typ, got, want)
		}
		if got, want := float64(m.TorqueFriction), p.Friction*1e6; !near(got, want) {
			t.Errorf("%s: friction %v µNm, plant %v µNm", typ, got, want)
		}
		// Torque to hold 1000 deg/s against the back-EMF.
		if got, want := float64(m.SpeedTorque(1_000_000)), p.Km*p.Km/p.R*1e6/mdegPerRad*1e6; !near(got, want) {
			t.Errorf("%s: speed torque %v µNm, plant %v µNm", typ, got, want)
		}
		if got, want := float64(m.AccelerationTorque(1_000_000)), p.J*1e6/mdegPerRad*1e6; !near(got, want) {
			t.Errorf("%s: acceleration torque %v µNm, plant %v µNm", typ, got, want)
		}

		// Stepping the model at full voltage settles at the no-load speed
		// with no current.
		var speed, current float64
		v := float64(maxV)
		for range 3000 {
			speed, current = (speed*float64(m.DSpeedDSpeed)+
				current*float64(m.DSpeedDCurrent)*100+
				v*float64(m.DSpeedDVoltage)*100)/motor.PrescaleSpeed,
				(speed*float64(m.DCurrentDSpeed)+
					current*float64(m.DCurrentDCurrent)*100+
					v*float64(m.DCurrentDVoltage)*100)/motor.PrescaleSpeed
		}
		if want := plant.NoLoadSpeed() * mdegPerRad; !near(speed, want) {
			t.Errorf("%s: model settles at %v mdeg/s, plant no-load speed %v", typ, speed, want)
		}
		if math.Abs(current) > 1 {
			t.Errorf("%s: model settles at %v mA", typ, current)
		}
	}
}
