package integrators

import (
	"testing"

	"github.com/san-kum/servoloop/internal/dynamo"
	"github.com/san-kum/servoloop/internal/models"
	"github.com/san-kum/servoloop/internal/motor"
)

func benchMotor(b *testing.B) *models.DCMotor {
	p, err := models.ParamsFor(motor.TypeTechnicL)
	if err != nil {
		b.Fatal(err)
	}
	m := models.NewDCMotor(p)
	m.Drive = models.DriveVoltage
	return m
}

// One simulated tick is 5 ms split into substeps.
func benchSteps(b *testing.B, integ dynamo.Integrator, substeps int) {
	m := benchMotor(b)
	u := dynamo.Control{6}
	x := dynamo.State{0, 0, 0}
	h := 0.005 / float64(substeps)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < substeps; j++ {
			x = integ.Step(m, x, u, 0, h)
		}
		m.Settle(x, u)
	}
}

func BenchmarkEuler(b *testing.B) { benchSteps(b, NewEuler(), 100) }
func BenchmarkRK4(b *testing.B)   { benchSteps(b, NewRK4(), 20) }

func BenchmarkRK45Advance(b *testing.B) {
	m := benchMotor(b)
	u := dynamo.Control{6}
	x := dynamo.State{0, 0, 0}
	integ := NewRK45()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var err error
		x, err = integ.Advance(m, x, u, 0, 0.005, 1e-7)
		if err != nil {
			b.Fatal(err)
		}
		m.Settle(x, u)
	}
}
