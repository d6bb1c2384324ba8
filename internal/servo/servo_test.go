package servo_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/servoloop/internal/control"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
	"github.com/san-kum/servoloop/internal/sim"
)

type rig struct {
	sim   *sim.Simulator
	port  *sim.Port
	servo *servo.Servo
}

func newRig(typ motor.Type, direction servo.Direction, gearRatio float64, configure func(*sim.PortConfig)) *rig {
	GinkgoHelper()
	s := sim.New(servo.NewRegistry(nil), nil)
	cfg := sim.DefaultPortConfig(typ)
	if configure != nil {
		configure(&cfg)
	}
	p, err := sim.NewPort(cfg, nil)
	Expect(err).NotTo(HaveOccurred())
	sv, err := s.Attach(servo.Port(0), p)
	Expect(err).NotTo(HaveOccurred())
	Expect(sv.Setup(direction, gearRatio, true)).To(Succeed())
	return &rig{sim: s, port: p, servo: sv}
}

func (r *rig) run(d time.Duration) {
	GinkgoHelper()
	for i := 0; i < int(d/sim.TickDuration); i++ {
		Expect(r.sim.Step()).To(Succeed())
	}
}

func (r *rig) angle() int64 {
	a, _ := r.servo.AngleSpeed()
	return a
}

func (r *rig) speed() int32 {
	_, s := r.servo.AngleSpeed()
	return s
}

func (r *rig) plantAngle() float64 {
	a, _, _ := r.port.Plant()
	return a
}

var _ = Describe("Servo", func() {
	Context("before setup", func() {
		var sv *servo.Servo

		BeforeEach(func() {
			sv = servo.New("A", motor.TypeTechnicL, &fakeDriver{}, nil)
		})

		It("is inactive and rejects commands", func() {
			Expect(sv.State()).To(Equal(servo.StateInactive))
			Expect(sv.RunForever(100)).To(MatchError(servo.ErrNoDevice))
			Expect(sv.Stop(control.PolicyCoast)).To(MatchError(servo.ErrNoDevice))
			Expect(sv.ResetAngle(0, false)).To(MatchError(servo.ErrNoDevice))
		})

		It("validates direction and gear ratio", func() {
			Expect(sv.Setup(servo.Direction(0), 1, false)).To(MatchError(servo.ErrInvalidArgument))
			Expect(sv.Setup(servo.Clockwise, 0, false)).To(MatchError(servo.ErrInvalidArgument))
			Expect(sv.Setup(servo.Clockwise, -2, false)).To(MatchError(servo.ErrInvalidArgument))
			Expect(sv.Setup(servo.Clockwise, 5000, false)).To(MatchError(servo.ErrInvalidArgument))
		})

		It("rejects motors without calibration", func() {
			unknown := servo.New("B", motor.TypeNone, &fakeDriver{}, nil)
			Expect(unknown.Setup(servo.Clockwise, 1, false)).To(MatchError(servo.ErrNotSupported))
			Expect(unknown.State()).To(Equal(servo.StateInactive))
		})

		It("reports the driver failing during setup", func() {
			d := &fakeDriver{}
			d.fail(servo.ErrIO, nil)
			broken := servo.New("C", motor.TypeTechnicL, d, nil)
			Expect(broken.Setup(servo.Clockwise, 1, false)).To(MatchError(servo.ErrIO))
			Expect(broken.State()).To(Equal(servo.StateInactive))
		})
	})

	Context("on a simulated motor", func() {
		var r *rig

		BeforeEach(func() {
			r = newRig(motor.TypeTechnicLAngular, servo.Clockwise, 1, nil)
		})

		It("starts idle and coasting", func() {
			Expect(r.servo.State()).To(Equal(servo.StateIdle))
			act, value := r.servo.Actuation()
			Expect(act).To(Equal(motor.Coast))
			Expect(value).To(BeZero())
		})

		It("runs to a target and holds it", func() {
			Expect(r.servo.RunTarget(500, 180, control.PolicyHold)).To(Succeed())
			Expect(r.servo.State()).To(Equal(servo.StateRunning))

			r.run(2 * time.Second)
			Expect(r.servo.State()).To(Equal(servo.StateHolding))
			Expect(r.angle()).To(BeNumerically("~", 180, 10))
			Expect(r.speed()).To(BeNumerically("~", 0, 50))

			_, ok := r.servo.Reference()
			Expect(ok).To(BeTrue())
		})

		It("keeps holding against a disturbance", func() {
			Expect(r.servo.RunTarget(500, 90, control.PolicyHold)).To(Succeed())
			r.run(1500 * time.Millisecond)
			Expect(r.servo.State()).To(Equal(servo.StateHolding))

			r.port.Block(true)
			r.run(100 * time.Millisecond)
			r.port.Block(false)
			r.run(time.Second)
			Expect(r.servo.State()).To(Equal(servo.StateHolding))
			Expect(r.angle()).To(BeNumerically("~", 90, 10))
		})

		It("runs for a time and then coasts", func() {
			Expect(r.servo.RunTime(300, time.Second, control.PolicyCoast)).To(Succeed())
			r.run(500 * time.Millisecond)
			Expect(r.servo.State()).To(Equal(servo.StateRunning))
			Expect(r.speed()).To(BeNumerically("~", 300, 50))

			r.run(time.Second)
			Expect(r.servo.State()).To(Equal(servo.StateIdle))
			act, value := r.servo.Actuation()
			Expect(act).To(Equal(motor.Coast))
			Expect(value).To(BeZero())
			_, ok := r.servo.Reference()
			Expect(ok).To(BeFalse())
		})

		It("brakes at the end when asked to", func() {
			Expect(r.servo.RunAngle(800, -90, control.PolicyBrake)).To(Succeed())
			r.run(2 * time.Second)
			Expect(r.servo.State()).To(Equal(servo.StateIdle))
			Expect(r.angle()).To(BeNumerically("~", -90, 10))
			act, _ := r.port.Actuation()
			Expect(act).To(Equal(motor.Brake))
		})

		It("treats a negative speed as a reversed relative move", func() {
			Expect(r.servo.RunAngle(-500, 90, control.PolicyHold)).To(Succeed())
			r.run(2 * time.Second)
			Expect(r.angle()).To(BeNumerically("~", -90, 10))
		})

		It("ignores the sign of the speed for absolute targets", func() {
			Expect(r.servo.RunTarget(-500, 90, control.PolicyHold)).To(Succeed())
			r.run(2 * time.Second)
			Expect(r.angle()).To(BeNumerically("~", 90, 10))
		})

		It("tracks a target without completing", func() {
			Expect(r.servo.TrackTarget(45)).To(Succeed())
			r.run(time.Second)
			Expect(r.servo.State()).To(Equal(servo.StateRunning))
			Expect(r.angle()).To(BeNumerically("~", 45, 10))
		})

		It("retargets a track request immediately", func() {
			Expect(r.servo.RunTarget(500, 90, control.PolicyHold)).To(Succeed())
			r.run(300 * time.Millisecond)
			Expect(r.servo.State()).To(Equal(servo.StateRunning))

			Expect(r.servo.TrackTarget(-30)).To(Succeed())
			ref, ok := r.servo.Reference()
			Expect(ok).To(BeTrue())
			Expect(ref.Angle.Mdeg()).To(Equal(int64(-30_000)))
			Expect(ref.Speed).To(BeZero())

			r.run(time.Second)
			Expect(r.servo.State()).To(Equal(servo.StateRunning))
			Expect(r.angle()).To(BeNumerically("~", -30, 10))
		})

		It("stalls when blocked and recovers when released", func() {
			r.port.Block(true)
			Expect(r.servo.RunForever(500)).To(Succeed())
			r.run(1500 * time.Millisecond)
			Expect(r.servo.State()).To(Equal(servo.StateStalled))
			stalled, since := r.servo.IsStalled()
			Expect(stalled).To(BeTrue())
			Expect(since).To(BeNumerically(">", 0))

			r.port.Block(false)
			r.run(time.Second)
			Expect(r.servo.State()).To(Equal(servo.StateRunning))
			Expect(r.speed()).To(BeNumerically(">", 200))
		})

		It("reports the load of a blocked shaft", func() {
			r.port.Block(true)
			Expect(r.servo.RunForever(500)).To(Succeed())
			r.run(time.Second)
			Expect(r.servo.Load()).To(BeNumerically(">", 0))
		})

		It("stops in each passive mode", func() {
			Expect(r.servo.RunForever(300)).To(Succeed())
			r.run(300 * time.Millisecond)

			Expect(r.servo.Stop(control.PolicyBrake)).To(Succeed())
			Expect(r.servo.State()).To(Equal(servo.StateIdle))
			act, _ := r.port.Actuation()
			Expect(act).To(Equal(motor.Brake))

			Expect(r.servo.Stop(control.PolicyCoast)).To(Succeed())
			Expect(r.servo.Stop(control.PolicyCoast)).To(Succeed())
			Expect(r.servo.State()).To(Equal(servo.StateIdle))
			act, _ = r.port.Actuation()
			Expect(act).To(Equal(motor.Coast))
		})

		It("holds where it is on stop with hold", func() {
			Expect(r.servo.RunForever(300)).To(Succeed())
			r.run(500 * time.Millisecond)
			Expect(r.servo.Stop(control.PolicyHold)).To(Succeed())
			Expect(r.servo.State()).To(Equal(servo.StateHolding))
			at := r.angle()

			r.run(time.Second)
			Expect(r.servo.State()).To(Equal(servo.StateHolding))
			Expect(r.angle()).To(BeNumerically("~", at, 20))
			Expect(r.speed()).To(BeNumerically("~", 0, 50))
		})

		It("refuses to stop with continue", func() {
			Expect(r.servo.RunForever(300)).To(Succeed())
			Expect(r.servo.Stop(control.PolicyContinue)).To(MatchError(servo.ErrInvalidArgument))
			Expect(r.servo.State()).To(Equal(servo.StateRunning))
		})

		It("rejects a zero speed for angle moves", func() {
			Expect(r.servo.RunAngle(0, 90, control.PolicyHold)).To(MatchError(servo.ErrInvalidArgument))
			Expect(r.servo.State()).To(Equal(servo.StateIdle))
		})

		It("joins back-to-back commands", func() {
			Expect(r.servo.RunForever(500)).To(Succeed())
			r.run(500 * time.Millisecond)
			before, _ := r.servo.Reference()

			Expect(r.servo.RunTarget(500, 720, control.PolicyHold)).To(Succeed())
			after, ok := r.servo.Reference()
			Expect(ok).To(BeTrue())
			Expect(after.Angle).To(Equal(before.Angle))
			Expect(after.Speed).To(Equal(before.Speed))
		})

		It("resets the angle and holds there", func() {
			Expect(r.servo.RunTarget(500, 90, control.PolicyHold)).To(Succeed())
			r.run(1500 * time.Millisecond)
			plant := r.plantAngle()

			Expect(r.servo.ResetAngle(0, false)).To(Succeed())
			Expect(r.angle()).To(BeNumerically("~", 0, 1))
			Expect(r.servo.State()).To(Equal(servo.StateHolding))

			r.run(500 * time.Millisecond)
			Expect(r.angle()).To(BeNumerically("~", 0, 5))
			Expect(r.plantAngle()).To(BeNumerically("~", plant, 5))
		})

		It("leaves an idle servo idle after a reset", func() {
			Expect(r.servo.ResetAngle(1000, false)).To(Succeed())
			Expect(r.angle()).To(Equal(int64(1000)))
			Expect(r.servo.State()).To(Equal(servo.StateIdle))
		})

		It("logs a row per update once started", func() {
			Expect(r.servo.Log().Start(100)).To(Succeed())
			Expect(r.servo.RunForever(200)).To(Succeed())
			r.run(100 * time.Millisecond)

			rows := r.servo.Log().Rows()
			Expect(rows).To(HaveLen(20))
			Expect(rows[0].Time).To(Equal(int32(servo.ControlPeriod)))
			Expect(rows[19].Time).To(Equal(int32(20 * servo.ControlPeriod)))
			Expect(rows[19].State).To(Equal(uint8(servo.StateRunning)))
			Expect(r.servo.Snapshot()).To(Equal(rows[19]))
		})

		It("deactivates when the motor is unplugged", func() {
			Expect(r.servo.RunForever(300)).To(Succeed())
			r.run(100 * time.Millisecond)
			r.port.Disconnect()

			Expect(r.sim.Step()).To(MatchError(servo.ErrNoDevice))
			Expect(r.servo.State()).To(Equal(servo.StateInactive))
			Expect(r.servo.RunForever(300)).To(MatchError(servo.ErrNoDevice))
			Expect(r.sim.Step()).To(Succeed())
		})
	})

	Context("with an absolute encoder", func() {
		It("starts from the absolute position", func() {
			r := newRig(motor.TypeTechnicLAngular, servo.Clockwise, 1, func(c *sim.PortConfig) {
				c.InitialAngle = 370.4
			})
			Expect(r.angle()).To(Equal(int64(10)))
		})

		It("resets to the absolute position on request", func() {
			r := newRig(motor.TypeTechnicLAngular, servo.Clockwise, 1, func(c *sim.PortConfig) {
				c.InitialAngle = 370.4
			})
			Expect(r.servo.ResetAngle(500, false)).To(Succeed())
			Expect(r.angle()).To(Equal(int64(500)))
			Expect(r.servo.ResetAngle(0, true)).To(Succeed())
			Expect(r.angle()).To(Equal(int64(10)))
		})
	})

	Context("with a gear train", func() {
		It("scales targets to the output shaft", func() {
			r := newRig(motor.TypeTechnicLAngular, servo.Clockwise, 3, nil)
			Expect(r.servo.RunTarget(200, 60, control.PolicyHold)).To(Succeed())
			r.run(2 * time.Second)
			Expect(r.angle()).To(BeNumerically("~", 60, 4))
			Expect(r.plantAngle()).To(BeNumerically("~", 180, 10))
		})

		It("turns the other way when counterclockwise", func() {
			r := newRig(motor.TypeTechnicLAngular, servo.Counterclockwise, 1, nil)
			Expect(r.servo.RunTarget(500, 90, control.PolicyHold)).To(Succeed())
			r.run(2 * time.Second)
			Expect(r.angle()).To(BeNumerically("~", 90, 10))
			Expect(r.plantAngle()).To(BeNumerically("~", -90, 10))
		})
	})

	Context("with a fake driver", func() {
		var (
			d    *fakeDriver
			sv   *servo.Servo
			logs *observer.ObservedLogs
			now  int32
		)

		update := func() error {
			now += servo.ControlPeriod
			return sv.Update(now)
		}

		BeforeEach(func() {
			var core zapcore.Core
			core, logs = observer.New(zapcore.DebugLevel)
			d = &fakeDriver{}
			now = 0
			sv = servo.New("A", motor.TypeTechnicL, d, zap.New(core))
			Expect(sv.Setup(servo.Clockwise, 1, false)).To(Succeed())
		})

		It("has no absolute sensor", func() {
			Expect(sv.ResetAngle(0, true)).To(MatchError(servo.ErrNotSupported))
		})

		It("writes voltage while running and torque on request", func() {
			Expect(sv.RunForever(300)).To(Succeed())
			Expect(update()).To(Succeed())
			act, _ := d.last()
			Expect(act).To(Equal(motor.Voltage))

			Expect(sv.SetActuationType(motor.Torque)).To(Succeed())
			Expect(update()).To(Succeed())
			act, value := d.last()
			Expect(act).To(Equal(motor.Torque))
			Expect(value).To(BeNumerically(">", 0))

			Expect(sv.SetActuationType(motor.Brake)).To(MatchError(servo.ErrInvalidArgument))
		})

		It("applies the direction at the driver", func() {
			ccw := servo.New("B", motor.TypeTechnicL, d, nil)
			Expect(ccw.Setup(servo.Counterclockwise, 1, false)).To(Succeed())
			Expect(ccw.RunForever(300)).To(Succeed())
			Expect(ccw.Update(servo.ControlPeriod)).To(Succeed())

			_, value := d.last()
			Expect(value).To(BeNumerically("<", 0))
			_, reported := ccw.Actuation()
			Expect(reported).To(Equal(value))
		})

		It("logs commands and state changes", func() {
			Expect(sv.RunForever(300)).To(Succeed())
			Expect(logs.FilterMessage("run_forever").Len()).To(Equal(1))
			Expect(logs.FilterMessage("state change").Len()).To(BeNumerically(">=", 1))
		})

		It("deactivates on a driver failure", func() {
			Expect(sv.RunForever(300)).To(Succeed())
			d.fail(servo.ErrIO, servo.ErrIO)

			err := update()
			Expect(err).To(MatchError(servo.ErrIO))
			Expect(sv.State()).To(Equal(servo.StateInactive))
			Expect(logs.FilterMessage("deactivated").FilterLevelExact(zapcore.WarnLevel).Len()).To(Equal(1))

			reads := d.readCount()
			Expect(update()).To(Succeed())
			Expect(d.readCount()).To(Equal(reads))
			Expect(sv.RunForever(300)).To(MatchError(servo.ErrNoDevice))
		})

		It("validates new settings", func() {
			settings := sv.Settings()
			settings.Kp *= 2
			Expect(sv.SetSettings(settings)).To(Succeed())
			Expect(sv.Settings().Kp).To(Equal(settings.Kp))

			settings.SpeedMax = 0
			Expect(sv.SetSettings(settings)).To(MatchError(servo.ErrInvalidArgument))
		})

		It("reports the configuration", func() {
			Expect(sv.Name()).To(Equal("A"))
			Expect(sv.Type()).To(Equal(motor.TypeTechnicL))
			angle, speed := sv.ControlState()
			Expect(angle.Mdeg()).To(BeZero())
			Expect(speed).To(BeZero())
		})

		Context("with a parent", func() {
			var parent *fakeParent

			BeforeEach(func() {
				parent = &fakeParent{}
				sv.SetParent(parent)
			})

			It("stops the parent before a command", func() {
				Expect(sv.RunForever(300)).To(Succeed())
				Expect(sv.RunTarget(300, 90, control.PolicyHold)).To(Succeed())
				Expect(parent.calls).To(Equal(2))
			})

			It("does not disturb the parent for an invalid command", func() {
				Expect(sv.RunAngle(0, 90, control.PolicyHold)).To(MatchError(servo.ErrInvalidArgument))
				Expect(parent.calls).To(BeZero())
			})

			It("abandons the command when the parent cannot stop", func() {
				parent.err = servo.ErrIO
				Expect(sv.RunForever(300)).To(MatchError(servo.ErrIO))
				Expect(sv.State()).To(Equal(servo.StateIdle))
			})

			It("is not stopped by the servo's own stop", func() {
				Expect(sv.Stop(control.PolicyCoast)).To(Succeed())
				Expect(parent.calls).To(BeZero())
			})

			It("can be unlinked", func() {
				sv.SetParent(nil)
				Expect(sv.RunForever(300)).To(Succeed())
				Expect(parent.calls).To(BeZero())
			})
		})
	})
})
