package servo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/multierr"

	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
)

var _ = Describe("Registry", func() {
	var reg *servo.Registry

	BeforeEach(func() {
		reg = servo.NewRegistry(nil)
	})

	attach := func(port servo.Port) (*servo.Servo, *fakeDriver) {
		GinkgoHelper()
		d := &fakeDriver{}
		sv, err := reg.Attach(port, motor.TypeTechnicL, d)
		Expect(err).NotTo(HaveOccurred())
		Expect(sv.Setup(servo.Clockwise, 1, false)).To(Succeed())
		return sv, d
	}

	DescribeTable("parses port letters",
		func(name string, want servo.Port, ok bool) {
			port, err := servo.ParsePort(name)
			if !ok {
				Expect(err).To(MatchError(servo.ErrNoDevice))
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(port).To(Equal(want))
			Expect(port.String()).To(Equal(string(rune('A' + want))))
		},
		Entry("lower case", "a", servo.Port(0), true),
		Entry("upper case", "C", servo.Port(2), true),
		Entry("last port", "F", servo.Port(5), true),
		Entry("past the last port", "G", servo.Port(0), false),
		Entry("empty", "", servo.Port(0), false),
		Entry("two letters", "AB", servo.Port(0), false),
	)

	It("names unknown ports", func() {
		Expect(servo.Port(servo.NumPorts).String()).To(Equal("?"))
	})

	It("rejects bad attachments", func() {
		_, err := reg.Attach(servo.Port(servo.NumPorts), motor.TypeTechnicL, &fakeDriver{})
		Expect(err).To(MatchError(servo.ErrNoDevice))
		_, err = reg.Attach(servo.Port(0), motor.TypeTechnicL, nil)
		Expect(err).To(MatchError(servo.ErrInvalidArgument))
	})

	It("reports empty ports", func() {
		_, err := reg.Servo(servo.Port(1))
		Expect(err).To(MatchError(servo.ErrNoDevice))
		_, err = reg.Servo(servo.Port(-1))
		Expect(err).To(MatchError(servo.ErrNoDevice))
	})

	It("replaces and detaches servos", func() {
		first, _ := attach(servo.Port(1))
		second, _ := attach(servo.Port(1))
		Expect(first.State()).To(Equal(servo.StateInactive))

		got, err := reg.Servo(servo.Port(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(second))

		reg.Detach(servo.Port(1))
		Expect(second.State()).To(Equal(servo.StateInactive))
		_, err = reg.Servo(servo.Port(1))
		Expect(err).To(MatchError(servo.ErrNoDevice))
	})

	It("visits servos in port order", func() {
		attach(servo.Port(4))
		attach(servo.Port(0))
		attach(servo.Port(2))

		var seen []servo.Port
		reg.Each(func(p servo.Port, sv *servo.Servo) {
			Expect(sv.Name()).To(Equal(p.String()))
			seen = append(seen, p)
		})
		Expect(seen).To(Equal([]servo.Port{0, 2, 4}))
	})

	It("combines update failures and keeps the others running", func() {
		a, da := attach(servo.Port(0))
		b, db := attach(servo.Port(1))
		c, dc := attach(servo.Port(2))
		da.fail(servo.ErrIO, nil)
		db.fail(servo.ErrNoDevice, nil)

		reads := dc.readCount()
		err := reg.UpdateAll(servo.ControlPeriod)
		Expect(err).To(HaveOccurred())
		Expect(multierr.Errors(err)).To(HaveLen(2))
		Expect(err).To(MatchError(servo.ErrIO))
		Expect(err).To(MatchError(servo.ErrNoDevice))

		Expect(a.State()).To(Equal(servo.StateInactive))
		Expect(b.State()).To(Equal(servo.StateInactive))
		Expect(c.State()).To(Equal(servo.StateIdle))
		Expect(dc.readCount()).To(Equal(reads + 1))

		Expect(reg.UpdateAll(2 * servo.ControlPeriod)).To(Succeed())
	})

	It("suspends and resumes the update loop", func() {
		sv, d := attach(servo.Port(3))
		Expect(reg.Running()).To(BeTrue())
		Expect(sv.RunForever(300)).To(Succeed())
		Expect(reg.UpdateAll(servo.ControlPeriod)).To(Succeed())
		act, _ := d.last()
		Expect(act).To(Equal(motor.Voltage))

		Expect(reg.SetRunning(false, 2*servo.ControlPeriod)).To(Succeed())
		Expect(reg.Running()).To(BeFalse())
		Expect(sv.State()).To(Equal(servo.StateIdle))
		act, _ = d.last()
		Expect(act).To(Equal(motor.Coast))

		reads := d.readCount()
		Expect(sv.RunForever(300)).To(Succeed())
		Expect(reg.UpdateAll(3 * servo.ControlPeriod)).To(Succeed())
		Expect(d.readCount()).To(Equal(reads))

		Expect(reg.SetRunning(false, 3*servo.ControlPeriod)).To(Succeed())
		Expect(sv.State()).To(Equal(servo.StateRunning))

		Expect(reg.SetRunning(true, 4*servo.ControlPeriod)).To(Succeed())
		Expect(reg.Running()).To(BeTrue())
		Expect(sv.State()).To(Equal(servo.StateIdle))
		_, ok := sv.Reference()
		Expect(ok).To(BeFalse())
	})
})
