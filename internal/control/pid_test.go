package control

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/san-kum/massfeed/internal/calculus"
	"github.com/san-kum/massfeed/internal/plant"
)

func constant(n int, v float64) []calculus.Point {
	pts := make([]calculus.Point, n)
	for i := range pts {
		pts[i] = calculus.Point{T: float64(i + 1), Y: v}
	}
	return pts
}

var _ = Describe("PID", func() {
	var (
		setpoint []calculus.Point
		process  []calculus.Point
	)

	BeforeEach(func() {
		setpoint = constant(5, 1)
		process = constant(5, 0.5)
	})

	It("should raise the rate when the process runs slow", func() {
		pid := NewPID(DefaultGains())

		Expect(pid.CorrectBatch(setpoint, process)).To(BeNumerically(">=", process[4].Y))
		Expect(pid.CorrectBatch(setpoint, process)).To(BeNumerically("~", 1.5, 1e-9))
	})

	It("should include the integral over the whole batch", func() {
		pid := NewPID(Gains{Ki: 0.1})

		Expect(pid.CorrectBatch(setpoint, process)).To(BeNumerically("~", 1.2, 1e-9))
		Expect(pid.Errors()).To(BeEmpty())
	})

	It("should fold the batch integral at t = 0", func() {
		pid := NewPID(Gains{Ki: 1})
		setpoint := []calculus.Point{{T: -3, Y: 0}, {T: -2, Y: 0}, {T: -1, Y: 0}}
		process := []calculus.Point{{T: -3, Y: 1}, {T: -2, Y: 1}, {T: -1, Y: 1}}

		Expect(pid.CorrectBatch(setpoint, process)).To(BeNumerically("~", 2, 1e-9))
	})

	It("should accumulate the integral one interval per call", func() {
		pid := NewPID(Gains{Kp: 1, Ki: 0.2})

		Expect(pid.Correct(setpoint[:1], process[:1])).To(Equal(1.0))
		Expect(pid.Correct(setpoint[:2], process[:2])).To(BeNumerically("~", 1.6, 1e-9))
		Expect(pid.Correct(setpoint[:3], process[:3])).To(BeNumerically("~", 1.7, 1e-9))

		Expect(pid.Integral()).To(BeNumerically("~", 1.0, 1e-9))
		Expect(pid.Errors()).To(HaveLen(3))
		Expect(pid.Output()).To(BeNumerically("~", 0.7, 1e-9))
	})

	It("should apply the derivative of the error", func() {
		pid := NewPID(Gains{Kd: 1})
		sp := []calculus.Point{{T: 0, Y: 2}, {T: 1, Y: 2}}
		pv := []calculus.Point{{T: 0, Y: 2}, {T: 1, Y: 1}}

		pid.Correct(sp[:1], pv[:1])
		Expect(pid.Correct(sp, pv)).To(BeNumerically("~", 3.0, 1e-9))
		Expect(pid.Derivative()).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("should leave the setpoint alone on a repeated timestamp", func() {
		pid := NewPID(Gains{Kp: 1, Kd: 1})
		sp := []calculus.Point{{T: 1, Y: 1}, {T: 1, Y: 1}}
		pv := []calculus.Point{{T: 1, Y: 0.5}, {T: 1, Y: 0.4}}

		pid.Correct(sp[:1], pv[:1])
		Expect(pid.Correct(sp, pv)).To(Equal(1.0))
		Expect(pid.Integral()).To(Equal(0.0))
	})

	It("should be a no-op with zero gains", func() {
		pid := NewPID(Gains{})

		pid.Correct(setpoint[:1], process[:1])
		Expect(pid.Correct(setpoint[:2], process[:2])).To(Equal(1.0))
	})

	It("should report empty series as undefined", func() {
		pid := NewPID(DefaultGains())

		Expect(math.IsNaN(pid.Correct(nil, process))).To(BeTrue())
		Expect(math.IsNaN(pid.CorrectBatch(setpoint, nil))).To(BeTrue())
	})

	It("should support live tuning", func() {
		pid := NewPID(DefaultGains())
		pid.SetParam("Ki", 0.3)
		pid.SetParam("Bogus", 9)

		Expect(pid.GetParams()).To(Equal(map[string]float64{"Kp": 1, "Ki": 0.3, "Kd": 0}))
	})

	It("should forget history on reset", func() {
		pid := NewPID(Gains{Ki: 1})
		pid.Correct(setpoint[:1], process[:1])
		pid.Correct(setpoint[:2], process[:2])

		pid.Reset()

		Expect(pid.Errors()).To(BeEmpty())
		Expect(pid.Integral()).To(Equal(0.0))
	})
})

var _ = Describe("Cascade", func() {
	var (
		mockCtrl *gomock.Controller
		actuator *MockActuator
		cascade  *Cascade
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		actuator = NewMockActuator(mockCtrl)
		cascade = NewCascade(actuator)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should speed up when the process runs slow", func() {
		actuator.EXPECT().Nudge(plant.SpeedUp).Return(nil)

		d, err := cascade.Correct(constant(5, 1), constant(5, 0.5))

		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(plant.SpeedUp))
	})

	It("should slow down when the process runs fast", func() {
		actuator.EXPECT().Nudge(plant.SlowDown).Return(nil)

		d, err := cascade.Correct(constant(5, 0.5), constant(5, 1))

		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(plant.SlowDown))
	})

	It("should not command the pump on zero error", func() {
		d, err := cascade.Correct(constant(2, 1), constant(2, 1))

		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(plant.Direction(0)))
		Expect(cascade.Errors()).To(HaveLen(1))
	})

	It("should return actuator errors", func() {
		boom := errors.New("stalled")
		actuator.EXPECT().Nudge(plant.SpeedUp).Return(boom)

		_, err := cascade.Correct(constant(1, 1), constant(1, 0))

		Expect(err).To(MatchError(boom))
	})
})
