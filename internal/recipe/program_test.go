package recipe

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/san-kum/massfeed/internal/control"
	"github.com/san-kum/massfeed/internal/plant"
	"github.com/san-kum/massfeed/internal/units"
)

var _ = Describe("Program", func() {
	var (
		mockCtrl  *gomock.Controller
		mockPlant *MockPlant
		t0        time.Time
		reading   plant.Reading
		settings  Settings
	)

	newProgram := func(specs ...StageSpec) *Program {
		p, err := NewProgram(New("test", specs...), mockPlant, settings)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	expectPump := func(commanded *float64) {
		mockPlant.EXPECT().Pump(gomock.Any()).DoAndReturn(func(r float64) error {
			*commanded = r
			return nil
		})
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockPlant = NewMockPlant(mockCtrl)
		t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		reading = plant.Reading{Mass: 250, Rate: 10, Time: t0, Pressure: 1}
		settings = DefaultSettings()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("advancing", func() {
		It("should run every stage once and then stay exhausted", func() {
			mockPlant.EXPECT().Read().Return(reading, nil).Times(3)
			p := newProgram(TimedSpec(10, 0.3), BolusSpec(15), LinearSpec(-1, 0))

			Expect(p.Cursor()).To(Equal(0))
			_, ok := p.Current()
			Expect(ok).To(BeFalse())

			for n := 1; n <= 3; n++ {
				v, err := p.Advance()
				Expect(err).NotTo(HaveOccurred())
				Expect(v.Number).To(Equal(n))
				Expect(p.Cursor()).To(Equal(n))
			}

			_, err := p.Advance()
			Expect(err).To(MatchError(ErrExhausted))
			_, err = p.Advance()
			Expect(err).To(MatchError(ErrExhausted))
			Expect(p.Exhausted()).To(BeTrue())
		})

		It("should derive the stop type from the feed type", func() {
			mockPlant.EXPECT().Read().Return(reading, nil).Times(3)
			p := newProgram(BolusSpec(5), TimedSpec(10, 1), LinearSpec(10, 20))

			var types []StopType
			for {
				v, err := p.Advance()
				if errors.Is(err, ErrExhausted) {
					break
				}
				Expect(err).NotTo(HaveOccurred())
				types = append(types, v.StopType())
			}
			Expect(types).To(Equal([]StopType{StopMass, StopTime, StopRate}))
		})

		It("should build the stage from the plant reading in g/s", func() {
			reading.Rate = 5
			mockPlant.EXPECT().Read().Return(reading, nil).Times(2)
			p := newProgram(BolusSpec(5), BolusSpec(10))

			p.Advance()
			v, err := p.Advance()

			Expect(err).NotTo(HaveOccurred())
			Expect(v.Coefficients.Intercept).To(BeNumerically("~", 1, 1e-9))
			Expect(v.Stop.Value).To(Equal(240.0))
			Expect(v.Start.Time).To(Equal(t0))
		})

		It("should not move the cursor when the plant cannot be read", func() {
			mockPlant.EXPECT().Read().Return(plant.Reading{}, plant.ErrFeedEmpty)
			p := newProgram(BolusSpec(5))

			_, err := p.Advance()

			Expect(err).To(MatchError(plant.ErrFeedEmpty))
			Expect(p.Cursor()).To(Equal(0))
		})
	})

	Context("pumping", func() {
		var commanded float64

		It("should convert to steps/min", func() {
			p := newProgram(BolusSpec(5))
			expectPump(&commanded)

			hit, err := p.Pump(1, units.GramsPerSecond, Adjustment{})

			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
			Expect(commanded).To(BeNumerically("~", 300, 1e-9))
		})

		It("should clamp to the stop rate of a linear stage", func() {
			mockPlant.EXPECT().Read().Return(reading, nil)
			p := newProgram(LinearSpec(180, 6))
			p.Advance()
			expectPump(&commanded)

			hit, err := p.Pump(2, units.GramsPerSecond, Adjustment{})

			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			Expect(commanded).To(BeNumerically("~", 30, 1e-9))
		})

		It("should ignore the stop value of non-rate stages", func() {
			mockPlant.EXPECT().Read().Return(reading, nil)
			p := newProgram(BolusSpec(0.01))
			p.Advance()
			expectPump(&commanded)

			hit, _ := p.Pump(2, units.GramsPerSecond, Adjustment{})

			Expect(hit).To(BeFalse())
			Expect(commanded).To(BeNumerically("~", 600, 1e-9))
		})

		It("should scale by the selected gains, then add", func() {
			settings.Gains = control.Gains{Kp: 2, Ki: 0.5, Kd: 7}
			p := newProgram(BolusSpec(5))
			expectPump(&commanded)

			p.Pump(1, units.GramsPerSecond, Adjustment{Proportional: true, Integral: true, Add: 0.5})

			Expect(commanded).To(BeNumerically("~", 3*300, 1e-9))
		})

		It("should stop the pump for reverse rates", func() {
			p := newProgram(BolusSpec(5))
			expectPump(&commanded)

			hit, err := p.Pump(-1, units.MLPerMinute, Adjustment{})

			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			Expect(commanded).To(Equal(0.0))
		})

		It("should clamp to the pump's maximum", func() {
			p := newProgram(BolusSpec(5))
			expectPump(&commanded)

			hit, _ := p.Pump(1e6, units.StepsPerSecond, Adjustment{})

			Expect(hit).To(BeTrue())
			Expect(commanded).To(BeNumerically("~", 12000*60, 1e-6))
		})

		It("should reject an acceleration unit without pumping", func() {
			p := newProgram(BolusSpec(5))

			_, err := p.Pump(1, units.GramsPerSecond2, Adjustment{})

			Expect(err).To(MatchError(units.ErrIncompatibleUnits))
		})

		It("should return actuator failures", func() {
			p := newProgram(BolusSpec(5))
			mockPlant.EXPECT().Pump(gomock.Any()).Return(plant.ErrRateOutOfRange)

			_, err := p.Pump(1, units.GramsPerSecond, Adjustment{})

			Expect(err).To(MatchError(plant.ErrRateOutOfRange))
		})
	})

	Context("editing stages", func() {
		It("should append with no index or one past the end", func() {
			p := newProgram(BolusSpec(5))

			Expect(p.SetStage(TimedSpec(10, 1), 0)).To(Succeed())
			Expect(p.SetStage(LinearSpec(1, 2), 3)).To(Succeed())

			Expect(p.Len()).To(Equal(3))
			s, ok := p.Stage(3)
			Expect(ok).To(BeTrue())
			Expect(s.Number).To(Equal(3))
			Expect(s.Spec.FeedType).To(Equal(Linear))
		})

		It("should replace in place without computing the stage", func() {
			mockPlant.EXPECT().Read().Return(reading, nil)
			p := newProgram(BolusSpec(5), BolusSpec(6))
			p.Advance()

			Expect(p.SetStage(TimedSpec(10, 1), 1)).To(Succeed())

			s, _ := p.Stage(1)
			Expect(s.Spec).To(Equal(TimedSpec(10, 1)))
			Expect(s.Coefficients).To(Equal(Coefficients{}))
			Expect(p.Len()).To(Equal(2))
			Expect(p.Recipe().Stages[1].FeedType).To(Equal(Timed))
		})

		It("should keep the active stage's rate law and bound when it is replaced", func() {
			var commanded float64
			mockPlant.EXPECT().Read().Return(reading, nil)
			p := newProgram(LinearSpec(180, 6))
			before, err := p.Advance()
			Expect(err).NotTo(HaveOccurred())

			Expect(p.SetStage(LinearSpec(180, 6), 1)).To(Succeed())

			v, ok := p.Current()
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(before))
			expectPump(&commanded)
			hit, err := p.Pump(2, units.GramsPerSecond, Adjustment{})
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			Expect(commanded).To(BeNumerically("~", 30, 1e-9))

			s, _ := p.Stage(1)
			Expect(s.Coefficients).To(Equal(Coefficients{}))
		})

		It("should refuse gaps and invalid stages", func() {
			p := newProgram(BolusSpec(5))

			Expect(p.SetStage(BolusSpec(1), 5)).To(MatchError(ErrStageIndex))
			Expect(p.SetStage(StageSpec{FeedType: Linear}, 1)).To(MatchError(ErrDegenerateRamp))
			_, ok := p.Stage(0)
			Expect(ok).To(BeFalse())
		})

		It("should resume after an append to a finished last stage", func() {
			mockPlant.EXPECT().Read().Return(reading, nil).Times(2)
			p := newProgram(BolusSpec(5))
			p.Advance()

			Expect(p.SetStage(BolusSpec(1), 0)).To(Succeed())
			v, err := p.Advance()

			Expect(err).NotTo(HaveOccurred())
			Expect(v.Number).To(Equal(2))
		})
	})

	It("should refuse an invalid recipe", func() {
		_, err := NewProgram(Recipe{}, mockPlant, settings)

		Expect(err).To(MatchError(ErrInvalidRecipe))
	})
})
