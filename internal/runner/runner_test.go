package runner

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/massfeed/internal/control"
	"github.com/san-kum/massfeed/internal/plant"
	"github.com/san-kum/massfeed/internal/recipe"
)

type tickCounter struct {
	ticks  int
	stages map[int]bool
}

func (c *tickCounter) Name() string           { return "ticks" }
func (c *tickCounter) Observe(rec TickRecord) { c.ticks++ }
func (c *tickCounter) Value() float64         { return float64(c.ticks) }
func (c *tickCounter) Reset()                 { c.ticks = 0 }

func (c *tickCounter) OnTick(rec TickRecord) {
	c.stages[rec.Stage] = true
}

func demoRecipe() recipe.Recipe {
	return recipe.New("demo",
		recipe.TimedSpec(10, 0.3),
		recipe.BolusSpec(15),
		recipe.LinearSpec(-1, 0),
	)
}

var _ = Describe("Runner", func() {
	var (
		sim *plant.Simulated
		cfg Config
		ctx context.Context
	)

	newRunner := func(r recipe.Recipe) *Runner {
		prog, err := recipe.NewProgram(r, sim, recipe.DefaultSettings())
		Expect(err).NotTo(HaveOccurred())
		run, err := New(prog, sim, cfg)
		Expect(err).NotTo(HaveOccurred())
		return run
	}

	BeforeEach(func() {
		sim = plant.NewSimulated(plant.DefaultSimConfig())
		cfg = DefaultConfig()
		ctx = context.Background()
	})

	It("should run the demo recipe to completion", func() {
		run := newRunner(demoRecipe())
		counter := &tickCounter{stages: map[int]bool{}}
		run.AddMetric(counter)
		run.AddObserver(counter)

		result, err := run.Run(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Completed).To(BeTrue())
		Expect(result.Stages).To(Equal(3))
		Expect(result.ID).NotTo(BeEmpty())
		Expect(result.Recipe).To(Equal("demo"))
		Expect(result.Trace).To(HaveLen(result.Ticks))
		Expect(result.Metrics).To(HaveKeyWithValue("ticks", float64(result.Ticks)))
		Expect(counter.stages).To(HaveLen(3))

		st := sim.State()
		Expect(st.Valve).To(Equal(plant.ValveClosed))
		Expect(st.Pump).To(Equal(0.0))
		Expect(250 - st.Mass).To(BeNumerically("~", 68, 2))
	})

	It("should hold the timed stage until its deadline", func() {
		run := newRunner(demoRecipe())
		result, err := run.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		var advanced []TickRecord
		for _, rec := range result.Trace {
			if rec.Advanced {
				advanced = append(advanced, rec)
			}
		}
		Expect(advanced).To(HaveLen(2))
		Expect(advanced[0].Stage).To(Equal(2))
		Expect(advanced[0].Elapsed).To(BeNumerically("~", 18, 1))
		Expect(advanced[1].Stage).To(Equal(3))
		Expect(advanced[1].Elapsed).To(BeNumerically("~", 18+90, 2))
	})

	It("should stop a bolus at its target mass", func() {
		run := newRunner(recipe.New("bolus", recipe.BolusSpec(20)))

		result, err := run.Run(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Completed).To(BeTrue())
		Expect(sim.State().Mass).To(BeNumerically("<=", 230))
		Expect(sim.State().Mass).To(BeNumerically(">", 227))
	})

	It("should follow the ramp of a linear stage", func() {
		simCfg := plant.DefaultSimConfig()
		simCfg.Initial.Mass = 5000
		sim = plant.NewSimulated(simCfg)
		run := newRunner(recipe.New("ramp", recipe.LinearSpec(600, 1200)))

		result, err := run.Run(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Completed).To(BeTrue())
		for _, rec := range result.Trace[1 : len(result.Trace)-1] {
			Expect(rec.Commanded).To(BeNumerically("~", rec.Target, 1e-9))
		}
		last := result.Trace[len(result.Trace)-1]
		Expect(last.PumpRate).To(BeNumerically("~", 20, 1e-6))
	})

	It("should abort when the vessel is over pressure", func() {
		simCfg := plant.DefaultSimConfig()
		simCfg.Initial.Pressure = 99.95
		sim = plant.NewSimulated(simCfg)
		run := newRunner(demoRecipe())

		result, err := run.Run(ctx)

		Expect(err).To(MatchError(ErrUnsafeConditions))
		Expect(result.Completed).To(BeFalse())
		Expect(result.Error).NotTo(BeEmpty())
		Expect(sim.State().Valve).To(Equal(plant.ValveClosed))
		Expect(sim.State().Pump).To(Equal(0.0))
	})

	It("should abort when the feed runs out", func() {
		simCfg := plant.DefaultSimConfig()
		simCfg.Initial.Mass = 5
		sim = plant.NewSimulated(simCfg)
		run := newRunner(recipe.New("big", recipe.BolusSpec(100)))

		_, err := run.Run(ctx)

		Expect(err).To(MatchError(plant.ErrFeedEmpty))
		Expect(sim.State().Pump).To(Equal(0.0))
	})

	It("should give up after the tick budget", func() {
		cfg.MaxTicks = 5
		run := newRunner(demoRecipe())

		result, err := run.Run(ctx)

		Expect(err).To(MatchError(ErrTickBudget))
		Expect(result.Ticks).To(Equal(5))
	})

	It("should stop on cancellation", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		run := newRunner(demoRecipe())

		_, err := run.Run(cctx)

		Expect(err).To(MatchError(context.Canceled))
		Expect(sim.State().Valve).To(Equal(plant.ValveClosed))
	})

	It("should prime the pump before starting", func() {
		simCfg := plant.DefaultSimConfig()
		simCfg.Initial.Mass = 10000
		sim = plant.NewSimulated(simCfg)
		cfg.Prime = 2 * time.Second
		run := newRunner(recipe.New("short", recipe.TimedSpec(10, 0.05)))

		result, err := run.Run(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Trace[0].Elapsed).To(BeNumerically("~", 2, 1e-9))
		Expect(10000 - sim.State().Mass).To(BeNumerically(">", 2*12000*0.2))
	})

	It("should refuse to start twice", func() {
		run := newRunner(demoRecipe())

		Expect(run.Start(ctx)).To(Succeed())
		Expect(run.Start(ctx)).To(MatchError(ErrStarted))
	})

	It("should not step before starting", func() {
		run := newRunner(demoRecipe())

		_, err := run.Step(ctx)

		Expect(err).To(HaveOccurred())
	})

	DescribeTable("feedback strategies",
		func(strategy Strategy, gains control.Gains) {
			cfg.Strategy = strategy
			cfg.Gains = gains
			run := newRunner(demoRecipe())

			result, err := run.Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Completed).To(BeTrue())
			Expect(result.Strategy).To(Equal(strategy))

			corrected := false
			for _, rec := range result.Trace {
				if rec.Nudge != 0 || rec.Commanded != rec.Target {
					corrected = true
				}
			}
			Expect(corrected).To(BeTrue())
		},
		Entry("pid", StrategyPID, control.Gains{Kp: 0.5, Ki: 0.05}),
		Entry("cascade", StrategyCascade, control.DefaultGains()),
	)

	DescribeTable("invalid configs",
		func(mutate func(*Config)) {
			mutate(&cfg)
			prog, err := recipe.NewProgram(demoRecipe(), sim, recipe.DefaultSettings())
			Expect(err).NotTo(HaveOccurred())

			_, err = New(prog, sim, cfg)

			Expect(err).To(HaveOccurred())
		},
		Entry("zero tick", func(c *Config) { c.Tick = 0 }),
		Entry("negative budget", func(c *Config) { c.MaxTicks = -1 }),
		Entry("unknown strategy", func(c *Config) { c.Strategy = "fuzzy" }),
		Entry("zero pressure", func(c *Config) { c.MaxPressure = 0 }),
		Entry("negative warmup", func(c *Config) { c.Warmup = -2 }),
	)
})
