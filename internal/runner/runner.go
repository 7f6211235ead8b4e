package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rs/xid"

	"github.com/san-kum/massfeed/internal/calculus"
	"github.com/san-kum/massfeed/internal/control"
	"github.com/san-kum/massfeed/internal/plant"
	"github.com/san-kum/massfeed/internal/recipe"
	"github.com/san-kum/massfeed/internal/units"
)

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithClock overrides the clock. By default a plant that is also a
// plant.Clock keeps its own time, and any other plant runs on wall time.
func WithClock(c plant.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// Runner drives a recipe program against a plant one tick at a time: read the
// plant, check the stop condition, evaluate the rate law, apply feedback and
// command the pump. Not safe for concurrent use.
type Runner struct {
	cfg       Config
	program   *recipe.Program
	plant     plant.Plant
	clock     plant.Clock
	conv      units.Converter
	log       *slog.Logger
	pid       *control.PID
	cascade   *control.Cascade
	metrics   []Metric
	observers []Observer

	started  time.Time
	running  bool
	done     bool
	ticks    int
	stages   int
	view     recipe.View
	scale    []calculus.Point
	targets  []calculus.Point
	measured []calculus.Point
	trace    []TickRecord
}

func New(prog *recipe.Program, p plant.Plant, cfg Config, opts ...Option) (*Runner, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:       cfg,
		program:   prog,
		plant:     p,
		conv:      prog.Settings().Converter,
		log:       slog.New(slog.DiscardHandler),
		pid:       control.NewPID(cfg.Gains),
		cascade:   control.NewCascade(p),
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
	if c, ok := p.(plant.Clock); ok {
		r.clock = c
	} else {
		r.clock = plant.SystemClock{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func validateConfig(cfg Config) error {
	if cfg.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", cfg.Tick)
	}
	if cfg.MaxTicks < 0 {
		return fmt.Errorf("max ticks must not be negative, got %d", cfg.MaxTicks)
	}
	if _, ok := ParseStrategy(string(cfg.Strategy)); !ok {
		return fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
	if cfg.MaxPressure <= 0 {
		return fmt.Errorf("max pressure must be positive, got %f", cfg.MaxPressure)
	}
	if cfg.Warmup < 0 {
		return fmt.Errorf("warmup must not be negative, got %d", cfg.Warmup)
	}
	return nil
}

func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Runner) Config() Config           { return r.cfg }
func (r *Runner) Clock() plant.Clock       { return r.clock }
func (r *Runner) Program() *recipe.Program { return r.program }
func (r *Runner) PID() *control.PID        { return r.pid }
func (r *Runner) Ticks() int               { return r.ticks }
func (r *Runner) Done() bool               { return r.done }

// Trace returns the records of every tick so far.
func (r *Runner) Trace() []TickRecord { return r.trace }

// Current is the active stage.
func (r *Runner) Current() (recipe.View, bool) { return r.program.Current() }

// Start primes the pump if configured, activates the first stage, opens the
// valve and starts the pump at the stage's initial rate.
func (r *Runner) Start(ctx context.Context) error {
	if r.running || r.done {
		return ErrStarted
	}
	r.running = true
	r.started = r.clock.Now()

	if r.cfg.Prime > 0 {
		maxRate := r.program.Settings().Limits.Max
		if err := plant.Prime(ctx, r.plant, r.clock, r.cfg.Prime, maxRate); err != nil {
			return fmt.Errorf("prime: %w", err)
		}
		r.log.Info("pump primed", "duration", r.cfg.Prime)
	}

	v, err := r.program.Advance()
	if err != nil {
		return fmt.Errorf("start recipe: %w", err)
	}
	r.enter(v)

	if err := r.plant.Valve(plant.ValveOpen); err != nil {
		return fmt.Errorf("open valve: %w", err)
	}
	hit, err := r.program.Pump(v.Coefficients.Intercept, units.GramsPerSecond, recipe.Adjustment{})
	if err != nil {
		return err
	}
	if hit {
		r.log.Debug("rate limit hit", "stage", v.Number, "rate", v.Coefficients.Intercept)
	}
	return nil
}

func (r *Runner) enter(v recipe.View) {
	r.view = v
	r.stages++
	r.log.Info("stage started",
		"stage", v.Number,
		"feed_type", v.FeedType,
		"slope", v.Coefficients.Slope,
		"intercept", v.Coefficients.Intercept,
		"stop", v.Stop.String(),
	)
}

// Step runs one tick. done is true once the last stage has finished.
func (r *Runner) Step(ctx context.Context) (done bool, err error) {
	if r.done {
		return true, nil
	}
	if !r.running {
		return false, errors.New("runner: not started")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	reading, err := r.plant.Read()
	if err != nil {
		return false, fmt.Errorf("read plant: %w", err)
	}
	if reading.Pressure >= r.cfg.MaxPressure {
		return false, fmt.Errorf("%w: pressure %.2f atm", ErrUnsafeConditions, reading.Pressure)
	}

	rate, err := r.conv.Convert(reading.Rate, units.StepsPerSecond, units.GramsPerSecond)
	if err != nil {
		return false, err
	}
	snap := recipe.Snapshot{Time: reading.Time, Mass: reading.Mass, Rate: rate}
	elapsed := reading.Time.Sub(r.started).Seconds()
	r.scale = append(r.scale, calculus.Point{T: elapsed, Y: reading.Mass})

	rec := TickRecord{
		Tick:     r.ticks,
		Time:     reading.Time,
		Elapsed:  elapsed,
		Mass:     reading.Mass,
		Pressure: reading.Pressure,
		PumpRate: rate,
	}

	if r.view.Reached(snap) {
		r.log.Info("stage complete", "stage", r.view.Number, "feed_type", r.view.FeedType)
		v, err := r.program.Advance()
		if errors.Is(err, recipe.ErrExhausted) {
			r.done = true
			rec.Stage = r.view.Number
			rec.FeedType = r.view.FeedType
			r.record(rec)
			r.log.Info("recipe complete", "ticks", r.ticks, "stages", r.stages)
			return true, nil
		}
		if err != nil {
			return false, err
		}
		r.enter(v)
		rec.Advanced = true
	}
	rec.Stage = r.view.Number
	rec.FeedType = r.view.FeedType

	target := r.view.Rate(reading.Time)
	rec.Target = target
	r.targets = append(r.targets, calculus.Point{T: elapsed, Y: target})

	if n := len(r.scale); n >= 2 {
		if d := calculus.Derivative(r.scale[n-2:]); !math.IsNaN(d) {
			rec.Measured = -d
			rec.HasMeasured = true
			r.measured = append(r.measured, calculus.Point{T: elapsed, Y: -d})
		}
	}
	feedback := rec.HasMeasured && len(r.measured) > r.cfg.Warmup

	commanded := target
	if feedback && r.cfg.Strategy == StrategyPID {
		if c := r.pid.Correct(r.targets, r.measured); !math.IsNaN(c) {
			commanded = c
		}
	}
	rec.Commanded = commanded

	hit, err := r.program.Pump(commanded, units.GramsPerSecond, recipe.Adjustment{})
	if err != nil {
		return false, err
	}
	rec.LimitHit = hit
	if hit {
		r.log.Debug("rate limit hit", "stage", r.view.Number, "rate", commanded)
	}

	if feedback && r.cfg.Strategy == StrategyCascade {
		d, err := r.cascade.Correct(r.targets, r.measured)
		if err != nil {
			return false, fmt.Errorf("nudge pump: %w", err)
		}
		rec.Nudge = d
	}

	r.record(rec)
	return false, nil
}

func (r *Runner) record(rec TickRecord) {
	r.trace = append(r.trace, rec)
	for _, m := range r.metrics {
		m.Observe(rec)
	}
	for _, obs := range r.observers {
		obs.OnTick(rec)
	}
	r.ticks++
}

// Stop closes the valve and stops the pump, whatever state the run is in.
func (r *Runner) Stop() error {
	r.running = false
	return errors.Join(r.plant.Valve(plant.ValveClosed), r.plant.Pump(0))
}

// Run starts the recipe and steps it until it completes, the context is
// canceled or the run aborts. The pump is always stopped on return. The
// result is returned with any error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	for _, m := range r.metrics {
		m.Reset()
	}

	result := &Result{
		ID:       xid.New().String(),
		Recipe:   r.program.Name(),
		Strategy: r.cfg.Strategy,
		Metrics:  make(map[string]float64),
	}
	r.log.Info("run started", "id", result.ID, "recipe", result.Recipe, "stages", r.program.Len(), "strategy", r.cfg.Strategy)

	err := r.loop(ctx)
	if stopErr := r.Stop(); stopErr != nil {
		err = errors.Join(err, fmt.Errorf("shut down: %w", stopErr))
	}

	result.Started = r.started
	result.Finished = r.clock.Now()
	result.Ticks = r.ticks
	result.Stages = r.stages
	result.Completed = r.done
	result.Trace = r.trace
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	if err != nil {
		result.Error = err.Error()
		r.log.Error("run aborted", "id", result.ID, "ticks", r.ticks, "err", err)
		return result, err
	}
	r.log.Info("run finished", "id", result.ID, "ticks", r.ticks, "stages", r.stages)
	return result, nil
}

func (r *Runner) loop(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	for {
		done, err := r.Tick(ctx)
		if err != nil || done {
			return err
		}
	}
}

// Tick runs one Step and, unless the recipe is done, waits out the tick on
// the runner's clock. It fails with ErrTickBudget once MaxTicks steps have run.
func (r *Runner) Tick(ctx context.Context) (done bool, err error) {
	if r.cfg.MaxTicks > 0 && r.ticks >= r.cfg.MaxTicks {
		return false, fmt.Errorf("%w after %d ticks", ErrTickBudget, r.ticks)
	}
	done, err = r.Step(ctx)
	if err != nil || done {
		return done, err
	}
	return false, r.clock.Sleep(ctx, r.cfg.Tick)
}
