package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/san-kum/massfeed/internal/control"
	"github.com/san-kum/massfeed/internal/metrics"
	"github.com/san-kum/massfeed/internal/plant"
	"github.com/san-kum/massfeed/internal/recipe"
	"github.com/san-kum/massfeed/internal/runner"
)

var ErrNoCandidate = errors.New("optim: no parameter set completed the recipe")

// Trial is the outcome of one point of the grid.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// GridSearch runs every combination of the candidate values and keeps the
// one that minimises a run metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: runtime.NumCPU()}
}

func (g *GridSearch) WithWorkers(n int) *GridSearch {
	if n > 0 {
		g.workers = n
	}
	return g
}

// Points enumerates the grid in order, the last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var points []map[string]float64
	g.enumerate(0, make(map[string]float64), &points)
	return points
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, points *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*points = append(*points, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.enumerate(depth+1, newParams, points)
	}
}

// Evaluate runs the runner built for each grid point and reads metricName
// from its result. Runs that fail or do not complete carry an error.
func (g *GridSearch) Evaluate(
	ctx context.Context,
	build func(params map[string]float64) (*runner.Runner, error),
	metricName string,
) []Trial {
	points := g.Points()
	trials := make([]Trial, len(points))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(g.workers, len(points)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				trials[idx] = evaluate(ctx, points[idx], build, metricName)
			}
		}()
	}
	for i := range points {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return trials
}

func evaluate(
	ctx context.Context,
	params map[string]float64,
	build func(map[string]float64) (*runner.Runner, error),
	metricName string,
) Trial {
	trial := Trial{Params: params, Value: math.NaN()}
	run, err := build(params)
	if err != nil {
		trial.Err = err
		return trial
	}
	result, err := run.Run(ctx)
	if err != nil {
		trial.Err = err
		return trial
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		trial.Err = fmt.Errorf("optim: run has no metric %q", metricName)
		return trial
	}
	trial.Value = val
	return trial
}

// Search returns the parameters with the lowest finite metric value.
func (g *GridSearch) Search(
	ctx context.Context,
	build func(params map[string]float64) (*runner.Runner, error),
	metricName string,
) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	var errs []error

	for _, trial := range g.Evaluate(ctx, build, metricName) {
		if trial.Err != nil {
			errs = append(errs, trial.Err)
			continue
		}
		if trial.Value < best {
			best = trial.Value
			bestParams = trial.Params
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		if len(errs) == 0 {
			return nil, 0, fmt.Errorf("%w: no finite %s value", ErrNoCandidate, metricName)
		}
		return nil, 0, fmt.Errorf("%w: %w", ErrNoCandidate, errors.Join(errs...))
	}
	return bestParams, best, nil
}

// PIDRunner builds runners that feed r on a fresh simulated plant, with the
// PID gains named in params (Kp, Ki, Kd) replacing those in cfg. Every run
// carries the standard metrics.
func PIDRunner(r recipe.Recipe, settings recipe.Settings, sim plant.SimConfig, cfg runner.Config) func(map[string]float64) (*runner.Runner, error) {
	return func(params map[string]float64) (*runner.Runner, error) {
		pid := control.NewPID(cfg.Gains)
		for name, v := range params {
			pid.SetParam(name, v)
		}
		rc := cfg
		rc.Strategy = runner.StrategyPID
		rc.Gains = pid.Gains

		p := plant.NewSimulated(sim)
		prog, err := recipe.NewProgram(r, p, settings)
		if err != nil {
			return nil, err
		}
		run, err := runner.New(prog, p, rc)
		if err != nil {
			return nil, err
		}
		for _, m := range metrics.All() {
			run.AddMetric(m)
		}
		return run, nil
	}
}
