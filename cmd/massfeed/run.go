package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/san-kum/massfeed/internal/config"
	"github.com/san-kum/massfeed/internal/export"
	"github.com/san-kum/massfeed/internal/metrics"
	"github.com/san-kum/massfeed/internal/plant"
	"github.com/san-kum/massfeed/internal/recipe"
	"github.com/san-kum/massfeed/internal/runner"
	"github.com/san-kum/massfeed/internal/viz"
)

// newRunner wires a runner for cfg's recipe on a fresh simulated plant. The
// pump and valve are shut off at exit whatever happens to the run.
func newRunner(cfg *config.Config, log *slog.Logger) (*runner.Runner, *plant.Simulated, error) {
	r, err := cfg.LoadRecipe()
	if err != nil {
		return nil, nil, err
	}
	sim := plant.NewSimulated(cfg.SimConfig())
	prog, err := recipe.NewProgram(r, sim, cfg.Settings())
	if err != nil {
		return nil, nil, err
	}
	run, err := runner.New(prog, sim, cfg.RunnerConfig(), runner.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	for _, m := range metrics.All() {
		run.AddMetric(m)
	}
	atexit.Register(func() {
		if err := run.Stop(); err != nil {
			log.Error("shut off failed", "err", err)
		}
	})
	return run, sim, nil
}

func runRecipe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	log := newLogger()
	run, sim, err := newRunner(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(os.Stderr, "feeding %s (%d stages, %s feedback)...\n",
		run.Program().Name(), run.Program().Len(), cfg.Controller.Strategy)
	result, runErr := run.Run(ctx)

	if jsonOut != "" {
		if err := export.ToFile(jsonOut, result, export.WriteJSON); err != nil {
			return err
		}
	}
	if csvOut != "" {
		if err := export.ToFile(csvOut, result, export.WriteCSV); err != nil {
			return err
		}
	}
	if jsonOut == "-" || csvOut == "-" {
		return runErr
	}

	printSummary(result, sim)
	if plot {
		plotTrace(result)
	}
	return runErr
}

func printSummary(result *runner.Result, sim *plant.Simulated) {
	status := "completed"
	if !result.Completed {
		status = "aborted"
	}
	fmt.Printf("run id: %s\n", result.ID)
	fmt.Printf("status: %s\n", status)
	fmt.Printf("ticks: %d\n", result.Ticks)
	fmt.Printf("stages: %d\n", result.Stages)
	fmt.Printf("duration: %s\n", result.Finished.Sub(result.Started))
	fmt.Printf("scale: %.2f g\n", sim.State().Mass)

	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
}

func plotTrace(result *runner.Result) {
	if len(result.Trace) < 2 {
		fmt.Println("not enough ticks to plot")
		return
	}
	massData := make([]float64, len(result.Trace))
	rateData := make([]float64, len(result.Trace))
	targetData := make([]float64, len(result.Trace))
	for i, rec := range result.Trace {
		massData[i] = rec.Mass
		rateData[i] = rec.PumpRate
		targetData[i] = rec.Target
	}

	fmt.Println()
	graph := asciigraph.Plot(massData,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("scale (g)"),
	)
	fmt.Println(graph)
	fmt.Println()
	graph = asciigraph.PlotMany([][]float64{rateData, targetData},
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.Yellow),
		asciigraph.Caption("pump and target rate (g/s)"),
	)
	fmt.Println(graph)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	// the view owns the terminal, so only warnings reach the log
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	run, _, err := newRunner(cfg, log)
	if err != nil {
		return err
	}

	m := viz.NewModel(context.Background(), run, frame)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	lm := final.(viz.Model)
	if lm.Err() != nil {
		return lm.Err()
	}
	if lm.Done() {
		fmt.Printf("%s complete after %d ticks\n", run.Program().Name(), run.Ticks())
	}
	return nil
}
