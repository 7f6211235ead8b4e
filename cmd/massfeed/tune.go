package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/massfeed/internal/optim"
)

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	r, err := cfg.LoadRecipe()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	build := optim.PIDRunner(r, cfg.Settings(), cfg.SimConfig(), cfg.RunnerConfig())
	g := optim.NewGridSearch(
		[]string{"Kp", "Ki", "Kd"},
		[][]float64{kpValues, kiValues, kdValues},
	).WithWorkers(workers)

	fmt.Printf("tuning %s over %d gain sets...\n", r.Name, len(kpValues)*len(kiValues)*len(kdValues))
	trials := g.Evaluate(ctx, build, metric)
	sort.SliceStable(trials, func(i, j int) bool {
		if (trials[i].Err == nil) != (trials[j].Err == nil) {
			return trials[i].Err == nil
		}
		return trials[i].Value < trials[j].Value
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KP\tKI\tKD\t%s\n", metric)
	for _, tr := range trials {
		val := fmt.Sprintf("%.6f", tr.Value)
		if tr.Err != nil {
			val = "failed: " + tr.Err.Error()
		}
		fmt.Fprintf(w, "%g\t%g\t%g\t%s\n", tr.Params["Kp"], tr.Params["Ki"], tr.Params["Kd"], val)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(trials) == 0 || trials[0].Err != nil {
		return optim.ErrNoCandidate
	}
	best := trials[0]
	fmt.Printf("\nbest: kp=%g ki=%g kd=%g (%s %.6f)\n", best.Params["Kp"], best.Params["Ki"], best.Params["Kd"], metric, best.Value)
	return nil
}
