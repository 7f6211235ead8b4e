package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/massfeed/internal/config"
	"github.com/san-kum/massfeed/internal/recipe"
	"github.com/san-kum/massfeed/internal/units"
)

func planRecipe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	r, err := cfg.LoadRecipe()
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	conv := cfg.Converter()

	fmt.Printf("recipe: %s\n", r.Name)
	fmt.Printf("stages: %d\n\n", r.Len())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tFEED\tSTART\tSTOP\tPUMP")
	for i, spec := range r.Ordered() {
		start, pump, err := describeStart(spec, conv, cfg.Plant.DefaultRate, i == 0)
		if err != nil {
			return err
		}
		stop, err := describeStop(spec, conv)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, spec.FeedType, start, stop, pump)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if savePath != "" {
		if err := r.Save(savePath); err != nil {
			return err
		}
		fmt.Printf("\nsaved to %s\n", savePath)
	}
	return nil
}

func describeStart(spec recipe.StageSpec, conv units.Converter, defaultRate float64, first bool) (string, string, error) {
	switch spec.FeedType {
	case recipe.Timed:
		gps, err := conv.Convert(spec.Start.Rate, units.MLPerMinute, units.GramsPerSecond)
		if err != nil {
			return "", "", err
		}
		steps, err := conv.Convert(spec.Start.Rate, units.MLPerMinute, units.StepsPerSecond)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%.4f g/s", gps), fmt.Sprintf("%.2f steps/s", steps), nil
	case recipe.Linear:
		slope, err := conv.Convert(spec.Start.IncRate, units.MLPerMinute2, units.GramsPerSecond2)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%+.6f g/s²", slope), "ramp", nil
	}
	if first {
		gps, err := conv.Convert(defaultRate, units.StepsPerSecond, units.GramsPerSecond)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%.4f g/s", gps), fmt.Sprintf("%.2f steps/s", defaultRate), nil
	}
	return "previous rate", "previous", nil
}

func describeStop(spec recipe.StageSpec, conv units.Converter) (string, error) {
	switch spec.Stop.StopType {
	case recipe.StopMass:
		return fmt.Sprintf("%.2f g fed", spec.Stop.StopValue), nil
	case recipe.StopTime:
		return fmt.Sprintf("after %.2f min", spec.Stop.StopValue), nil
	case recipe.StopRate:
		gps, err := conv.Convert(spec.Stop.StopValue, units.MLPerMinute, units.GramsPerSecond)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("rate at %.4f g/s", gps), nil
	}
	return "-", nil
}

func convertRate(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[0], err)
	}
	from, err := units.ParseUnit(args[1])
	if err != nil {
		return err
	}
	to, err := units.ParseUnit(args[2])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	out, err := cfg.Converter().Convert(value, from, to)
	if err != nil {
		return err
	}
	fmt.Printf("%g %s = %g %s\n", value, from, out, to)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTAGES\tFEEDS")
	for _, name := range config.ListPresets() {
		r, _ := config.GetPreset(name)
		feeds := ""
		for i, spec := range r.Ordered() {
			if i > 0 {
				feeds += ", "
			}
			feeds += spec.FeedType.String()
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, r.Len(), feeds)
	}
	return w.Flush()
}
