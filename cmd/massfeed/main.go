package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/san-kum/massfeed/internal/config"
)

var (
	configFile string
	envFile    string
	verbose    bool
	// Run parameters
	strategy string
	kp       float64
	ki       float64
	kd       float64
	tick     time.Duration
	maxTicks int
	mass     float64
	prime    time.Duration
	// Output
	plot    bool
	jsonOut string
	csvOut  string
	// Live view
	frame time.Duration
	// Plan
	savePath string
	// Tuning
	kpValues []float64
	kiValues []float64
	kdValues []float64
	metric   string
	workers  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "massfeed",
		Short:         "multi-stage liquid feed dosing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file with MASSFEED_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [recipe]",
		Short: "feed a recipe against the simulated plant",
		Long:  "Feed a recipe, given as a preset name or a recipe file, against the simulated plant.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRecipe,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot scale mass and pump rate")
	runCmd.Flags().StringVar(&jsonOut, "json", "", "write the run as json to a file, - for stdout")
	runCmd.Flags().StringVar(&csvOut, "csv", "", "write the tick trace as csv to a file, - for stdout")

	liveCmd := &cobra.Command{
		Use:   "live [recipe]",
		Short: "feed a recipe with a live view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().DurationVar(&frame, "frame", 50*time.Millisecond, "pause between ticks")

	planCmd := &cobra.Command{
		Use:   "plan [recipe]",
		Short: "validate a recipe and show its stages",
		Args:  cobra.MaximumNArgs(1),
		RunE:  planRecipe,
	}
	planCmd.Flags().StringVar(&savePath, "save", "", "write the recipe to a yaml file")

	convertCmd := &cobra.Command{
		Use:     "convert [value] [from] [to]",
		Short:   "convert a rate between units",
		Example: "  massfeed convert 60 mL/min steps/s\n  massfeed convert 180 mL/min^2 g/s^2",
		Args:    cobra.ExactArgs(3),
		RunE:    convertRate,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list preset recipes",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune [recipe]",
		Short: "grid search PID gains against the simulated plant",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneGains,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().Float64SliceVar(&kpValues, "kp-values", []float64{0.25, 0.5, 1}, "candidate kp values")
	tuneCmd.Flags().Float64SliceVar(&kiValues, "ki-values", []float64{0, 0.05, 0.1}, "candidate ki values")
	tuneCmd.Flags().Float64SliceVar(&kdValues, "kd-values", []float64{0}, "candidate kd values")
	tuneCmd.Flags().StringVar(&metric, "metric", "tracking_error", "metric to minimise")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0 for one per cpu)")

	rootCmd.AddCommand(runCmd, liveCmd, planCmd, convertCmd, presetsCmd, tuneCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&strategy, "strategy", "none", "feedback strategy: none, pid or cascade")
	cmd.Flags().Float64Var(&kp, "kp", 1.0, "pid kp")
	cmd.Flags().Float64Var(&ki, "ki", 0.0, "pid ki")
	cmd.Flags().Float64Var(&kd, "kd", 0.0, "pid kd")
	cmd.Flags().DurationVar(&tick, "tick", time.Second, "control period")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", config.DefaultMaxTicks, "give up after this many ticks (0 for no limit)")
	cmd.Flags().Float64Var(&mass, "mass", config.DefaultMass, "feed stock on the scale at start (g)")
	cmd.Flags().DurationVar(&prime, "prime", 0, "prime the pump for this long before feeding")
}

// loadConfig layers the config file, the environment and then any flags the
// user set explicitly over the defaults.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Controller.Strategy = strategy
	}
	if flags.Changed("kp") {
		cfg.Controller.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.Controller.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.Controller.Kd = kd
	}
	if flags.Changed("tick") {
		cfg.Run.Tick = tick
	}
	if flags.Changed("max-ticks") {
		cfg.Run.MaxTicks = maxTicks
	}
	if flags.Changed("mass") {
		cfg.Plant.Mass = mass
	}
	if flags.Changed("prime") {
		cfg.Run.Prime = prime
	}
	if len(args) > 0 {
		cfg.Recipe = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
