package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/massfeed/internal/control"
	"github.com/san-kum/massfeed/internal/limit"
	"github.com/san-kum/massfeed/internal/plant"
	"github.com/san-kum/massfeed/internal/recipe"
	"github.com/san-kum/massfeed/internal/runner"
	"github.com/san-kum/massfeed/internal/units"
)

const (
	DefaultDensity       = 1.0
	DefaultVolumePerStep = 0.2
	DefaultMass          = 250.0
	DefaultPressure      = 1.0
	DefaultPressureDrift = 0.01
	DefaultTick          = time.Second
	DefaultMaxTicks      = 3600
	DefaultMaxPressure   = 100.0
	DefaultWarmup        = 3
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Recipe     string           `yaml:"recipe"`
	Plant      PlantConfig      `yaml:"plant"`
	Controller ControllerConfig `yaml:"controller"`
	Run        RunConfig        `yaml:"run"`
}

type PlantConfig struct {
	Density       float64      `yaml:"density"`
	VolumePerStep float64      `yaml:"volume_per_step"`
	Limits        limit.Limits `yaml:"limits"`
	DefaultRate   float64      `yaml:"default_rate"`
	Mass          float64      `yaml:"mass"`
	Pressure      float64      `yaml:"pressure"`
	PressureDrift float64      `yaml:"pressure_drift"`
}

type ControllerConfig struct {
	Strategy string  `yaml:"strategy"`
	Kp       float64 `yaml:"kp"`
	Ki       float64 `yaml:"ki"`
	Kd       float64 `yaml:"kd"`
}

type RunConfig struct {
	Tick        time.Duration `yaml:"tick"`
	MaxTicks    int           `yaml:"max_ticks"`
	MaxPressure float64       `yaml:"max_pressure"`
	Warmup      int           `yaml:"warmup"`
	Prime       time.Duration `yaml:"prime"`
}

func DefaultConfig() *Config {
	gains := control.DefaultGains()
	return &Config{
		Recipe: "demo",
		Plant: PlantConfig{
			Density:       DefaultDensity,
			VolumePerStep: DefaultVolumePerStep,
			Limits:        limit.DefaultLimits(),
			DefaultRate:   recipe.DefaultRate,
			Mass:          DefaultMass,
			Pressure:      DefaultPressure,
			PressureDrift: DefaultPressureDrift,
		},
		Controller: ControllerConfig{
			Strategy: string(runner.StrategyNone),
			Kp:       gains.Kp,
			Ki:       gains.Ki,
			Kd:       gains.Kd,
		},
		Run: RunConfig{
			Tick:        DefaultTick,
			MaxTicks:    DefaultMaxTicks,
			MaxPressure: DefaultMaxPressure,
			Warmup:      DefaultWarmup,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Plant.Density <= 0 {
		errs = append(errs, fmt.Errorf("density must be positive, got %f", c.Plant.Density))
	}
	if c.Plant.VolumePerStep <= 0 {
		errs = append(errs, fmt.Errorf("volume per step must be positive, got %f", c.Plant.VolumePerStep))
	}
	if c.Plant.Limits.Min < 0 || c.Plant.Limits.Max <= c.Plant.Limits.Min {
		errs = append(errs, fmt.Errorf("pump limits must satisfy 0 <= min < max, got [%f, %f]",
			c.Plant.Limits.Min, c.Plant.Limits.Max))
	}
	if !c.Plant.Limits.Contains(c.Plant.DefaultRate) {
		errs = append(errs, fmt.Errorf("default rate %f is outside the pump limits", c.Plant.DefaultRate))
	}
	if _, ok := runner.ParseStrategy(c.Controller.Strategy); !ok {
		errs = append(errs, fmt.Errorf("unknown strategy %q", c.Controller.Strategy))
	}
	if c.Run.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick must be positive, got %s", c.Run.Tick))
	}
	if c.Run.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("max ticks must not be negative, got %d", c.Run.MaxTicks))
	}
	if c.Run.MaxPressure <= 0 {
		errs = append(errs, fmt.Errorf("max pressure must be positive, got %f", c.Run.MaxPressure))
	}
	if c.Run.Warmup < 0 {
		errs = append(errs, fmt.Errorf("warmup must not be negative, got %d", c.Run.Warmup))
	}
	if c.Run.Prime < 0 {
		errs = append(errs, fmt.Errorf("prime must not be negative, got %s", c.Run.Prime))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) Converter() units.Converter {
	return units.Converter{Density: c.Plant.Density, VolumePerStep: c.Plant.VolumePerStep}
}

func (c *Config) Gains() control.Gains {
	return control.Gains{Kp: c.Controller.Kp, Ki: c.Controller.Ki, Kd: c.Controller.Kd}
}

func (c *Config) Settings() recipe.Settings {
	return recipe.Settings{
		Converter:   c.Converter(),
		Limits:      c.Plant.Limits,
		DefaultRate: c.Plant.DefaultRate,
		Gains:       c.Gains(),
	}
}

func (c *Config) SimConfig() plant.SimConfig {
	sc := plant.DefaultSimConfig()
	sc.Initial.Mass = c.Plant.Mass
	sc.Initial.Pressure = c.Plant.Pressure
	sc.Converter = c.Converter()
	sc.Limits = c.Plant.Limits
	sc.PressureDrift = c.Plant.PressureDrift
	return sc
}

func (c *Config) RunnerConfig() runner.Config {
	return runner.Config{
		Tick:        c.Run.Tick,
		MaxTicks:    c.Run.MaxTicks,
		Strategy:    runner.Strategy(c.Controller.Strategy),
		Gains:       c.Gains(),
		MaxPressure: c.Run.MaxPressure,
		Warmup:      c.Run.Warmup,
		Prime:       c.Run.Prime,
	}
}

// LoadRecipe resolves the configured recipe: a preset name, or otherwise the
// path of a recipe file.
func (c *Config) LoadRecipe() (recipe.Recipe, error) {
	if r, ok := GetPreset(c.Recipe); ok {
		return r, nil
	}
	return recipe.Load(c.Recipe)
}
