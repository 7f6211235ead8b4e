package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MASSFEED_"

// LoadEnv loads path into the process environment if the file exists, without
// replacing variables that are already set, then applies MASSFEED_*
// overrides to c.
func (c *Config) LoadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv overrides fields from the variables lookup returns.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = f
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = d
	}

	str("RECIPE", &c.Recipe)
	str("STRATEGY", &c.Controller.Strategy)
	num("KP", &c.Controller.Kp)
	num("KI", &c.Controller.Ki)
	num("KD", &c.Controller.Kd)
	num("DENSITY", &c.Plant.Density)
	num("VOLUME_PER_STEP", &c.Plant.VolumePerStep)
	num("MIN_RATE", &c.Plant.Limits.Min)
	num("MAX_RATE", &c.Plant.Limits.Max)
	num("MASS", &c.Plant.Mass)
	num("MAX_PRESSURE", &c.Run.MaxPressure)
	integer("MAX_TICKS", &c.Run.MaxTicks)
	integer("WARMUP", &c.Run.Warmup)
	duration("TICK", &c.Run.Tick)
	duration("PRIME", &c.Run.Prime)

	return errors.Join(errs...)
}
