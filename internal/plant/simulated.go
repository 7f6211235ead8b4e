package plant

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/massfeed/internal/limit"
	"github.com/san-kum/massfeed/internal/units"
)

// Nudge factors applied by Simulated.
const (
	NudgeUp   = 1.05
	NudgeDown = 0.95
)

// EmptyMass is the scale reading below which the feed stock is considered gone.
const EmptyMass = -1.0

// State is the full condition of a simulated plant.
type State struct {
	Mass     float64 // g
	Pump     float64 // steps/min
	Pressure float64 // atm
	Valve    ValvePosition
	Time     time.Time
}

// DefaultState is a closed, idle plant with 250 g of feed stock at 1 atm.
func DefaultState() State {
	return State{
		Mass:     250,
		Pressure: 1,
		Valve:    ValveClosed,
		Time:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SimConfig describes the simulated hardware.
type SimConfig struct {
	Initial       State
	Converter     units.Converter
	Limits        limit.Limits
	PressureDrift float64 // atm added per read
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Initial:       DefaultState(),
		Converter:     units.DefaultConverter(),
		Limits:        limit.DefaultLimits(),
		PressureDrift: 0.01,
	}
}

// Simulated is an in-memory plant. Time only moves in Sleep, during which the
// scale drains by the mass the pump delivers. Not safe for concurrent use.
type Simulated struct {
	cfg   SimConfig
	state State
}

func NewSimulated(cfg SimConfig) *Simulated {
	return &Simulated{cfg: cfg, state: cfg.Initial}
}

// State returns a copy of the current plant state.
func (s *Simulated) State() State { return s.state }

func (s *Simulated) Read() (Reading, error) {
	s.state.Pressure += s.cfg.PressureDrift
	r := Reading{
		Mass:     s.state.Mass,
		Rate:     s.state.Pump / 60,
		Time:     s.state.Time,
		Pressure: s.state.Pressure,
		Valve:    s.state.Valve,
	}
	if r.Mass < EmptyMass {
		return r, ErrFeedEmpty
	}
	return r, nil
}

func (s *Simulated) Pump(stepsPerMinute float64) error {
	if math.IsNaN(stepsPerMinute) || !s.cfg.Limits.Contains(math.Abs(stepsPerMinute)/60) {
		return fmt.Errorf("%w: %.4g steps/min", ErrRateOutOfRange, stepsPerMinute)
	}
	s.state.Pump = math.Abs(stepsPerMinute)
	return nil
}

func (s *Simulated) Nudge(d Direction) error {
	rate := s.state.Pump / 60
	switch d {
	case SpeedUp:
		rate = math.Min(rate*NudgeUp, s.cfg.Limits.Max)
	case SlowDown:
		rate *= NudgeDown
		if rate <= s.cfg.Limits.Min {
			rate = 0
		}
	default:
		return fmt.Errorf("plant: unknown nudge direction %d", int(d))
	}
	s.state.Pump = rate * 60
	return nil
}

func (s *Simulated) Valve(pos ValvePosition) error {
	if pos != ValveOpen && pos != ValveClosed {
		return fmt.Errorf("%w: %d", ErrInvalidValve, int(pos))
	}
	s.state.Valve = pos
	return nil
}

func (s *Simulated) Now() time.Time { return s.state.Time }

// Sleep advances simulated time by d without blocking.
func (s *Simulated) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delivered := s.state.Pump / 60 * s.cfg.Converter.MassPerStep() * d.Seconds()
	s.state.Mass -= delivered
	s.state.Time = s.state.Time.Add(d)
	return nil
}
