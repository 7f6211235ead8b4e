package recipe

import (
	"fmt"

	"github.com/san-kum/massfeed/internal/control"
	"github.com/san-kum/massfeed/internal/limit"
	"github.com/san-kum/massfeed/internal/plant"
	"github.com/san-kum/massfeed/internal/units"
)

// DefaultRate is the first stage's starting pump rate in steps/s.
const DefaultRate = 10.0

type Settings struct {
	Converter   units.Converter
	Limits      limit.Limits
	DefaultRate float64 // steps/s
	Gains       control.Gains
}

func DefaultSettings() Settings {
	return Settings{
		Converter:   units.DefaultConverter(),
		Limits:      limit.DefaultLimits(),
		DefaultRate: DefaultRate,
		Gains:       control.DefaultGains(),
	}
}

// Adjustment modifies a rate before Program.Pump attenuates it. When any gain
// is selected the rate is first scaled by the sum of the selected gains; Add
// is then added in the rate's own unit.
type Adjustment struct {
	Add          float64
	Proportional bool
	Integral     bool
	Derivative   bool
}

func (a Adjustment) scale(g control.Gains) (float64, bool) {
	if !a.Proportional && !a.Integral && !a.Derivative {
		return 1, false
	}
	k := 0.0
	if a.Proportional {
		k += g.Kp
	}
	if a.Integral {
		k += g.Ki
	}
	if a.Derivative {
		k += g.Kd
	}
	return k, true
}

// Program runs a recipe one stage at a time against a plant. The cursor only
// moves forward; once every stage has run the program stays exhausted. The
// active stage's view is fixed by Advance and survives SetStage. Not safe for
// concurrent use.
type Program struct {
	name      string
	stages    []Stage
	cursor    int
	exhausted bool
	active    View
	plant     plant.Plant
	settings  Settings
}

func NewProgram(r Recipe, p plant.Plant, s Settings) (*Program, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	specs := r.Ordered()
	stages := make([]Stage, len(specs))
	for i, spec := range specs {
		stages[i] = Stage{Number: i + 1, Spec: spec}
	}
	return &Program{
		name:     r.Name,
		stages:   stages,
		plant:    p,
		settings: s,
	}, nil
}

func (p *Program) Name() string { return p.name }

func (p *Program) Len() int { return len(p.stages) }

// Cursor is the number of the active stage, 0 before the first Advance.
func (p *Program) Cursor() int { return p.cursor }

func (p *Program) Exhausted() bool { return p.exhausted }

func (p *Program) Settings() Settings { return p.settings }

// Current returns the active stage.
func (p *Program) Current() (View, bool) {
	if p.cursor == 0 || p.exhausted {
		return View{}, false
	}
	return p.active, true
}

// Advance activates the next stage, computing its rate law from a fresh plant
// reading. It returns ErrExhausted once no stages remain, and on every call
// after that.
func (p *Program) Advance() (View, error) {
	if p.exhausted || p.cursor >= len(p.stages) {
		p.exhausted = true
		p.active = View{}
		return View{}, ErrExhausted
	}

	r, err := p.plant.Read()
	if err != nil {
		return View{}, fmt.Errorf("read plant: %w", err)
	}
	rate, err := p.settings.Converter.Convert(r.Rate, units.StepsPerSecond, units.GramsPerSecond)
	if err != nil {
		return View{}, err
	}
	snap := Snapshot{Time: r.Time, Mass: r.Mass, Rate: rate}

	idx := p.cursor
	var prev *Stage
	if idx > 0 {
		prev = &p.stages[idx-1]
	}
	if _, err := p.stages[idx].Calculate(prev, snap, p.settings.Converter, p.settings.DefaultRate); err != nil {
		return View{}, err
	}
	p.cursor++
	p.active = p.stages[idx].View()
	return p.active, nil
}

// Pump commands the pump at rate, given in unit in. The rate is adjusted,
// clamped to the pump's range and to the active stage's stop rate, and sent
// to the plant in steps/min. limitHit reports whether clamping changed it.
// Out-of-range rates are never an error.
func (p *Program) Pump(rate float64, in units.Unit, adj Adjustment) (limitHit bool, err error) {
	conv := p.settings.Converter

	if k, ok := adj.scale(p.settings.Gains); ok {
		rate *= k
	}
	rate += adj.Add

	steps, err := conv.Convert(rate, in, units.StepsPerSecond)
	if err != nil {
		return false, err
	}

	bound := limit.NoBound
	if v, ok := p.Current(); ok && v.Stop.Type == StopRate {
		b, err := conv.Convert(v.Stop.Value, units.GramsPerSecond, units.StepsPerSecond)
		if err != nil {
			return false, err
		}
		bound = limit.Bound{Value: b, Present: true, Lower: v.LowerBound}
	}

	steps, limitHit = p.settings.Limits.Attenuate(steps, bound)

	perMinute, err := conv.Convert(steps, units.StepsPerSecond, units.StepsPerMinute)
	if err != nil {
		return limitHit, err
	}
	if err := p.plant.Pump(perMinute); err != nil {
		return limitHit, fmt.Errorf("pump: %w", err)
	}
	return limitHit, nil
}

// Stage returns a copy of stage n, numbered from 1.
func (p *Program) Stage(n int) (Stage, bool) {
	if n < 1 || n > len(p.stages) {
		return Stage{}, false
	}
	return p.stages[n-1], true
}

// SetStage replaces stage n with spec, or appends it when n is 0 or one past
// the last stage. A replaced stage keeps no runtime state; its rate law is
// computed when it is next advanced into. Replacing the active stage leaves
// Current and Pump on the stage as it was advanced into until the next Advance.
func (p *Program) SetStage(spec StageSpec, n int) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	switch {
	case n <= 0 || n == len(p.stages)+1:
		p.stages = append(p.stages, Stage{Number: len(p.stages) + 1, Spec: spec})
	case n <= len(p.stages):
		p.stages[n-1] = Stage{Number: n, Spec: spec}
	default:
		return fmt.Errorf("%w: %d (program has %d stages)", ErrStageIndex, n, len(p.stages))
	}
	return nil
}

// Recipe returns the program's current stage specs.
func (p *Program) Recipe() Recipe {
	specs := make([]StageSpec, len(p.stages))
	for i, s := range p.stages {
		specs[i] = s.Spec
	}
	return New(p.name, specs...)
}
