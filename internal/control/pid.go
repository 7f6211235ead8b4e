package control

import (
	"math"

	"github.com/san-kum/massfeed/internal/calculus"
)

type Gains struct {
	Kp float64 `yaml:"kp" json:"kp"`
	Ki float64 `yaml:"ki" json:"ki"`
	Kd float64 `yaml:"kd" json:"kd"`
}

// DefaultGains is proportional-only.
func DefaultGains() Gains {
	return Gains{Kp: 1}
}

// PID corrects a setpoint from the error between it and the measured process
// value, u = Kp*e + Ki*∫e + Kd*de/dt. The error history is kept for the life
// of the controller.
type PID struct {
	Gains
	errors     []calculus.Point
	integral   float64
	derivative float64
	output     float64
}

func NewPID(g Gains) *PID {
	return &PID{Gains: g}
}

// Correct records the error between the latest setpoint and process samples
// and returns the corrected setpoint. The integral accumulates one trapezoid
// per call. Until two errors are recorded, or when the correction is not
// finite, the setpoint is returned as is. Empty series give NaN.
func (p *PID) Correct(setpoint, process []calculus.Point) float64 {
	if len(setpoint) == 0 || len(process) == 0 {
		return math.NaN()
	}
	sp := setpoint[len(setpoint)-1]
	e := sp.Y - process[len(process)-1].Y
	p.errors = append(p.errors, calculus.Point{T: sp.T, Y: e})

	if len(p.errors) < 2 {
		return sp.Y
	}

	last := p.errors[len(p.errors)-2:]
	area := calculus.Integral(last, calculus.Window{Signed: true})
	d := calculus.Derivative(last)
	if math.IsNaN(area) || math.IsNaN(d) {
		return sp.Y
	}
	p.integral += area
	p.derivative = d

	u := p.Kp*e + p.Kd*d + p.Ki*p.integral
	if math.IsNaN(u) || math.IsInf(u, 0) {
		return sp.Y
	}
	p.output = u
	return sp.Y + u
}

// CorrectBatch computes the correction over the whole of both series, paired
// by index, without touching the running state. The integral folds at t = 0
// like calculus.Whole.
func (p *PID) CorrectBatch(setpoint, process []calculus.Point) float64 {
	n := min(len(setpoint), len(process))
	if n == 0 {
		return math.NaN()
	}
	errs := make([]calculus.Point, n)
	for i := range errs {
		errs[i] = calculus.Point{T: setpoint[i].T, Y: setpoint[i].Y - process[i].Y}
	}
	sp := setpoint[n-1].Y
	if n < 2 {
		return sp
	}

	u := p.Kp*errs[n-1].Y +
		p.Kd*calculus.Derivative(errs) +
		p.Ki*calculus.Integral(errs, calculus.Whole)
	if math.IsNaN(u) || math.IsInf(u, 0) {
		return sp
	}
	p.output = u
	return sp + u
}

// Errors returns a copy of the recorded error series.
func (p *PID) Errors() []calculus.Point {
	return append([]calculus.Point(nil), p.errors...)
}

func (p *PID) Integral() float64   { return p.integral }
func (p *PID) Derivative() float64 { return p.derivative }
func (p *PID) Output() float64     { return p.output }

// Reset clears the error history between runs.
func (p *PID) Reset() {
	p.errors = nil
	p.integral = 0
	p.derivative = 0
	p.output = 0
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.Kp,
		"Ki": p.Ki,
		"Kd": p.Kd,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	}
}
