package units

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncompatibleUnits is returned when a conversion would mix a rate with an
	// acceleration (per-time with per-time-squared).
	ErrIncompatibleUnits = errors.New("units: incompatible time bases")

	// ErrUnknownUnit is returned by ParseUnit for an unrecognised unit string.
	ErrUnknownUnit = errors.New("units: unknown unit")
)

// Plant defaults, shared by the converter and the engineering limits.
const (
	DefaultDensity       = 1.0 // g/mL
	DefaultVolumePerStep = 0.2 // mL/step
)

type Quantity int

const (
	Mass   Quantity = iota // grams
	Volume                 // millilitres
	Steps                  // pump steps
)

func (q Quantity) String() string {
	switch q {
	case Mass:
		return "g"
	case Volume:
		return "mL"
	case Steps:
		return "steps"
	}
	return fmt.Sprintf("Quantity(%d)", int(q))
}

type TimeBase int

const (
	PerSecond TimeBase = iota
	PerMinute
	PerHour
	PerSecond2
	PerMinute2
	PerHour2
)

func (b TimeBase) squared() bool {
	return b == PerSecond2 || b == PerMinute2 || b == PerHour2
}

// seconds is the length of one denominator unit in seconds (or seconds squared).
func (b TimeBase) seconds() float64 {
	switch b {
	case PerMinute:
		return 60
	case PerHour:
		return 3600
	case PerMinute2:
		return 60 * 60
	case PerHour2:
		return 3600 * 3600
	}
	return 1
}

func (b TimeBase) String() string {
	switch b {
	case PerSecond:
		return "s"
	case PerMinute:
		return "min"
	case PerHour:
		return "h"
	case PerSecond2:
		return "s^2"
	case PerMinute2:
		return "min^2"
	case PerHour2:
		return "h^2"
	}
	return fmt.Sprintf("TimeBase(%d)", int(b))
}

// Unit is a rate (or acceleration) unit: a quantity over a time base.
type Unit struct {
	Quantity Quantity
	Per      TimeBase
}

func (u Unit) String() string {
	return u.Quantity.String() + "/" + u.Per.String()
}

// Acceleration reports whether the unit is per time squared.
func (u Unit) Acceleration() bool {
	return u.Per.squared()
}

var (
	GramsPerSecond  = Unit{Mass, PerSecond}
	GramsPerSecond2 = Unit{Mass, PerSecond2}
	GramsPerMinute  = Unit{Mass, PerMinute}
	MLPerSecond     = Unit{Volume, PerSecond}
	MLPerMinute     = Unit{Volume, PerMinute}
	MLPerMinute2    = Unit{Volume, PerMinute2}
	StepsPerSecond  = Unit{Steps, PerSecond}
	StepsPerMinute  = Unit{Steps, PerMinute}
	StepsPerSecond2 = Unit{Steps, PerSecond2}
)

// "m", "v" and "s" are the single-letter codes recipe authors already use.
var (
	quantityNames = map[string]Quantity{
		"g": Mass, "m": Mass, "mass": Mass,
		"ml": Volume, "v": Volume, "volume": Volume,
		"steps": Steps, "step": Steps, "s": Steps,
	}
	timeBaseNames = map[string]TimeBase{
		"s": PerSecond, "sec": PerSecond,
		"min": PerMinute,
		"h": PerHour, "hour": PerHour,
		"s^2": PerSecond2, "sec^2": PerSecond2,
		"min^2": PerMinute2,
		"h^2": PerHour2, "hour^2": PerHour2,
	}
)

// ParseUnit reads strings such as "g/s", "mL/min", "steps/s" or "mL/min^2".
func ParseUnit(s string) (Unit, error) {
	num, den, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "/")
	if !ok {
		return Unit{}, fmt.Errorf("%w %q", ErrUnknownUnit, s)
	}
	q, ok := quantityNames[num]
	if !ok {
		return Unit{}, fmt.Errorf("%w %q", ErrUnknownUnit, s)
	}
	b, ok := timeBaseNames[den]
	if !ok {
		return Unit{}, fmt.Errorf("%w %q", ErrUnknownUnit, s)
	}
	return Unit{Quantity: q, Per: b}, nil
}

// Converter turns rates between mass, volume and pump steps using the solution
// density and the pump's displacement per step.
type Converter struct {
	Density       float64 `yaml:"density"`         // g/mL
	VolumePerStep float64 `yaml:"volume_per_step"` // mL/step
}

func DefaultConverter() Converter {
	return Converter{
		Density:       DefaultDensity,
		VolumePerStep: DefaultVolumePerStep,
	}
}

// MassPerStep is the grams moved by one pump step.
func (c Converter) MassPerStep() float64 {
	return c.Density * c.VolumePerStep
}

// toVolume is the factor taking one unit of q to millilitres.
func (c Converter) toVolume(q Quantity) float64 {
	switch q {
	case Mass:
		return 1 / c.Density
	case Steps:
		return c.VolumePerStep
	}
	return 1
}

// Between builds the conversion from one unit to another. Mixing a rate with an
// acceleration fails here, before any number is multiplied.
func (c Converter) Between(from, to Unit) (Conversion, error) {
	if from.Acceleration() != to.Acceleration() {
		return Conversion{}, fmt.Errorf("%w: %s -> %s", ErrIncompatibleUnits, from, to)
	}
	amount := c.toVolume(from.Quantity) / c.toVolume(to.Quantity)
	timing := to.Per.seconds() / from.Per.seconds()
	return Conversion{From: from, To: to, Factor: amount * timing}, nil
}

// Convert is Between followed by Apply.
func (c Converter) Convert(rate float64, from, to Unit) (float64, error) {
	conv, err := c.Between(from, to)
	if err != nil {
		return 0, err
	}
	return conv.Apply(rate), nil
}

// Conversion is a validated, reusable multiplier between two units.
type Conversion struct {
	From   Unit
	To     Unit
	Factor float64
}

func (c Conversion) Apply(rate float64) float64 {
	return rate * c.Factor
}

// Inverse converts back from To to From.
func (c Conversion) Inverse() Conversion {
	return Conversion{From: c.To, To: c.From, Factor: 1 / c.Factor}
}
