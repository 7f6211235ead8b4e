// Package limit clamps candidate pump rates to the pump's engineering range
// and to the active stage's stop bound.
package limit

import "math"

// Engineering range of the pump, in steps/s.
const (
	DefaultMin = 0.1
	DefaultMax = 12000.0
)

// Limits is the pump's working range in steps/s.
type Limits struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func DefaultLimits() Limits {
	return Limits{Min: DefaultMin, Max: DefaultMax}
}

// Bound is an optional recipe limit on the rate. A lower bound stops the rate
// from falling under Value; otherwise the rate may not rise above it. Zero is
// a valid bound.
type Bound struct {
	Value   float64
	Present bool
	Lower   bool
}

// NoBound leaves the rate to the engineering limits only.
var NoBound = Bound{}

func Upper(v float64) Bound { return Bound{Value: v, Present: true} }

func Lower(v float64) Bound { return Bound{Value: v, Present: true, Lower: true} }

// Attenuate returns the rate to command and whether any limit changed it.
// Rates under Min are raised to Min, except negative rates which stop the
// pump, and rates over Max are lowered to Max. The stop bound is then applied
// to the clamped rate and wins over both. A NaN rate stops the pump.
func (l Limits) Attenuate(rate float64, b Bound) (float64, bool) {
	if math.IsNaN(rate) {
		return 0, true
	}

	hit := false
	switch {
	case rate < 0:
		rate, hit = 0, true
	case rate < l.Min:
		rate, hit = l.Min, true
	case rate > l.Max:
		rate, hit = l.Max, true
	}

	if b.Present && ((!b.Lower && rate > b.Value) || (b.Lower && rate < b.Value)) {
		return b.Value, true
	}
	return rate, hit
}

// Contains reports whether rate is a valid pump command: zero, or within
// [Min, Max] allowing for float rounding.
func (l Limits) Contains(rate float64) bool {
	const eps = 1e-9
	if rate == 0 {
		return true
	}
	return rate >= l.Min-eps && rate <= l.Max+eps
}
