// Package calculus holds the discrete integral and derivative used by the
// feedback controllers. Results that are not defined for the given samples
// are reported as NaN.
package calculus

import (
	"math"
	"time"
)

// Point is one sample of a time series, with T in seconds.
type Point struct {
	T float64
	Y float64
}

// Sample is a reading stamped with wall-clock time.
type Sample struct {
	At    time.Time
	Value float64
}

// Offset is a reading stamped relative to some start.
type Offset struct {
	After time.Duration
	Value float64
}

// FromSamples converts absolute timestamps to seconds elapsed since the first
// sample.
func FromSamples(samples []Sample) []Point {
	if len(samples) == 0 {
		return nil
	}
	t0 := samples[0].At
	pts := make([]Point, len(samples))
	for i, s := range samples {
		pts[i] = Point{T: s.At.Sub(t0).Seconds(), Y: s.Value}
	}
	return pts
}

func FromOffsets(offsets []Offset) []Point {
	pts := make([]Point, len(offsets))
	for i, o := range offsets {
		pts[i] = Point{T: o.After.Seconds(), Y: o.Value}
	}
	return pts
}

// Window selects the samples to integrate. Start and End are sample indices,
// both inclusive; End == 0 means through the last sample. Unless Signed is set,
// the parts of the window before and after t = 0 are integrated separately and
// their magnitudes added.
type Window struct {
	Start  int
	End    int
	Signed bool
}

// Whole integrates every sample, folding at t = 0.
var Whole = Window{}

// Integral is the trapezoidal integral of pts over w.
func Integral(pts []Point, w Window) float64 {
	end := w.End
	if end == 0 {
		end = len(pts) - 1
	}
	if w.Start < 0 || end >= len(pts) || end-w.Start < 1 {
		return math.NaN()
	}
	seg := pts[w.Start : end+1]

	if w.Signed {
		return trapezoid(seg)
	}

	var pos, neg []Point
	for _, p := range seg {
		if p.T >= 0 {
			pos = append(pos, p)
		} else {
			neg = append(neg, p)
		}
	}
	return trapezoid(pos) + math.Abs(trapezoid(neg))
}

func trapezoid(pts []Point) float64 {
	sum := 0.0
	for i := 1; i < len(pts); i++ {
		sum += (pts[i].Y + pts[i-1].Y) / 2 * (pts[i].T - pts[i-1].T)
	}
	return sum
}

// slopes returns the difference quotient of every interval. Intervals with no
// elapsed time are NaN.
func slopes(pts []Point) []float64 {
	if len(pts) < 2 {
		return nil
	}
	d := make([]float64, len(pts)-1)
	for i := range d {
		dt := pts[i+1].T - pts[i].T
		if dt == 0 {
			d[i] = math.NaN()
			continue
		}
		d[i] = (pts[i+1].Y - pts[i].Y) / dt
	}
	return d
}

// Derivative is the slope of the most recent interval.
func Derivative(pts []Point) float64 {
	d := slopes(pts)
	if len(d) == 0 {
		return math.NaN()
	}
	return d[len(d)-1]
}

// Tangent estimates the slope at t0. On an interior sample it averages the two
// adjacent intervals; at the ends it uses the single adjacent interval; between
// samples it uses the interval containing t0. Outside the sampled range the
// tangent is NaN. pts must be ordered by T.
func Tangent(pts []Point, t0 float64) float64 {
	d := slopes(pts)
	if len(d) == 0 {
		return math.NaN()
	}
	first, last := pts[0].T, pts[len(pts)-1].T
	if t0 < first || t0 > last {
		return math.NaN()
	}

	for i, p := range pts {
		if p.T != t0 {
			continue
		}
		switch i {
		case 0:
			return d[0]
		case len(pts) - 1:
			return d[len(d)-1]
		}
		return (d[i-1] + d[i]) / 2
	}

	for i := 1; i < len(pts); i++ {
		if pts[i].T > t0 {
			return d[i-1]
		}
	}
	return d[len(d)-1]
}
