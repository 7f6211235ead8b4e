package control

import (
	"github.com/san-kum/massfeed/internal/calculus"
	"github.com/san-kum/massfeed/internal/plant"
)

// Cascade is a bang-bang fallback for untuned gains: it nudges the pump up
// when the process runs below the setpoint and down when above.
type Cascade struct {
	actuator plant.Actuator
	errors   []calculus.Point
}

func NewCascade(a plant.Actuator) *Cascade {
	return &Cascade{actuator: a}
}

// Correct records the latest error and nudges the pump. It returns the
// direction issued, or 0 when the error is zero.
func (c *Cascade) Correct(setpoint, process []calculus.Point) (plant.Direction, error) {
	if len(setpoint) == 0 || len(process) == 0 {
		return 0, nil
	}
	sp := setpoint[len(setpoint)-1]
	e := sp.Y - process[len(process)-1].Y
	c.errors = append(c.errors, calculus.Point{T: sp.T, Y: e})

	var d plant.Direction
	switch {
	case e > 0:
		d = plant.SpeedUp
	case e < 0:
		d = plant.SlowDown
	default:
		return 0, nil
	}
	return d, c.actuator.Nudge(d)
}

func (c *Cascade) Errors() []calculus.Point {
	return append([]calculus.Point(nil), c.errors...)
}
