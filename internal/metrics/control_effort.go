package metrics

import (
	"math"

	"github.com/san-kum/massfeed/internal/runner"
)

var (
	_ runner.Metric = (*ControlEffort)(nil)
	_ runner.Metric = (*TrackingError)(nil)
)

// ControlEffort is the mean correction feedback applied on top of the rate
// law, |commanded - target| in g/s.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(rec runner.TickRecord) {
	c.sum += math.Abs(rec.Commanded - rec.Target)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// TrackingError is the mean |target - measured| over ticks that have a
// measured rate.
type TrackingError struct {
	name    string
	sum     float64
	samples int
}

func NewTrackingError() *TrackingError {
	return &TrackingError{name: "tracking_error"}
}

func (e *TrackingError) Name() string { return e.name }

func (e *TrackingError) Observe(rec runner.TickRecord) {
	if !rec.HasMeasured {
		return
	}
	e.sum += math.Abs(rec.Target - rec.Measured)
	e.samples++
}

func (e *TrackingError) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.sum / float64(e.samples)
}

func (e *TrackingError) Reset() {
	e.sum = 0
	e.samples = 0
}
