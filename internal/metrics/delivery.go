package metrics

import "github.com/san-kum/massfeed/internal/runner"

var (
	_ runner.Metric = (*DeliveredMass)(nil)
	_ runner.Metric = (*LimitRate)(nil)
)

// DeliveredMass is the mass taken off the scale since the first tick, in g.
type DeliveredMass struct {
	name    string
	initial float64
	last    float64
	samples int
}

func NewDeliveredMass() *DeliveredMass {
	return &DeliveredMass{name: "delivered_mass"}
}

func (d *DeliveredMass) Name() string { return d.name }

func (d *DeliveredMass) Observe(rec runner.TickRecord) {
	if d.samples == 0 {
		d.initial = rec.Mass
	}
	d.last = rec.Mass
	d.samples++
}

func (d *DeliveredMass) Value() float64 {
	if d.samples == 0 {
		return 0
	}
	return d.initial - d.last
}

func (d *DeliveredMass) Reset() {
	d.initial = 0
	d.last = 0
	d.samples = 0
}

// LimitRate is the fraction of ticks on which the pump command was clamped.
type LimitRate struct {
	name    string
	hits    int
	samples int
}

func NewLimitRate() *LimitRate {
	return &LimitRate{name: "limit_rate"}
}

func (l *LimitRate) Name() string { return l.name }

func (l *LimitRate) Observe(rec runner.TickRecord) {
	l.samples++
	if rec.LimitHit {
		l.hits++
	}
}

func (l *LimitRate) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return float64(l.hits) / float64(l.samples)
}

func (l *LimitRate) Reset() {
	l.hits = 0
	l.samples = 0
}

// All returns a fresh instance of every run metric.
func All() []runner.Metric {
	return []runner.Metric{
		NewDeliveredMass(),
		NewLimitRate(),
		NewTrackingError(),
		NewControlEffort(),
	}
}
