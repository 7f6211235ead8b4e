package viz

import (
	"math"

	"github.com/san-kum/massfeed/internal/recipe"
	"github.com/san-kum/massfeed/internal/runner"
)

// StageProgress estimates how far the active stage is towards its stop
// condition, from 0 to 1, given the latest tick.
func StageProgress(v recipe.View, rec runner.TickRecord) float64 {
	var p float64
	switch v.Stop.Type {
	case recipe.StopTime:
		total := v.Stop.Deadline.Sub(v.Start.Time).Seconds()
		if total <= 0 {
			return 1
		}
		p = rec.Time.Sub(v.Start.Time).Seconds() / total
	case recipe.StopMass:
		total := v.Start.Mass - v.Stop.Value
		if total == 0 {
			return 1
		}
		p = (v.Start.Mass - rec.Mass) / total
	case recipe.StopRate:
		total := v.Stop.Value - v.Coefficients.Intercept
		if total == 0 {
			return 1
		}
		p = (rec.PumpRate - v.Coefficients.Intercept) / total
	default:
		return 0
	}
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(1, p))
}
