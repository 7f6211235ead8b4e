package recipe

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/massfeed/internal/units"
)

// Snapshot is the plant's condition at an instant, with Rate in g/s.
type Snapshot struct {
	Time time.Time `json:"time"`
	Mass float64   `json:"mass"`
	Rate float64   `json:"rate"`
}

// Coefficients define the stage rate law rate(t) = Slope*t + Intercept in
// g/s, with t in seconds since the stage started.
type Coefficients struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

func (c Coefficients) At(elapsed float64) float64 {
	return c.Slope*elapsed + c.Intercept
}

// StopCondition ends a stage. Value is in g for StopMass and g/s for StopRate;
// Deadline is only set for StopTime.
type StopCondition struct {
	Type     StopType  `json:"type"`
	Value    float64   `json:"value,omitempty"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// Reached reports whether s satisfies the condition. lower selects the
// direction: the watched value falls to Value rather than rising to it.
// Values within float rounding of Value count as reached.
func (c StopCondition) Reached(s Snapshot, lower bool) bool {
	var v float64
	switch c.Type {
	case StopTime:
		return !s.Time.Before(c.Deadline)
	case StopMass:
		v = s.Mass
	case StopRate:
		v = s.Rate
	default:
		return false
	}
	tol := 1e-9 * math.Max(1, math.Abs(c.Value))
	if lower {
		return v <= c.Value+tol
	}
	return v >= c.Value-tol
}

func (c StopCondition) String() string {
	switch c.Type {
	case StopTime:
		return "until " + c.Deadline.Format(time.TimeOnly)
	case StopMass:
		return fmt.Sprintf("scale at %.2f g", c.Value)
	case StopRate:
		return fmt.Sprintf("rate at %.4f g/s", c.Value)
	}
	return "never"
}

// Stage is one step of a running program. Everything but Number and Spec is
// filled in by Calculate when the stage becomes active.
type Stage struct {
	Number       int
	Spec         StageSpec
	Stop         StopCondition
	LowerBound   bool
	Start        Snapshot
	RecipeStart  *Snapshot
	Coefficients Coefficients
}

// Calculate derives the stage's rate law and stop condition from the plant
// snapshot taken as it starts. prev is nil for the first stage of a recipe.
// defaultRate, in steps/s, is the first stage's intercept for feed types that
// otherwise continue at the current rate.
func (s *Stage) Calculate(prev *Stage, snap Snapshot, conv units.Converter, defaultRate float64) (Coefficients, error) {
	first := prev == nil
	spec := s.Spec
	s.Start = snap
	s.RecipeStart = nil

	switch spec.FeedType {
	case Bolus:
		if first {
			rate, err := conv.Convert(defaultRate, units.StepsPerSecond, units.GramsPerSecond)
			if err != nil {
				return Coefficients{}, err
			}
			s.Start.Rate = rate
		}
		s.Stop = StopCondition{Type: StopMass, Value: snap.Mass - spec.Stop.StopValue}
		s.LowerBound = true
		s.Coefficients = Coefficients{Slope: 0, Intercept: s.Start.Rate}

	case Timed:
		rate, err := conv.Convert(spec.Start.Rate, units.MLPerMinute, units.GramsPerSecond)
		if err != nil {
			return Coefficients{}, err
		}
		s.Start.Rate = rate
		minutes := time.Duration(spec.Stop.StopValue * float64(time.Minute))
		s.Stop = StopCondition{Type: StopTime, Deadline: snap.Time.Add(minutes)}
		s.LowerBound = false
		s.Coefficients = Coefficients{Slope: 0, Intercept: rate}

	case Linear:
		if spec.Start.IncRate == 0 {
			return Coefficients{}, fmt.Errorf("stage %d: %w", s.Number, ErrDegenerateRamp)
		}
		if first {
			rate, err := conv.Convert(defaultRate, units.StepsPerSecond, units.GramsPerSecond)
			if err != nil {
				return Coefficients{}, err
			}
			s.Start.Rate = rate
		}
		slope, err := conv.Convert(spec.Start.IncRate, units.MLPerMinute2, units.GramsPerSecond2)
		if err != nil {
			return Coefficients{}, err
		}
		end, err := conv.Convert(spec.Stop.StopValue, units.MLPerMinute, units.GramsPerSecond)
		if err != nil {
			return Coefficients{}, err
		}
		s.Stop = StopCondition{Type: StopRate, Value: end}
		s.LowerBound = slope < 0
		s.Coefficients = Coefficients{Slope: slope, Intercept: s.Start.Rate}

	default:
		return Coefficients{}, fmt.Errorf("%w: stage %d has feed type %s", ErrInvalidRecipe, s.Number, spec.FeedType)
	}

	if first {
		start := s.Start
		s.RecipeStart = &start
	}
	return s.Coefficients, nil
}

// View is an immutable copy of the active stage.
type View struct {
	Number       int
	FeedType     FeedType
	Stop         StopCondition
	LowerBound   bool
	Start        Snapshot
	Coefficients Coefficients
}

func (s Stage) View() View {
	return View{
		Number:       s.Number,
		FeedType:     s.Spec.FeedType,
		Stop:         s.Stop,
		LowerBound:   s.LowerBound,
		Start:        s.Start,
		Coefficients: s.Coefficients,
	}
}

// Rate is the stage's target rate in g/s at time at.
func (v View) Rate(at time.Time) float64 {
	return v.Coefficients.At(at.Sub(v.Start.Time).Seconds())
}

func (v View) Reached(s Snapshot) bool {
	return v.Stop.Reached(s, v.LowerBound)
}

func (v View) StopType() StopType { return v.Stop.Type }
