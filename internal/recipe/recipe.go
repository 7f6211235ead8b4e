package recipe

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrExhausted is returned by Advance once every stage has run. It marks a
	// completed recipe, not a failure.
	ErrExhausted = errors.New("recipe: program exhausted")

	// ErrDegenerateRamp is returned for a linear stage with zero acceleration,
	// which has no direction to approach its end rate from.
	ErrDegenerateRamp = errors.New("recipe: linear stage with zero inc_rate")

	// ErrInvalidRecipe wraps every recipe validation failure.
	ErrInvalidRecipe = errors.New("recipe: invalid recipe")

	// ErrStageIndex is returned by SetStage for an index past the end of the
	// program.
	ErrStageIndex = errors.New("recipe: stage index out of range")
)

type FeedType int

const (
	Bolus FeedType = iota + 1
	Timed
	Linear
)

var feedTypeNames = map[FeedType]string{
	Bolus:  "bolus",
	Timed:  "timed",
	Linear: "linear",
}

func (f FeedType) String() string {
	if s, ok := feedTypeNames[f]; ok {
		return s
	}
	return fmt.Sprintf("FeedType(%d)", int(f))
}

// StopType is the quantity whose threshold ends a stage of this feed type.
func (f FeedType) StopType() StopType {
	switch f {
	case Bolus:
		return StopMass
	case Timed:
		return StopTime
	case Linear:
		return StopRate
	}
	return 0
}

func ParseFeedType(s string) (FeedType, error) {
	for f, name := range feedTypeNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown feed_type %q", ErrInvalidRecipe, s)
}

func (f FeedType) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FeedType) UnmarshalText(b []byte) error {
	v, err := ParseFeedType(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f FeedType) MarshalYAML() (interface{}, error) { return f.String(), nil }

func (f *FeedType) UnmarshalYAML(value *yaml.Node) error {
	return f.UnmarshalText([]byte(value.Value))
}

type StopType int

const (
	StopMass StopType = iota + 1 // grams on the scale
	StopTime                     // absolute deadline
	StopRate                     // g/s
)

var stopTypeNames = map[StopType]string{
	StopMass: "mass",
	StopTime: "time",
	StopRate: "rate",
}

func (s StopType) String() string {
	if n, ok := stopTypeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("StopType(%d)", int(s))
}

func ParseStopType(s string) (StopType, error) {
	for t, name := range stopTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stop_type %q", ErrInvalidRecipe, s)
}

func (s StopType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StopType) UnmarshalText(b []byte) error {
	v, err := ParseStopType(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s StopType) MarshalYAML() (interface{}, error) { return s.String(), nil }

func (s *StopType) UnmarshalYAML(value *yaml.Node) error {
	return s.UnmarshalText([]byte(value.Value))
}

// StartParameters are read per feed type: Rate (mL/min) by timed stages,
// IncRate (mL/min^2) by linear stages. Bolus stages take none.
type StartParameters struct {
	Rate    float64 `yaml:"rate,omitempty" json:"rate,omitempty"`
	IncRate float64 `yaml:"inc_rate,omitempty" json:"inc_rate,omitempty"`
}

// StopParameters.StopValue is a net mass in g for bolus stages, a duration in
// minutes for timed stages and an end rate in mL/min for linear stages.
type StopParameters struct {
	StopType  StopType `yaml:"stop_type,omitempty" json:"stop_type,omitempty"`
	StopValue float64  `yaml:"stop_value" json:"stop_value"`
}

// StageSpec is the declarative form of one stage.
type StageSpec struct {
	FeedType FeedType        `yaml:"feed_type" json:"feed_type"`
	Start    StartParameters `yaml:"start_parameters" json:"start_parameters"`
	Stop     StopParameters  `yaml:"stop_parameters" json:"stop_parameters"`
}

func BolusSpec(netMass float64) StageSpec {
	return StageSpec{
		FeedType: Bolus,
		Stop:     StopParameters{StopType: StopMass, StopValue: netMass},
	}
}

func TimedSpec(rate, minutes float64) StageSpec {
	return StageSpec{
		FeedType: Timed,
		Start:    StartParameters{Rate: rate},
		Stop:     StopParameters{StopType: StopTime, StopValue: minutes},
	}
}

func LinearSpec(incRate, endRate float64) StageSpec {
	return StageSpec{
		FeedType: Linear,
		Start:    StartParameters{IncRate: incRate},
		Stop:     StopParameters{StopType: StopRate, StopValue: endRate},
	}
}

func (s StageSpec) Validate() error {
	want := s.FeedType.StopType()
	if want == 0 {
		return fmt.Errorf("%w: unknown feed_type %d", ErrInvalidRecipe, int(s.FeedType))
	}
	if s.Stop.StopType != 0 && s.Stop.StopType != want {
		return fmt.Errorf("%w: %s stage must stop on %s, got %s", ErrInvalidRecipe, s.FeedType, want, s.Stop.StopType)
	}

	switch s.FeedType {
	case Bolus:
		if s.Stop.StopValue < 0 {
			return fmt.Errorf("%w: negative bolus mass %g", ErrInvalidRecipe, s.Stop.StopValue)
		}
	case Timed:
		if s.Start.Rate < 0 {
			return fmt.Errorf("%w: negative timed rate %g", ErrInvalidRecipe, s.Start.Rate)
		}
		if s.Stop.StopValue < 0 {
			return fmt.Errorf("%w: negative duration %g", ErrInvalidRecipe, s.Stop.StopValue)
		}
	case Linear:
		if s.Start.IncRate == 0 {
			return fmt.Errorf("%w: %w", ErrInvalidRecipe, ErrDegenerateRamp)
		}
		if s.Stop.StopValue < 0 {
			return fmt.Errorf("%w: negative end rate %g", ErrInvalidRecipe, s.Stop.StopValue)
		}
	}
	return nil
}

// Recipe maps 1-based stage numbers to stage specs.
type Recipe struct {
	Name   string            `yaml:"name,omitempty" json:"name,omitempty"`
	Stages map[int]StageSpec `yaml:"stages" json:"stages"`
}

// New numbers specs from 1 in the order given.
func New(name string, specs ...StageSpec) Recipe {
	r := Recipe{Name: name, Stages: make(map[int]StageSpec, len(specs))}
	for i, s := range specs {
		r.Stages[i+1] = s
	}
	return r
}

func (r Recipe) Len() int { return len(r.Stages) }

func (r Recipe) Validate() error {
	if len(r.Stages) == 0 {
		return fmt.Errorf("%w: no stages", ErrInvalidRecipe)
	}
	for n := 1; n <= len(r.Stages); n++ {
		spec, ok := r.Stages[n]
		if !ok {
			return fmt.Errorf("%w: stages must be numbered 1..%d, missing %d", ErrInvalidRecipe, len(r.Stages), n)
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("stage %d: %w", n, err)
		}
	}
	return nil
}

// Ordered returns the specs by stage number.
func (r Recipe) Ordered() []StageSpec {
	keys := make([]int, 0, len(r.Stages))
	for k := range r.Stages {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	specs := make([]StageSpec, len(keys))
	for i, k := range keys {
		specs[i] = r.Stages[k]
	}
	return specs
}

func Parse(data []byte) (Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Recipe{}, fmt.Errorf("parse recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

func Load(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recipe{}, err
	}
	return Parse(data)
}

func (r Recipe) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
