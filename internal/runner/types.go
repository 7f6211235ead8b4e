package runner

import (
	"errors"
	"time"

	"github.com/san-kum/massfeed/internal/control"
	"github.com/san-kum/massfeed/internal/plant"
	"github.com/san-kum/massfeed/internal/recipe"
)

var (
	// ErrUnsafeConditions aborts a run when the vessel is over pressure.
	ErrUnsafeConditions = errors.New("runner: vessel conditions unsafe")

	// ErrTickBudget aborts a run that has not finished within MaxTicks.
	ErrTickBudget = errors.New("runner: tick budget exhausted")

	// ErrStarted is returned by Start on a runner that is already running.
	ErrStarted = errors.New("runner: already started")
)

// Strategy selects the feedback applied to the pump each tick.
type Strategy string

const (
	StrategyNone    Strategy = "none"
	StrategyPID     Strategy = "pid"
	StrategyCascade Strategy = "cascade"
)

func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyNone, StrategyPID, StrategyCascade:
		return Strategy(s), true
	}
	return "", false
}

type Config struct {
	Tick        time.Duration
	MaxTicks    int // 0 for no limit
	Strategy    Strategy
	Gains       control.Gains
	MaxPressure float64       // atm
	Warmup      int           // measured samples before feedback starts
	Prime       time.Duration // 0 skips priming
}

func DefaultConfig() Config {
	return Config{
		Tick:        time.Second,
		MaxTicks:    3600,
		Strategy:    StrategyNone,
		Gains:       control.DefaultGains(),
		MaxPressure: 100,
		Warmup:      3,
	}
}

// TickRecord is everything observed and commanded in one tick. Rates are in
// g/s.
type TickRecord struct {
	Tick        int             `json:"tick"`
	Time        time.Time       `json:"time"`
	Elapsed     float64         `json:"elapsed"`
	Stage       int             `json:"stage"`
	FeedType    recipe.FeedType `json:"feed_type"`
	Mass        float64         `json:"mass"`
	Pressure    float64         `json:"pressure"`
	PumpRate    float64         `json:"pump_rate"`
	Target      float64         `json:"target"`
	Commanded   float64         `json:"commanded"`
	Measured    float64         `json:"measured"`
	HasMeasured bool            `json:"has_measured"`
	LimitHit    bool            `json:"limit_hit"`
	Nudge       plant.Direction `json:"nudge,omitempty"`
	Advanced    bool            `json:"advanced,omitempty"`
}

type Metric interface {
	Name() string
	Observe(rec TickRecord)
	Value() float64
	Reset()
}

type Observer interface {
	OnTick(rec TickRecord)
}

type Result struct {
	ID        string             `json:"id"`
	Recipe    string             `json:"recipe,omitempty"`
	Strategy  Strategy           `json:"strategy"`
	Started   time.Time          `json:"started"`
	Finished  time.Time          `json:"finished"`
	Ticks     int                `json:"ticks"`
	Stages    int                `json:"stages"`
	Completed bool               `json:"completed"`
	Error     string             `json:"error,omitempty"`
	Trace     []TickRecord       `json:"trace"`
	Metrics   map[string]float64 `json:"metrics"`
}
