// Package plant describes the feed hardware the program drives: a scale
// under the feed stock, a stepper pump, a vessel pressure gauge and the valve
// between pump and vessel.
package plant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/massfeed/internal/units"
)

var (
	// ErrFeedEmpty is returned by a read once the feed stock has run out.
	ErrFeedEmpty = errors.New("plant: out of feed")

	// ErrRateOutOfRange is returned for a pump command outside the pump's range.
	ErrRateOutOfRange = errors.New("plant: pump rate out of range")

	// ErrInvalidValve is returned for a valve position other than open or closed.
	ErrInvalidValve = errors.New("plant: invalid valve position")
)

type ValvePosition int

const (
	ValveClosed ValvePosition = 0 // feed goes to waste
	ValveOpen   ValvePosition = 1 // feed goes to the vessel
)

func (v ValvePosition) String() string {
	switch v {
	case ValveClosed:
		return "closed"
	case ValveOpen:
		return "open"
	}
	return fmt.Sprintf("ValvePosition(%d)", int(v))
}

type Direction int

const (
	SpeedUp Direction = iota + 1
	SlowDown
)

func (d Direction) String() string {
	switch d {
	case SpeedUp:
		return "up"
	case SlowDown:
		return "down"
	}
	return "none"
}

// Reading is one snapshot of every sensor.
type Reading struct {
	Mass     float64 // g on the scale
	Rate     float64 // steps/s
	Time     time.Time
	Pressure float64 // atm
	Valve    ValvePosition
}

type Sensor interface {
	Read() (Reading, error)
}

type Actuator interface {
	// Pump sets the pump speed in steps/min. Zero stops the pump.
	Pump(stepsPerMinute float64) error
	// Nudge changes the pump speed by a fixed fraction.
	Nudge(d Direction) error
	Valve(pos ValvePosition) error
}

type Plant interface {
	Sensor
	Actuator
}

// Clock is the source of time for a run. Simulated plants advance their own
// time in Sleep.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sensor names accepted by ReadSensor.
const (
	SensorMass     = "mass"
	SensorRate     = "rate"
	SensorTime     = "time"
	SensorPressure = "pressure"
	SensorValve    = "valve"
)

// ReadSensor reads a single sensor by name. The pump rate is returned in
// rateUnit; time is returned as Unix seconds. ok is false for an unknown name.
func ReadSensor(src Sensor, name string, rateUnit units.Unit, conv units.Converter) (value float64, ok bool, err error) {
	r, err := src.Read()
	if err != nil {
		return 0, false, err
	}

	switch name {
	case SensorMass:
		return r.Mass, true, nil
	case SensorRate:
		rate, err := conv.Convert(r.Rate, units.StepsPerSecond, rateUnit)
		if err != nil {
			return 0, false, err
		}
		return rate, true, nil
	case SensorTime:
		return float64(r.Time.UnixNano()) / 1e9, true, nil
	case SensorPressure:
		return r.Pressure, true, nil
	case SensorValve:
		return float64(r.Valve), true, nil
	}
	return 0, false, nil
}

// Prime fills the pump's dead volume by running it flat out to waste for d,
// then stops it and opens the valve to the vessel.
func Prime(ctx context.Context, a Actuator, c Clock, d time.Duration, maxStepsPerSecond float64) error {
	if err := a.Valve(ValveClosed); err != nil {
		return err
	}
	if err := a.Pump(maxStepsPerSecond * 60); err != nil {
		return err
	}
	if err := c.Sleep(ctx, d); err != nil {
		return errors.Join(err, a.Pump(0))
	}
	if err := a.Pump(0); err != nil {
		return err
	}
	return a.Valve(ValveOpen)
}
