// Package recipe models a multi-stage feed recipe and runs it as a program.
//
// A [Recipe] is a numbered set of [StageSpec] values, each one of three
// feed types:
//
//   - [Bolus]: dump a net mass at the current rate
//   - [Timed]: feed at a fixed volumetric rate for a number of minutes
//   - [Linear]: ramp the rate until it reaches an end rate
//
// # Usage
//
//	r, _ := recipe.Load("demo.yaml")
//	prog, _ := recipe.NewProgram(r, plant, recipe.DefaultSettings())
//	view, err := prog.Advance() // stage 1
//	hit, err := prog.Pump(view.Rate(now), units.GramsPerSecond, recipe.Adjustment{})
//
// Advance returns [ErrExhausted] once the last stage has run.
package recipe
