// Package control provides the feedback corrections applied to the pump rate.
//
// Both controllers compare a setpoint series against a measured process
// series, sampled as [calculus.Point] values:
//
//   - [PID]: returns a corrected setpoint from proportional, integral and
//     derivative terms
//   - [Cascade]: nudges the pump 5% up or down through a [plant.Actuator]
//
// # Usage
//
//	pid := control.NewPID(control.Gains{Kp: 0.5, Ki: 0.05})
//	rate := pid.Correct(targets, measured) // called once per tick
//
// Gains are supplied by the caller; see the optim package for offline tuning.
// PID supports live tuning through GetParams and SetParam.
package control
