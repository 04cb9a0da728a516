// Package kinematics integrates the player vehicle from a control intent.
package kinematics

import (
	"math"

	"github.com/pursuitlab/roadchase/pkg/core"
)

const (
	// ReverseRatio is the fraction of max speed available in reverse.
	ReverseRatio = 0.5

	// Wheel spin in radians per unit of travel.
	WheelSpinPerUnit = 0.5
)

// Vehicle is the player vehicle state.
type Vehicle struct {
	Pos     core.Vec2
	Heading float64
	Speed   float64 // signed, units per second; negative is reverse
}

// Pose returns the vehicle position and heading.
func (v Vehicle) Pose() core.Pose {
	return core.Pose{Position: v.Pos, Heading: v.Heading}
}

// Params are the per-second tuning rates.
type Params struct {
	BaseMaxSpeed   float64
	Acceleration   float64
	Deceleration   float64
	TurnRate       float64
	TurnEpsilon    float64
	SpeedFactor    float64
	MinSpeedFactor float64
	MaxSpeedFactor float64
}

// DefaultParams returns the reference tuning (60 Hz per-frame values scaled to per second).
func DefaultParams() Params {
	return Params{
		BaseMaxSpeed:   30,
		Acceleration:   36,
		Deceleration:   18,
		TurnRate:       3,
		TurnEpsilon:    0.6,
		SpeedFactor:    1,
		MinSpeedFactor: 0.5,
		MaxSpeedFactor: 2,
	}
}

// ClampSpeedFactor bounds f to the configured range.
func (p Params) ClampSpeedFactor(f float64) float64 {
	if math.IsNaN(f) {
		return p.MinSpeedFactor
	}
	return core.Clamp(f, p.MinSpeedFactor, p.MaxSpeedFactor)
}

// MaxSpeed is the forward speed ceiling at the current speed factor.
func (p Params) MaxSpeed() float64 {
	return p.BaseMaxSpeed * p.ClampSpeedFactor(p.SpeedFactor)
}

// Step advances v by dt seconds under the given intent. It does not mutate v.
//
// Accelerate is checked before brake, so holding both accelerates. Without
// either, speed decays toward zero and stops exactly there. Turning needs
// |speed| above TurnEpsilon, and the turn direction flips in reverse.
func Step(v Vehicle, in core.ControlIntent, p Params, dt float64) Vehicle {
	if dt <= 0 || math.IsNaN(dt) {
		return v
	}
	factor := p.ClampSpeedFactor(p.SpeedFactor)
	maxSpeed := p.BaseMaxSpeed * factor
	// A lowered speed factor takes effect immediately.
	v.Speed = core.Clamp(v.Speed, -maxSpeed*ReverseRatio, maxSpeed)

	switch {
	case in.Accelerate:
		v.Speed = core.Approach(v.Speed, maxSpeed, p.Acceleration*factor*dt)
	case in.Brake:
		v.Speed = core.Approach(v.Speed, -maxSpeed*ReverseRatio, p.Acceleration*factor*dt)
	default:
		v.Speed = core.Approach(v.Speed, 0, p.Deceleration*dt)
	}

	if math.Abs(v.Speed) > p.TurnEpsilon {
		dir := 1.0
		if v.Speed < 0 {
			dir = -1
		}
		if in.Left {
			v.Heading += p.TurnRate * dt * dir
		}
		if in.Right {
			v.Heading -= p.TurnRate * dt * dir
		}
	}

	v.Pos = v.Pos.Add(core.Forward(v.Heading).Scale(v.Speed * dt))
	return v
}

// WheelSpin returns the wheel rotation rate in radians per second for a speed.
func WheelSpin(speed float64) float64 {
	return speed * WheelSpinPerUnit
}
