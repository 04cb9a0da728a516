// Package pursuit holds the pursuer arena and the steering behaviour that
// drives active pursuers toward the vehicle.
package pursuit

import (
	"math"

	"github.com/pursuitlab/roadchase/internal/kinematics"
	"github.com/pursuitlab/roadchase/internal/rng"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// ParkedPosition is where inactive slots sit: far behind the start line and
// off-screen. Nothing reads it while parked.
var ParkedPosition = core.Vec2{X: 0, Z: 1e6}

// Pursuer is one chasing agent. It lives in a Pool slot for the whole run.
type Pursuer struct {
	Pos           core.Vec2
	Heading       float64
	Speed         float64 // base forward speed, units per second
	ChaseDistance float64
	Active        bool

	// Contact tracking, owned by the proximity detector.
	// ContactStart is only meaningful while Touching.
	Touching        bool
	ContactStart    float64
	ContactDuration float64
}

// Pose returns the pursuer position and heading.
func (p *Pursuer) Pose() core.Pose {
	return core.Pose{Position: p.Pos, Heading: p.Heading}
}

// ClearContact drops any contact in progress.
func (p *Pursuer) ClearContact() {
	p.Touching = false
	p.ContactStart = 0
	p.ContactDuration = 0
}

// AIParams tune pursuer steering and the random bands used when placing pursuers.
type AIParams struct {
	YawRate    float64 // radians per second at difficulty 0
	YawScale   float64 // yaw rate gain per difficulty tier
	SpeedScale float64 // speed gain per difficulty tier above 1
	CloseBoost float64
	CloseRange float64
	HoldBack   bool

	SpeedMin, SpeedMax     float64
	ChaseMin, ChaseMax     float64
	RespawnMin, RespawnMax float64
}

// DefaultAIParams returns the reference tuning.
func DefaultAIParams() AIParams {
	return AIParams{
		YawRate:    3,
		YawScale:   0.1,
		SpeedScale: 0.1,
		CloseBoost: 1.2,
		CloseRange: 10,
		SpeedMin:   27,
		SpeedMax:   33,
		ChaseMin:   30,
		ChaseMax:   40,
		RespawnMin: 50,
		RespawnMax: 80,
	}
}

// MaxYawStep is the largest heading change allowed in dt at a difficulty tier.
func (ai AIParams) MaxYawStep(diff int, dt float64) float64 {
	return ai.YawRate * (1 + float64(diff)*ai.YawScale) * dt
}

// EffectiveSpeed is the forward speed for a pursuer at the given separation.
func (ai AIParams) EffectiveSpeed(base, dist float64, diff int) float64 {
	if diff < 1 {
		diff = 1
	}
	speed := base * (1 + float64(diff-1)*ai.SpeedScale)
	if dist < ai.CloseRange {
		speed *= ai.CloseBoost
	}
	return speed
}

// Steer turns p toward target by at most one yaw step and advances it.
// Inactive pursuers are left untouched. The heading snaps to the desired value
// when the remaining error fits in one step.
func Steer(p *Pursuer, target core.Vec2, diff int, ai AIParams, dt float64) {
	if !p.Active || dt <= 0 || math.IsNaN(dt) {
		return
	}
	delta := target.Sub(p.Pos)
	desired := delta.Heading()

	maxStep := ai.MaxYawStep(diff, dt)
	diffAngle := core.NormalizeAngle(desired - p.Heading)
	if math.Abs(diffAngle) <= maxStep {
		p.Heading = desired
	} else {
		p.Heading = core.NormalizeAngle(p.Heading + math.Copysign(maxStep, diffAngle))
	}

	dist := delta.Len()
	if ai.HoldBack && dist <= p.ChaseDistance {
		return
	}
	speed := ai.EffectiveSpeed(p.Speed, dist, diff)
	p.Pos = p.Pos.Add(core.Forward(p.Heading).Scale(speed * dt))
}

// WheelSpin returns the wheel rotation rate for the pursuer's base speed.
func (p *Pursuer) WheelSpin() float64 {
	return kinematics.WheelSpin(p.Speed)
}

// randomize draws the per-instance speed and chase distance.
func (p *Pursuer) randomize(src rng.Source, ai AIParams) {
	p.Speed = rng.Range(src, ai.SpeedMin, ai.SpeedMax)
	p.ChaseDistance = rng.Range(src, ai.ChaseMin, ai.ChaseMax)
}

// placeAround puts p at distance r and angle theta around center, facing center.
func (p *Pursuer) placeAround(center core.Vec2, r, theta float64) {
	p.Pos = core.Polar(center, r, theta)
	p.Heading = center.Sub(p.Pos).Heading()
}
