package kinematics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/pkg/core"
)

const dt = 1.0 / 16

func TestStep_AccelerateBoundedByMaxSpeed(t *testing.T) {
	p := DefaultParams()
	v := Vehicle{}
	for range 200 {
		v = Step(v, core.ControlIntent{Accelerate: true}, p, dt)
		require.LessOrEqual(t, v.Speed, p.MaxSpeed())
	}
	assert.Equal(t, p.MaxSpeed(), v.Speed)
}

func TestStep_ReverseBoundedByHalfMaxSpeed(t *testing.T) {
	p := DefaultParams()
	v := Vehicle{}
	for range 200 {
		v = Step(v, core.ControlIntent{Brake: true}, p, dt)
		require.GreaterOrEqual(t, v.Speed, -p.MaxSpeed()*ReverseRatio)
	}
	assert.Equal(t, -p.MaxSpeed()*ReverseRatio, v.Speed)
}

func TestStep_AccelerateWinsOverBrake(t *testing.T) {
	p := DefaultParams()
	v := Step(Vehicle{}, core.ControlIntent{Accelerate: true, Brake: true}, p, dt)
	assert.Greater(t, v.Speed, 0.0)
}

func TestStep_DecaysExactlyToZero(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
	}{
		{"forward", 30},
		{"reverse", -15},
		{"tiny", 0.0001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			v := Vehicle{Speed: tt.speed}
			for range 100 {
				v = Step(v, core.ControlIntent{}, p, dt)
			}
			assert.Equal(t, 0.0, v.Speed)

			v = Step(v, core.ControlIntent{}, p, dt)
			assert.Equal(t, 0.0, v.Speed)
		})
	}
}

func TestStep_NoTurningAtStandstill(t *testing.T) {
	p := DefaultParams()
	v := Vehicle{Heading: 0.3}
	for range 10 {
		v = Step(v, core.ControlIntent{Left: true}, p, dt)
		v = Step(v, core.ControlIntent{Right: true}, p, dt)
	}
	assert.Equal(t, 0.3, v.Heading)
	assert.Equal(t, core.Vec2{}, v.Pos)
}

func TestStep_TurnDirectionFlipsInReverse(t *testing.T) {
	p := DefaultParams()

	fwd := Step(Vehicle{Speed: 10}, core.ControlIntent{Left: true}, p, dt)
	assert.InDelta(t, p.TurnRate*dt, fwd.Heading, 1e-12)

	rev := Step(Vehicle{Speed: -10}, core.ControlIntent{Left: true}, p, dt)
	assert.InDelta(t, -p.TurnRate*dt, rev.Heading, 1e-12)
}

func TestStep_DisplacementScaledByDt(t *testing.T) {
	p := DefaultParams()
	v := Vehicle{Speed: p.MaxSpeed()}
	v = Step(v, core.ControlIntent{Accelerate: true}, p, 0.5)
	assert.InDelta(t, 0, v.Pos.X, 1e-12)
	assert.InDelta(t, 15, v.Pos.Z, 1e-12)

	v = Vehicle{Speed: 10, Heading: math.Pi / 2}
	v = Step(v, core.ControlIntent{Accelerate: true}, p, dt)
	assert.Greater(t, v.Pos.X, 0.0)
}

func TestStep_IgnoresNonPositiveDt(t *testing.T) {
	p := DefaultParams()
	v := Vehicle{Speed: 5, Heading: 1}
	assert.Equal(t, v, Step(v, core.ControlIntent{Accelerate: true}, p, 0))
	assert.Equal(t, v, Step(v, core.ControlIntent{Accelerate: true}, p, -1))
	assert.Equal(t, v, Step(v, core.ControlIntent{Accelerate: true}, p, math.NaN()))
}

func TestStep_LoweredSpeedFactorCapsSpeed(t *testing.T) {
	p := DefaultParams()
	p.SpeedFactor = 0.5
	v := Step(Vehicle{Speed: 30}, core.ControlIntent{}, p, dt)
	assert.LessOrEqual(t, v.Speed, p.MaxSpeed())
}

func TestClampSpeedFactor(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0.5, p.ClampSpeedFactor(0))
	assert.Equal(t, 0.5, p.ClampSpeedFactor(-3))
	assert.Equal(t, 2.0, p.ClampSpeedFactor(10))
	assert.Equal(t, 1.5, p.ClampSpeedFactor(1.5))
	assert.Equal(t, 0.5, p.ClampSpeedFactor(math.NaN()))
}

func TestWheelSpin(t *testing.T) {
	assert.Equal(t, 15.0, WheelSpin(30))
	assert.Equal(t, -5.0, WheelSpin(-10))
}
