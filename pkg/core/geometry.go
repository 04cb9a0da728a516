// pkg/core/geometry.go
package core

import "math"

// Vec2 is a point or displacement on the ground plane.
// X is lateral, Z is longitudinal; the road runs along -Z.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (a Vec2) Add(b Vec2) Vec2 {
	return Vec2{X: a.X + b.X, Z: a.Z + b.Z}
}

func (a Vec2) Sub(b Vec2) Vec2 {
	return Vec2{X: a.X - b.X, Z: a.Z - b.Z}
}

func (a Vec2) Scale(f float64) Vec2 {
	return Vec2{X: a.X * f, Z: a.Z * f}
}

// Len returns the planar magnitude.
func (a Vec2) Len() float64 {
	return math.Hypot(a.X, a.Z)
}

// Dist returns the planar distance between a and b.
func (a Vec2) Dist(b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Z-a.Z)
}

// Heading returns the yaw that points along a, using the (sin, cos) convention
// where heading 0 faces +Z.
func (a Vec2) Heading() float64 {
	return math.Atan2(a.X, a.Z)
}

// Forward returns the unit vector for a heading.
func Forward(heading float64) Vec2 {
	return Vec2{X: math.Sin(heading), Z: math.Cos(heading)}
}

// Polar returns the offset of length r at angle theta around a center.
func Polar(center Vec2, r, theta float64) Vec2 {
	return center.Add(Forward(theta).Scale(r))
}

// NormalizeAngle maps a to (-Pi, Pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Approach moves cur toward target by at most maxDelta without overshooting.
func Approach(cur, target, maxDelta float64) float64 {
	if cur < target {
		return math.Min(cur+maxDelta, target)
	}
	if cur > target {
		return math.Max(cur-maxDelta, target)
	}
	return cur
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
