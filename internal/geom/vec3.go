// Package geom provides the small fixed-size vector and rotation
// helpers used by the trajectory planner. Positions and velocities are
// metres and metres/second in a Z-up world frame; angles are radians.
package geom

import "math"

// Vec3 is a three-component vector. Value semantics throughout: every
// operation returns a new vector and never mutates the receiver.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.NormSq())
}

// NormSq returns the squared Euclidean length of v.
func (v Vec3) NormSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Normalize returns v scaled to unit length. If v is shorter than eps
// the fallback vector is returned instead, so callers never divide by
// a near-zero norm.
func (v Vec3) Normalize(fallback Vec3) Vec3 {
	const eps = 1e-9
	n := v.Norm()
	if n < eps {
		return fallback
	}
	return v.Scale(1 / n)
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vec3) DistanceTo(o Vec3) float64 {
	return v.Sub(o).Norm()
}

// IsFinite reports whether all components are finite numbers.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// Lerp linearly interpolates between a and b. t=0 returns a, t=1
// returns b; t is not clamped.
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// UnitZ is the world up axis.
func UnitZ() Vec3 { return Vec3{0, 0, 1} }

// WrapPi wraps an angle into (-pi, pi].
func WrapPi(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// LerpAngle interpolates between two angles along the shortest arc and
// wraps the result into (-pi, pi].
func LerpAngle(a, b, t float64) float64 {
	return WrapPi(a + WrapPi(b-a)*t)
}
