package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BasisFromThrustYaw constructs the desired body rotation matrix from a
// thrust vector and a reference yaw angle. The body z axis b3 points
// along the thrust; the reference heading [cos(yaw), sin(yaw), 0] fixes
// the remaining rotational freedom:
//
//	b2 = normalize(b3 x b1_ref)
//	b1 = b2 x b3
//
// Columns of the returned matrix are [b1 b2 b3] in world frame. A
// degenerate thrust (near zero, or collinear with the heading) falls
// back to level flight at the given yaw. This is the exact SO(3)
// construction; no small-angle approximation is involved.
func BasisFromThrustYaw(thrust Vec3, yaw float64) *mat.Dense {
	b3 := thrust.Normalize(UnitZ())
	ref := Vec3{math.Cos(yaw), math.Sin(yaw), 0}
	b2 := b3.Cross(ref)
	if b2.NormSq() < 1e-12 {
		// Thrust collinear with heading; level attitude is the only
		// sensible answer.
		b3 = UnitZ()
		b2 = b3.Cross(ref)
	}
	b2 = b2.Normalize(Vec3{-math.Sin(yaw), math.Cos(yaw), 0})
	b1 := b2.Cross(b3)

	r := mat.NewDense(3, 3, nil)
	r.SetCol(0, []float64{b1.X, b1.Y, b1.Z})
	r.SetCol(1, []float64{b2.X, b2.Y, b2.Z})
	r.SetCol(2, []float64{b3.X, b3.Y, b3.Z})
	return r
}

// EulerZYX extracts roll (about x), pitch (about y) and yaw (about z)
// from a rotation matrix following the ZYX convention
// R = Rz(yaw) * Ry(pitch) * Rx(roll). The pitch argument to asin is
// clamped so numerically imperfect rotations never produce NaN.
func EulerZYX(r *mat.Dense) Vec3 {
	s := -r.At(2, 0)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	pitch := math.Asin(s)
	roll := math.Atan2(r.At(2, 1), r.At(2, 2))
	yaw := math.Atan2(r.At(1, 0), r.At(0, 0))
	return Vec3{roll, pitch, yaw}
}

// BodyRates computes the body angular velocity that carries r0 to r1
// over dt seconds, by finite difference:
//
//	omega_hat = r0^T * (r1 - r0) / dt
//
// The returned vector is the vee map of the skew-symmetric part of
// omega_hat. dt must be positive.
func BodyRates(r0, r1 *mat.Dense, dt float64) Vec3 {
	var dr mat.Dense
	dr.Sub(r1, r0)
	dr.Scale(1/dt, &dr)

	var omega mat.Dense
	omega.Mul(r0.T(), &dr)
	return vee(&omega)
}

// vee maps the skew-symmetric part of a 3x3 matrix to its vector form.
func vee(m *mat.Dense) Vec3 {
	return Vec3{
		0.5 * (m.At(2, 1) - m.At(1, 2)),
		0.5 * (m.At(0, 2) - m.At(2, 0)),
		0.5 * (m.At(1, 0) - m.At(0, 1)),
	}
}
