package planner

import "github.com/osprey-uas/autonomy/internal/geom"

// OptimizationVector holds the decision quantities of one solve as
// named struct-of-arrays blocks, so position, velocity and thrust
// values can never be cross-wired by index arithmetic. The solver
// frees only the thrust block; positions and velocities are bound to
// it through the discrete dynamics (see problem.rollout), which makes
// the initial-state and dynamics equalities hold exactly in every
// candidate.
type OptimizationVector struct {
	Positions  []geom.Vec3
	Velocities []geom.Vec3
	Thrusts    []geom.Vec3
}

// NewOptimizationVector allocates an n-step vector with zeroed blocks.
func NewOptimizationVector(n int) OptimizationVector {
	return OptimizationVector{
		Positions:  make([]geom.Vec3, n),
		Velocities: make([]geom.Vec3, n),
		Thrusts:    make([]geom.Vec3, n),
	}
}

// Len returns the number of steps.
func (v OptimizationVector) Len() int { return len(v.Positions) }

// Flatten packs the vector as [positions, velocities, thrusts], three
// components per step. Used for diagnostics and logging; the solver
// itself only ever sees the thrust block.
func (v OptimizationVector) Flatten() []float64 {
	n := v.Len()
	out := make([]float64, 0, 9*n)
	for _, block := range [][]geom.Vec3{v.Positions, v.Velocities, v.Thrusts} {
		for _, w := range block {
			out = append(out, w.X, w.Y, w.Z)
		}
	}
	return out
}

// clone returns a deep copy; warm starts are replaced wholesale, never
// aliased.
func (v OptimizationVector) clone() OptimizationVector {
	out := NewOptimizationVector(v.Len())
	copy(out.Positions, v.Positions)
	copy(out.Velocities, v.Velocities)
	copy(out.Thrusts, v.Thrusts)
	return out
}

// flattenThrusts packs just the thrust block for the solver.
func flattenThrusts(thrusts []geom.Vec3) []float64 {
	out := make([]float64, 3*len(thrusts))
	for i, t := range thrusts {
		out[3*i] = t.X
		out[3*i+1] = t.Y
		out[3*i+2] = t.Z
	}
	return out
}

// thrustsFromFlat is the inverse of flattenThrusts.
func thrustsFromFlat(x []float64) []geom.Vec3 {
	out := make([]geom.Vec3, len(x)/3)
	for i := range out {
		out[i] = geom.Vec3{X: x[3*i], Y: x[3*i+1], Z: x[3*i+2]}
	}
	return out
}
