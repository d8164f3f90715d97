package planner

import (
	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/traj"
)

// seedBuffer is added on top of radius+margin when nudging a seed path
// out of a keep-out sphere, so the solver starts strictly feasible.
const seedBuffer = 0.25

// seed produces the initial OptimizationVector for a solve: the
// previous accepted solution shifted by one step when available,
// otherwise a straight-line cold start. Either way the path is nudged
// laterally out of any intersected keep-out sphere before thrusts are
// derived, so a symmetric head-on geometry cannot trap the solver on
// the obstacle axis.
func (o *Optimizer) seed(state traj.DroneState, goal geom.Vec3, obstacles []traj.Obstacle) OptimizationVector {
	n := o.cfg.Horizon
	path := make([]geom.Vec3, n)

	if o.prev != nil && o.prev.Len() == n {
		// Shift: drop index 0, extend the tail toward the goal at a
		// velocity-limited step.
		for k := 0; k+1 < n; k++ {
			path[k] = o.prev.Positions[k+1]
		}
		tail := path[n-2]
		dir := goal.Sub(tail)
		step := dir.Norm()
		if limit := o.cfg.MaxVelocity * o.cfg.Dt; step > limit {
			step = limit
		}
		path[n-1] = tail.Add(dir.Normalize(geom.Vec3{}).Scale(step))
	} else {
		for k := 0; k < n; k++ {
			path[k] = geom.Lerp(state.Position, goal, float64(k)/float64(n-1))
		}
	}

	detourAroundObstacles(path, state.Position, goal, obstacles, o.cfg.SafetyMargin+seedBuffer)
	return o.seedFromPath(state, path)
}

// detourAroundObstacles pushes path samples (index 0 excluded; it is
// pinned to the measured state) laterally out of every inflated
// keep-out sphere. The push direction is the component of the sample's
// offset from the sphere center perpendicular to the start-goal axis,
// with deterministic fallbacks when the geometry is degenerate.
func detourAroundObstacles(path []geom.Vec3, start, goal geom.Vec3, obstacles []traj.Obstacle, margin float64) {
	axis := goal.Sub(start).Normalize(geom.UnitZ())
	for _, o := range obstacles {
		r := o.Radius + margin
		for k := 1; k < len(path); k++ {
			rel := path[k].Sub(o.Center)
			if rel.Norm() >= r {
				continue
			}
			lateral := rel.Sub(axis.Scale(rel.Dot(axis)))
			if lateral.NormSq() < 1e-12 {
				lateral = axis.Cross(geom.UnitZ())
			}
			if lateral.NormSq() < 1e-12 {
				lateral = geom.Vec3{X: 1}
			}
			lateral = lateral.Normalize(geom.Vec3{X: 1})
			along := axis.Scale(rel.Dot(axis))
			path[k] = o.Center.Add(along).Add(lateral.Scale(r))
		}
	}
}

// seedFromPath completes an OptimizationVector from a position path:
// velocities by finite difference and thrusts by inverse dynamics,
// clamped into the thrust envelope. This is the warm-start information
// in the form the solver consumes; with dynamics eliminated, the
// thrust block is what actually encodes the seed.
func (o *Optimizer) seedFromPath(state traj.DroneState, path []geom.Vec3) OptimizationVector {
	n := o.cfg.Horizon
	dt := o.cfg.Dt
	vec := NewOptimizationVector(n)
	copy(vec.Positions, path)
	vec.Positions[0] = state.Position

	vec.Velocities[0] = state.Velocity
	for k := 1; k < n; k++ {
		vec.Velocities[k] = path[k].Sub(path[k-1]).Scale(1 / dt)
	}

	hover := geom.Vec3{Z: o.cfg.HoverThrust()}
	gravity := geom.Vec3{Z: o.cfg.Gravity}
	for k := 0; k < n; k++ {
		if k+1 < n {
			a := vec.Velocities[k+1].Sub(vec.Velocities[k]).Scale(1 / dt)
			vec.Thrusts[k] = clampThrust(o.cfg, a.Add(gravity).Scale(o.cfg.Mass))
		} else {
			vec.Thrusts[k] = hover
		}
		if !vec.Thrusts[k].IsFinite() {
			vec.Thrusts[k] = hover
		}
	}
	return vec
}

// clampThrust clips a thrust vector into the envelope: vertical
// component in [MinThrust, MaxThrust], horizontal norm bounded by the
// tilt limit.
func clampThrust(cfg Config, t geom.Vec3) geom.Vec3 {
	if t.Z < cfg.MinThrust {
		t.Z = cfg.MinThrust
	}
	if t.Z > cfg.MaxThrust {
		t.Z = cfg.MaxThrust
	}
	maxH := cfg.maxHorizontalThrust()
	h := geom.Vec3{X: t.X, Y: t.Y}
	if hn := h.Norm(); hn > maxH && hn > 0 {
		scaled := h.Scale(maxH / hn)
		t.X = scaled.X
		t.Y = scaled.Y
	}
	return t
}
