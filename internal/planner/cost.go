package planner

import (
	"math"

	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/traj"
)

// problem is one solve's objective over the thrust sequence. The
// discrete double-integrator dynamics
//
//	accel_k = thrust_k/mass - gravity
//	pos_{k+1} = pos_k + vel_k*dt + 0.5*accel_k*dt^2
//	vel_{k+1} = vel_k + accel_k*dt
//
// are eliminated by forward substitution from the measured initial
// state, so every candidate the solver evaluates already satisfies the
// equality constraints. Envelope bounds and obstacle keep-out enter as
// one-sided quadratic penalties; all terms have analytic gradients,
// back-propagated through the rollout.
type problem struct {
	cfg       Config
	p0, v0    geom.Vec3
	goal      geom.Vec3
	obstacles []traj.Obstacle
	hover     geom.Vec3
	gravity   geom.Vec3
}

func newProblem(cfg Config, state traj.DroneState, goal geom.Vec3, obstacles []traj.Obstacle) *problem {
	return &problem{
		cfg:       cfg,
		p0:        state.Position,
		v0:        state.Velocity,
		goal:      goal,
		obstacles: obstacles,
		hover:     geom.Vec3{Z: cfg.HoverThrust()},
		gravity:   geom.Vec3{Z: cfg.Gravity},
	}
}

// rollout integrates the dynamics from the pinned initial state under
// the thrust sequence packed in x. The output slices must each have
// length cfg.Horizon.
func (pb *problem) rollout(x []float64, pos, vel, acc []geom.Vec3) {
	n := pb.cfg.Horizon
	dt := pb.cfg.Dt
	pos[0] = pb.p0
	vel[0] = pb.v0
	for k := 0; k < n; k++ {
		thrust := geom.Vec3{X: x[3*k], Y: x[3*k+1], Z: x[3*k+2]}
		acc[k] = thrust.Scale(1 / pb.cfg.Mass).Sub(pb.gravity)
		if k+1 < n {
			pos[k+1] = pos[k].Add(vel[k].Scale(dt)).Add(acc[k].Scale(0.5 * dt * dt))
			vel[k+1] = vel[k].Add(acc[k].Scale(dt))
		}
	}
}

// hinge returns v-limit when v exceeds limit, else 0.
func hinge(v, limit float64) float64 {
	if v > limit {
		return v - limit
	}
	return 0
}

func (pb *problem) cost(x []float64) float64 {
	n := pb.cfg.Horizon
	pos := make([]geom.Vec3, n)
	vel := make([]geom.Vec3, n)
	acc := make([]geom.Vec3, n)
	pb.rollout(x, pos, vel, acc)

	c := &pb.cfg
	var L float64

	// Position tracking, heavier at the terminal step.
	for k := 1; k < n; k++ {
		w := c.GoalWeight
		if k == n-1 {
			w = c.TerminalWeight
		}
		L += w * pos[k].Sub(pb.goal).NormSq()
	}

	// Velocity regulation.
	for k := 0; k < n; k++ {
		L += c.VelocityWeight * vel[k].NormSq()
	}

	// Acceleration smoothness.
	for k := 0; k+1 < n; k++ {
		L += c.SmoothnessWeight * acc[k+1].Sub(acc[k]).NormSq()
	}

	// Thrust deviation from hover.
	for k := 0; k < n; k++ {
		t := geom.Vec3{X: x[3*k], Y: x[3*k+1], Z: x[3*k+2]}
		L += c.EffortWeight * t.Sub(pb.hover).NormSq()
	}

	// Envelope penalties.
	maxH := c.maxHorizontalThrust()
	for k := 0; k < n; k++ {
		// Per-axis velocity bound.
		L += c.BoundsPenalty * sq(hinge(math.Abs(vel[k].X), c.MaxVelocity))
		L += c.BoundsPenalty * sq(hinge(math.Abs(vel[k].Y), c.MaxVelocity))
		L += c.BoundsPenalty * sq(hinge(math.Abs(vel[k].Z), c.MaxVelocity))

		// Position box.
		L += c.BoundsPenalty * sq(hinge(math.Abs(pos[k].X), c.PositionEnvelope))
		L += c.BoundsPenalty * sq(hinge(math.Abs(pos[k].Y), c.PositionEnvelope))
		L += c.BoundsPenalty * sq(hinge(math.Abs(pos[k].Z), c.PositionEnvelope))

		// Thrust vertical component window and tilt-limited horizontal
		// norm.
		tz := x[3*k+2]
		L += c.BoundsPenalty * sq(hinge(c.MinThrust-tz, 0))
		L += c.BoundsPenalty * sq(hinge(tz-c.MaxThrust, 0))
		h := math.Hypot(x[3*k], x[3*k+1])
		L += c.BoundsPenalty * sq(hinge(h, maxH))
	}

	// Obstacle keep-out: quartic hinge on the squared clearance so the
	// penalty and its gradient vanish smoothly at the boundary.
	for _, o := range pb.obstacles {
		rr := sq(o.Radius + c.SafetyMargin)
		for k := 1; k < n; k++ {
			d2 := pos[k].Sub(o.Center).NormSq()
			if d2 < rr {
				L += c.ObstaclePenalty * sq(rr-d2)
			}
		}
	}

	return L
}

func (pb *problem) grad(grad, x []float64) {
	n := pb.cfg.Horizon
	dt := pb.cfg.Dt
	c := &pb.cfg

	pos := make([]geom.Vec3, n)
	vel := make([]geom.Vec3, n)
	acc := make([]geom.Vec3, n)
	pb.rollout(x, pos, vel, acc)

	// Partial derivatives with respect to the rolled-out states.
	dLdp := make([]geom.Vec3, n)
	dLdv := make([]geom.Vec3, n)

	for k := 1; k < n; k++ {
		w := c.GoalWeight
		if k == n-1 {
			w = c.TerminalWeight
		}
		dLdp[k] = dLdp[k].Add(pos[k].Sub(pb.goal).Scale(2 * w))
	}
	for k := 0; k < n; k++ {
		dLdv[k] = dLdv[k].Add(vel[k].Scale(2 * c.VelocityWeight))
	}

	// Envelope penalties on states.
	for k := 0; k < n; k++ {
		dLdv[k] = dLdv[k].Add(geom.Vec3{
			X: 2 * c.BoundsPenalty * hinge(math.Abs(vel[k].X), c.MaxVelocity) * sign(vel[k].X),
			Y: 2 * c.BoundsPenalty * hinge(math.Abs(vel[k].Y), c.MaxVelocity) * sign(vel[k].Y),
			Z: 2 * c.BoundsPenalty * hinge(math.Abs(vel[k].Z), c.MaxVelocity) * sign(vel[k].Z),
		})
		dLdp[k] = dLdp[k].Add(geom.Vec3{
			X: 2 * c.BoundsPenalty * hinge(math.Abs(pos[k].X), c.PositionEnvelope) * sign(pos[k].X),
			Y: 2 * c.BoundsPenalty * hinge(math.Abs(pos[k].Y), c.PositionEnvelope) * sign(pos[k].Y),
			Z: 2 * c.BoundsPenalty * hinge(math.Abs(pos[k].Z), c.PositionEnvelope) * sign(pos[k].Z),
		})
	}

	// Obstacle keep-out.
	for _, o := range pb.obstacles {
		rr := sq(o.Radius + c.SafetyMargin)
		for k := 1; k < n; k++ {
			rel := pos[k].Sub(o.Center)
			d2 := rel.NormSq()
			if d2 < rr {
				dLdp[k] = dLdp[k].Add(rel.Scale(-4 * c.ObstaclePenalty * (rr - d2)))
			}
		}
	}

	// Direct thrust terms.
	maxH := c.maxHorizontalThrust()
	for k := 0; k < n; k++ {
		t := geom.Vec3{X: x[3*k], Y: x[3*k+1], Z: x[3*k+2]}
		g := t.Sub(pb.hover).Scale(2 * c.EffortWeight)

		tz := t.Z
		if tz < c.MinThrust {
			g.Z += 2 * c.BoundsPenalty * (tz - c.MinThrust)
		}
		if tz > c.MaxThrust {
			g.Z += 2 * c.BoundsPenalty * (tz - c.MaxThrust)
		}
		if h := math.Hypot(t.X, t.Y); h > maxH && h > 0 {
			f := 2 * c.BoundsPenalty * (h - maxH) / h
			g.X += f * t.X
			g.Y += f * t.Y
		}

		grad[3*k] = g.X
		grad[3*k+1] = g.Y
		grad[3*k+2] = g.Z
	}

	// Acceleration smoothness acts on thrust differences directly
	// (acc is affine in thrust with slope 1/mass).
	for k := 0; k+1 < n; k++ {
		d := acc[k+1].Sub(acc[k]).Scale(2 * c.SmoothnessWeight / c.Mass)
		grad[3*(k+1)] += d.X
		grad[3*(k+1)+1] += d.Y
		grad[3*(k+1)+2] += d.Z
		grad[3*k] -= d.X
		grad[3*k+1] -= d.Y
		grad[3*k+2] -= d.Z
	}

	// Back-propagate state partials through the rollout:
	//   d pos_k / d thrust_j = dt^2 (k-j-1/2) / m   for j < k
	//   d vel_k / d thrust_j = dt / m               for j < k
	invM := 1 / c.Mass
	for j := 0; j < n; j++ {
		var g geom.Vec3
		for k := j + 1; k < n; k++ {
			cp := dt * dt * (float64(k-j) - 0.5) * invM
			g = g.Add(dLdp[k].Scale(cp)).Add(dLdv[k].Scale(dt * invM))
		}
		grad[3*j] += g.X
		grad[3*j+1] += g.Y
		grad[3*j+2] += g.Z
	}
}

func sq(v float64) float64 { return v * v }

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
