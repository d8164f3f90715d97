// Package planner implements the SE(3) constrained trajectory
// optimizer: a finite-horizon solve over rigid-body double-integrator
// dynamics, warm-started from the previous accepted solution and
// bounded in iteration count to fit a real-time planning budget.
package planner

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/monitoring"
	"github.com/osprey-uas/autonomy/internal/timeutil"
	"github.com/osprey-uas/autonomy/internal/traj"
)

// minimizeFunc matches optimize.Minimize. Held as a field so tests can
// inject solver failures without reaching into gonum.
type minimizeFunc func(p optimize.Problem, initX []float64, settings *optimize.Settings, method optimize.Method) (*optimize.Result, error)

// Optimizer plans collision-aware trajectories toward a goal. It is
// not safe for concurrent use; one planning loop owns it. The warm
// start is a single-owner value replaced wholesale after each accepted
// solve, never aliased outside the instance.
type Optimizer struct {
	cfg      Config
	clock    timeutil.Clock
	stats    *Stats
	prev     *OptimizationVector
	minimize minimizeFunc
}

// New creates an optimizer. A nil clock selects the real clock.
func New(cfg Config, clock timeutil.Clock) *Optimizer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	cfg = cfg.withDefaults()
	return &Optimizer{
		cfg:      cfg,
		clock:    clock,
		stats:    newStats(cfg.StatsWindow),
		minimize: optimize.Minimize,
	}
}

// Config returns the resolved configuration in use.
func (o *Optimizer) Config() Config { return o.cfg }

// Stats returns the rolling convergence statistics.
func (o *Optimizer) Stats() StatsSnapshot { return o.stats.Snapshot() }

// LastSolve returns the outcome of the most recent Plan call. ok is
// false before the first call.
func (o *Optimizer) LastSolve() (SolveInfo, bool) { return o.stats.LastSolve() }

// Plan computes a trajectory from the current state toward the goal,
// avoiding the given obstacles. It never fails: any formulation or
// solver error degrades to the emergency hover trajectory, and a
// non-converged solve still publishes its best iterate. The returned
// trajectory always has exactly Horizon samples on the state's
// timestamp grid, with sample 0 pinned to the measured state.
func (o *Optimizer) Plan(state traj.DroneState, goal geom.Vec3, obstacles []traj.Obstacle) *traj.Trajectory {
	start := o.clock.Now()
	vec, status, iters, err := o.solve(state, goal, obstacles)
	duration := o.clock.Since(start)

	if err != nil {
		o.stats.record(StatusFailed, 0, duration)
		o.prev = nil
		monitoring.Logf("WARNING: trajectory solve failed, holding position: %v", err)
		return traj.NewEmergency(state, o.cfg.Horizon, o.cfg.dtDuration(), o.cfg.HoverThrust())
	}

	o.stats.record(status, iters, duration)
	kept := vec.clone()
	o.prev = &kept
	return o.buildTrajectory(state, vec)
}

// solve formulates and runs one bounded L-BFGS solve. It returns the
// projected solution and a converged/not-converged status; an error
// means no usable iterate exists and the caller must fall back.
func (o *Optimizer) solve(state traj.DroneState, goal geom.Vec3, obstacles []traj.Obstacle) (vec OptimizationVector, status SolveStatus, iters int, err error) {
	// The gonum stack can panic on pathological inputs; a panic here
	// is a planning failure, not a process failure.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("solver panic: %v", r)
			status = StatusFailed
		}
	}()

	if !state.Position.IsFinite() || !state.Velocity.IsFinite() {
		return vec, StatusFailed, 0, fmt.Errorf("non-finite drone state")
	}
	if !goal.IsFinite() {
		return vec, StatusFailed, 0, fmt.Errorf("non-finite goal")
	}
	for _, ob := range obstacles {
		if !ob.Center.IsFinite() || math.IsNaN(ob.Radius) || ob.Radius < 0 {
			return vec, StatusFailed, 0, fmt.Errorf("invalid obstacle %+v", ob)
		}
	}

	pb := newProblem(o.cfg, state, goal, obstacles)
	x0 := flattenThrusts(o.seed(state, goal, obstacles).Thrusts)

	result, rerr := o.minimize(
		optimize.Problem{Func: pb.cost, Grad: pb.grad},
		x0,
		&optimize.Settings{
			MajorIterations:   o.cfg.MaxIterations,
			GradientThreshold: o.cfg.Tolerance,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-10,
				Relative:   1e-8,
				Iterations: 8,
			},
		},
		&optimize.LBFGS{},
	)

	// Best-iterate policy: keep the solver's point only if it is
	// finite and no worse than the seed; a line-search failure with a
	// usable iterate is a convergence failure, not an error.
	x := x0
	converged := false
	switch {
	case result != nil && allFinite(result.X) && pb.cost(result.X) <= pb.cost(x0):
		x = result.X
		iters = result.Stats.MajorIterations
		converged = rerr == nil && convergedStatus(result.Status)
	case rerr != nil:
		return vec, StatusFailed, 0, fmt.Errorf("minimize: %w", rerr)
	}

	vec = o.project(state, x)
	if !clears(vec.Positions, obstacles, o.cfg.SafetyMargin) {
		converged = false
	}

	if converged {
		return vec, StatusConverged, iters, nil
	}
	return vec, StatusNotConverged, iters, nil
}

// project turns a thrust iterate into a dynamically exact solution:
// thrusts clamped into the envelope, step 0 pinned to the measured
// state, and positions/velocities rolled forward through the discrete
// dynamics. The published trajectory therefore satisfies the equality
// constraints to machine precision.
func (o *Optimizer) project(state traj.DroneState, x []float64) OptimizationVector {
	n := o.cfg.Horizon
	dt := o.cfg.Dt
	vec := NewOptimizationVector(n)

	for k, t := range thrustsFromFlat(x) {
		vec.Thrusts[k] = clampThrust(o.cfg, t)
	}

	gravity := geom.Vec3{Z: o.cfg.Gravity}
	vec.Positions[0] = state.Position
	vec.Velocities[0] = state.Velocity
	for k := 0; k+1 < n; k++ {
		a := vec.Thrusts[k].Scale(1 / o.cfg.Mass).Sub(gravity)
		vec.Positions[k+1] = vec.Positions[k].Add(vec.Velocities[k].Scale(dt)).Add(a.Scale(0.5 * dt * dt))
		vec.Velocities[k+1] = vec.Velocities[k].Add(a.Scale(dt))
	}
	return vec
}

// buildTrajectory assembles the published trajectory from a projected
// solution: the SO(3)-exact attitude from each thrust vector, Euler
// extraction, and body rates by finite-differencing consecutive
// rotations.
func (o *Optimizer) buildTrajectory(state traj.DroneState, vec OptimizationVector) *traj.Trajectory {
	n := o.cfg.Horizon
	dt := o.cfg.Dt
	gravity := geom.Vec3{Z: o.cfg.Gravity}
	yaw := state.Attitude.Z

	out := traj.New(n, state.Timestamp, o.cfg.dtDuration())
	rotations := make([]*mat.Dense, n)
	for k := 0; k < n; k++ {
		out.Positions[k] = vec.Positions[k]
		out.Velocities[k] = vec.Velocities[k]
		out.Accelerations[k] = vec.Thrusts[k].Scale(1 / o.cfg.Mass).Sub(gravity)
		out.Thrusts[k] = vec.Thrusts[k].Norm()
		rotations[k] = geom.BasisFromThrustYaw(vec.Thrusts[k], yaw)
		out.Attitudes[k] = geom.EulerZYX(rotations[k])
	}
	for k := 0; k+1 < n; k++ {
		out.BodyRates[k] = geom.BodyRates(rotations[k], rotations[k+1], dt)
	}
	out.BodyRates[n-1] = out.BodyRates[n-2]
	return out
}

// clears reports whether every sample keeps radius+margin distance
// from every obstacle, within a small numerical slack.
func clears(positions []geom.Vec3, obstacles []traj.Obstacle, margin float64) bool {
	const slack = 1e-9
	for _, o := range obstacles {
		limit := o.Radius + margin - slack
		for k := 1; k < len(positions); k++ {
			if positions[k].DistanceTo(o.Center) < limit {
				return false
			}
		}
	}
	return true
}

func convergedStatus(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
