package planner

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/traj"
)

func testState() traj.DroneState {
	return traj.DroneState{
		Position: geom.Vec3{X: 0.5, Y: -0.3, Z: 1.2},
		Velocity: geom.Vec3{X: 0.4, Y: 0.1, Z: -0.2},
	}
}

func TestRolloutHoverIsStationary(t *testing.T) {
	cfg := DefaultConfig()
	state := traj.DroneState{Position: geom.Vec3{Z: 2}}
	pb := newProblem(cfg, state, geom.Vec3{Z: 2}, nil)

	n := cfg.Horizon
	x := make([]float64, 3*n)
	for k := 0; k < n; k++ {
		x[3*k+2] = cfg.HoverThrust()
	}

	pos := make([]geom.Vec3, n)
	vel := make([]geom.Vec3, n)
	acc := make([]geom.Vec3, n)
	pb.rollout(x, pos, vel, acc)

	for k := 0; k < n; k++ {
		if pos[k].DistanceTo(state.Position) > 1e-12 {
			t.Errorf("step %d drifted to %+v under hover thrust", k, pos[k])
		}
		if vel[k].Norm() > 1e-12 {
			t.Errorf("step %d velocity %+v under hover thrust", k, vel[k])
		}
		if acc[k].Norm() > 1e-12 {
			t.Errorf("step %d acceleration %+v under hover thrust", k, acc[k])
		}
	}
}

func TestRolloutMatchesDiscreteDynamics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 4
	state := testState()
	pb := newProblem(cfg, state, geom.Vec3{X: 3}, nil)

	x := []float64{
		1, -2, 14,
		0.5, 0.5, 11,
		-1, 0, 12,
		0, 1, 13,
	}
	pos := make([]geom.Vec3, 4)
	vel := make([]geom.Vec3, 4)
	acc := make([]geom.Vec3, 4)
	pb.rollout(x, pos, vel, acc)

	dt := cfg.Dt
	p, v := state.Position, state.Velocity
	for k := 0; k < 4; k++ {
		thrust := geom.Vec3{X: x[3*k], Y: x[3*k+1], Z: x[3*k+2]}
		a := thrust.Scale(1 / cfg.Mass).Sub(geom.Vec3{Z: cfg.Gravity})
		if pos[k].DistanceTo(p) > 1e-12 || vel[k].DistanceTo(v) > 1e-12 {
			t.Fatalf("step %d state mismatch", k)
		}
		if acc[k].DistanceTo(a) > 1e-12 {
			t.Fatalf("step %d acceleration mismatch", k)
		}
		p = p.Add(v.Scale(dt)).Add(a.Scale(0.5 * dt * dt))
		v = v.Add(a.Scale(dt))
	}
}

// The analytic gradient must agree with central finite differences of
// the cost, including through the rollout chain, the envelope hinges
// and the obstacle penalty.
func TestGradientMatchesFiniteDifference(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 8
	cfg.Dt = 0.1
	cfg.MaxVelocity = 2.0 // keep the velocity hinge active for some steps

	state := testState()
	goal := geom.Vec3{X: 4, Y: 1, Z: 2}
	obstacles := []traj.Obstacle{
		{Center: geom.Vec3{X: 1, Y: 0, Z: 1.2}, Radius: 0.8},
	}
	pb := newProblem(cfg, state, goal, obstacles)

	rng := rand.New(rand.NewSource(7))
	x := make([]float64, 3*cfg.Horizon)
	for k := 0; k < cfg.Horizon; k++ {
		x[3*k] = rng.NormFloat64() * 3
		x[3*k+1] = rng.NormFloat64() * 3
		x[3*k+2] = cfg.HoverThrust() + rng.NormFloat64()*2
	}

	analytic := make([]float64, len(x))
	pb.grad(analytic, x)

	numeric := make([]float64, len(x))
	fd.Gradient(numeric, pb.cost, x, nil)

	if !floats.EqualApprox(analytic, numeric, 1e-3) {
		for i := range analytic {
			if math.Abs(analytic[i]-numeric[i]) > 1e-3 {
				t.Errorf("grad[%d]: analytic %.6f, numeric %.6f", i, analytic[i], numeric[i])
			}
		}
	}
}

func TestCostPenalizesObstacleIntrusion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 6
	cfg.Dt = 0.125
	state := traj.DroneState{Position: geom.Vec3{Z: 1}}
	goal := geom.Vec3{X: 10, Z: 1}

	// Thrust sequence that pushes hard toward +x.
	x := make([]float64, 3*cfg.Horizon)
	for k := 0; k < cfg.Horizon; k++ {
		x[3*k] = 10
		x[3*k+2] = cfg.HoverThrust()
	}

	clear := newProblem(cfg, state, goal, nil)
	blocked := newProblem(cfg, state, goal, []traj.Obstacle{
		// Directly on the flight path, inflated enough to cover the
		// early samples.
		{Center: geom.Vec3{X: 0.3, Z: 1}, Radius: 1.0},
	})

	if blocked.cost(x) <= clear.cost(x) {
		t.Error("obstacle on path did not raise the cost")
	}
}

func TestHinge(t *testing.T) {
	testCases := []struct {
		v, limit, want float64
	}{
		{0, 1, 0},
		{1, 1, 0},
		{1.5, 1, 0.5},
		{-3, 1, 0},
		{2, -1, 3},
	}
	for _, tc := range testCases {
		if got := hinge(tc.v, tc.limit); got != tc.want {
			t.Errorf("hinge(%f, %f) = %f, want %f", tc.v, tc.limit, got, tc.want)
		}
	}
}
