package planner

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"

	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/monitoring"
	"github.com/osprey-uas/autonomy/internal/timeutil"
	"github.com/osprey-uas/autonomy/internal/traj"
)

func init() {
	monitoring.SetLogger(nil)
}

// scenarioConfig mirrors the reference scenario: six steps of 125 ms.
func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.Horizon = 6
	cfg.Dt = 0.125
	cfg.Mass = 1.0
	cfg.MaxVelocity = 8.0
	cfg.MinThrust = 1.0
	cfg.MaxThrust = 25.0
	cfg.MaxIterations = 150
	return cfg
}

func hoverStateAt(pos geom.Vec3, ts time.Time) traj.DroneState {
	return traj.DroneState{Timestamp: ts, Position: pos}
}

// advance moves the state to the trajectory's second sample, the way
// the control loop consumes the near-term portion of each plan.
func advance(state traj.DroneState, tr *traj.Trajectory) traj.DroneState {
	s := tr.At(1)
	state.Timestamp = s.Time
	state.Position = s.Position
	state.Velocity = s.Velocity
	state.Attitude = s.Attitude
	return state
}

func TestPlanReturnsHorizonGrid(t *testing.T) {
	cfg := scenarioConfig()
	o := New(cfg, nil)
	state := hoverStateAt(geom.Vec3{Z: 1}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	tr := o.Plan(state, geom.Vec3{X: 10, Z: 1}, nil)
	require.NotNil(t, tr)
	require.NoError(t, tr.Check())
	assert.Equal(t, cfg.Horizon, tr.Len())
	assert.Equal(t, 125*time.Millisecond, tr.Dt())
	assert.True(t, tr.Timestamps[0].Equal(state.Timestamp))

	info, ok := o.LastSolve()
	require.True(t, ok)
	assert.NotEqual(t, StatusFailed, info.Status)
}

func TestPlanPinsInitialState(t *testing.T) {
	o := New(scenarioConfig(), nil)
	state := traj.DroneState{
		Timestamp: time.Now(),
		Position:  geom.Vec3{X: 2, Y: -1, Z: 3},
		Velocity:  geom.Vec3{X: 0.5, Y: 0.2, Z: -0.1},
	}

	tr := o.Plan(state, geom.Vec3{X: 8, Z: 3}, nil)
	require.NoError(t, tr.Check())
	// Sample 0 is pinned to the measured state exactly, not to
	// floating-point tolerance: projection rolls the dynamics forward
	// from it.
	assert.Equal(t, state.Position, tr.Positions[0])
	assert.Equal(t, state.Velocity, tr.Velocities[0])
}

// Scenario A: stationary goal, no obstacles. The terminal sample's
// distance to goal strictly decreases across successive replans as the
// vehicle tracks each plan's near-term portion.
func TestPlanProgressTowardGoal(t *testing.T) {
	o := New(scenarioConfig(), nil)
	goal := geom.Vec3{X: 10, Z: 1}
	state := hoverStateAt(geom.Vec3{Z: 1}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	var terminal []float64
	for i := 0; i < 4; i++ {
		tr := o.Plan(state, goal, nil)
		require.NoError(t, tr.Check())
		terminal = append(terminal, tr.Positions[tr.Len()-1].DistanceTo(goal))
		state = advance(state, tr)
	}

	require.Zero(t, o.Stats().Failed)
	for i := 1; i < len(terminal); i++ {
		assert.Lessf(t, terminal[i], terminal[i-1],
			"terminal distance did not decrease at replan %d: %v", i, terminal)
	}
}

// Scenario B: an obstacle of radius 1.0 with a 1.5 m safety margin sits
// on the straight line to the goal. No sample of a converged solve may
// come within 2.5 m of its center.
func TestPlanKeepsObstacleClearance(t *testing.T) {
	cfg := scenarioConfig()
	cfg.SafetyMargin = 1.5
	o := New(cfg, nil)

	obstacles := []traj.Obstacle{{Center: geom.Vec3{X: 5, Z: 1}, Radius: 1.0}}
	goal := geom.Vec3{X: 10, Z: 1}
	state := hoverStateAt(geom.Vec3{Z: 1}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	const clearance = 2.5
	for i := 0; i < 40; i++ {
		before := o.Stats().Converged
		tr := o.Plan(state, goal, obstacles)
		require.NoError(t, tr.Check())

		if o.Stats().Converged > before {
			for k := 1; k < tr.Len(); k++ {
				d := tr.Positions[k].DistanceTo(obstacles[0].Center)
				assert.GreaterOrEqualf(t, d, clearance-1e-6,
					"replan %d sample %d intrudes keep-out: %.3f m", i, k, d)
			}
		}
		state = advance(state, tr)
	}

	stats := o.Stats()
	require.Zero(t, stats.Failed)
	assert.Greater(t, stats.Converged, 0, "no solve converged in 40 replans")
}

// Scenario C: a solver failure degrades to the emergency hover
// trajectory for the given input state.
func TestPlanSolverErrorFallsBackToHover(t *testing.T) {
	cfg := scenarioConfig()
	o := New(cfg, nil)
	o.minimize = func(optimize.Problem, []float64, *optimize.Settings, optimize.Method) (*optimize.Result, error) {
		return nil, errors.New("forced failure")
	}

	state := traj.DroneState{
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Position:  geom.Vec3{X: 3, Y: 4, Z: 5},
		Attitude:  geom.Vec3{Z: 0.7},
	}

	got := o.Plan(state, geom.Vec3{X: 10}, nil)
	want := traj.NewEmergency(state, cfg.Horizon, 125*time.Millisecond, cfg.HoverThrust())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fallback trajectory mismatch (-want +got):\n%s", diff)
	}

	stats := o.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Converged)

	info, ok := o.LastSolve()
	require.True(t, ok)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Zero(t, info.Iterations)
}

func TestPlanSolverPanicIsContained(t *testing.T) {
	o := New(scenarioConfig(), nil)
	o.minimize = func(optimize.Problem, []float64, *optimize.Settings, optimize.Method) (*optimize.Result, error) {
		panic("solver blew up")
	}

	state := hoverStateAt(geom.Vec3{Z: 2}, time.Now())
	got := o.Plan(state, geom.Vec3{X: 1, Z: 2}, nil)
	require.NoError(t, got.Check())
	for k := 0; k < got.Len(); k++ {
		assert.Equal(t, state.Position, got.Positions[k])
	}
	assert.Equal(t, 1, o.Stats().Failed)
}

func TestPlanRejectsNonFiniteInputs(t *testing.T) {
	o := New(scenarioConfig(), nil)
	state := hoverStateAt(geom.Vec3{Z: 1}, time.Now())

	// A NaN goal must not reach the solver; the attempt is recorded as
	// failed and the fallback holds position.
	got := o.Plan(state, geom.Vec3{X: math.NaN()}, nil)
	require.NoError(t, got.Check())
	assert.Equal(t, 1, o.Stats().Failed)
}

func TestWarmStartIsReplacedNotAliased(t *testing.T) {
	o := New(scenarioConfig(), nil)
	state := hoverStateAt(geom.Vec3{Z: 1}, time.Now())
	goal := geom.Vec3{X: 2, Z: 1}

	tr := o.Plan(state, goal, nil)
	require.NotNil(t, o.prev)

	// Mutating the published trajectory must not reach the cached warm
	// start.
	warmBefore := o.prev.Positions[3]
	tr.Positions[3] = geom.Vec3{X: 99, Y: 99, Z: 99}
	assert.Equal(t, warmBefore, o.prev.Positions[3])

	// A failed solve clears the warm start so the next cycle cold
	// starts.
	o.minimize = func(optimize.Problem, []float64, *optimize.Settings, optimize.Method) (*optimize.Result, error) {
		return nil, errors.New("forced failure")
	}
	o.Plan(state, goal, nil)
	assert.Nil(t, o.prev)
}

func TestPlanUsesInjectedClockForLatency(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	o := New(scenarioConfig(), clock)
	state := hoverStateAt(geom.Vec3{Z: 1}, clock.Now())

	o.Plan(state, geom.Vec3{X: 1, Z: 1}, nil)
	// The mock clock never advanced, so the recorded duration is zero.
	assert.Equal(t, time.Duration(0), o.Stats().MaxDuration)
}

func TestSeedDetoursAroundHeadOnObstacle(t *testing.T) {
	cfg := scenarioConfig()
	cfg.SafetyMargin = 1.5
	o := New(cfg, nil)

	state := hoverStateAt(geom.Vec3{X: 2.0, Z: 1}, time.Now())
	goal := geom.Vec3{X: 10, Z: 1}
	obstacles := []traj.Obstacle{{Center: geom.Vec3{X: 5, Z: 1}, Radius: 1.0}}

	seed := o.seed(state, goal, obstacles)
	r := obstacles[0].Radius + cfg.SafetyMargin + seedBuffer
	for k := 1; k < seed.Len(); k++ {
		d := seed.Positions[k].DistanceTo(obstacles[0].Center)
		assert.GreaterOrEqualf(t, d, r-1e-9, "seed sample %d inside inflated keep-out", k)
	}
}
