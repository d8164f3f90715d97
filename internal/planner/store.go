package planner

import (
	"sync"

	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/traj"
)

// DefaultGoalHysteresis is the minimum displacement, in metres, before
// a new goal replaces the current one. Estimator noise on the goal
// source below this threshold must not re-trigger solver transients.
const DefaultGoalHysteresis = 0.5

// GoalStore holds the current goal point and obstacle set. Perception
// and mission sources write at low rate; the planner reads one
// consistent snapshot per cycle, so mid-solve updates take effect on
// the next cycle only.
type GoalStore struct {
	mu         sync.Mutex
	goal       geom.Vec3
	hasGoal    bool
	hysteresis float64
	obstacles  []traj.Obstacle
}

// NewGoalStore creates a store with the given goal hysteresis in
// metres. Non-positive values select DefaultGoalHysteresis.
func NewGoalStore(hysteresis float64) *GoalStore {
	if hysteresis <= 0 {
		hysteresis = DefaultGoalHysteresis
	}
	return &GoalStore{hysteresis: hysteresis}
}

// SetGoal proposes a new goal. The first goal is always accepted;
// afterwards a goal is accepted only if it moves by more than the
// hysteresis threshold. Returns whether the goal was accepted.
func (s *GoalStore) SetGoal(g geom.Vec3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasGoal && s.goal.DistanceTo(g) <= s.hysteresis {
		return false
	}
	s.goal = g
	s.hasGoal = true
	return true
}

// SetObstacles replaces the obstacle set wholesale. The slice is
// copied; callers may reuse theirs.
func (s *GoalStore) SetObstacles(obs []traj.Obstacle) {
	cp := make([]traj.Obstacle, len(obs))
	copy(cp, obs)
	s.mu.Lock()
	s.obstacles = cp
	s.mu.Unlock()
}

// Snapshot returns the current goal, a copy of the obstacle set, and
// whether a goal has been set. The copies are safe to hold for the
// duration of a solve.
func (s *GoalStore) Snapshot() (geom.Vec3, []traj.Obstacle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := make([]traj.Obstacle, len(s.obstacles))
	copy(obs, s.obstacles)
	return s.goal, obs, s.hasGoal
}
