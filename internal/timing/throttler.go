package timing

import (
	"sync/atomic"
	"time"

	"github.com/osprey-uas/autonomy/internal/traj"
)

// Throttler sits between the planner and the control loop: the planner
// publishes whole trajectories, the control loop reads interpolated
// state. Publication is a single atomic pointer swap; trajectories are
// immutable after construction, so the control loop can never observe a
// half-written plan and never blocks on an in-progress solve.
type Throttler struct {
	mgr *Manager
	cur atomic.Pointer[traj.Trajectory]
}

// NewThrottler creates a throttler bound to a timing manager.
func NewThrottler(mgr *Manager) *Throttler {
	return &Throttler{mgr: mgr}
}

// UpdateTrajectory publishes a new trajectory, replacing the held one.
// A nil trajectory is ignored.
func (t *Throttler) UpdateTrajectory(tr *traj.Trajectory) {
	if tr == nil {
		return
	}
	t.cur.Store(tr)
}

// Current returns the most recently published trajectory, or nil before
// the first publish.
func (t *Throttler) Current() *traj.Trajectory {
	return t.cur.Load()
}

// ShouldExecuteControl reports whether a control tick is due at now.
func (t *Throttler) ShouldExecuteControl(now time.Time) bool {
	return t.mgr.ShouldControl(now)
}

// ControlState returns the desired state at now, interpolated from the
// current trajectory. ok is false until a trajectory has been
// published; the caller supplies its own fallback, typically hold
// position.
func (t *Throttler) ControlState(now time.Time) (traj.Sample, bool) {
	tr := t.cur.Load()
	if tr == nil {
		return traj.Sample{}, false
	}
	return t.mgr.Interpolate(tr, now), true
}
