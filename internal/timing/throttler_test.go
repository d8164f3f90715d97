package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/traj"
)

func TestControlStateBeforeFirstPublish(t *testing.T) {
	th := NewThrottler(NewManager(testConfig()))
	_, ok := th.ControlState(t0)
	assert.False(t, ok)
	assert.Nil(t, th.Current())
}

func TestControlStateAfterPublish(t *testing.T) {
	th := NewThrottler(NewManager(testConfig()))
	tr := rampTrajectory()
	th.UpdateTrajectory(tr)

	s, ok := th.ControlState(t0.Add(150 * time.Millisecond))
	require.True(t, ok)
	assert.InDelta(t, 1.5, s.Position.X, 1e-12)
}

func TestUpdateTrajectoryReplacesByPointer(t *testing.T) {
	th := NewThrottler(NewManager(testConfig()))
	first := rampTrajectory()
	th.UpdateTrajectory(first)
	require.Same(t, first, th.Current())

	second := traj.New(3, t0, 100*time.Millisecond)
	for k := range second.Positions {
		second.Positions[k] = geom.Vec3{Y: 5}
	}
	th.UpdateTrajectory(second)
	assert.Same(t, second, th.Current())

	// Nil publishes are ignored; the last trajectory stays in effect.
	th.UpdateTrajectory(nil)
	assert.Same(t, second, th.Current())
}

func TestShouldExecuteControlDelegates(t *testing.T) {
	mgr := NewManager(testConfig())
	th := NewThrottler(mgr)

	assert.True(t, th.ShouldExecuteControl(t0))
	assert.False(t, th.ShouldExecuteControl(t0.Add(time.Millisecond)))
	assert.Equal(t, 1, mgr.Stats().ControlTicks)
}
