package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsSnapshotAggregates(t *testing.T) {
	s := newStats(10)
	s.record(StatusConverged, 12, 4*time.Millisecond)
	s.record(StatusConverged, 8, 2*time.Millisecond)
	s.record(StatusNotConverged, 60, 9*time.Millisecond)
	s.record(StatusFailed, 0, 1*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, 4, snap.Attempts)
	assert.Equal(t, 2, snap.Converged)
	assert.Equal(t, 1, snap.NotConverged)
	assert.Equal(t, 1, snap.Failed)
	assert.InDelta(t, 0.5, snap.SuccessRate, 1e-12)
	assert.InDelta(t, 20.0, snap.MeanIterations, 1e-12)
	assert.Equal(t, 4*time.Millisecond, snap.MeanDuration)
	assert.Equal(t, 9*time.Millisecond, snap.MaxDuration)
}

func TestStatsWindowRollsOver(t *testing.T) {
	s := newStats(3)
	s.record(StatusFailed, 0, time.Millisecond)
	for i := 0; i < 3; i++ {
		s.record(StatusConverged, 10, time.Millisecond)
	}

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Attempts)
	assert.Zero(t, snap.Failed, "oldest record should have aged out")
	assert.InDelta(t, 1.0, snap.SuccessRate, 1e-12)
}

func TestStatsEmptySnapshot(t *testing.T) {
	snap := newStats(5).Snapshot()
	assert.Zero(t, snap.Attempts)
	assert.Zero(t, snap.SuccessRate)
}

func TestLastSolveReturnsMostRecentRecord(t *testing.T) {
	s := newStats(3)
	_, ok := s.LastSolve()
	assert.False(t, ok, "no record before the first attempt")

	s.record(StatusConverged, 12, 4*time.Millisecond)
	s.record(StatusNotConverged, 60, 9*time.Millisecond)

	info, ok := s.LastSolve()
	assert.True(t, ok)
	assert.Equal(t, StatusNotConverged, info.Status)
	assert.Equal(t, 60, info.Iterations)
	assert.Equal(t, 9*time.Millisecond, info.Duration)
}

func TestSolveStatusString(t *testing.T) {
	assert.Equal(t, "converged", StatusConverged.String())
	assert.Equal(t, "not_converged", StatusNotConverged.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "unknown", SolveStatus(42).String())
}
