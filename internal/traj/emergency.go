package traj

import (
	"time"

	"github.com/osprey-uas/autonomy/internal/geom"
)

// NewEmergency builds the hover-in-place fallback trajectory: n copies
// of the current position with zero velocity and acceleration, spaced
// dt apart. Attitude holds the current yaw with level roll/pitch, and
// every sample carries the hover thrust magnitude. This is the safe
// output used whenever planning fails outright.
func NewEmergency(state DroneState, n int, dt time.Duration, hoverThrust float64) *Trajectory {
	t := New(n, state.Timestamp, dt)
	att := geom.Vec3{X: 0, Y: 0, Z: state.Attitude.Z}
	for k := 0; k < n; k++ {
		t.Positions[k] = state.Position
		t.Attitudes[k] = att
		t.Thrusts[k] = hoverThrust
	}
	return t
}
