// Package traj defines the drone state and trajectory types exchanged
// between the planner and the control loop. A Trajectory is built in
// full and then published by pointer swap; nothing mutates one after
// construction.
package traj

import (
	"fmt"
	"math"
	"time"

	"github.com/osprey-uas/autonomy/internal/geom"
)

// DroneState is the estimator output consumed by the planner. Attitude
// is roll/pitch/yaw in radians (ZYX convention); everything else is SI.
type DroneState struct {
	Timestamp       time.Time
	Position        geom.Vec3
	Velocity        geom.Vec3
	Attitude        geom.Vec3
	AngularVelocity geom.Vec3
}

// Obstacle is a spherical keep-out region supplied by perception.
type Obstacle struct {
	Center geom.Vec3
	Radius float64
}

// Trajectory is a finite-horizon motion plan: parallel slices of equal
// length sharing one uniform timestamp grid. Thrusts holds the thrust
// magnitude in newtons per sample.
type Trajectory struct {
	Timestamps    []time.Time
	Positions     []geom.Vec3
	Velocities    []geom.Vec3
	Accelerations []geom.Vec3
	Attitudes     []geom.Vec3
	BodyRates     []geom.Vec3
	Thrusts       []float64
}

// Sample is one interpolated or indexed point of a trajectory.
type Sample struct {
	Time         time.Time
	Position     geom.Vec3
	Velocity     geom.Vec3
	Acceleration geom.Vec3
	Attitude     geom.Vec3
	BodyRate     geom.Vec3
	Thrust       float64
}

// New allocates a trajectory with n samples on the grid
// start + k*dt. The kinematic slices are zeroed; callers fill them
// before publishing.
func New(n int, start time.Time, dt time.Duration) *Trajectory {
	t := &Trajectory{
		Timestamps:    make([]time.Time, n),
		Positions:     make([]geom.Vec3, n),
		Velocities:    make([]geom.Vec3, n),
		Accelerations: make([]geom.Vec3, n),
		Attitudes:     make([]geom.Vec3, n),
		BodyRates:     make([]geom.Vec3, n),
		Thrusts:       make([]float64, n),
	}
	for k := 0; k < n; k++ {
		t.Timestamps[k] = start.Add(time.Duration(k) * dt)
	}
	return t
}

// Len returns the number of samples.
func (t *Trajectory) Len() int { return len(t.Timestamps) }

// Dt returns the grid spacing. Valid only for trajectories with at
// least two samples.
func (t *Trajectory) Dt() time.Duration {
	if t.Len() < 2 {
		return 0
	}
	return t.Timestamps[1].Sub(t.Timestamps[0])
}

// At returns the sample at index k.
func (t *Trajectory) At(k int) Sample {
	return Sample{
		Time:         t.Timestamps[k],
		Position:     t.Positions[k],
		Velocity:     t.Velocities[k],
		Acceleration: t.Accelerations[k],
		Attitude:     t.Attitudes[k],
		BodyRate:     t.BodyRates[k],
		Thrust:       t.Thrusts[k],
	}
}

// Check validates the structural invariants: non-empty, index-aligned
// slices, a strictly increasing uniform timestamp grid, and finite
// kinematics throughout.
func (t *Trajectory) Check() error {
	n := t.Len()
	if n == 0 {
		return fmt.Errorf("trajectory has no samples")
	}
	if len(t.Positions) != n || len(t.Velocities) != n || len(t.Accelerations) != n ||
		len(t.Attitudes) != n || len(t.BodyRates) != n || len(t.Thrusts) != n {
		return fmt.Errorf("trajectory slices not index-aligned (n=%d)", n)
	}
	dt := t.Dt()
	for k := 0; k < n; k++ {
		if k > 0 {
			step := t.Timestamps[k].Sub(t.Timestamps[k-1])
			if step <= 0 {
				return fmt.Errorf("timestamps not strictly increasing at index %d", k)
			}
			if step != dt {
				return fmt.Errorf("non-uniform grid at index %d: %v != %v", k, step, dt)
			}
		}
		if !t.Positions[k].IsFinite() || !t.Velocities[k].IsFinite() ||
			!t.Accelerations[k].IsFinite() || !t.Attitudes[k].IsFinite() ||
			!t.BodyRates[k].IsFinite() {
			return fmt.Errorf("non-finite sample at index %d", k)
		}
		if math.IsNaN(t.Thrusts[k]) || math.IsInf(t.Thrusts[k], 0) {
			return fmt.Errorf("non-finite thrust at index %d", k)
		}
	}
	return nil
}
