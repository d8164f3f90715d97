package planner

import (
	"math"
	"time"

	"github.com/osprey-uas/autonomy/internal/monitoring"
)

// Config holds the resolved numerical parameters of one optimizer
// instance. Horizon and Dt are fixed for the life of the instance; Dt
// is derived from the control frequency by the caller, never chosen
// independently.
type Config struct {
	// Horizon is the number of discrete steps per solve.
	Horizon int

	// Dt is the step spacing in seconds (1 / control frequency).
	Dt float64

	// Rigid-body parameters.
	Mass    float64 // kg
	Gravity float64 // m/s^2, positive down

	// Flight envelope.
	MaxVelocity      float64 // m/s, per-axis bound
	MinThrust        float64 // N, vertical component floor
	MaxThrust        float64 // N, total thrust ceiling
	MaxTilt          float64 // rad, bounds horizontal thrust components
	PositionEnvelope float64 // m, half-width of the allowed box around the origin

	// SafetyMargin inflates every obstacle radius.
	SafetyMargin float64

	// Cost weights.
	GoalWeight       float64 // position tracking, intermediate steps
	TerminalWeight   float64 // position tracking, final step
	VelocityWeight   float64 // velocity regulation
	SmoothnessWeight float64 // acceleration difference between steps
	EffortWeight     float64 // thrust deviation from hover

	// Constraint penalty weights.
	BoundsPenalty   float64
	ObstaclePenalty float64

	// Solver budget.
	MaxIterations int
	Tolerance     float64

	// StatsWindow is the rolling convergence window length.
	StatsWindow int
}

// DefaultConfig returns parameters sized for a small quadrotor on a
// 50 Hz control grid with a 0.4 s prediction horizon.
func DefaultConfig() Config {
	return Config{
		Horizon:          20,
		Dt:               0.02,
		Mass:             1.2,
		Gravity:          9.81,
		MaxVelocity:      8.0,
		MinThrust:        2.0,
		MaxThrust:        30.0,
		MaxTilt:          35 * math.Pi / 180,
		PositionEnvelope: 200.0,
		SafetyMargin:     0.5,
		GoalWeight:       1.0,
		TerminalWeight:   10.0,
		VelocityWeight:   0.05,
		SmoothnessWeight: 0.01,
		EffortWeight:     0.005,
		BoundsPenalty:    50.0,
		ObstaclePenalty:  100.0,
		MaxIterations:    60,
		Tolerance:        1e-3,
		StatsWindow:      50,
	}
}

// HoverThrust returns the thrust magnitude that cancels gravity.
func (c Config) HoverThrust() float64 { return c.Mass * c.Gravity }

// maxHorizontalThrust is the tilt-limited bound on the horizontal
// thrust component norm.
func (c Config) maxHorizontalThrust() float64 {
	return c.MaxThrust * math.Sin(c.MaxTilt)
}

func (c Config) dtDuration() time.Duration {
	return time.Duration(c.Dt * float64(time.Second))
}

// withDefaults replaces structurally unusable values with defaults so
// a partially filled Config cannot produce a degenerate problem.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Horizon < 2 {
		monitoring.Logf("WARNING: horizon %d too short, using %d", c.Horizon, def.Horizon)
		c.Horizon = def.Horizon
	}
	if c.Dt <= 0 {
		monitoring.Logf("WARNING: non-positive dt %f, using %f", c.Dt, def.Dt)
		c.Dt = def.Dt
	}
	if c.Mass <= 0 {
		c.Mass = def.Mass
	}
	if c.Gravity <= 0 {
		c.Gravity = def.Gravity
	}
	if c.MaxThrust <= 0 {
		c.MaxThrust = def.MaxThrust
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = def.Tolerance
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = def.StatsWindow
	}
	return c
}
