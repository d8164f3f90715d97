// Package config loads the vehicle tuning file. The JSON schema uses
// pointer fields so a partial file only overrides what it names; the
// Get* methods supply the bench defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/osprey-uas/autonomy/internal/planner"
	"github.com/osprey-uas/autonomy/internal/timing"
)

// PlannerConfig is the root tuning schema. Control dt is derived from
// control_frequency_hz; it is deliberately not a field.
type PlannerConfig struct {
	// Horizon and dynamics
	Horizon *int     `json:"horizon,omitempty"`
	Mass    *float64 `json:"mass,omitempty"`
	Gravity *float64 `json:"gravity,omitempty"`

	// Envelope limits
	MaxVelocity      *float64 `json:"max_velocity,omitempty"`
	MinThrust        *float64 `json:"min_thrust,omitempty"`
	MaxThrust        *float64 `json:"max_thrust,omitempty"`
	MaxTiltDegrees   *float64 `json:"max_tilt_degrees,omitempty"`
	PositionEnvelope *float64 `json:"position_envelope,omitempty"`
	SafetyMargin     *float64 `json:"safety_margin,omitempty"`

	// Cost weights
	GoalWeight       *float64 `json:"goal_weight,omitempty"`
	TerminalWeight   *float64 `json:"terminal_weight,omitempty"`
	VelocityWeight   *float64 `json:"velocity_weight,omitempty"`
	SmoothnessWeight *float64 `json:"smoothness_weight,omitempty"`
	EffortWeight     *float64 `json:"effort_weight,omitempty"`

	// Solver params
	MaxIterations *int     `json:"max_iterations,omitempty"`
	Tolerance     *float64 `json:"tolerance,omitempty"`

	// Cadence params
	ControlFrequencyHz  *float64 `json:"control_frequency_hz,omitempty"`
	PlanningFrequencyHz *float64 `json:"planning_frequency_hz,omitempty"`
	MaxPlanningLatency  *string  `json:"max_planning_latency,omitempty"` // duration string like "80ms"
	MinPlanningInterval *string  `json:"min_planning_interval,omitempty"`
	TimingMode          *string  `json:"timing_mode,omitempty"`

	// Goal handling
	GoalHysteresis *float64 `json:"goal_hysteresis,omitempty"`
}

// Empty returns a PlannerConfig with all fields unset.
func Empty() *PlannerConfig {
	return &PlannerConfig{}
}

// Load reads and validates a PlannerConfig from a JSON file. Fields
// omitted from the file keep their defaults, so partial configs are
// safe.
func Load(path string) (*PlannerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every set field holds a usable value.
func (c *PlannerConfig) Validate() error {
	if c.Horizon != nil && *c.Horizon < 2 {
		return fmt.Errorf("horizon must be at least 2, got %d", *c.Horizon)
	}
	if c.Mass != nil && *c.Mass <= 0 {
		return fmt.Errorf("mass must be positive, got %f", *c.Mass)
	}
	if c.MaxTiltDegrees != nil && (*c.MaxTiltDegrees <= 0 || *c.MaxTiltDegrees >= 90) {
		return fmt.Errorf("max_tilt_degrees must be in (0, 90), got %f", *c.MaxTiltDegrees)
	}
	if c.MinThrust != nil && c.MaxThrust != nil && *c.MinThrust > *c.MaxThrust {
		return fmt.Errorf("min_thrust %f exceeds max_thrust %f", *c.MinThrust, *c.MaxThrust)
	}
	if c.ControlFrequencyHz != nil && *c.ControlFrequencyHz <= 0 {
		return fmt.Errorf("control_frequency_hz must be positive, got %f", *c.ControlFrequencyHz)
	}
	if c.PlanningFrequencyHz != nil && *c.PlanningFrequencyHz <= 0 {
		return fmt.Errorf("planning_frequency_hz must be positive, got %f", *c.PlanningFrequencyHz)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", *c.MaxIterations)
	}

	if c.MaxPlanningLatency != nil && *c.MaxPlanningLatency != "" {
		if _, err := time.ParseDuration(*c.MaxPlanningLatency); err != nil {
			return fmt.Errorf("invalid max_planning_latency '%s': %w", *c.MaxPlanningLatency, err)
		}
	}
	if c.MinPlanningInterval != nil && *c.MinPlanningInterval != "" {
		if _, err := time.ParseDuration(*c.MinPlanningInterval); err != nil {
			return fmt.Errorf("invalid min_planning_interval '%s': %w", *c.MinPlanningInterval, err)
		}
	}
	if c.TimingMode != nil && *c.TimingMode != "" {
		if _, err := timing.ParseMode(*c.TimingMode); err != nil {
			return err
		}
	}
	return nil
}

// GetControlFrequencyHz returns the control loop rate or the default.
func (c *PlannerConfig) GetControlFrequencyHz() float64 {
	if c.ControlFrequencyHz == nil {
		return 100.0
	}
	return *c.ControlFrequencyHz
}

// GetPlanningFrequencyHz returns the planning rate or the default.
func (c *PlannerConfig) GetPlanningFrequencyHz() float64 {
	if c.PlanningFrequencyHz == nil {
		return 10.0
	}
	return *c.PlanningFrequencyHz
}

// GetMaxPlanningLatency parses the latency budget or returns the default.
func (c *PlannerConfig) GetMaxPlanningLatency() time.Duration {
	if c.MaxPlanningLatency == nil || *c.MaxPlanningLatency == "" {
		return 80 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.MaxPlanningLatency)
	if err != nil {
		return 80 * time.Millisecond
	}
	return d
}

// GetMinPlanningInterval parses the minimum replan spacing or returns
// the default.
func (c *PlannerConfig) GetMinPlanningInterval() time.Duration {
	if c.MinPlanningInterval == nil || *c.MinPlanningInterval == "" {
		return 50 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.MinPlanningInterval)
	if err != nil {
		return 50 * time.Millisecond
	}
	return d
}

// GetTimingMode returns the parsed timing mode or the default.
func (c *PlannerConfig) GetTimingMode() timing.Mode {
	if c.TimingMode == nil || *c.TimingMode == "" {
		return timing.ModePlannerDriven
	}
	m, err := timing.ParseMode(*c.TimingMode)
	if err != nil {
		return timing.ModePlannerDriven
	}
	return m
}

// GetGoalHysteresis returns the goal displacement threshold or the
// default.
func (c *PlannerConfig) GetGoalHysteresis() float64 {
	if c.GoalHysteresis == nil {
		return planner.DefaultGoalHysteresis
	}
	return *c.GoalHysteresis
}

// PlannerSettings resolves the optimizer configuration. The trajectory
// dt is derived from the control frequency so every planner sample
// lands on a control tick.
func (c *PlannerConfig) PlannerSettings() planner.Config {
	cfg := planner.DefaultConfig()
	cfg.Dt = 1.0 / c.GetControlFrequencyHz()

	if c.Horizon != nil {
		cfg.Horizon = *c.Horizon
	}
	if c.Mass != nil {
		cfg.Mass = *c.Mass
	}
	if c.Gravity != nil {
		cfg.Gravity = *c.Gravity
	}
	if c.MaxVelocity != nil {
		cfg.MaxVelocity = *c.MaxVelocity
	}
	if c.MinThrust != nil {
		cfg.MinThrust = *c.MinThrust
	}
	if c.MaxThrust != nil {
		cfg.MaxThrust = *c.MaxThrust
	}
	if c.MaxTiltDegrees != nil {
		cfg.MaxTilt = *c.MaxTiltDegrees * math.Pi / 180
	}
	if c.PositionEnvelope != nil {
		cfg.PositionEnvelope = *c.PositionEnvelope
	}
	if c.SafetyMargin != nil {
		cfg.SafetyMargin = *c.SafetyMargin
	}
	if c.GoalWeight != nil {
		cfg.GoalWeight = *c.GoalWeight
	}
	if c.TerminalWeight != nil {
		cfg.TerminalWeight = *c.TerminalWeight
	}
	if c.VelocityWeight != nil {
		cfg.VelocityWeight = *c.VelocityWeight
	}
	if c.SmoothnessWeight != nil {
		cfg.SmoothnessWeight = *c.SmoothnessWeight
	}
	if c.EffortWeight != nil {
		cfg.EffortWeight = *c.EffortWeight
	}
	if c.MaxIterations != nil {
		cfg.MaxIterations = *c.MaxIterations
	}
	if c.Tolerance != nil {
		cfg.Tolerance = *c.Tolerance
	}
	return cfg
}

// TimingSettings resolves the cadence configuration.
func (c *PlannerConfig) TimingSettings() timing.Config {
	return timing.Config{
		ControlFrequency:    c.GetControlFrequencyHz(),
		PlanningFrequency:   c.GetPlanningFrequencyHz(),
		MaxPlanningLatency:  c.GetMaxPlanningLatency(),
		MinPlanningInterval: c.GetMinPlanningInterval(),
		Mode:                c.GetTimingMode(),
	}
}
