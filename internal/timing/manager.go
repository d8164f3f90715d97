// Package timing reconciles the planner's slow, variable-latency cadence
// with the fixed-rate control loop: it decides when each loop may run,
// tracks measured planning latency, and interpolates the published
// trajectory to the control loop's query time. The control path never
// waits on a solve; it only reads the last published trajectory.
package timing

import (
	"fmt"
	"sync"
	"time"

	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/monitoring"
	"github.com/osprey-uas/autonomy/internal/traj"
)

// Mode selects how planning attempts are throttled.
type Mode int

const (
	// ModePlannerDriven lets the planner run as often as the minimum
	// planning interval allows.
	ModePlannerDriven Mode = iota

	// ModeControllerDriven holds the planner to the configured planning
	// frequency regardless of how fast solves complete.
	ModeControllerDriven

	// ModeAdaptive widens the planning interval when measured solve
	// latency grows, so a struggling solver backs off instead of
	// saturating its budget.
	ModeAdaptive
)

func (m Mode) String() string {
	switch m {
	case ModePlannerDriven:
		return "planner_driven"
	case ModeControllerDriven:
		return "controller_driven"
	case ModeAdaptive:
		return "adaptive"
	}
	return "unknown"
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "planner_driven":
		return ModePlannerDriven, nil
	case "controller_driven":
		return ModeControllerDriven, nil
	case "adaptive":
		return ModeAdaptive, nil
	}
	return 0, fmt.Errorf("unknown timing mode %q", s)
}

// Phase is the planning attempt state tracked by the manager.
type Phase int

const (
	// PhaseIdle means no solve is in flight.
	PhaseIdle Phase = iota

	// PhaseSolving means ShouldPlan granted an attempt whose
	// UpdatePlanningTiming has not arrived yet.
	PhaseSolving
)

func (p Phase) String() string {
	if p == PhaseSolving {
		return "solving"
	}
	return "idle"
}

// Config sets the cadence parameters. Control dt is always derived from
// ControlFrequency, never configured directly.
type Config struct {
	ControlFrequency    float64 // Hz
	PlanningFrequency   float64 // Hz
	MaxPlanningLatency  time.Duration
	MinPlanningInterval time.Duration
	Mode                Mode

	// LatencyWindow bounds the rolling latency statistics.
	LatencyWindow int
}

// DefaultConfig returns the cadence used on the bench vehicle: 100 Hz
// control, 10 Hz planning, an 80 ms latency budget.
func DefaultConfig() Config {
	return Config{
		ControlFrequency:    100,
		PlanningFrequency:   10,
		MaxPlanningLatency:  80 * time.Millisecond,
		MinPlanningInterval: 50 * time.Millisecond,
		Mode:                ModePlannerDriven,
		LatencyWindow:       50,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ControlFrequency <= 0 {
		monitoring.Logf("WARNING: control frequency %.2f Hz invalid, using %.2f Hz", c.ControlFrequency, def.ControlFrequency)
		c.ControlFrequency = def.ControlFrequency
	}
	if c.PlanningFrequency <= 0 {
		monitoring.Logf("WARNING: planning frequency %.2f Hz invalid, using %.2f Hz", c.PlanningFrequency, def.PlanningFrequency)
		c.PlanningFrequency = def.PlanningFrequency
	}
	if c.MaxPlanningLatency <= 0 {
		c.MaxPlanningLatency = def.MaxPlanningLatency
	}
	if c.MinPlanningInterval <= 0 {
		c.MinPlanningInterval = def.MinPlanningInterval
	}
	if c.LatencyWindow <= 0 {
		c.LatencyWindow = def.LatencyWindow
	}
	return c
}

// ControlDt returns the control loop period derived from the control
// frequency.
func (c Config) ControlDt() time.Duration {
	return time.Duration(float64(time.Second) / c.ControlFrequency)
}

// PlanningDt returns the nominal planning period derived from the
// planning frequency.
func (c Config) PlanningDt() time.Duration {
	return time.Duration(float64(time.Second) / c.PlanningFrequency)
}

// Manager is the single source of truth for planning and control
// cadence. It is an explicit value constructed once at startup and
// injected wherever cadence decisions are made; there is no package
// default instance. Safe for concurrent use; no method blocks beyond a
// short critical section.
type Manager struct {
	cfg Config

	mu            sync.Mutex
	phase         Phase
	lastPlan      time.Time
	hasPlanned    bool
	lastControl   time.Time
	hasControlled bool
	throttleNext  bool

	latencies    []time.Duration
	planAttempts int
	throttled    int
	controlTicks int
}

// NewManager creates a manager with the given cadence configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg.withDefaults()}
}

// Config returns the resolved cadence configuration.
func (m *Manager) Config() Config { return m.cfg }

// Phase returns the current planning attempt phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// ShouldPlan reports whether a planning attempt may start at now. It
// returns false when the minimum planning interval has not elapsed, or
// when the previous solve's measured latency exceeded the budget; the
// latency throttle skips exactly one attempt, then resets. A true
// return records the attempt start.
func (m *Manager) ShouldPlan(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasPlanned && now.Sub(m.lastPlan) < m.planningInterval() {
		return false
	}
	// The latency throttle consumes an attempt that would otherwise be
	// granted. Checking it after the interval gate keeps dense polling
	// from burning the flag on a poll that was never due.
	if m.throttleNext {
		m.throttleNext = false
		m.throttled++
		return false
	}

	m.lastPlan = now
	m.hasPlanned = true
	m.phase = PhaseSolving
	m.planAttempts++
	return true
}

// planningInterval resolves the effective minimum interval between
// attempts under the configured mode. Callers hold m.mu.
func (m *Manager) planningInterval() time.Duration {
	interval := m.cfg.MinPlanningInterval
	switch m.cfg.Mode {
	case ModeControllerDriven:
		if p := m.cfg.PlanningDt(); p > interval {
			interval = p
		}
	case ModeAdaptive:
		// Back off to twice the recent mean latency once solves slow
		// down past the base interval.
		if mean := m.meanLatency(); 2*mean > interval {
			interval = 2 * mean
		}
	}
	return interval
}

// ShouldControl reports whether a control tick is due at now and, when
// it is, records it. Polling continuously yields true at the control
// frequency.
func (m *Manager) ShouldControl(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasControlled && now.Sub(m.lastControl) < m.cfg.ControlDt() {
		return false
	}
	m.lastControl = now
	m.hasControlled = true
	m.controlTicks++
	return true
}

// UpdatePlanningTiming records one completed solve and returns the
// manager to idle. A measured duration over the latency budget throttles
// the next ShouldPlan call.
func (m *Manager) UpdatePlanningTiming(start time.Time, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhaseIdle
	m.latencies = append(m.latencies, duration)
	if len(m.latencies) > m.cfg.LatencyWindow {
		m.latencies = m.latencies[len(m.latencies)-m.cfg.LatencyWindow:]
	}
	if duration > m.cfg.MaxPlanningLatency {
		m.throttleNext = true
		monitoring.Logf("WARNING: planning latency %v exceeded budget %v, throttling next attempt", duration, m.cfg.MaxPlanningLatency)
	}
}

// UpdateControlTiming records an externally driven control tick, for
// callers that gate the loop themselves rather than through
// ShouldControl.
func (m *Manager) UpdateControlTiming(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastControl = now
	m.hasControlled = true
	m.controlTicks++
}

func (m *Manager) meanLatency() time.Duration {
	if len(m.latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range m.latencies {
		sum += d
	}
	return sum / time.Duration(len(m.latencies))
}

// TimingStats summarises cadence behaviour since startup.
type TimingStats struct {
	PlanAttempts   int
	ThrottledSkips int
	ControlTicks   int
	MeanLatency    time.Duration
	MaxLatency     time.Duration
	Phase          Phase
}

// Stats returns a snapshot of the cadence statistics.
func (m *Manager) Stats() TimingStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := TimingStats{
		PlanAttempts:   m.planAttempts,
		ThrottledSkips: m.throttled,
		ControlTicks:   m.controlTicks,
		MeanLatency:    m.meanLatency(),
		Phase:          m.phase,
	}
	for _, d := range m.latencies {
		if d > out.MaxLatency {
			out.MaxLatency = d
		}
	}
	return out
}

// Interpolate evaluates the trajectory at target time t. Queries before
// the first sample clamp to it and queries at or past the last sample
// clamp to it; between samples, position, velocity, acceleration and
// thrust blend linearly. Attitude components blend along the shortest
// angular arc, which is an approximation for large inter-sample
// rotations but exact for the small deltas a dense grid produces. An
// empty trajectory yields a zero sample stamped at t.
func (m *Manager) Interpolate(tr *traj.Trajectory, t time.Time) traj.Sample {
	n := tr.Len()
	if n == 0 {
		return traj.Sample{Time: t}
	}
	if n == 1 || !t.After(tr.Timestamps[0]) {
		s := tr.At(0)
		s.Time = t
		return s
	}
	if !t.Before(tr.Timestamps[n-1]) {
		s := tr.At(n - 1)
		s.Time = t
		return s
	}

	dt := tr.Dt()
	k := int(t.Sub(tr.Timestamps[0]) / dt)
	if k > n-2 {
		k = n - 2
	}
	alpha := float64(t.Sub(tr.Timestamps[k])) / float64(dt)

	a, b := tr.At(k), tr.At(k+1)
	return traj.Sample{
		Time:         t,
		Position:     geom.Lerp(a.Position, b.Position, alpha),
		Velocity:     geom.Lerp(a.Velocity, b.Velocity, alpha),
		Acceleration: geom.Lerp(a.Acceleration, b.Acceleration, alpha),
		Attitude: geom.Vec3{
			X: geom.LerpAngle(a.Attitude.X, b.Attitude.X, alpha),
			Y: geom.LerpAngle(a.Attitude.Y, b.Attitude.Y, alpha),
			Z: geom.LerpAngle(a.Attitude.Z, b.Attitude.Z, alpha),
		},
		BodyRate: geom.Lerp(a.BodyRate, b.BodyRate, alpha),
		Thrust:   a.Thrust + alpha*(b.Thrust-a.Thrust),
	}
}
