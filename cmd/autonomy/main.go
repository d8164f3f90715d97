// Command autonomy runs the planning and control loops against a
// simulated plant: a cooperative single-thread schedule driven by the
// injected clock, where control ticks interpolate the published
// trajectory and planning ticks solve and publish. The same wiring runs
// on the vehicle with the estimator and mixer in place of the
// simulation.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/osprey-uas/autonomy/internal/config"
	"github.com/osprey-uas/autonomy/internal/flightlog"
	"github.com/osprey-uas/autonomy/internal/geom"
	"github.com/osprey-uas/autonomy/internal/planner"
	"github.com/osprey-uas/autonomy/internal/timeutil"
	"github.com/osprey-uas/autonomy/internal/timing"
	"github.com/osprey-uas/autonomy/internal/traj"
	"github.com/osprey-uas/autonomy/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to tuning JSON (defaults apply when empty)")
	dbPath := flag.String("db", "", "flight log sqlite path (logging disabled when empty)")
	goalFlag := flag.String("goal", "20,0,5", "goal point as x,y,z in metres")
	obstaclesFlag := flag.String("obstacles", "", "semicolon-separated obstacles as x,y,z,r")
	duration := flag.Duration("duration", 10*time.Second, "simulated mission duration")
	notes := flag.String("notes", "", "session notes recorded in the flight log")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	goal, err := parseVec3(*goalFlag)
	if err != nil {
		log.Fatalf("goal: %v", err)
	}
	obstacles, err := parseObstacles(*obstaclesFlag)
	if err != nil {
		log.Fatalf("obstacles: %v", err)
	}

	var store *flightlog.Store
	var session string
	if *dbPath != "" {
		store, err = flightlog.Open(*dbPath)
		if err != nil {
			log.Fatalf("flight log: %v", err)
		}
		defer store.Close()
		session, err = store.StartSession(*notes)
		if err != nil {
			log.Fatalf("flight log session: %v", err)
		}
		log.Printf("flight log session %s", session)
	}

	clock := timeutil.RealClock{}
	mgr := timing.NewManager(cfg.TimingSettings())
	opt := planner.New(cfg.PlannerSettings(), clock)
	throttler := timing.NewThrottler(mgr)

	goals := planner.NewGoalStore(cfg.GetGoalHysteresis())
	goals.SetGoal(goal)
	goals.SetObstacles(obstacles)

	m := &mission{
		clock:     clock,
		mgr:       mgr,
		opt:       opt,
		throttler: throttler,
		goals:     goals,
		store:     store,
		session:   session,
	}
	m.run(*duration)

	stats := opt.Stats()
	tstats := mgr.Stats()
	fmt.Printf("solves: %d (%.0f%% converged), mean %v, max %v\n",
		stats.Attempts, 100*stats.SuccessRate, stats.MeanDuration, stats.MaxDuration)
	fmt.Printf("control ticks: %d, throttled plans: %d\n",
		tstats.ControlTicks, tstats.ThrottledSkips)
	fmt.Printf("final position: %+v\n", m.state.Position)
}

// mission owns the cooperative loop state.
type mission struct {
	clock     timeutil.Clock
	mgr       *timing.Manager
	opt       *planner.Optimizer
	throttler *timing.Throttler
	goals     *planner.GoalStore
	store     *flightlog.Store
	session   string

	state traj.DroneState
	tick  int64
}

func (m *mission) run(d time.Duration) {
	controlDt := m.mgr.Config().ControlDt()
	ticker := m.clock.NewTicker(controlDt)
	defer ticker.Stop()

	deadline := m.clock.Now().Add(d)
	m.state = traj.DroneState{Timestamp: m.clock.Now(), Position: geom.Vec3{Z: 1}}

	for now := range ticker.C() {
		if now.After(deadline) {
			return
		}
		if m.mgr.ShouldPlan(now) {
			m.plan(now)
		}
		if m.throttler.ShouldExecuteControl(now) {
			m.control(now)
		}
	}
}

func (m *mission) plan(now time.Time) {
	goal, obstacles, ok := m.goals.Snapshot()
	if !ok {
		return
	}

	m.state.Timestamp = now
	tr := m.opt.Plan(m.state, goal, obstacles)
	m.mgr.UpdatePlanningTiming(now, m.clock.Since(now))
	m.throttler.UpdateTrajectory(tr)
	m.tick++

	m.logSolve(tr, goal)
}

// logSolve writes the solve outcome to the flight log. Best-effort:
// failures are logged and the mission continues.
func (m *mission) logSolve(tr *traj.Trajectory, goal geom.Vec3) {
	if m.store == nil {
		return
	}
	info, ok := m.opt.LastSolve()
	if !ok {
		return
	}
	solveID, err := m.store.RecordSolve(flightlog.SolveRecord{
		SessionID:    m.session,
		Tick:         m.tick,
		Status:       info.Status.String(),
		Iterations:   info.Iterations,
		Duration:     info.Duration,
		GoalDistance: tr.Positions[tr.Len()-1].DistanceTo(goal),
	})
	if err != nil {
		log.Printf("flight log solve: %v", err)
		return
	}
	if err := m.store.RecordTrajectory(solveID, tr); err != nil {
		log.Printf("flight log trajectory: %v", err)
	}
}

// control advances the simulated plant to the interpolated desired
// state. On the vehicle this is where the attitude controller consumes
// the sample.
func (m *mission) control(now time.Time) {
	s, ok := m.throttler.ControlState(now)
	if !ok {
		return
	}
	m.state.Timestamp = now
	m.state.Position = s.Position
	m.state.Velocity = s.Velocity
	m.state.Attitude = s.Attitude
	m.state.AngularVelocity = s.BodyRate
}

func parseVec3(s string) (geom.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var out [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Vec3{}, fmt.Errorf("invalid coordinate %q: %w", p, err)
		}
		out[i] = v
	}
	return geom.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

func parseObstacles(s string) ([]traj.Obstacle, error) {
	if s == "" {
		return nil, nil
	}
	var out []traj.Obstacle
	for _, spec := range strings.Split(s, ";") {
		parts := strings.Split(spec, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("want x,y,z,r, got %q", spec)
		}
		var vals [4]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid obstacle value %q: %w", p, err)
			}
			vals[i] = v
		}
		out = append(out, traj.Obstacle{
			Center: geom.Vec3{X: vals[0], Y: vals[1], Z: vals[2]},
			Radius: vals[3],
		})
	}
	return out, nil
}
