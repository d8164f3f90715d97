package planner

import (
	"sync"
	"time"
)

// SolveStatus is the outcome of one planning attempt.
type SolveStatus int

const (
	// StatusConverged means the solver met its tolerance inside the
	// iteration budget.
	StatusConverged SolveStatus = iota

	// StatusNotConverged means the iteration cap was hit or the final
	// iterate violates a keep-out constraint; the best iterate was
	// still published.
	StatusNotConverged

	// StatusFailed means formulation or solving errored and the
	// emergency trajectory was published instead.
	StatusFailed
)

func (s SolveStatus) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusNotConverged:
		return "not_converged"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

type solveRecord struct {
	status     SolveStatus
	iterations int
	duration   time.Duration
}

// Stats keeps a rolling window of solve outcomes. Convergence failures
// are observable here and only here; they never surface as errors.
type Stats struct {
	mu     sync.Mutex
	window []solveRecord
	size   int
}

func newStats(size int) *Stats {
	return &Stats{size: size}
}

func (s *Stats) record(status SolveStatus, iterations int, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = append(s.window, solveRecord{status, iterations, duration})
	if len(s.window) > s.size {
		s.window = s.window[len(s.window)-s.size:]
	}
}

// SolveInfo describes one completed planning attempt.
type SolveInfo struct {
	Status     SolveStatus
	Iterations int
	Duration   time.Duration
}

// LastSolve returns the most recent solve outcome. ok is false before
// the first attempt.
func (s *Stats) LastSolve() (SolveInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.window) == 0 {
		return SolveInfo{}, false
	}
	r := s.window[len(s.window)-1]
	return SolveInfo{Status: r.status, Iterations: r.iterations, Duration: r.duration}, true
}

// StatsSnapshot summarises the rolling window.
type StatsSnapshot struct {
	Attempts       int
	Converged      int
	NotConverged   int
	Failed         int
	SuccessRate    float64
	MeanIterations float64
	MeanDuration   time.Duration
	MaxDuration    time.Duration
}

// Snapshot returns aggregate statistics over the current window.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out StatsSnapshot
	out.Attempts = len(s.window)
	if out.Attempts == 0 {
		return out
	}

	var iterSum int
	var durSum time.Duration
	for _, r := range s.window {
		switch r.status {
		case StatusConverged:
			out.Converged++
		case StatusNotConverged:
			out.NotConverged++
		case StatusFailed:
			out.Failed++
		}
		iterSum += r.iterations
		durSum += r.duration
		if r.duration > out.MaxDuration {
			out.MaxDuration = r.duration
		}
	}
	out.SuccessRate = float64(out.Converged) / float64(out.Attempts)
	out.MeanIterations = float64(iterSum) / float64(out.Attempts)
	out.MeanDuration = durSum / time.Duration(out.Attempts)
	return out
}
