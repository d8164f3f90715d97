// Package flightlog persists per-solve planning telemetry to sqlite so
// flights can be analysed after the fact. Logging is strictly
// best-effort: the mission loop treats every error here as
// log-and-continue and planning is never gated on a write.
package flightlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/osprey-uas/autonomy/internal/traj"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the flight log database.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the flight log at path and applies any
// pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flight log: %w", err)
	}

	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp applies the embedded migrations up to the latest version.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Not closing m: that would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// StartSession creates a new flight session and returns its ID.
func (s *Store) StartSession(notes string) (string, error) {
	id := uuid.NewString()
	_, err := s.Exec("INSERT INTO sessions (session_id, notes) VALUES (?, ?)", id, notes)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// SolveRecord is one planning attempt's outcome.
type SolveRecord struct {
	SolveID      int64
	SessionID    string
	Tick         int64
	Status       string
	Iterations   int
	Duration     time.Duration
	GoalDistance float64
}

// RecordSolve stores one solve outcome and returns its row ID.
func (s *Store) RecordSolve(r SolveRecord) (int64, error) {
	res, err := s.Exec(
		"INSERT INTO solves (session_id, tick, status, iterations, duration_us, goal_distance) VALUES (?, ?, ?, ?, ?, ?)",
		r.SessionID, r.Tick, r.Status, r.Iterations, r.Duration.Microseconds(), r.GoalDistance,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert solve: %w", err)
	}
	return res.LastInsertId()
}

// RecordTrajectory stores the sample rows of a published trajectory
// under a solve.
func (s *Store) RecordTrajectory(solveID int64, tr *traj.Trajectory) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trajectory insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO trajectory_samples (solve_id, sample_index, t_ns, x, y, z, vx, vy, vz, thrust) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare trajectory insert: %w", err)
	}
	defer stmt.Close()

	for k := 0; k < tr.Len(); k++ {
		p, v := tr.Positions[k], tr.Velocities[k]
		if _, err := stmt.Exec(solveID, k, tr.Timestamps[k].UnixNano(),
			p.X, p.Y, p.Z, v.X, v.Y, v.Z, tr.Thrusts[k]); err != nil {
			return fmt.Errorf("failed to insert trajectory sample %d: %w", k, err)
		}
	}
	return tx.Commit()
}

// SessionInfo summarises one recorded flight session.
type SessionInfo struct {
	SessionID string
	StartedAt time.Time
	Notes     string
	Solves    int
}

// Sessions lists recorded sessions, newest first.
func (s *Store) Sessions() ([]SessionInfo, error) {
	rows, err := s.Query(`
		SELECT se.session_id, se.started_at, se.notes, COUNT(so.solve_id)
		FROM sessions se
		LEFT JOIN solves so ON so.session_id = se.session_id
		GROUP BY se.session_id
		ORDER BY se.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.SessionID, &info.StartedAt, &info.Notes, &info.Solves); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Solves returns the solve records of a session in tick order.
func (s *Store) Solves(sessionID string) ([]SolveRecord, error) {
	rows, err := s.Query(`
		SELECT solve_id, session_id, tick, status, iterations, duration_us, goal_distance
		FROM solves WHERE session_id = ? ORDER BY tick`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query solves: %w", err)
	}
	defer rows.Close()

	var out []SolveRecord
	for rows.Next() {
		var r SolveRecord
		var us int64
		if err := rows.Scan(&r.SolveID, &r.SessionID, &r.Tick, &r.Status, &r.Iterations, &us, &r.GoalDistance); err != nil {
			return nil, fmt.Errorf("failed to scan solve: %w", err)
		}
		r.Duration = time.Duration(us) * time.Microsecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// TrajectoryPoint is one persisted trajectory sample.
type TrajectoryPoint struct {
	SampleIndex int
	Time        time.Time
	X, Y, Z     float64
	VX, VY, VZ  float64
	Thrust      float64
}

// TrajectorySamples returns the persisted samples of a solve in grid
// order.
func (s *Store) TrajectorySamples(solveID int64) ([]TrajectoryPoint, error) {
	rows, err := s.Query(`
		SELECT sample_index, t_ns, x, y, z, vx, vy, vz, thrust
		FROM trajectory_samples WHERE solve_id = ? ORDER BY sample_index`, solveID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trajectory samples: %w", err)
	}
	defer rows.Close()

	var out []TrajectoryPoint
	for rows.Next() {
		var p TrajectoryPoint
		var ns int64
		if err := rows.Scan(&p.SampleIndex, &ns, &p.X, &p.Y, &p.Z, &p.VX, &p.VY, &p.VZ, &p.Thrust); err != nil {
			return nil, fmt.Errorf("failed to scan trajectory sample: %w", err)
		}
		p.Time = time.Unix(0, ns).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// LastSolves returns the most recent n solve records of a session.
func (s *Store) LastSolves(sessionID string, n int) ([]SolveRecord, error) {
	all, err := s.Solves(sessionID)
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
