// Command traj-plot renders PNG plots of a persisted trajectory: the
// ground track (x/y) and the altitude and thrust profiles over the
// horizon.
package main

import (
	"flag"
	"fmt"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/osprey-uas/autonomy/internal/flightlog"
)

func main() {
	dbPath := flag.String("db", "flight.db", "flight log sqlite path")
	solveID := flag.Int64("solve", 0, "solve ID (defaults to the last solve of the most recent session)")
	trackPath := flag.String("track", "track.png", "ground track output PNG")
	profilePath := flag.String("profile", "profile.png", "altitude/thrust profile output PNG")
	flag.Parse()

	store, err := flightlog.Open(*dbPath)
	if err != nil {
		log.Fatalf("flight log: %v", err)
	}
	defer store.Close()

	id := *solveID
	if id == 0 {
		id, err = latestSolveID(store)
		if err != nil {
			log.Fatal(err)
		}
	}

	points, err := store.TrajectorySamples(id)
	if err != nil {
		log.Fatalf("trajectory samples: %v", err)
	}
	if len(points) == 0 {
		log.Fatalf("solve %d has no trajectory samples", id)
	}

	if err := plotTrack(points, *trackPath); err != nil {
		log.Fatalf("track plot: %v", err)
	}
	if err := plotProfile(points, *profilePath); err != nil {
		log.Fatalf("profile plot: %v", err)
	}
	fmt.Printf("wrote %s and %s (solve %d, %d samples)\n", *trackPath, *profilePath, id, len(points))
}

func latestSolveID(store *flightlog.Store) (int64, error) {
	sessions, err := store.Sessions()
	if err != nil {
		return 0, fmt.Errorf("sessions: %w", err)
	}
	if len(sessions) == 0 {
		return 0, fmt.Errorf("no sessions recorded")
	}
	solves, err := store.Solves(sessions[0].SessionID)
	if err != nil {
		return 0, fmt.Errorf("solves: %w", err)
	}
	if len(solves) == 0 {
		return 0, fmt.Errorf("session %s has no solves", sessions[0].SessionID)
	}
	return solves[len(solves)-1].SolveID, nil
}

func plotTrack(points []flightlog.TrajectoryPoint, path string) error {
	p := plot.New()
	p.Title.Text = "Ground Track"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	pts := make(plotter.XYs, len(points))
	for i, tp := range points {
		pts[i] = plotter.XY{X: tp.X, Y: tp.Y}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("trajectory", line)

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

func plotProfile(points []flightlog.TrajectoryPoint, path string) error {
	p := plot.New()
	p.Title.Text = "Altitude and Thrust"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Altitude (m) / Thrust (N)"

	alt := make(plotter.XYs, len(points))
	thrust := make(plotter.XYs, len(points))
	for i, tp := range points {
		alt[i] = plotter.XY{X: float64(tp.SampleIndex), Y: tp.Z}
		thrust[i] = plotter.XY{X: float64(tp.SampleIndex), Y: tp.Thrust}
	}

	altLine, err := plotter.NewLine(alt)
	if err != nil {
		return err
	}
	altLine.Width = vg.Points(1)

	thrustLine, err := plotter.NewLine(thrust)
	if err != nil {
		return err
	}
	thrustLine.Width = vg.Points(1)
	thrustLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(altLine, thrustLine)
	p.Legend.Add("altitude", altLine)
	p.Legend.Add("thrust", thrustLine)

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}
