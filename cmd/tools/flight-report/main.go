// Command flight-report renders an HTML report for a recorded flight
// session: goal distance, solve latency and iteration count over the
// mission, read from the flight log database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/osprey-uas/autonomy/internal/flightlog"
)

func main() {
	dbPath := flag.String("db", "flight.db", "flight log sqlite path")
	sessionID := flag.String("session", "", "session ID (defaults to the most recent)")
	outPath := flag.String("out", "flight-report.html", "output HTML path")
	flag.Parse()

	store, err := flightlog.Open(*dbPath)
	if err != nil {
		log.Fatalf("flight log: %v", err)
	}
	defer store.Close()

	session := *sessionID
	if session == "" {
		sessions, err := store.Sessions()
		if err != nil {
			log.Fatalf("sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("no sessions recorded")
		}
		session = sessions[0].SessionID
	}

	solves, err := store.Solves(session)
	if err != nil {
		log.Fatalf("solves: %v", err)
	}
	if len(solves) == 0 {
		log.Fatalf("session %s has no solves", session)
	}

	page := components.NewPage()
	page.AddCharts(
		goalDistanceChart(solves),
		latencyChart(solves),
		iterationsChart(solves),
	)

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create %s: %v", *outPath, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render: %v", err)
	}
	fmt.Printf("wrote %s (%d solves, session %s)\n", *outPath, len(solves), session)
}

func ticks(solves []flightlog.SolveRecord) []string {
	out := make([]string, len(solves))
	for i, s := range solves {
		out[i] = fmt.Sprintf("%d", s.Tick)
	}
	return out
}

func goalDistanceChart(solves []flightlog.SolveRecord) *charts.Line {
	data := make([]opts.LineData, len(solves))
	for i, s := range solves {
		data[i] = opts.LineData{Value: s.GoalDistance}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Terminal Goal Distance", Subtitle: "metres per planning tick"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "distance (m)"}),
	)
	line.SetXAxis(ticks(solves)).AddSeries("goal distance", data)
	return line
}

func latencyChart(solves []flightlog.SolveRecord) *charts.Line {
	data := make([]opts.LineData, len(solves))
	for i, s := range solves {
		data[i] = opts.LineData{Value: float64(s.Duration) / float64(time.Millisecond)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Solve Latency", Subtitle: "milliseconds per planning tick"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latency (ms)"}),
	)
	line.SetXAxis(ticks(solves)).AddSeries("latency", data)
	return line
}

func iterationsChart(solves []flightlog.SolveRecord) *charts.Line {
	data := make([]opts.LineData, len(solves))
	for i, s := range solves {
		data[i] = opts.LineData{Value: s.Iterations}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Solver Iterations", Subtitle: "major iterations per planning tick"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "iterations"}),
	)
	line.SetXAxis(ticks(solves)).AddSeries("iterations", data)
	return line
}
