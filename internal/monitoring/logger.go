// Package monitoring holds the process-wide diagnostic logger shared
// by the planner and timing layers. The planner's hot path logs only
// on degradation (failed solves, throttling), so redirecting or muting
// the logger is cheap.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to
// log.Printf but may be replaced by SetLogger. Tests mute it;
// deployments can redirect it at a telemetry sink.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
