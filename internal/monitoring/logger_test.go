package monitoring

import "testing"

func TestSetLoggerRedirects(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("planner degraded: %v", nil)

	if got != "planner degraded: %v" {
		t.Errorf("custom logger saw %q", got)
	}
}

func TestSetLoggerNilInstallsNoOp(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	SetLogger(nil)
	if Logf == nil {
		t.Fatal("Logf is nil after SetLogger(nil)")
	}
	// Must not panic.
	Logf("muted %d", 42)
}
