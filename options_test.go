package fleetview

import (
	"bytes"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var testEndpoints = DemoEndpoints("https://demos.example.com", "fractal")

func TestNew_Defaults(t *testing.T) {
	p, err := New(testEndpoints)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if p.interval != 2*time.Second {
		t.Errorf("interval = %v, want 2s", p.interval)
	}
	if p.timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", p.timeout)
	}
	if p.terminal != StatusRunning {
		t.Errorf("terminal = %v, want RUNNING", p.terminal)
	}
	if p.Mode() != ModeNormal {
		t.Errorf("Mode() = %v, want normal", p.Mode())
	}
	if p.HeartbeatActive() {
		t.Error("HeartbeatActive() = true before start")
	}
}

func TestWithPollInterval(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		wantErr bool
	}{
		{"positive", 500 * time.Millisecond, false},
		{"zero", 0, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(testEndpoints, WithPollInterval(tt.d))
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.interval != tt.d {
				t.Errorf("interval = %v, want %v", p.interval, tt.d)
			}
		})
	}
}

func TestWithHTTPTimeout_Invalid(t *testing.T) {
	_, err := New(testEndpoints, WithHTTPTimeout(0))
	if err == nil || !strings.Contains(err.Error(), "timeout must be positive") {
		t.Errorf("New() error = %v, want timeout error", err)
	}
}

func TestWithTerminalStatus(t *testing.T) {
	p, err := New(testEndpoints, WithTerminalStatus("serving"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.terminal != StatusServing {
		t.Errorf("terminal = %v, want SERVING", p.terminal)
	}
}

func TestWithCommonParams_Accumulates(t *testing.T) {
	p, err := New(testEndpoints,
		WithCommonParams(url.Values{"project": {"p1"}}),
		WithCommonParams(url.Values{"zone": {"z1"}}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.commonParams.Get("project") != "p1" || p.commonParams.Get("zone") != "z1" {
		t.Errorf("commonParams = %v", p.commonParams)
	}
}

func TestWithMode(t *testing.T) {
	p, err := New(testEndpoints, WithMode(ModeRecovery))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Mode() != ModeRecovery {
		t.Errorf("Mode() = %v, want recovery", p.Mode())
	}

	if _, err := New(testEndpoints, WithMode(Mode(7))); err == nil {
		t.Error("New() expected error for unknown mode")
	}
}

func TestMode_String(t *testing.T) {
	if ModeNormal.String() != "normal" || ModeRecovery.String() != "recovery" {
		t.Errorf("String() = %q, %q", ModeNormal, ModeRecovery)
	}
}

func TestWithFailureHandler_Nil(t *testing.T) {
	if _, err := New(testEndpoints, WithFailureHandler(nil)); err == nil {
		t.Error("New() expected error for nil failure handler")
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	p, err := New(testEndpoints, WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// the default failure handler logs through the configured logger
	p.fail(&RequestError{Op: "list", URL: "http://x", Err: errors.New("boom")})
	if !strings.Contains(buf.String(), "fleet polling stopped") {
		t.Errorf("log output = %q, want failure message", buf.String())
	}
}

func TestWithLogger_Nil(t *testing.T) {
	_, err := New(testEndpoints, WithLogger(nil))
	if err == nil || !strings.Contains(err.Error(), "logger cannot be nil") {
		t.Errorf("New() error = %v, want error containing 'logger cannot be nil'", err)
	}
}

func TestWithClock(t *testing.T) {
	if _, err := New(testEndpoints, WithClock(nil)); err == nil || !strings.Contains(err.Error(), "clock cannot be nil") {
		t.Errorf("New() error = %v, want error containing 'clock cannot be nil'", err)
	}

	c := clockwork.NewFakeClockAt(testEpoch)
	p, err := New(testEndpoints, WithClock(c))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.clock != c {
		t.Error("WithClock() did not install the clock")
	}
}

func TestAddObserver(t *testing.T) {
	p, err := New(testEndpoints)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.AddObserver(ObserverFuncs{}); err != nil {
		t.Errorf("AddObserver(ObserverFuncs) error = %v", err)
	}
	if err := p.AddObserver("not an observer"); err == nil {
		t.Error("AddObserver(string) expected error")
	}
	if len(p.observerList()) != 1 {
		t.Errorf("observers = %d, want 1", len(p.observerList()))
	}
}
