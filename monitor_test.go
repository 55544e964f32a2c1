package fleetview

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jpalmerr/fleetview/internal/store"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestNewMonitor_Validation(t *testing.T) {
	fleet := newFakeFleet(t, listOf())
	p := newTestPoller(t, fleet)

	if _, err := NewMonitor(nil); err == nil {
		t.Error("NewMonitor(nil) expected error")
	}
	if _, err := NewMonitor(p, WithPort(0)); err == nil {
		t.Error("NewMonitor() expected error for port 0")
	}
	if _, err := NewMonitor(p, WithMonitorLogger(nil)); err == nil {
		t.Error("NewMonitor() expected error for nil logger")
	}

	m, err := NewMonitor(p)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	if m.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", m.Port())
	}
}

func TestMonitor_RecordsPhases(t *testing.T) {
	fleet := newFakeFleet(t, listOf("STAGING"), listOf("RUNNING"))
	c := clockwork.NewFakeClockAt(testEpoch)
	p := newTestPoller(t, fleet, WithClock(c))

	m, err := NewMonitor(p, WithoutHeartbeat())
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}

	if err := p.Start(context.Background(), 1, StartOptions{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	tick(t, c)
	fleet.waitPolled()
	waitTimers(t, c, 1)

	state, ok := m.store.Latest()
	if !ok {
		t.Fatal("no state recorded after first poll")
	}
	if state.Phase != store.PhaseStarting {
		t.Errorf("Phase = %q, want starting", state.Phase)
	}
	if state.Summary["STAGING"] != 1 {
		t.Errorf("STAGING = %d, want 1", state.Summary["STAGING"])
	}

	tick(t, c)
	fleet.waitPolled()
	waitDone(t, p)

	if m.currentPhase() != store.PhaseSettled {
		t.Errorf("phase = %q, want settled", m.currentPhase())
	}
}

func TestMonitor_RecordsFailure(t *testing.T) {
	fleet := newFakeFleet(t, listOf("RUNNING"))
	p := newTestPoller(t, fleet, WithLogger(discardLogger()))

	m, err := NewMonitor(p)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}

	m.record(Snapshot{Instances: map[string]Instance{
		"fractal-0": {Name: "fractal-0", Status: StatusRunning},
	}, Summary: Summarize(map[string]Instance{"fractal-0": {Status: StatusRunning}})})

	p.fail(&RequestError{Op: "list", Err: ErrUnauthorized})

	state, _ := m.store.Latest()
	if state.Phase != store.PhaseFailed {
		t.Errorf("Phase = %q, want failed", state.Phase)
	}
	if state.Error == nil || !strings.Contains(*state.Error, ErrUnauthorized.Error()) {
		t.Fatalf("Error = %v, want unauthorized message", state.Error)
	}
	if len(state.Instances) != 1 {
		t.Errorf("instances = %d, want last known instances kept", len(state.Instances))
	}
}

func TestMonitor_StartServesFleet(t *testing.T) {
	fleet := newFakeFleet(t, listOf("RUNNING", "RUNNING"))
	c := clockwork.NewFakeClockAt(testEpoch)
	p := newTestPoller(t, fleet, WithClock(c))

	port := freePort(t)
	m, err := NewMonitor(p, WithPort(port), WithMonitorLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	// the heartbeat drives the first poll
	tick(t, c)
	fleet.waitPolled()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/api/fleet"
	var state store.FleetState
	deadline := time.Now().Add(3 * time.Second)
	for state.Summary["RUNNING"] != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("fleet API never reported the polled snapshot, last = %+v", state)
		}
		resp, err := http.Get(url)
		if err == nil {
			_ = json.NewDecoder(resp.Body).Decode(&state)
			_ = resp.Body.Close()
		}
		time.Sleep(20 * time.Millisecond)
	}

	if !p.HeartbeatActive() {
		t.Error("HeartbeatActive() = false while monitor runs")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
	waitDone(t, p)
}

func TestMonitor_StartReturnsImmediatelyIfCancelled(t *testing.T) {
	fleet := newFakeFleet(t, listOf())
	p := newTestPoller(t, fleet)
	m, err := NewMonitor(p, WithPort(freePort(t)))
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Start(ctx); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if p.HeartbeatActive() {
		t.Error("heartbeat started on cancelled context")
	}
}

func TestMonitor_Ready(t *testing.T) {
	tests := []struct {
		name          string
		opts          []MonitorOption
		wantHeartbeat bool
	}{
		{"with heartbeat", nil, true},
		{"without heartbeat", []MonitorOption{WithoutHeartbeat()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fleet := newFakeFleet(t, listOf())
			c := clockwork.NewFakeClockAt(testEpoch)
			p := newTestPoller(t, fleet, WithClock(c))

			opts := append([]MonitorOption{WithPort(freePort(t)), WithMonitorLogger(discardLogger())}, tt.opts...)
			m, err := NewMonitor(p, opts...)
			if err != nil {
				t.Fatalf("NewMonitor() error = %v", err)
			}

			select {
			case <-m.Ready():
				t.Fatal("Ready() closed before Start")
			default:
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- m.Start(ctx) }()

			select {
			case <-m.Ready():
			case <-time.After(3 * time.Second):
				t.Fatal("Ready() never closed")
			}
			if got := p.HeartbeatActive(); got != tt.wantHeartbeat {
				t.Errorf("HeartbeatActive() = %v at ready, want %v", got, tt.wantHeartbeat)
			}

			cancel()
			if err := <-done; err != nil {
				t.Errorf("Start() error = %v", err)
			}
			waitDone(t, p)
		})
	}
}
