package fleetview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jpalmerr/fleetview/dashboard"
	"github.com/jpalmerr/fleetview/internal/server"
	"github.com/jpalmerr/fleetview/internal/store"
)

const defaultMonitorPort = 8080

// Monitor serves a live view of a [Poller]'s fleet: a dashboard at "/", the
// latest snapshot at /api/fleet and a snapshot stream at /api/sse.
//
// The typical lifecycle is:
//
//	p, _ := fleetview.New(fleetview.DemoEndpoints(base, "fractal"))
//	m, _ := fleetview.NewMonitor(p, fleetview.WithPort(9090))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until ctx is cancelled
type Monitor struct {
	poller    *Poller
	port      int
	title     string
	heartbeat bool
	logger    *slog.Logger
	store     *store.MemoryStore

	mu    sync.Mutex
	phase string

	ready     chan struct{}
	readyOnce sync.Once
}

type monitorConfig struct {
	port      int
	title     string
	heartbeat bool
	logger    *slog.Logger
}

// MonitorOption configures a [Monitor].
type MonitorOption func(*monitorConfig) error

// WithPort sets the HTTP port. Defaults to 8080.
//
// Returns an error if port is not in the range 1-65535.
func WithPort(port int) MonitorOption {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "fleetview".
func WithTitle(title string) MonitorOption {
	return func(cfg *monitorConfig) error {
		cfg.title = title
		return nil
	}
}

// WithoutHeartbeat stops [Monitor.Start] from starting the continuous
// heartbeat. The view then only changes while Start or Stop sessions run.
func WithoutHeartbeat() MonitorOption {
	return func(cfg *monitorConfig) error {
		cfg.heartbeat = false
		return nil
	}
}

// WithMonitorLogger sets the logger for server events. Defaults to
// [slog.Default].
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// NewMonitor creates a [Monitor] for p and registers it as an observer.
func NewMonitor(p *Poller, opts ...MonitorOption) (*Monitor, error) {
	if p == nil {
		return nil, errors.New("poller cannot be nil")
	}

	cfg := &monitorConfig{
		port:      defaultMonitorPort,
		heartbeat: true,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		poller:    p,
		port:      cfg.port,
		title:     cfg.title,
		heartbeat: cfg.heartbeat,
		logger:    logger,
		store:     store.NewMemoryStore(),
		phase:     store.PhaseIdle,
		ready:     make(chan struct{}),
	}

	err := p.AddObserver(ObserverFuncs{
		Start:   func() { m.setPhase(store.PhaseStarting) },
		Stop:    func() { m.setPhase(store.PhaseSettled) },
		Update:  m.record,
		Failure: m.recordFailure,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Port returns the configured HTTP port.
func (m *Monitor) Port() int {
	return m.port
}

// Start serves the dashboard and, unless disabled, runs the continuous
// heartbeat. It blocks until ctx is cancelled.
//
// Returns nil on graceful shutdown, or an error if the HTTP server fails to
// start.
func (m *Monitor) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	httpServer := server.NewServer(m.store, m.port, dashboard.Assets, m.title, m.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	m.logger.Info("fleet dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))

	if m.heartbeat && !m.poller.StartContinuousHeartbeat(ctx, nil) {
		m.logger.Debug("continuous heartbeat already running")
	}
	m.readyOnce.Do(func() { close(m.ready) })

	<-ctx.Done()
	m.logger.Info("fleet monitor stopped")
	return nil
}

// Ready is closed once Start is serving and the heartbeat, if enabled, is
// running. Issue [Poller.Start] after Ready so the session rides the
// heartbeat instead of spawning a loop of its own.
func (m *Monitor) Ready() <-chan struct{} {
	return m.ready
}

func (m *Monitor) setPhase(phase string) {
	m.mu.Lock()
	m.phase = phase
	m.mu.Unlock()
}

func (m *Monitor) currentPhase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// record publishes a snapshot to the store.
func (m *Monitor) record(snap Snapshot) {
	m.store.Update(toFleetState(snap, m.currentPhase(), m.poller.Mode()))
}

// recordFailure keeps the last known instances and attaches the error.
func (m *Monitor) recordFailure(err error) {
	m.setPhase(store.PhaseFailed)

	state, ok := m.store.Latest()
	if !ok {
		state = store.FleetState{Instances: []store.InstanceRecord{}, Summary: map[string]int{}}
	}
	msg := err.Error()
	state.Error = &msg
	state.Phase = store.PhaseFailed
	state.Mode = m.poller.Mode().String()
	m.store.Update(state)
}

// toFleetState converts a snapshot to its storage representation.
func toFleetState(snap Snapshot, phase string, mode Mode) store.FleetState {
	sorted := snap.Sorted()
	instances := make([]store.InstanceRecord, len(sorted))
	for i, inst := range sorted {
		instances[i] = store.InstanceRecord{
			Name:       inst.Name,
			Status:     inst.Status.String(),
			ExternalIP: inst.ExternalIP,
		}
	}

	summary := make(map[string]int, len(snap.Summary))
	for status, n := range snap.Summary {
		summary[status.String()] = n
	}

	return store.FleetState{
		Instances: instances,
		Summary:   summary,
		Phase:     phase,
		Mode:      mode.String(),
		PolledAt:  snap.PolledAt,
	}
}
