// Package mockfleet is an in-memory fleet API for demos and tests.
//
// Instances move through PROVISIONING, STAGING and RUNNING on a timer and
// through STOPPING before they disappear after cleanup. Every instance
// advertises the same external address, normally the mock's own listener,
// so tile requests for any instance land on the built-in /tile renderer.
package mockfleet

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultStageDuration is how long an instance spends in each transient
	// status.
	DefaultStageDuration = 2 * time.Second

	maxInstances = 64
)

type instance struct {
	name      string
	createdAt time.Time
	stoppedAt time.Time
}

// Fleet simulates the fleet API for one demo.
type Fleet struct {
	demo       string
	stage      time.Duration
	externalIP string
	token      string
	now        func() time.Time
	logger     *slog.Logger

	mu        sync.Mutex
	instances map[string]*instance
}

type fleetConfig struct {
	stage      time.Duration
	externalIP string
	token      string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a [Fleet].
type Option func(*fleetConfig) error

// WithStageDuration sets the time spent in each transient status.
// Zero makes instances RUNNING immediately and removes them on cleanup.
func WithStageDuration(d time.Duration) Option {
	return func(cfg *fleetConfig) error {
		if d < 0 {
			return errors.New("stage duration cannot be negative")
		}
		cfg.stage = d
		return nil
	}
}

// WithExternalIP sets the address instances report once they leave
// PROVISIONING.
func WithExternalIP(addr string) Option {
	return func(cfg *fleetConfig) error {
		cfg.externalIP = addr
		return nil
	}
}

// WithToken requires every fleet API request to carry token as the "token"
// parameter. Requests without it get 401.
func WithToken(token string) Option {
	return func(cfg *fleetConfig) error {
		if token == "" {
			return errors.New("token cannot be empty")
		}
		cfg.token = token
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *fleetConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

func withNow(now func() time.Time) Option {
	return func(cfg *fleetConfig) error {
		cfg.now = now
		return nil
	}
}

// New creates a mock fleet serving the demo named demo.
func New(demo string, opts ...Option) (*Fleet, error) {
	if demo == "" {
		return nil, errors.New("demo name cannot be empty")
	}

	cfg := &fleetConfig{
		stage: DefaultStageDuration,
		now:   time.Now,
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

	return &Fleet{
		demo:       demo,
		stage:      cfg.stage,
		externalIP: cfg.externalIP,
		token:      cfg.token,
		now:        cfg.now,
		logger:     logger,
		instances:  make(map[string]*instance),
	}, nil
}

// SetExternalIP changes the address reported by instances. Use it when the
// listener address is only known after the server starts.
func (f *Fleet) SetExternalIP(addr string) {
	f.mu.Lock()
	f.externalIP = addr
	f.mu.Unlock()
}

// Handler returns the fleet API and tile routes:
//
//	POST /<demo>/instance   start num_instances instances named <tag>-<i>
//	GET  /<demo>/instance   list instances
//	POST /<demo>/cleanup    stop every instance
//	GET  /tile              render a Mandelbrot tile
func (f *Fleet) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /"+f.demo+"/instance", f.authorized(f.handleStart))
	mux.HandleFunc("GET /"+f.demo+"/instance", f.authorized(f.handleList))
	mux.HandleFunc("POST /"+f.demo+"/cleanup", f.authorized(f.handleCleanup))
	mux.HandleFunc("GET /tile", handleTile)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func (f *Fleet) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.token != "" && r.FormValue("token") != f.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (f *Fleet) handleStart(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.FormValue("num_instances"))
	if err != nil || n < 0 || n > maxInstances {
		http.Error(w, fmt.Sprintf("num_instances must be between 0 and %d", maxInstances), http.StatusBadRequest)
		return
	}
	tag := r.FormValue("tag")
	if tag == "" {
		tag = f.demo
	}

	now := f.now()
	f.mu.Lock()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s-%d", tag, i)
		if inst, ok := f.instances[name]; ok && inst.stoppedAt.IsZero() {
			continue
		}
		f.instances[name] = &instance{name: name, createdAt: now}
	}
	f.mu.Unlock()

	f.logger.Info("instances requested", "count", n, "tag", tag)
	w.WriteHeader(http.StatusOK)
}

func (f *Fleet) handleCleanup(w http.ResponseWriter, r *http.Request) {
	now := f.now()
	f.mu.Lock()
	for _, inst := range f.instances {
		if inst.stoppedAt.IsZero() {
			inst.stoppedAt = now
		}
	}
	f.mu.Unlock()

	f.logger.Info("cleanup requested")
	w.WriteHeader(http.StatusOK)
}

// Instance is one entry of the list response.
type Instance struct {
	Status     string `json:"status"`
	ExternalIP string `json:"externalIp,omitempty"`
}

func (f *Fleet) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"instances": f.List()}); err != nil {
		f.logger.Error("failed to write response", "error", err)
	}
}

// List returns the current instances keyed by name. Instances whose
// teardown has finished are dropped.
func (f *Fleet) List() map[string]Instance {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]Instance, len(f.instances))
	for name, inst := range f.instances {
		status, gone := f.status(inst, now)
		if gone {
			delete(f.instances, name)
			continue
		}
		li := Instance{Status: status}
		if status != "PROVISIONING" {
			li.ExternalIP = f.externalIP
		}
		out[name] = li
	}
	return out
}

// Names returns the instance names in order.
func (f *Fleet) Names() []string {
	list := f.List()
	names := make([]string, 0, len(list))
	for name := range list {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// status derives an instance's status from its age. gone reports that the
// instance has finished stopping. Caller holds f.mu.
func (f *Fleet) status(inst *instance, now time.Time) (status string, gone bool) {
	if !inst.stoppedAt.IsZero() {
		if now.Sub(inst.stoppedAt) >= f.stage {
			return "TERMINATED", true
		}
		return "STOPPING", false
	}

	switch age := now.Sub(inst.createdAt); {
	case age < f.stage:
		return "PROVISIONING", false
	case age < 2*f.stage:
		return "STAGING", false
	default:
		return "RUNNING", false
	}
}
