package fleetview

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jpalmerr/fleetview/internal/httpclient"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultHTTPTimeout  = 10 * time.Second

	// numInstancesParam carries the requested instance count on start.
	numInstancesParam = "num_instances"
)

// StartOptions configures a single [Poller.Start] call.
type StartOptions struct {
	// Params are sent with the start command, for example instance name
	// tags. They override the poller's common parameters.
	Params url.Values

	// TerminalStatus overrides the poller's terminal status for this
	// session. Zero means use the poller default.
	TerminalStatus Status

	// Recover skips the start command for this call, as [ModeRecovery] does.
	Recover bool

	// Callback fires exactly once when the terminal condition is reached.
	// It is not called if the session fails or is superseded, nor while
	// continuous heartbeat is active.
	Callback func(Snapshot)
}

// Poller drives fleet lifecycle commands and keeps observers in sync with the
// fleet's aggregate state.
//
// Each Start or Stop call opens a poll session that polls the list endpoint
// every interval until its terminal condition holds. A newer session
// supersedes an older one: the older loop's in-flight poll is allowed to
// finish, but its result is discarded and the loop exits. Fleet API failures
// end the session and are reported through the failure handler; they are
// never retried.
//
// All methods are safe for concurrent use.
type Poller struct {
	endpoints    Endpoints
	client       *httpclient.Client
	clock        clockwork.Clock
	logger       *slog.Logger
	interval     time.Duration
	timeout      time.Duration
	terminal     Status
	commonParams url.Values
	onFailure    func(error)

	mu              sync.Mutex
	observers       []Observer
	mode            Mode
	generation      uint64
	heartbeat       bool
	recoveryPending bool

	wg sync.WaitGroup
}

// session is one outstanding start or stop cycle.
type session struct {
	op         string
	generation uint64
	status     Status
	target     int
	callback   func(Snapshot)

	// clearsMode is set when the session was started under the poller's
	// construction-time recovery mode.
	clearsMode bool
}

// New creates a [Poller] for the given fleet API endpoints.
//
// Defaults: 2 second poll interval, 10 second HTTP timeout, RUNNING terminal
// status, [ModeNormal], failures logged at error level.
func New(endpoints Endpoints, opts ...Option) (*Poller, error) {
	if err := endpoints.validate(); err != nil {
		return nil, err
	}

	cfg := &pollerConfig{
		interval: defaultPollInterval,
		timeout:  defaultHTTPTimeout,
		terminal: StatusRunning,
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
	c := cfg.clock
	if c == nil {
		c = clockwork.NewRealClock()
	}

	p := &Poller{
		endpoints:    endpoints,
		client:       httpclient.New(),
		clock:        c,
		logger:       logger,
		interval:     cfg.interval,
		timeout:      cfg.timeout,
		terminal:     cfg.terminal,
		commonParams: cfg.commonParams,
		observers:    cfg.observers,
		mode:         cfg.mode,
	}
	p.onFailure = cfg.onFailure
	if p.onFailure == nil {
		p.onFailure = func(err error) {
			logger.Error("fleet polling stopped", "error", err)
		}
	}
	return p, nil
}

// AddObserver registers an observer. Returns an error if o implements none of
// the observer hooks.
func (p *Poller) AddObserver(o Observer) error {
	if err := validateObserver(o); err != nil {
		return err
	}
	p.mu.Lock()
	p.observers = append(p.observers, o)
	p.mu.Unlock()
	return nil
}

// Mode returns the poller's current construction-time mode.
func (p *Poller) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// HeartbeatActive reports whether the continuous heartbeat loop is running.
func (p *Poller) HeartbeatActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heartbeat
}

// Start requests count instances and tracks them until count are in the
// terminal status.
//
// Observers are notified that a start began before the command is sent. In
// recovery mode the command is skipped and the first poll is immediate.
// While continuous heartbeat is active no finite loop is spawned and
// opts.Callback is not used.
//
// Returns an error if the start command fails; the failure handler is also
// invoked in that case.
func (p *Poller) Start(ctx context.Context, count int, opts StartOptions) error {
	if count < 0 {
		return fmt.Errorf("instance count cannot be negative, got %d", count)
	}
	terminal := p.terminal
	if opts.TerminalStatus != "" {
		parsed, err := ParseTerminalStatus(string(opts.TerminalStatus))
		if err != nil {
			return err
		}
		terminal = parsed
	}

	p.mu.Lock()
	constructionRecovery := p.mode == ModeRecovery
	recovering := opts.Recover || constructionRecovery
	heartbeat := p.heartbeat
	if heartbeat && constructionRecovery {
		p.recoveryPending = true
	}
	p.mu.Unlock()

	p.notifyStart()

	if recovering {
		p.logger.Info("recovery mode: skipping start command", "count", count)
	} else {
		form := mergeParams(p.commonParams, opts.Params)
		form.Set(numInstancesParam, strconv.Itoa(count))
		if err := p.command(ctx, "start", p.endpoints.Start, form); err != nil {
			return err
		}
	}

	if heartbeat {
		if opts.Callback != nil {
			p.logger.Debug("continuous heartbeat active, start callback ignored")
		}
		return nil
	}

	delay := p.interval
	if recovering {
		delay = 0
	}
	s := p.newSession("start", terminal, count, opts.Callback, recovering && constructionRecovery)
	p.spawnFinite(ctx, s, delay)
	return nil
}

// Stop requests teardown of all instances and tracks the fleet until none
// remain. callback may be nil. A successful stop command ends recovery mode,
// so the next Start sends its command again.
func (p *Poller) Stop(ctx context.Context, callback func(Snapshot)) error {
	p.mu.Lock()
	heartbeat := p.heartbeat
	p.mu.Unlock()

	if err := p.command(ctx, "stop", p.endpoints.Stop, mergeParams(p.commonParams, nil)); err != nil {
		return err
	}
	// a torn-down fleet has nothing left to recover
	p.clearRecovery("fleet stopped")

	if heartbeat {
		if callback != nil {
			p.logger.Debug("continuous heartbeat active, stop callback ignored")
		}
		return nil
	}

	s := p.newSession("stop", StatusTotal, 0, callback, false)
	p.spawnFinite(ctx, s, p.interval)
	return nil
}

// GetStates performs exactly one poll and returns its snapshot. Observers
// are not notified and the failure handler is not invoked; the caller owns
// the error.
func (p *Poller) GetStates(ctx context.Context, params url.Values) (Snapshot, error) {
	return p.poll(ctx, params)
}

// Refresh performs one poll and reports it like a session poll: update
// observers receive the snapshot and a failure goes to the failure handler
// and failure observers. The error is also returned.
func (p *Poller) Refresh(ctx context.Context, params url.Values) (Snapshot, error) {
	snap, err := p.poll(ctx, params)
	if err != nil {
		p.fail(err)
		return Snapshot{}, err
	}
	p.notifyUpdate(snap)
	return snap, nil
}

// StartContinuousHeartbeat switches the poller to an unconditional poll loop
// that calls callback (which may be nil) and the update observers on every
// snapshot. Afterwards Start and Stop no longer spawn their own loops.
//
// Calling it while the heartbeat is already active is a no-op. Returns true
// if a new loop was started. The loop ends when ctx is cancelled or a poll
// fails; after that the heartbeat may be started again.
func (p *Poller) StartContinuousHeartbeat(ctx context.Context, callback func(Snapshot)) bool {
	p.mu.Lock()
	if p.heartbeat {
		p.mu.Unlock()
		return false
	}
	p.heartbeat = true
	p.wg.Add(1)
	p.mu.Unlock()

	go p.runHeartbeat(ctx, callback)
	return true
}

// Wait blocks until every loop started by the poller has exited.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Close releases idle HTTP connections. Loops keep running; cancel their
// contexts to end them.
func (p *Poller) Close() {
	p.client.Close()
}

// newSession creates a session that supersedes any earlier one.
func (p *Poller) newSession(op string, status Status, target int, callback func(Snapshot), clearsMode bool) *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	return &session{
		op:         op,
		generation: p.generation,
		status:     status,
		target:     target,
		callback:   callback,
		clearsMode: clearsMode,
	}
}

// superseded reports whether a newer session has replaced s.
func (p *Poller) superseded(s *session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation != s.generation
}

func (p *Poller) spawnFinite(ctx context.Context, s *session, delay time.Duration) {
	p.wg.Add(1)
	go p.runFinite(ctx, s, delay)
}

// runFinite polls until s's terminal condition holds, s is superseded, a poll
// fails, or ctx is cancelled.
func (p *Poller) runFinite(ctx context.Context, s *session, delay time.Duration) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(delay):
		}
		delay = p.interval

		// an issued poll always runs to completion
		snap, err := p.poll(context.WithoutCancel(ctx), nil)

		if p.superseded(s) {
			p.logger.Debug("poll session superseded", "op", s.op)
			return
		}
		if err != nil {
			p.fail(err)
			return
		}

		p.notifyUpdate(snap)

		if snap.Summary.Count(s.status) != s.target {
			continue
		}

		p.logger.Info("fleet reached target",
			"op", s.op,
			"status", s.status,
			"count", s.target,
		)
		p.notifyStop()
		if s.clearsMode {
			p.clearRecovery("recovery resynchronised")
		}
		if s.callback != nil {
			invokeSafe(p.logger, "callback", func() { s.callback(snap) })
		}
		return
	}
}

// runHeartbeat polls forever at the interval.
func (p *Poller) runHeartbeat(ctx context.Context, callback func(Snapshot)) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.heartbeat = false
		p.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.interval):
		}

		snap, err := p.poll(context.WithoutCancel(ctx), nil)
		if err != nil {
			p.fail(err)
			return
		}

		p.notifyUpdate(snap)

		p.mu.Lock()
		if p.recoveryPending {
			p.recoveryPending = false
			p.mode = ModeNormal
			p.logger.Info("recovery resynchronised, leaving recovery mode")
		}
		p.mu.Unlock()

		if callback != nil {
			invokeSafe(p.logger, "heartbeat", func() { callback(snap) })
		}
	}
}

// clearRecovery leaves construction-time recovery mode. Only the first call
// has an effect.
func (p *Poller) clearRecovery(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recoveryPending = false
	if p.mode == ModeRecovery {
		p.mode = ModeNormal
		p.logger.Info("leaving recovery mode", "reason", reason)
	}
}

// poll issues one list request and decodes it.
func (p *Poller) poll(ctx context.Context, params url.Values) (Snapshot, error) {
	target, err := withQuery(p.endpoints.List, mergeParams(p.commonParams, params))
	if err != nil {
		return Snapshot{}, &RequestError{Op: "list", URL: p.endpoints.List, Err: err}
	}

	resp := p.client.Get(ctx, target, p.timeout)
	if err := classifyResponse("list", target, resp); err != nil {
		return Snapshot{}, err
	}

	snap, err := decodeSnapshot(resp.Body, p.clock.Now())
	if err != nil {
		return Snapshot{}, &RequestError{
			Op:         "list",
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %v", ErrMalformedResponse, err),
		}
	}

	p.logger.Debug("fleet polled",
		"total", snap.Alive(),
		"running", snap.Running(),
		"latency_ms", resp.Latency.Milliseconds(),
	)
	return snap, nil
}

// command sends a lifecycle POST. Failures are reported to the failure
// handler and returned.
func (p *Poller) command(ctx context.Context, op, target string, form url.Values) error {
	resp := p.client.PostForm(ctx, target, form, p.timeout)
	if err := classifyResponse(op, target, resp); err != nil {
		p.fail(err)
		return err
	}
	p.logger.Info("fleet command sent", "op", op, "status_code", resp.StatusCode)
	return nil
}

func (p *Poller) fail(err error) {
	invokeSafe(p.logger, "failure handler", func() { p.onFailure(err) })
	for _, o := range p.observerList() {
		if fo, ok := o.(FailureObserver); ok {
			invokeSafe(p.logger, "OnFailure", func() { fo.OnFailure(err) })
		}
	}
}

func (p *Poller) observerList() []Observer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Observer, len(p.observers))
	copy(out, p.observers)
	return out
}

func (p *Poller) notifyStart() {
	for _, o := range p.observerList() {
		if so, ok := o.(StartObserver); ok {
			invokeSafe(p.logger, "OnStart", so.OnStart)
		}
	}
}

func (p *Poller) notifyStop() {
	for _, o := range p.observerList() {
		if so, ok := o.(StopObserver); ok {
			invokeSafe(p.logger, "OnStop", so.OnStop)
		}
	}
}

func (p *Poller) notifyUpdate(snap Snapshot) {
	for _, o := range p.observerList() {
		if uo, ok := o.(UpdateObserver); ok {
			invokeSafe(p.logger, "OnUpdate", func() { uo.OnUpdate(snap) })
		}
	}
}
