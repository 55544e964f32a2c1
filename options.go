package fleetview

import (
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
)

// Mode selects how [Poller.Start] treats the start command.
type Mode int

const (
	// ModeNormal issues the start command.
	ModeNormal Mode = iota

	// ModeRecovery assumes the instances already exist (for example after a
	// process restart): Start skips the network command, keeps all local
	// bookkeeping, and polls immediately. A poller constructed in this mode
	// returns to ModeNormal once the first recovery session resynchronises
	// or a stop command succeeds.
	ModeRecovery
)

// String returns "normal" or "recovery".
func (m Mode) String() string {
	if m == ModeRecovery {
		return "recovery"
	}
	return "normal"
}

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
	interval     time.Duration
	timeout      time.Duration
	terminal     Status
	commonParams url.Values
	observers    []Observer
	mode         Mode
	onFailure    func(error)
	logger       *slog.Logger
	clock        clockwork.Clock
}

// Option configures a [Poller] during construction. Options return an error
// if validation fails.
type Option func(*pollerConfig) error

// WithPollInterval sets the delay between polls. Defaults to 2 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithHTTPTimeout sets the per-request timeout for fleet API calls.
// Defaults to 10 seconds.
func WithHTTPTimeout(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("HTTP timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithTerminalStatus sets the status a start session waits for: RUNNING
// (default) or SERVING for stricter readiness.
func WithTerminalStatus(s Status) Option {
	return func(cfg *pollerConfig) error {
		parsed, err := ParseTerminalStatus(string(s))
		if err != nil {
			return err
		}
		cfg.terminal = parsed
		return nil
	}
}

// WithCommonParams sets parameters sent with every fleet API request.
// Per-call parameters override these on key collision.
func WithCommonParams(params url.Values) Option {
	return func(cfg *pollerConfig) error {
		cfg.commonParams = mergeParams(cfg.commonParams, params)
		return nil
	}
}

// WithObserver registers an observer at construction time. See [Observer].
func WithObserver(o Observer) Option {
	return func(cfg *pollerConfig) error {
		if err := validateObserver(o); err != nil {
			return err
		}
		cfg.observers = append(cfg.observers, o)
		return nil
	}
}

// WithMode sets the construction-time [Mode]. Use [ModeRecovery] when the
// caller has detected, on startup, that instances from a previous session
// are already running.
func WithMode(m Mode) Option {
	return func(cfg *pollerConfig) error {
		if m != ModeNormal && m != ModeRecovery {
			return errors.New("unknown poller mode")
		}
		cfg.mode = m
		return nil
	}
}

// WithFailureHandler sets the function called when a polling session dies
// on a fleet API failure. This is the user-visible fatal notification; the
// session is not retried. The error satisfies errors.Is(err, ErrRequestFailed).
//
// The default handler logs the error at error level.
func WithFailureHandler(fn func(error)) Option {
	return func(cfg *pollerConfig) error {
		if fn == nil {
			return errors.New("failure handler cannot be nil")
		}
		cfg.onFailure = fn
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithClock replaces the time source used for poll delays and snapshot
// timestamps. Tests pass a [clockwork.FakeClock] to drive loops by hand.
func WithClock(c clockwork.Clock) Option {
	return func(cfg *pollerConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}
