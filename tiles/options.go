package tiles

import (
	"errors"
	"log/slog"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxDownloading is the default cap on concurrent downloads.
	DefaultMaxDownloading = 5

	// DefaultTileSize is the default tile edge in pixels.
	DefaultTileSize = 256
)

type loaderConfig struct {
	maxDownloading int
	size           Size
	fetcher        Fetcher
	limit          rate.Limit
	burst          int
	hook           func(*Tile, State)
	logger         *slog.Logger
}

// Option configures a [Loader].
type Option func(*loaderConfig) error

// WithMaxDownloading caps concurrent downloads. Defaults to 5.
func WithMaxDownloading(n int) Option {
	return func(cfg *loaderConfig) error {
		if n < 1 {
			return errors.New("max downloading must be at least 1")
		}
		cfg.maxDownloading = n
		return nil
	}
}

// WithTileSize sets the placeholder size. Defaults to 256x256.
func WithTileSize(width, height int) Option {
	return func(cfg *loaderConfig) error {
		if width < 1 || height < 1 {
			return errors.New("tile size must be positive")
		}
		cfg.size = Size{Width: width, Height: height}
		return nil
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(cfg *loaderConfig) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		cfg.fetcher = f
		return nil
	}
}

// WithRateLimit paces download starts to r per second with the given burst.
// The wait happens inside a download slot, so it never lets more than the
// maximum number of downloads run.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(cfg *loaderConfig) error {
		if r <= 0 {
			return errors.New("rate limit must be positive")
		}
		if burst < 1 {
			return errors.New("rate limit burst must be at least 1")
		}
		cfg.limit = r
		cfg.burst = burst
		return nil
	}
}

// WithTransitionHook registers fn to observe every tile state change. fn runs
// with the loader's lock held and must not call back into the loader.
func WithTransitionHook(fn func(*Tile, State)) Option {
	return func(cfg *loaderConfig) error {
		cfg.hook = fn
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *loaderConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
