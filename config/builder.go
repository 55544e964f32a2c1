package config

import (
	"log/slog"
	"net/url"
	"sort"

	"golang.org/x/time/rate"

	"github.com/jpalmerr/fleetview"
	"github.com/jpalmerr/fleetview/tiles"
)

// BuildEndpoints converts the fleet section into poller endpoints. Explicit
// start/list/stop URLs take precedence over base_url and demo.
func BuildEndpoints(cfg *Config) fleetview.Endpoints {
	f := cfg.Fleet
	if f.StartURL != "" {
		return fleetview.Endpoints{Start: f.StartURL, List: f.ListURL, Stop: f.StopURL}
	}
	return fleetview.DemoEndpoints(f.BaseURL, f.Demo)
}

// BuildPollerOptions converts the fleet section into poller options.
// A nil logger leaves the poller on slog.Default.
func BuildPollerOptions(cfg *Config, logger *slog.Logger) []fleetview.Option {
	f := cfg.Fleet
	opts := []fleetview.Option{
		fleetview.WithPollInterval(f.PollInterval.Duration()),
		fleetview.WithHTTPTimeout(f.Timeout.Duration()),
		fleetview.WithTerminalStatus(fleetview.Status(f.TerminalStatus)),
	}

	if len(f.Params) > 0 {
		opts = append(opts, fleetview.WithCommonParams(toValues(f.Params)))
	}
	if f.Mode == "recovery" {
		opts = append(opts, fleetview.WithMode(fleetview.ModeRecovery))
	}
	if logger != nil {
		opts = append(opts, fleetview.WithLogger(logger))
	}
	return opts
}

// BuildStartOptions returns the per-call options for the start command.
func BuildStartOptions(cfg *Config) fleetview.StartOptions {
	var opts fleetview.StartOptions
	if len(cfg.Fleet.StartParams) > 0 {
		opts.Params = toValues(cfg.Fleet.StartParams)
	}
	return opts
}

// BuildMonitorOptions converts the title and server sections into monitor
// options.
func BuildMonitorOptions(cfg *Config, logger *slog.Logger) []fleetview.MonitorOption {
	opts := []fleetview.MonitorOption{
		fleetview.WithPort(cfg.Server.Port),
	}
	if cfg.Title != "" {
		opts = append(opts, fleetview.WithTitle(cfg.Title))
	}
	if logger != nil {
		opts = append(opts, fleetview.WithMonitorLogger(logger))
	}
	return opts
}

// BuildLoaderOptions converts the tiles section into loader options. The
// fetcher honours tiles.timeout.
func BuildLoaderOptions(cfg *Config, logger *slog.Logger) []tiles.Option {
	t := cfg.Tiles
	opts := []tiles.Option{
		tiles.WithMaxDownloading(t.MaxDownloading),
		tiles.WithTileSize(t.TileSize, t.TileSize),
		tiles.WithFetcher(tiles.NewHTTPFetcher(t.Timeout.Duration())),
	}
	if t.RateLimit > 0 {
		opts = append(opts, tiles.WithRateLimit(rate.Limit(t.RateLimit), t.Burst))
	}
	if logger != nil {
		opts = append(opts, tiles.WithLogger(logger))
	}
	return opts
}

// toValues converts a flat map to url.Values with keys in sorted order.
func toValues(m map[string]string) url.Values {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := make(url.Values, len(m))
	for _, k := range keys {
		v.Set(k, m[k])
	}
	return v
}
