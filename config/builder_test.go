package config

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jpalmerr/fleetview"
	"github.com/jpalmerr/fleetview/tiles"
)

func mustParse(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestBuildEndpoints(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want fleetview.Endpoints
	}{
		{
			name: "demo layout",
			yaml: `
fleet:
  base_url: https://demos.example.com/
  demo: /fractal/
`,
			want: fleetview.Endpoints{
				Start: "https://demos.example.com/fractal/instance",
				List:  "https://demos.example.com/fractal/instance",
				Stop:  "https://demos.example.com/fractal/cleanup",
			},
		},
		{
			name: "explicit urls win",
			yaml: `
fleet:
  base_url: https://ignored.example.com
  demo: fractal
  start_url: https://fleet.example.com/up
  list_url: https://fleet.example.com/list
  stop_url: https://fleet.example.com/down
`,
			want: fleetview.Endpoints{
				Start: "https://fleet.example.com/up",
				List:  "https://fleet.example.com/list",
				Stop:  "https://fleet.example.com/down",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildEndpoints(mustParse(t, tt.yaml))
			if got != tt.want {
				t.Errorf("BuildEndpoints() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildPollerOptions(t *testing.T) {
	cfg := mustParse(t, minimalYAML+`
  mode: recovery
  terminal_status: SERVING
  params:
    project: demo
`)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p, err := fleetview.New(BuildEndpoints(cfg), BuildPollerOptions(cfg, logger)...)
	if err != nil {
		t.Fatalf("fleetview.New() error = %v", err)
	}
	defer p.Close()

	if p.Mode() != fleetview.ModeRecovery {
		t.Errorf("Mode() = %v, want recovery", p.Mode())
	}
}

func TestBuildPollerOptions_NormalModeNilLogger(t *testing.T) {
	cfg := mustParse(t, minimalYAML)

	opts := BuildPollerOptions(cfg, nil)
	// interval, timeout and terminal status only
	if len(opts) != 3 {
		t.Errorf("len(opts) = %d, want 3", len(opts))
	}

	p, err := fleetview.New(BuildEndpoints(cfg), opts...)
	if err != nil {
		t.Fatalf("fleetview.New() error = %v", err)
	}
	defer p.Close()

	if p.Mode() != fleetview.ModeNormal {
		t.Errorf("Mode() = %v, want normal", p.Mode())
	}
}

func TestBuildStartOptions(t *testing.T) {
	cfg := mustParse(t, minimalYAML+`
  start_params:
    tag: fractal-a
    zone: eu
`)
	opts := BuildStartOptions(cfg)
	if got := opts.Params.Get("tag"); got != "fractal-a" {
		t.Errorf("Params[tag] = %q, want fractal-a", got)
	}
	if got := opts.Params.Get("zone"); got != "eu" {
		t.Errorf("Params[zone] = %q, want eu", got)
	}

	empty := BuildStartOptions(mustParse(t, minimalYAML))
	if empty.Params != nil {
		t.Errorf("Params = %v, want nil", empty.Params)
	}
}

func TestBuildMonitorOptions(t *testing.T) {
	cfg := mustParse(t, `
title: Fractal fleet
fleet:
  base_url: http://localhost:8090
  demo: fractal
server:
  port: 9191
`)
	p, err := fleetview.New(BuildEndpoints(cfg))
	if err != nil {
		t.Fatalf("fleetview.New() error = %v", err)
	}
	defer p.Close()

	m, err := fleetview.NewMonitor(p, BuildMonitorOptions(cfg, nil)...)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	if m.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", m.Port())
	}
}

func TestBuildLoaderOptions(t *testing.T) {
	cfg := mustParse(t, minimalYAML+`
tiles:
  max_downloading: 2
  tile_size: 128
  rate_limit: 10
`)
	opts := BuildLoaderOptions(cfg, nil)
	// max downloading, tile size, fetcher, rate limit
	if len(opts) != 4 {
		t.Errorf("len(opts) = %d, want 4", len(opts))
	}

	urlFunc, err := tiles.InstanceURLFunc([]string{"127.0.0.1:1"}, cfg.Tiles.Path, cfg.Tiles.TileSize)
	if err != nil {
		t.Fatalf("InstanceURLFunc() error = %v", err)
	}
	l, err := tiles.NewLoader(urlFunc, opts...)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	defer l.Close()

	tile := l.GetTile(tiles.Coord{}, 0)
	if got := tile.Size(); got.Width != 128 || got.Height != 128 {
		t.Errorf("Size() = %+v, want 128x128", got)
	}
}

func TestBuildLoaderOptions_NoRateLimit(t *testing.T) {
	cfg := mustParse(t, minimalYAML)
	if got := len(BuildLoaderOptions(cfg, nil)); got != 3 {
		t.Errorf("len(opts) = %d, want 3", got)
	}
}
