package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/fleetview"
	"github.com/jpalmerr/fleetview/internal/mockfleet"
	"github.com/jpalmerr/fleetview/tiles"
)

const mockAddr = "127.0.0.1:9999"

func main() {
	// mock fleet API with a built-in tile renderer
	mock, err := mockfleet.New("fractal",
		mockfleet.WithStageDuration(2*time.Second),
		mockfleet.WithExternalIP(mockAddr),
	)
	if err != nil {
		slog.Error("failed to create mock fleet", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := http.ListenAndServe(mockAddr, mock.Handler()); err != nil {
			slog.Error("mock fleet error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	p, err := fleetview.New(fleetview.DemoEndpoints("http://"+mockAddr, "fractal"),
		fleetview.WithPollInterval(time.Second),
	)
	if err != nil {
		slog.Error("failed to create poller", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	monitor, err := fleetview.NewMonitor(p,
		fleetview.WithPort(8080),
		fleetview.WithTitle("Fractal demo"),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  fleetview demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  4 mock instances boot, then a 4x4 tile grid renders across them")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = p.Start(ctx, 4, fleetview.StartOptions{
		Callback: func(snap fleetview.Snapshot) {
			go renderTiles(ctx, snap)
		},
	})
	if err != nil {
		slog.Error("start failed", "error", err)
		os.Exit(1)
	}

	if err := monitor.Start(ctx); err != nil {
		slog.Error("monitor error", "error", err)
		os.Exit(1)
	}
}

// renderTiles loads a 4x4 grid from the running instances and logs the
// result of each tile.
func renderTiles(ctx context.Context, snap fleetview.Snapshot) {
	_, all := fleetview.SplitByTag(snap, "")
	urlFunc, err := tiles.InstanceURLFunc(fleetview.Hosts(all), "/tile", tiles.DefaultTileSize)
	if err != nil {
		slog.Error("no tile hosts", "error", err)
		return
	}

	loader, err := tiles.NewLoader(urlFunc, tiles.WithTransitionHook(func(t *tiles.Tile, s tiles.State) {
		if s == tiles.StateLoaded {
			slog.Info("tile loaded", "x", t.Coord().X, "y", t.Coord().Y, "bytes", len(t.Image()))
		}
	}))
	if err != nil {
		slog.Error("failed to create tile loader", "error", err)
		return
	}
	defer loader.Close()

	var grid []*tiles.Tile
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			grid = append(grid, loader.GetTile(tiles.Coord{X: x, Y: y}, 0))
		}
	}
	for _, t := range grid {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return
		}
		loader.ReleaseTile(t)
	}
	slog.Info("tile grid rendered", "tiles", len(grid))
}
