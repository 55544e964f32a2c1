package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/fleetview"
	"github.com/jpalmerr/fleetview/config"
	"github.com/jpalmerr/fleetview/tiles"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Render a grid of tiles from the running fleet",
	Long: `Poll the fleet once, pick the running instances with an external IP and
download a cols x rows grid of tiles from them, spreading requests across
instances by tile coordinate.

At most tiles.max_downloading downloads run at once; tiles start downloading
in request order. Each tile is written to <out>/tile_<z>_<x>_<y>.png.

With fleet.tag configured, --group picks the tagged instances, the others,
or all of them.

Example:
  fleetview tiles -c fleet.yaml --cols 8 --rows 4 --out ./render
  fleetview tiles -c fleet.yaml --group tagged`,
	RunE: runTiles,
}

func init() {
	rootCmd.AddCommand(tilesCmd)

	addConfigFlag(tilesCmd)
	tilesCmd.Flags().Int("cols", 4, "tile columns")
	tilesCmd.Flags().Int("rows", 4, "tile rows")
	tilesCmd.Flags().Int("zoom", 0, "zoom level")
	tilesCmd.Flags().String("out", "tiles", "output directory")
	tilesCmd.Flags().String("group", "all", "host group: all, tagged or untagged")
}

func runTiles(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cols, _ := cmd.Flags().GetInt("cols")
	rows, _ := cmd.Flags().GetInt("rows")
	zoom, _ := cmd.Flags().GetInt("zoom")
	outDir, _ := cmd.Flags().GetString("out")
	group, _ := cmd.Flags().GetString("group")
	if cols < 1 || rows < 1 {
		return fmt.Errorf("cols and rows must be at least 1, got %dx%d", cols, rows)
	}

	p, err := newPoller(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	snap, err := p.GetStates(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get fleet state: %w", err)
	}

	hosts, err := tileHosts(snap, cfg.Fleet.Tag, group)
	if err != nil {
		return err
	}
	logger.Info("rendering tiles", "hosts", len(hosts), "cols", cols, "rows", rows, "zoom", zoom)

	urlFunc, err := tiles.InstanceURLFunc(hosts, cfg.Tiles.Path, cfg.Tiles.TileSize)
	if err != nil {
		return err
	}
	loader, err := tiles.NewLoader(urlFunc, config.BuildLoaderOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create tile loader: %w", err)
	}
	defer loader.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	written, failed, err := renderGrid(ctx, loader, cols, rows, zoom, outDir, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tiles to %s (%d failed)\n", written, outDir, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d tiles failed", failed, cols*rows)
	}
	return nil
}

// tileHosts picks the external IPs of ready instances in the chosen group.
func tileHosts(snap fleetview.Snapshot, tag, group string) ([]string, error) {
	ready := fleetview.Snapshot{Instances: make(map[string]fleetview.Instance)}
	for name, inst := range snap.Instances {
		if inst.Status == fleetview.StatusRunning || inst.Status == fleetview.StatusServing {
			ready.Instances[name] = inst
		}
	}

	tagged, rest := fleetview.SplitByTag(ready, tag)
	var picked []fleetview.Instance
	switch group {
	case "all":
		picked = append(tagged, rest...)
	case "tagged":
		if tag == "" {
			return nil, fmt.Errorf("--group tagged needs fleet.tag in the config")
		}
		picked = tagged
	case "untagged":
		picked = rest
	default:
		return nil, fmt.Errorf("unknown group %q (want all, tagged or untagged)", group)
	}

	hosts := fleetview.Hosts(picked)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no ready instances with an external IP in group %q", group)
	}
	return hosts, nil
}

// renderGrid requests every tile row by row, then waits for each and writes
// it to outDir. Tiles are released once written.
func renderGrid(ctx context.Context, loader *tiles.Loader, cols, rows, zoom int, outDir string, logger *slog.Logger) (written, failed int, err error) {
	var nWritten, nFailed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			t := loader.GetTile(tiles.Coord{X: x, Y: y}, zoom)
			g.Go(func() error {
				defer loader.ReleaseTile(t)

				select {
				case <-t.Done():
				case <-gctx.Done():
					return gctx.Err()
				}

				if t.State() != tiles.StateLoaded {
					nFailed.Add(1)
					logger.Warn("tile failed", "x", x, "y", y, "url", t.URL(), "error", t.Err())
					return nil
				}

				name := fmt.Sprintf("tile_%d_%d_%d.png", zoom, x, y)
				if err := os.WriteFile(filepath.Join(outDir, name), t.Image(), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", name, err)
				}
				nWritten.Add(1)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return int(nWritten.Load()), int(nFailed.Load()), err
	}
	return int(nWritten.Load()), int(nFailed.Load()), nil
}
