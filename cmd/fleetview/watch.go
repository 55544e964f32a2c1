package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/fleetview"
	"github.com/jpalmerr/fleetview/config"
)

const shutdownTimeout = 10 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Serve the live fleet dashboard",
	Long: `Serve a web dashboard that shows the fleet in real time.

The command will:
  - Load configuration from the specified YAML file
  - Poll the fleet continuously at the configured interval
  - Serve the dashboard UI and SSE stream on the configured port
  - Optionally start the configured number of instances (--start)

It runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  fleetview watch -c fleet.yaml
  fleetview watch -c fleet.yaml --start --port 9090`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addConfigFlag(watchCmd)
	watchCmd.Flags().Bool("start", false, "start fleet.instances instances on launch")
	watchCmd.Flags().Int("port", 0, "override server.port")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	startFleet, _ := cmd.Flags().GetBool("start")

	logger.Info("config loaded",
		"list_url", config.BuildEndpoints(cfg).List,
		"poll_interval", cfg.Fleet.PollInterval.Duration().String(),
		"mode", cfg.Fleet.Mode,
	)

	p, err := newPoller(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	m, err := fleetview.NewMonitor(p, config.BuildMonitorOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	ctx, stop := commandContext(0)
	defer stop()

	var start func(context.Context) error
	if startFleet {
		start = func(ctx context.Context) error {
			return p.Start(ctx, cfg.Fleet.Instances, config.BuildStartOptions(cfg))
		}
	}

	errChan := make(chan error, 1)
	go func() {
		err := serveFleet(ctx, m, start)
		p.Wait()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		return watchResult(err, logger)

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			return watchResult(err, logger)
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// serveFleet runs m until ctx ends. A non-nil start runs once the monitor is
// ready, so the start session is tracked by the heartbeat.
func serveFleet(ctx context.Context, m *fleetview.Monitor, start func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Start(gctx)
	})
	if start != nil {
		g.Go(func() error {
			select {
			case <-m.Ready():
			case <-gctx.Done():
				return nil
			}
			return start(gctx)
		})
	}
	return g.Wait()
}

func watchResult(err error, logger *slog.Logger) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
