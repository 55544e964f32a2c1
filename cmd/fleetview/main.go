// Package main is the entry point for the fleetview CLI.
//
// Usage:
//
//	fleetview start -c fleet.yaml -n 4   # Start instances and wait for them
//	fleetview stop -c fleet.yaml         # Tear the fleet down
//	fleetview status -c fleet.yaml       # Print the current fleet
//	fleetview watch -c fleet.yaml        # Serve the live dashboard
//	fleetview tiles -c fleet.yaml        # Render a tile grid from the fleet
//	fleetview validate -c fleet.yaml     # Validate configuration
//	fleetview version                    # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/fleetview"
	"github.com/jpalmerr/fleetview/config"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "fleetview",
	Short: "Drive and watch a fleet of demo instances",
	Long: `fleetview starts, stops and watches a fleet of compute instances through
the fleet API, and renders tiles from the running instances.

Quick start:
  1. Create a config file (fleet.yaml)
  2. Run: fleetview start -c fleet.yaml
  3. Run: fleetview watch -c fleet.yaml and open http://localhost:8080

Example config:
  fleet:
    base_url: http://localhost:8090
    demo: fractal
    instances: 4`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this fleetview binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fleetview %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// addConfigFlag registers the required -c/--config flag on cmd.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newPoller builds a poller from cfg. extra options are applied last.
func newPoller(cfg *config.Config, logger *slog.Logger, extra ...fleetview.Option) (*fleetview.Poller, error) {
	opts := append(config.BuildPollerOptions(cfg, logger), extra...)
	p, err := fleetview.New(config.BuildEndpoints(cfg), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create poller: %w", err)
	}
	return p, nil
}
