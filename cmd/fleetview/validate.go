package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/fleetview/config"
)

// validateCmd validates a config file without contacting the fleet API.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a fleetview configuration file without contacting the fleet API.

This command parses the YAML, expands environment variables, applies
defaults and validates all fields. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  fleetview validate -c fleet.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addConfigFlag(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ep := config.BuildEndpoints(cfg)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Start:           %s\n", ep.Start)
	fmt.Fprintf(out, "  List:            %s\n", ep.List)
	fmt.Fprintf(out, "  Stop:            %s\n", ep.Stop)
	fmt.Fprintf(out, "  Instances:       %d\n", cfg.Fleet.Instances)
	fmt.Fprintf(out, "  Poll interval:   %s\n", cfg.Fleet.PollInterval.Duration())
	fmt.Fprintf(out, "  Terminal status: %s\n", cfg.Fleet.TerminalStatus)
	fmt.Fprintf(out, "  Mode:            %s\n", cfg.Fleet.Mode)
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Server.Port)
	fmt.Fprintf(out, "  Tiles:           %d concurrent, %dpx\n", cfg.Tiles.MaxDownloading, cfg.Tiles.TileSize)
	return nil
}
