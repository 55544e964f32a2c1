package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/fleetview"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current state of the fleet",
	Long: `Poll the fleet API once and print every instance with its status and
external IP, followed by per-status counts.

When fleet.tag is configured the tagged and untagged host groups are listed
too.

Example:
  fleetview status -c fleet.yaml
  fleetview status -c fleet.yaml --json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	addConfigFlag(statusCmd)
	statusCmd.Flags().Bool("json", false, "print the snapshot as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	p, err := newPoller(cfg, newLogger())
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	// failures also reach the poller's failure handler, like start and stop
	snap, err := p.Refresh(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get fleet state: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprint(out, renderFleet(snap))
	if tag := cfg.Fleet.Tag; tag != "" {
		tagged, rest := fleetview.SplitByTag(snap, tag)
		fmt.Fprintf(out, "%s: %d hosts, other: %d hosts\n",
			tag, len(fleetview.Hosts(tagged)), len(fleetview.Hosts(rest)))
	}
	return nil
}
