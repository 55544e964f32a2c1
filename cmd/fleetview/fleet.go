package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/fleetview"
	"github.com/jpalmerr/fleetview/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start instances and wait until they are up",
	Long: `Request instances from the fleet API and poll until the requested number
reach the terminal status (RUNNING by default, SERVING if configured).

With --recover the start command is not sent; the existing fleet is polled
immediately instead. Use it after a restart when instances from an earlier
session are still up.

Example:
  fleetview start -c fleet.yaml
  fleetview start -c fleet.yaml -n 8 --wait-timeout 5m`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Tear down the fleet and wait until it is gone",
	Long: `Request teardown of every instance and poll until the fleet is empty.

Example:
  fleetview stop -c fleet.yaml`,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)

	addConfigFlag(startCmd)
	startCmd.Flags().IntP("count", "n", 0, "number of instances (defaults to fleet.instances)")
	startCmd.Flags().Bool("recover", false, "skip the start command and poll the existing fleet")
	startCmd.Flags().Bool("no-wait", false, "return once the start command is accepted")
	startCmd.Flags().Duration("wait-timeout", 0, "give up waiting after this long (0 waits forever)")

	addConfigFlag(stopCmd)
	stopCmd.Flags().Bool("no-wait", false, "return once the stop command is accepted")
	stopCmd.Flags().Duration("wait-timeout", 0, "give up waiting after this long (0 waits forever)")
}

// session ties a poller to the channels a single CLI command waits on.
type session struct {
	poller   *fleetview.Poller
	done     chan fleetview.Snapshot
	failures chan error
}

func newCLISession(cfg *config.Config) (*session, error) {
	s := &session{
		done:     make(chan fleetview.Snapshot, 1),
		failures: make(chan error, 1),
	}
	p, err := newPoller(cfg, newLogger(), fleetview.WithFailureHandler(func(err error) {
		select {
		case s.failures <- err:
		default:
		}
	}))
	if err != nil {
		return nil, err
	}
	s.poller = p
	return s, nil
}

func (s *session) callback(snap fleetview.Snapshot) {
	select {
	case s.done <- snap:
	default:
	}
}

// await blocks until the session settles, fails or ctx ends.
func (s *session) await(ctx context.Context, op string) (fleetview.Snapshot, error) {
	select {
	case snap := <-s.done:
		return snap, nil
	case err := <-s.failures:
		return fleetview.Snapshot{}, fmt.Errorf("%s failed: %w", op, err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fleetview.Snapshot{}, fmt.Errorf("%s: fleet did not settle in time", op)
		}
		return fleetview.Snapshot{}, fmt.Errorf("%s interrupted", op)
	}
}

// commandContext returns a context cancelled on SIGINT/SIGTERM and, when
// timeout is positive, after timeout.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	count := cfg.Fleet.Instances
	if cmd.Flags().Changed("count") {
		count, _ = cmd.Flags().GetInt("count")
	}
	recoverFleet, _ := cmd.Flags().GetBool("recover")
	noWait, _ := cmd.Flags().GetBool("no-wait")
	waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")

	s, err := newCLISession(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(waitTimeout)
	defer func() {
		cancel()
		s.poller.Wait()
		s.poller.Close()
	}()

	opts := config.BuildStartOptions(cfg)
	opts.Recover = recoverFleet
	opts.Callback = s.callback
	if err := s.poller.Start(ctx, count, opts); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if noWait {
		fmt.Fprintf(out, "Start requested for %d instances\n", count)
		return nil
	}

	snap, err := s.await(ctx, "start")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d instances %s\n", count, cfg.Fleet.TerminalStatus)
	fmt.Fprint(out, renderFleet(snap))
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	noWait, _ := cmd.Flags().GetBool("no-wait")
	waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")

	s, err := newCLISession(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(waitTimeout)
	defer func() {
		cancel()
		s.poller.Wait()
		s.poller.Close()
	}()

	if err := s.poller.Stop(ctx, s.callback); err != nil {
		return fmt.Errorf("stop failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if noWait {
		fmt.Fprintln(out, "Stop requested")
		return nil
	}

	if _, err := s.await(ctx, "stop"); err != nil {
		return err
	}
	fmt.Fprintln(out, "Fleet stopped")
	return nil
}
