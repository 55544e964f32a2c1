// Package fleetview drives a small fleet of demo compute instances through a
// fleet API and keeps observers in sync with its aggregate state.
//
// The fleet API has three endpoints: a start command that requests N
// instances, a list endpoint that returns every instance with its status and
// external IP, and a stop command that tears everything down. A [Poller]
// sends the commands and then polls the list endpoint until the fleet
// reaches the requested state.
//
// # Quick Start
//
//	p, _ := fleetview.New(fleetview.DemoEndpoints("https://demos.example.com", "fractal"))
//
//	p.Start(ctx, 4, fleetview.StartOptions{
//	    Callback: func(s fleetview.Snapshot) {
//	        fmt.Println("fleet up:", fleetview.Hosts(s.Sorted()))
//	    },
//	})
//
// # Poll Sessions
//
// Every Start or Stop call opens a session that polls at a fixed interval
// (2 seconds by default) until its terminal condition holds: exactly N
// instances RUNNING (or SERVING) for start, no instances at all for stop.
// A newer session supersedes an older one. A failed request (401, 500,
// transport error or malformed body) ends the session and is reported to
// the failure handler; it is never retried.
//
// [Poller.StartContinuousHeartbeat] switches to an unconditional loop that
// runs until its context ends, for live dashboards. [Poller.GetStates] and
// [Poller.Refresh] poll once; only Refresh reports to observers and the
// failure handler.
//
// # Observers
//
// Observers implement any of [StartObserver], [StopObserver],
// [UpdateObserver] and [FailureObserver]. [ObserverFuncs] adapts plain
// functions.
//
// # Recovery Mode
//
// A poller created with [WithMode]([ModeRecovery]) assumes instances from an
// earlier session are still up: the first Start skips the start command and
// polls at once. Recovery ends when that session settles or when a stop
// command succeeds.
//
// # Monitor
//
// [Monitor] wires a poller to the embedded dashboard. It serves the fleet as
// JSON on /api/fleet and as Server-Sent Events on /api/sse.
//
// # Tiles
//
// The tiles subpackage downloads image tiles from the running instances with
// a bounded number of concurrent requests. Use [SplitByTag] and [Hosts] to
// pick the instances to spread tiles across.
package fleetview
