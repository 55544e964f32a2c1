package fleetview

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a single fleet instance as reported by the
// fleet API.
//
// Status is a string type so it serialises as-is in JSON and logs. Values the
// API reports that are not in [Statuses] are folded into [StatusUnknown] by
// [ParseStatus].
type Status string

const (
	// StatusUnknown covers any value the API reports that is not recognised.
	StatusUnknown Status = "UNKNOWN"

	// StatusProvisioning indicates resources are being allocated.
	StatusProvisioning Status = "PROVISIONING"

	// StatusStaging indicates the instance is booting.
	StatusStaging Status = "STAGING"

	// StatusRunning indicates the instance is up.
	StatusRunning Status = "RUNNING"

	// StatusServing indicates the instance is up and answering its health
	// check. Stricter than [StatusRunning].
	StatusServing Status = "SERVING"

	// StatusStopping indicates the instance is shutting down.
	StatusStopping Status = "STOPPING"

	// StatusStopped indicates the instance is shut down but still exists.
	StatusStopped Status = "STOPPED"

	// StatusTerminated indicates the instance has been torn down.
	StatusTerminated Status = "TERMINATED"

	// StatusTotal is the synthetic summary key holding the instance count.
	// It is never the status of an instance.
	StatusTotal Status = "TOTAL"
)

// Statuses lists every instance status in lifecycle order.
var Statuses = []Status{
	StatusUnknown,
	StatusProvisioning,
	StatusStaging,
	StatusRunning,
	StatusServing,
	StatusStopping,
	StatusStopped,
	StatusTerminated,
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus maps a raw API value to a [Status]. Matching is
// case-insensitive; unrecognised values, including "TOTAL", yield
// [StatusUnknown].
func ParseStatus(raw string) Status {
	candidate := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range Statuses {
		if s == candidate {
			return s
		}
	}
	return StatusUnknown
}

// ParseTerminalStatus validates a status usable as the end condition of a
// start session. Only RUNNING and SERVING qualify.
func ParseTerminalStatus(raw string) (Status, error) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusRunning, StatusServing:
		return s, nil
	default:
		return "", fmt.Errorf("terminal status must be RUNNING or SERVING, got %q", raw)
	}
}

// Instance is a read-only view of one fleet instance from a single poll.
type Instance struct {
	// Name is the instance name, unique within one response.
	Name string `json:"name"`

	// Status is the parsed lifecycle state.
	Status Status `json:"status"`

	// ExternalIP is the public address, empty until one is assigned.
	ExternalIP string `json:"externalIp,omitempty"`
}

// Summary maps each status to the number of instances in it, plus
// [StatusTotal].
//
// A Summary built by [Summarize] holds an entry for every status in
// [Statuses] (zero when absent), and the per-status counts always add up to
// the TOTAL entry.
type Summary map[Status]int

// Summarize recomputes a [Summary] from scratch.
func Summarize(instances map[string]Instance) Summary {
	summary := make(Summary, len(Statuses)+1)
	for _, s := range Statuses {
		summary[s] = 0
	}
	for _, inst := range instances {
		summary[ParseStatus(string(inst.Status))]++
	}
	summary[StatusTotal] = len(instances)
	return summary
}

// Count returns the number of instances in status s. Count(StatusTotal) is
// the instance count.
func (s Summary) Count(status Status) int {
	return s[status]
}

// Snapshot is the enriched result of one successful poll.
type Snapshot struct {
	// Instances maps instance name to its state.
	Instances map[string]Instance `json:"instances"`

	// Summary holds the per-status counts for Instances.
	Summary Summary `json:"summary"`

	// PolledAt is when the poll response was received.
	PolledAt time.Time `json:"polledAt"`
}

// Running returns the number of instances in [StatusRunning].
func (s Snapshot) Running() int {
	return s.Summary.Count(StatusRunning)
}

// Alive returns the number of instances in any state.
func (s Snapshot) Alive() int {
	return s.Summary.Count(StatusTotal)
}

// Sorted returns the instances ordered by name.
func (s Snapshot) Sorted() []Instance {
	out := make([]Instance, 0, len(s.Instances))
	for _, inst := range s.Instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// listResponse is the wire format of the list endpoint.
type listResponse struct {
	Instances map[string]struct {
		Status     string `json:"status"`
		ExternalIP string `json:"externalIp"`
	} `json:"instances"`
}

// decodeSnapshot parses a list response body into a [Snapshot].
func decodeSnapshot(body []byte, polledAt time.Time) (Snapshot, error) {
	var wire listResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return Snapshot{}, err
	}
	if wire.Instances == nil && !hasInstancesField(body) {
		return Snapshot{}, fmt.Errorf("response has no %q field", "instances")
	}

	instances := make(map[string]Instance, len(wire.Instances))
	for name, raw := range wire.Instances {
		instances[name] = Instance{
			Name:       name,
			Status:     ParseStatus(raw.Status),
			ExternalIP: raw.ExternalIP,
		}
	}

	return Snapshot{
		Instances: instances,
		Summary:   Summarize(instances),
		PolledAt:  polledAt,
	}, nil
}

// hasInstancesField distinguishes `{"instances": null}` and `{"instances": {}}`
// from a body that lacks the field entirely.
func hasInstancesField(body []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	_, ok := fields["instances"]
	return ok
}
