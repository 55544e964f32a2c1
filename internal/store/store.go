package store

import "time"

// Phase values describe what the fleet was last asked to do.
const (
	PhaseIdle     = "idle"
	PhaseStarting = "starting"
	PhaseSettled  = "settled"
	PhaseFailed   = "failed"
)

// InstanceRecord is the storage representation of one fleet instance.
type InstanceRecord struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	ExternalIP string `json:"external_ip,omitempty"`
}

// FleetState is the latest known state of the fleet, shaped for JSON (REST
// API and SSE). It is decoupled from the poller's types so the wire format can
// evolve independently.
type FleetState struct {
	// Instances is ordered by name.
	Instances []InstanceRecord `json:"instances"`

	// Summary maps status name to instance count, including "TOTAL".
	Summary map[string]int `json:"summary"`

	// Phase is one of the Phase constants.
	Phase string `json:"phase"`

	// Mode is the poller mode at the time of the update.
	Mode string `json:"mode"`

	// PolledAt is when the poll completed. Zero before the first poll.
	PolledAt time.Time `json:"polled_at"`

	// Error holds the failure that ended polling, if any.
	Error *string `json:"error"`
}

// Store holds the current [FleetState] and publishes every change.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Update replaces the current state and notifies all subscribers.
	Update(state FleetState)

	// Latest returns the current state, and false if nothing has been stored.
	Latest() (FleetState, bool)

	// Subscribe returns a channel that receives state updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan FleetState

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan FleetState)
}
