package store

import (
	"sync"
)

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive updates via buffered channels. Updates are sent
// non-blocking; if a subscriber's buffer is full, the update is dropped for
// that subscriber.
type MemoryStore struct {
	mu     sync.RWMutex
	latest FleetState
	set    bool

	subMu       sync.RWMutex
	subscribers map[chan FleetState]struct{}
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[chan FleetState]struct{}),
	}
}

// Update stores state and notifies all subscribers.
func (m *MemoryStore) Update(state FleetState) {
	state = cloneState(state)

	m.mu.Lock()
	m.latest = state
	m.set = true
	m.mu.Unlock()

	m.notifySubscribers(state)
}

// Latest returns a copy of the current state.
func (m *MemoryStore) Latest() (FleetState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return FleetState{}, false
	}
	return cloneState(m.latest), true
}

// Subscribe creates a new subscription. The returned channel has a buffer of
// 100 messages.
//
// Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan FleetState {
	ch := make(chan FleetState, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan FleetState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *MemoryStore) notifySubscribers(state FleetState) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- state:
		default:
			// slow subscriber, drop
		}
	}
}

// cloneState copies the slice and map so callers cannot mutate stored state.
func cloneState(s FleetState) FleetState {
	out := s
	if s.Instances != nil {
		out.Instances = append([]InstanceRecord(nil), s.Instances...)
	}
	if s.Summary != nil {
		out.Summary = make(map[string]int, len(s.Summary))
		for k, v := range s.Summary {
			out.Summary[k] = v
		}
	}
	if s.Error != nil {
		msg := *s.Error
		out.Error = &msg
	}
	return out
}
