// Package store keeps the latest fleet state and fans updates out to
// subscribers.
//
// The main components are:
//
//   - [Store]: interface for publishing and subscribing to fleet state
//   - [MemoryStore]: in-memory implementation with pub/sub
//   - [FleetState]: storage representation of one poll, plus lifecycle phase
//
// Subscribers receive updates via channels with non-blocking sends: a slow
// subscriber misses updates rather than stalling the poller.
package store
