// Package server exposes the fleet state over HTTP.
//
//   - Dashboard: the embedded HTML page at "/"
//   - REST API: JSON snapshot of the fleet at "/api/fleet"
//   - Server-Sent Events: live fleet updates at "/api/sse"
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
