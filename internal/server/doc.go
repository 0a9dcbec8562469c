// Package server wires the bundle service together.
//
// NewServer builds, from configuration, the bundle store, payload extractor,
// host bridge, WebSocket hub and update manager, then mounts the JSON API,
// the reload stream, health and Prometheus endpoints on a gin router.
//
// Middleware order: request ID, logging, recovery, metrics, CORS, then rate
// limiting when enabled.
package server
