// Package main is the entry point of bundled, the web bundle update daemon.
//
// bundled keeps downloaded web bundles on disk next to the bundle embedded in
// the host, switches which one the host serves, and tells renderers to
// reload. Payloads are pushed to it over the JSON API.
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - Optional YAML file named by BUNDLED_CONFIG
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	./bundled -port 8000 -root /var/lib/bundled/bundles
//
//	# Development mode (colored logs, debug level)
//	./bundled -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
