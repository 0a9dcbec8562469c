// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Components take a plain *zap.Logger; the service builds one Logger at
// startup and hands out named children with Component.
//
// Example Usage:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	st, err := store.New(cfg.Bundles.Root, host, logger.Component("store"))
package logging
