// Package config loads service configuration.
//
// Defaults are overlaid by an optional YAML file (BUNDLED_CONFIG) and then
// by environment variables:
//
//	PORT, HOST                       HTTP listener
//	BUNDLE_ROOT                      directory holding installed versions
//	BASE_VERSION, HOST_VERSION       identity of the built-in bundle and host
//	BASE_RELEASE_DATE                release date reported for base
//	EXTRACT_WORKERS                  parallel file writes per extraction
//	ENTRY_FILE                       file that must exist before activation
//	MAX_PAYLOAD_BYTES                request body limit for saves
//	HOST_PREFS_FILE                  where the active content root is persisted
//	LOG_LEVEL, LOG_DEV               logging
//	RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
