// Package bundle defines the data model shared by the bundle store, the
// payload extractor and the update manager.
//
// A version moves through these states:
//
//	unknown -> installed -> active (unconfirmed) -> active (confirmed) -> retired
//
// The base version is embedded in the host, never stored on disk and always
// treated as confirmed.
package bundle
