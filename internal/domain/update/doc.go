// Package update orchestrates installing, activating, confirming and retiring
// bundle versions.
//
// The Manager owns the activation state (active and previous version). It is
// loaded lazily on first use, cached for the life of the process and written
// to disk before the host is told to serve a different root, so a crash
// between the two steps never leaves the file ahead of what was served.
//
// Installing and activating are separate steps:
//
//	mgr.Save(ctx, "1.2.0", payload) // extract + metadata, not active
//	mgr.Use("1.2.0")                // persist config, then reload host
//	mgr.MarkGood("1.2.0")           // host survived the new version
//	mgr.Prune()                     // drop everything but base/active/previous
//
// Invalid or unknown identifiers are logged no-ops. Save surfaces extraction
// and persistence failures and refuses the active or base version with
// ErrConflict; Use and MarkGood surface persistence failures.
package update
