// Package version compares bundle version identifiers.
//
// Identifiers are split on '.' and '-' into segments. Segments that both parse
// as integers compare numerically. Any other pair compares by UTF-16 length
// first and then case-insensitively, so "beta" is greater than "rc". When every
// compared segment is equal the identifier with more segments wins.
//
// The length rule predates pre-release tags and orders "1.0-beta" above
// "1.0-rc". Installed bundles depend on it, so changing it needs a migration.
//
// Example Usage:
//
//	if version.IsGreater(candidate, active) {
//	    // candidate is newer
//	}
package version
