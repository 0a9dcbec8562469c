package bundle

import "errors"

var (
	// ErrNotFound means the referenced version has no directory.
	ErrNotFound = errors.New("bundle version not found")
	// ErrConflict means the operation targets the active or base version.
	ErrConflict = errors.New("bundle version is active or base")
	// ErrCorruptMetadata means a metadata record could not be read or parsed.
	ErrCorruptMetadata = errors.New("corrupt bundle metadata")
	// ErrExtraction means a payload could not be materialized on disk.
	ErrExtraction = errors.New("bundle extraction failed")
	// ErrPersistence means a config or metadata write failed.
	ErrPersistence = errors.New("bundle state persistence failed")
	// ErrInvalidVersion means an identifier cannot name a directory safely.
	ErrInvalidVersion = errors.New("invalid bundle version identifier")
	// ErrIncompatible means the version cannot be served by this host.
	ErrIncompatible = errors.New("bundle version incompatible with host")
)
