// Package store owns the on-disk layout of installed bundle versions.
//
// # Directory Structure
//
//	<root>/
//	  ├── config.json            (activation state, owned by the update manager)
//	  ├── 1.2.0/
//	  │   ├── info.json          (metadata record)
//	  │   └── ...                (extracted bundle files)
//	  ├── 1.3.0-beta/
//	  └── .trash-1.1.0-<uuid>/   (retired version awaiting removal)
//
// Dot-prefixed entries and *.tmp files are store bookkeeping and never listed.
// The base version is synthesized from HostInfo and has no directory.
package store
