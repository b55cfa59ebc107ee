// Package fsutil implements the filesystem primitives shared by every
// higher-level subsystem: the FileEntry data model, a one-path metadata
// reader, a directory reader, sort comparators, a cycle-safe walker, and a
// network-filesystem probe. It is the lowest leaf in the dependency graph
// described in spec.md §2, grounded on the teacher's pkg/filesystem.
package fsutil

import "time"

// IconID is an opaque string handed to the (out-of-scope) icon producer.
// The only values this package assigns directly are the three reserved for
// symlinks; everything else is assigned by the caller.
type IconID string

const (
	// IconSymlinkDirectory marks a symlink that resolves to a directory.
	IconSymlinkDirectory IconID = "symlink-dir"
	// IconSymlinkFile marks a symlink that resolves to a regular file.
	IconSymlinkFile IconID = "symlink-file"
	// IconSymlinkBroken marks a symlink whose target could not be stat'd.
	IconSymlinkBroken IconID = "symlink-broken"
)

// FileEntry is one visible item in a directory listing, per spec.md §3.
// Instances are built once by ReadEntry or a volume implementation and are
// never mutated afterward; the streaming lister (internal/listing) runs no
// extended-metadata enrichment pass over them.
type FileEntry struct {
	Name        string
	Path        string
	IsDirectory bool
	IsSymlink   bool

	// IsSpecial marks a socket, FIFO, or device file: entries that the
	// write-op engine must skip rather than open, since opening a FIFO
	// blocks indefinitely.
	IsSpecial bool

	// Size is absent (nil) for directories, enforcing the invariant
	// "is_directory ⇒ size is absent".
	Size *uint64

	ModifiedAt time.Time
	CreatedAt  time.Time

	// AddedAt and OpenedAt are platform-extended fields. Nothing in this
	// module populates them; ReadExtendedTimes (extended_darwin.go /
	// extended_other.go) returns nil on every platform.
	AddedAt  *time.Time
	OpenedAt *time.Time

	Permissions uint32
	Owner       string
	Group       string

	IconID IconID

	// ExtendedMetadataLoaded reports whether AddedAt/OpenedAt have been
	// populated. No code in this module sets it, so it is always false.
	ExtendedMetadataLoaded bool

	// DeviceID and FileID identify the entry for cycle detection and
	// same-file checks; they are not part of the UI-facing contract but
	// travel with the entry because they come from the same stat call.
	DeviceID uint64
	FileID   uint64

	// Recursive aggregates, populated by the scanner (spec.md §3).
	RecursiveSize      *uint64
	RecursiveFileCount *uint64
	RecursiveDirCount  *uint64
}

// IsHidden reports whether the entry's name is dot-prefixed.
func (e *FileEntry) IsHidden() bool {
	return len(e.Name) > 0 && e.Name[0] == '.'
}

// DeviceInode identifies a filesystem object for cycle/same-file detection.
type DeviceInode struct {
	Device uint64
	Inode  uint64
}

// Key returns the (device, inode) pair for this entry.
func (e *FileEntry) Key() DeviceInode {
	return DeviceInode{Device: e.DeviceID, Inode: e.FileID}
}
