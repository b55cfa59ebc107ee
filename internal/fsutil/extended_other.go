//go:build !darwin

package fsutil

import (
	"os"
	"time"
)

// populateCreatedAt falls back to modification time on platforms that don't
// cheaply expose a file birth time, matching the teacher's practice of only
// surfacing platform-extended timestamps where the OS makes them available
// (see the darwin-only build in extended_darwin.go).
func populateCreatedAt(entry *FileEntry, info os.FileInfo) {
	entry.CreatedAt = entry.ModifiedAt
}

// ReadExtendedTimes is a no-op on platforms without a birth/added/opened
// time facility: AddedAt and OpenedAt are simply left unset, per
// SPEC_FULL.md §3.1.
func ReadExtendedTimes(path string) (addedAt, openedAt *time.Time) {
	return nil, nil
}
