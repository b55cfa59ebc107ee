//go:build darwin

package fsutil

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// populateCreatedAt surfaces the real file birth time on darwin via the
// underlying stat structure's Birthtimespec, grounded on the teacher's
// darwin-specific metadata handling (pkg/filesystem/directory_metadata_posix.go).
func populateCreatedAt(entry *FileEntry, info os.FileInfo) {
	stat, ok := info.Sys().(*unix.Stat_t)
	if !ok {
		entry.CreatedAt = entry.ModifiedAt
		return
	}
	entry.CreatedAt = time.Unix(stat.Birthtimespec.Sec, stat.Birthtimespec.Nsec)
}

// ReadExtendedTimes is the platform hook for macOS added/last-opened
// timestamps. It does not read them: it always returns nil, nil, so
// AddedAt and OpenedAt stay unset on darwin as on every other platform.
func ReadExtendedTimes(path string) (addedAt, openedAt *time.Time) {
	return nil, nil
}
