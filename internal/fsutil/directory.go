package fsutil

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

// ReadDirectoryNames opens a directory and returns its entry names without
// stat'ing them, mirroring the teacher's DirectoryContentsByPath
// (pkg/filesystem/directory.go) but deferring metadata collection to the
// caller so it can be interleaved with cancellation checks (spec.md §4.1).
func ReadDirectoryNames(path string) ([]string, error) {
	directory, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cmdrerrors.Wrap(cmdrerrors.NotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, cmdrerrors.Wrap(cmdrerrors.PermissionDenied, path, err)
		}
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}
	defer directory.Close()

	names, err := directory.Readdirnames(0)
	if err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}
	return names, nil
}

// ReadDirectory lists one directory into FileEntry values, per spec.md
// §4.1's "Algorithm": each entry is stat'ed individually (so that a
// permission-denied entry can be kept with minimal fields rather than
// aborting the whole listing), then sorted directories-first by the
// requested column. onEntry, if non-nil, is invoked after each entry is
// added (including a minimal entry whose stat failed) so a caller can report incremental progress and cooperatively
// cancel: it is called from the same goroutine, synchronously, before the
// next entry is read, and a false return stops the read early (the
// entries gathered so far are still returned, letting the caller decide
// whether a partial result matters, per spec.md §5's cooperative
// cancellation model).
func ReadDirectory(path string, by SortBy, order SortOrder, onEntry func(count int) bool) ([]*FileEntry, error) {
	names, err := ReadDirectoryNames(path)
	if err != nil {
		return nil, err
	}

	entries := make([]*FileEntry, 0, len(names))
	for i, name := range names {
		full := filepath.Join(path, name)
		entry, entryErr := ReadEntry(full)
		if entryErr != nil {
			// Permission denied (or any other per-entry error) on a single
			// entry does not fail the whole listing: keep a minimal entry,
			// per spec.md §4.1 "Failure".
			entry = &FileEntry{Name: name, Path: full}
		}
		entries = append(entries, entry)
		if onEntry != nil && !onEntry(i+1) {
			break
		}
	}

	SortEntries(entries, by, order)
	return entries, nil
}

// MaxFilenameWidth returns the length (in runes) of the longest name in
// entries, used to answer get_max_filename_width (spec.md §4.1).
func MaxFilenameWidth(entries []*FileEntry) int {
	max := 0
	for _, e := range entries {
		if n := len([]rune(e.Name)); n > max {
			max = n
		}
	}
	return max
}

// EnsureIsDirectory verifies that path exists and is a directory, wrapping
// OS errors into the closed taxonomy.
func EnsureIsDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cmdrerrors.Wrap(cmdrerrors.NotFound, path, err)
		}
		if os.IsPermission(err) {
			return cmdrerrors.Wrap(cmdrerrors.PermissionDenied, path, err)
		}
		return cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", path)
	}
	return nil
}
