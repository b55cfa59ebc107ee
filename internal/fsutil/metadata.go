package fsutil

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

// ReadEntry builds one FileEntry from one path, following the symlink-aware
// algorithm in spec.md §4.1: broken symlinks become minimal entries with
// IconID IconSymlinkBroken rather than an error.
func ReadEntry(path string) (*FileEntry, error) {
	lstat, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cmdrerrors.Wrap(cmdrerrors.NotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, cmdrerrors.Wrap(cmdrerrors.PermissionDenied, path, err)
		}
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}

	entry := &FileEntry{
		Name: filepath.Base(path),
		Path: path,
	}

	isSymlink := lstat.Mode()&os.ModeSymlink != 0
	entry.IsSymlink = isSymlink

	target := lstat
	if isSymlink {
		stat, statErr := os.Stat(path)
		if statErr != nil {
			// Broken symlink: keep a minimal entry rather than erroring,
			// per spec.md §4.1.
			entry.IconID = IconSymlinkBroken
			entry.ModifiedAt = lstat.ModTime()
			entry.Permissions = uint32(lstat.Mode().Perm())
			populateDeviceInode(entry, lstat)
			populateOwnership(entry, lstat)
			return entry, nil
		}
		target = stat
	}

	entry.IsDirectory = target.IsDir()
	entry.IsSpecial = target.Mode()&(os.ModeSocket|os.ModeNamedPipe|os.ModeDevice) != 0
	if !entry.IsDirectory {
		size := uint64(target.Size())
		entry.Size = &size
	}
	entry.ModifiedAt = target.ModTime()
	entry.Permissions = uint32(target.Mode().Perm())

	populateDeviceInode(entry, target)
	populateOwnership(entry, target)
	populateCreatedAt(entry, target)

	switch {
	case isSymlink && entry.IsDirectory:
		entry.IconID = IconSymlinkDirectory
	case isSymlink:
		entry.IconID = IconSymlinkFile
	}

	return entry, nil
}

// populateDeviceInode fills in the device/inode pair used for cycle and
// same-file detection, grounded on the teacher's device_posix.go.
func populateDeviceInode(entry *FileEntry, info os.FileInfo) {
	device, inode, ok := platformDeviceInode(info)
	if ok {
		entry.DeviceID = device
		entry.FileID = inode
	}
}

// populateOwnership fills in owner/group names via the shared TTL cache,
// grounded on the teacher's ownership_posix.go GetOwnership plus the
// owner/group name cache described in spec.md §9 ("Shared-state caches").
func populateOwnership(entry *FileEntry, info os.FileInfo) {
	uid, gid, ok := platformOwnership(info)
	if !ok {
		return
	}
	entry.Owner = lookupUserName(uid)
	entry.Group = lookupGroupName(gid)
}

// SameFile reports whether two paths resolve to the same device+inode,
// used by the write-op engine's pre-flight "copy-over-self" check
// (spec.md §4.2, error SameFile in §7).
func SameFile(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, errors.Wrapf(err, "unable to stat %s", a)
	}
	infoB, err := os.Stat(b)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "unable to stat %s", b)
	}
	da, ia, ok := platformDeviceInode(infoA)
	if !ok {
		return os.SameFile(infoA, infoB), nil
	}
	db, ib, _ := platformDeviceInode(infoB)
	return da == db && ia == ib, nil
}
