//go:build linux

package fsutil

import (
	"golang.org/x/sys/unix"
)

// networkFilesystemMagics lists the statfs f_type values that identify a
// network filesystem, grounded on the teacher's format_statfs_linux.go
// (which performs the equivalent check for NFS specifically, here
// generalized to the other common network filesystem types so that the
// write-op engine's per-file strategy selection in spec.md §4.2 can pick
// the chunked network-copy path for any of them).
var networkFilesystemMagics = map[int64]bool{
	int64(unix.NFS_SUPER_MAGIC): true,
	0xFF534D42:                  true, // CIFS_MAGIC_NUMBER
	0x517B:                      true, // SMB_SUPER_MAGIC
	0x65735546:                  true, // FUSE_SUPER_MAGIC (network-backed FUSE mounts, e.g. sshfs/rclone mount)
}

// IsNetworkFilesystem reports whether path resides on a network filesystem,
// used by the write-op engine's per-file strategy selection (spec.md §4.2).
func IsNetworkFilesystem(path string) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false, err
	}
	return networkFilesystemMagics[int64(stat.Type)], nil
}

// SpaceInfo reports total and available bytes for the filesystem containing
// path, used by internal/volume's get_space_info (spec.md §4.4).
func SpaceInfo(path string) (totalBytes, availableBytes uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	blockSize := uint64(stat.Bsize)
	return stat.Blocks * blockSize, stat.Bavail * blockSize, nil
}
