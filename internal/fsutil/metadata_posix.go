//go:build !windows

package fsutil

import (
	"os"
	"syscall"
)

// platformDeviceInode extracts the (device, inode) pair from a POSIX
// os.FileInfo, grounded on the teacher's device_posix.go.
func platformDeviceInode(info os.FileInfo) (device, inode uint64, ok bool) {
	stat, okAssert := info.Sys().(*syscall.Stat_t)
	if !okAssert {
		return 0, 0, false
	}
	return uint64(stat.Dev), uint64(stat.Ino), true
}

// platformOwnership extracts the owning uid/gid, grounded on the teacher's
// ownership_posix.go GetOwnership.
func platformOwnership(info os.FileInfo) (uid, gid int, ok bool) {
	stat, okAssert := info.Sys().(*syscall.Stat_t)
	if !okAssert {
		return 0, 0, false
	}
	return int(stat.Uid), int(stat.Gid), true
}
