//go:build darwin

package fsutil

import (
	"golang.org/x/sys/unix"
)

// networkFilesystemTypeNames lists the statfs f_fstypename prefixes that
// identify a network filesystem on darwin, grounded on the teacher's
// format_darwin.go metadataRepresentsAPFS/HFS byte-prefix comparison
// pattern, generalized from "is this APFS/HFS" to "is this a network fs".
var networkFilesystemTypeNames = []string{"nfs", "smbfs", "afpfs", "webdav"}

// IsNetworkFilesystem reports whether path resides on a network filesystem.
func IsNetworkFilesystem(path string) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false, err
	}
	name := fstypeString(stat.Fstypename[:])
	for _, prefix := range networkFilesystemTypeNames {
		if hasPrefix(name, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// SpaceInfo reports total and available bytes for the filesystem containing path.
func SpaceInfo(path string) (totalBytes, availableBytes uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	blockSize := uint64(stat.Bsize)
	return stat.Blocks * blockSize, stat.Bavail * blockSize, nil
}

func fstypeString(raw []int8) string {
	buf := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b == 0 {
			break
		}
		buf = append(buf, byte(b))
	}
	return string(buf)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
