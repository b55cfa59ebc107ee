//go:build !linux && !darwin

package fsutil

// IsNetworkFilesystem conservatively reports false on platforms without a
// statfs-based probe wired up (spec.md §5: "network filesystem detection
// uses a short timeout" — here the timeout is moot since there's no probe
// to run at all, so the write-op engine falls back to its default copy
// strategy).
func IsNetworkFilesystem(path string) (bool, error) {
	return false, nil
}

// SpaceInfo is unavailable without a platform-specific probe; callers
// should treat a zero total as "unknown" rather than "no space."
func SpaceInfo(path string) (totalBytes, availableBytes uint64, err error) {
	return 0, 0, nil
}
