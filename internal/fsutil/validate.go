package fsutil

import (
	"strings"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

const (
	// MaxNameBytes is the filename length limit in bytes (APFS/HFS+);
	// ValidateFilename rejects names of this length or longer.
	MaxNameBytes = 255
	// MaxPathBytes is the full path length limit in bytes (macOS PATH_MAX);
	// ValidatePathLength rejects paths of this length or longer.
	MaxPathBytes = 1024
)

// ValidateFilename validates a single filename component for use on this
// platform: non-empty after trimming, no disallowed characters (`/` and
// NUL), and under MaxNameBytes. Grounded on
// original_source/.../file_system/validation.rs, which this module's
// per-path-component validator directly translates into Go idiom.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return cmdrerrors.New(cmdrerrors.NotSupported, "name can't be empty")
	}
	for _, r := range name {
		if r == '/' {
			return cmdrerrors.New(cmdrerrors.NotSupported, "name contains a disallowed character: /")
		}
		if r == 0 {
			return cmdrerrors.New(cmdrerrors.NotSupported, "name contains a disallowed character: NUL")
		}
	}
	if len(name) >= MaxNameBytes {
		return &cmdrerrors.Error{
			Code:    cmdrerrors.NameTooLong,
			Path:    name,
			Message: "name exceeds the maximum byte length",
		}
	}
	return nil
}

// ValidatePathLength validates that a full path doesn't exceed the
// filesystem path length limit, grounded on the same original_source
// validation.rs behavior.
func ValidatePathLength(path string) error {
	if len(path) >= MaxPathBytes {
		return &cmdrerrors.Error{
			Code:    cmdrerrors.PathTooLong,
			Path:    path,
			Message: "path exceeds the maximum byte length",
		}
	}
	return nil
}
