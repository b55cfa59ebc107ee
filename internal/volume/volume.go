// Package volume implements the uniform storage interface described in
// spec.md §4.4: a small closed set of concrete variants (Local POSIX, MTP,
// in-memory) behind one Go interface, generalized from the teacher's
// pkg/synchronization/endpoint/local.Endpoint (one type implementing a
// fixed protocol over a local root) per the "dynamic dispatch → closed
// variants" design note in spec.md §9.
package volume

import (
	"io"
	"time"

	"github.com/vdavid/cmdr-core/internal/fsutil"
)

// Kind identifies which of the three closed variants a Volume is.
type Kind int

const (
	KindLocal Kind = iota
	KindMTP
	KindMemory
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindMTP:
		return "mtp"
	case KindMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// SpaceInfo answers get_space_info (spec.md §4.4/§3.5).
type SpaceInfo struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// ConflictCandidate names one path that would collide if copied, reported
// in ScanResult.ConflictSample by a volume's ScanForCopy when
// ScanOptions.DestinationDir is set (ScanForConflicts returns bare names).
type ConflictCandidate struct {
	RelativePath     string
	SourceSize       uint64
	DestSize         uint64
	SourceModifiedAt time.Time
	DestModifiedAt   time.Time
}

// ScanResult is the pre-flight walk output described in spec.md §3. It is
// produced by a volume's own ScanForCopy; internal/writeop's scanner calls
// ScanForCopy once per source and merges the results.
type ScanResult struct {
	FileCount      uint64
	DirCount       uint64
	TotalBytes     uint64
	ConflictSample []ConflictCandidate
	ConflictTotal  int
}

// ScanOptions configures a ScanForCopy call.
type ScanOptions struct {
	// DestinationDir is where the scanned sources would land, used to
	// sample conflicts during the same walk rather than a second pass.
	DestinationDir string
	// MaxConflictSamples caps ConflictSample's length (spec.md §4.3: "default 50").
	MaxConflictSamples int
	// Cancelled, if non-nil, is polled between entries (spec.md §5:
	// "between entries for scan").
	Cancelled func() bool
}

// Volume is the uniform storage interface of spec.md §4.4. Errors returned
// from any method are drawn from the closed taxonomy in
// internal/cmdrerrors.
type Volume interface {
	// ID is a stable identifier used as a cache/lookup key; unlike Name it
	// is never shown to the user.
	ID() string
	Name() string
	Root() string

	// ListDirectory lists one directory, matching the shape of
	// internal/listing.DirectoryReader so a Volume's method value can be
	// passed directly to Lister.Start.
	ListDirectory(path string, onEntry func(count int) bool) ([]*fsutil.FileEntry, error)
	GetMetadata(path string) (*fsutil.FileEntry, error)
	Exists(path string) (bool, error)
	IsDirectory(path string) (bool, error)

	SupportsWatching() bool
	// LocalPath returns the concrete OS path backing path, if this volume
	// is backed by the real filesystem (ok=false for MTP/in-memory).
	LocalPath(path string) (resolved string, ok bool)

	CreateFile(path string) error
	CreateDirectory(path string) error
	Delete(path string) error
	Rename(from, to string, force bool) error

	SupportsExport() bool
	ScanForCopy(sources []string, opts ScanOptions) (*ScanResult, error)
	ExportToLocal(path, localDestination string) error
	ImportFromLocal(localSource, path string) error
	ScanForConflicts(destinationDir string, names []string) ([]string, error)

	GetSpaceInfo(path string) (SpaceInfo, error)

	SupportsStreaming() bool
	OpenReadStream(path string) (io.ReadCloser, error)
	WriteFromStream(path string, r io.Reader) error
}
