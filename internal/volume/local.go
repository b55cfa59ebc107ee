package volume

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/fsutil"
)

// localVolume implements Volume over a real OS root directory, grounded on
// the teacher's local synchronization endpoint (pkg/synchronization/
// endpoint/local/endpoint.go): one Go type, one root, paths resolved
// relative to it, per spec.md §4.4 "Local POSIX".
type localVolume struct {
	id   string
	name string
	root string
}

// NewLocal creates a Volume rooted at root. Absolute paths starting with
// root pass through unchanged; any other path is joined to root, matching
// spec.md §4.4's Local POSIX variant description.
func NewLocal(id, name, root string) Volume {
	return &localVolume{id: id, name: name, root: filepath.Clean(root)}
}

func (v *localVolume) ID() string   { return v.id }
func (v *localVolume) Name() string { return v.name }
func (v *localVolume) Root() string { return v.root }

// resolve maps a volume-relative (or already-absolute, already-rooted)
// path to a concrete OS path.
func (v *localVolume) resolve(path string) string {
	if strings.HasPrefix(path, v.root) {
		return path
	}
	return filepath.Join(v.root, path)
}

func (v *localVolume) ListDirectory(path string, onEntry func(count int) bool) ([]*fsutil.FileEntry, error) {
	return fsutil.ReadDirectory(v.resolve(path), fsutil.SortByName, fsutil.SortAscending, onEntry)
}

func (v *localVolume) GetMetadata(path string) (*fsutil.FileEntry, error) {
	return fsutil.ReadEntry(v.resolve(path))
}

func (v *localVolume) Exists(path string) (bool, error) {
	_, err := os.Lstat(v.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "unable to stat %s", path)
}

func (v *localVolume) IsDirectory(path string) (bool, error) {
	info, err := os.Stat(v.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "unable to stat %s", path)
	}
	return info.IsDir(), nil
}

func (v *localVolume) SupportsWatching() bool { return true }

func (v *localVolume) LocalPath(path string) (string, bool) {
	return v.resolve(path), true
}

func (v *localVolume) CreateFile(path string) error {
	resolved := v.resolve(path)
	f, err := os.OpenFile(resolved, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return cmdrerrors.Wrap(cmdrerrors.AlreadyExists, resolved, err)
		}
		if os.IsPermission(err) {
			return cmdrerrors.Wrap(cmdrerrors.PermissionDenied, resolved, err)
		}
		return cmdrerrors.Wrap(cmdrerrors.IoError, resolved, err)
	}
	return f.Close()
}

func (v *localVolume) CreateDirectory(path string) error {
	resolved := v.resolve(path)
	if err := os.Mkdir(resolved, 0o755); err != nil {
		if os.IsExist(err) {
			return cmdrerrors.Wrap(cmdrerrors.AlreadyExists, resolved, err)
		}
		if os.IsPermission(err) {
			return cmdrerrors.Wrap(cmdrerrors.PermissionDenied, resolved, err)
		}
		return cmdrerrors.Wrap(cmdrerrors.IoError, resolved, err)
	}
	return nil
}

func (v *localVolume) Delete(path string) error {
	resolved := v.resolve(path)
	if err := os.RemoveAll(resolved); err != nil {
		if os.IsPermission(err) {
			return cmdrerrors.Wrap(cmdrerrors.PermissionDenied, resolved, err)
		}
		return cmdrerrors.Wrap(cmdrerrors.IoError, resolved, err)
	}
	return nil
}

func (v *localVolume) Rename(from, to string, force bool) error {
	resolvedFrom, resolvedTo := v.resolve(from), v.resolve(to)
	if !force {
		if exists, _ := v.Exists(to); exists {
			return cmdrerrors.WrapPaths(cmdrerrors.AlreadyExists, resolvedFrom, resolvedTo, nil)
		}
	}
	if err := os.Rename(resolvedFrom, resolvedTo); err != nil {
		if os.IsPermission(err) {
			return cmdrerrors.Wrap(cmdrerrors.PermissionDenied, resolvedFrom, err)
		}
		return cmdrerrors.WrapPaths(cmdrerrors.IoError, resolvedFrom, resolvedTo, err)
	}
	return nil
}

// SupportsExport is false for Local: the cross-volume copy strategy in
// spec.md §4.4 only calls export_to_local/import_from_local on the
// *non-local* side of a transfer.
func (v *localVolume) SupportsExport() bool { return false }

func (v *localVolume) ScanForCopy(sources []string, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}
	visited := fsutil.NewVisitedSet()
	maxSamples := opts.MaxConflictSamples
	if maxSamples <= 0 {
		maxSamples = 50
	}
	for _, source := range sources {
		err := fsutil.Walk(v.resolve(source), visited, func(entry *fsutil.FileEntry) error {
			if opts.Cancelled != nil && opts.Cancelled() {
				return fsutil.ErrSkipAll
			}
			switch {
			case entry.IsDirectory:
				result.DirCount++
			case entry.IsSpecial:
				// Sockets, FIFOs, and device files are skipped by the copy
				// engine, so they don't count toward the materialized tree.
			default:
				result.FileCount++
				if entry.Size != nil {
					result.TotalBytes += *entry.Size
				}
			}
			if opts.DestinationDir != "" {
				destPath := filepath.Join(opts.DestinationDir, strings.TrimPrefix(entry.Path, v.resolve(source)))
				if destEntry, err := fsutil.ReadEntry(destPath); err == nil {
					result.ConflictTotal++
					if len(result.ConflictSample) < maxSamples {
						candidate := ConflictCandidate{
							RelativePath:     entry.Path,
							DestModifiedAt:   destEntry.ModifiedAt,
							SourceModifiedAt: entry.ModifiedAt,
						}
						if entry.Size != nil {
							candidate.SourceSize = *entry.Size
						}
						if destEntry.Size != nil {
							candidate.DestSize = *destEntry.Size
						}
						result.ConflictSample = append(result.ConflictSample, candidate)
					}
				}
			}
			return nil
		})
		if err != nil && err != fsutil.ErrSkipAll {
			return nil, err
		}
		if opts.Cancelled != nil && opts.Cancelled() {
			return nil, cmdrerrors.New(cmdrerrors.Cancelled, "scan cancelled")
		}
	}
	return result, nil
}

// ExportToLocal and ImportFromLocal always return a NotSupported error for
// Local: the write-op engine never calls them on a local volume (spec.md §4.4's cross-volume
// strategy only invokes export/import on the non-local side).
func (v *localVolume) ExportToLocal(path, localDestination string) error {
	return cmdrerrors.New(cmdrerrors.NotSupported, "local volumes are never exported from")
}

func (v *localVolume) ImportFromLocal(localSource, path string) error {
	return cmdrerrors.New(cmdrerrors.NotSupported, "local volumes are never imported into")
}

func (v *localVolume) ScanForConflicts(destinationDir string, names []string) ([]string, error) {
	var colliding []string
	for _, name := range names {
		if exists, err := v.Exists(filepath.Join(destinationDir, name)); err == nil && exists {
			colliding = append(colliding, name)
		}
	}
	return colliding, nil
}

func (v *localVolume) GetSpaceInfo(path string) (SpaceInfo, error) {
	total, available, err := fsutil.SpaceInfo(v.resolve(path))
	if err != nil {
		return SpaceInfo{}, errors.Wrapf(err, "unable to read space info for %s", path)
	}
	return SpaceInfo{TotalBytes: total, AvailableBytes: available}, nil
}

func (v *localVolume) SupportsStreaming() bool { return true }

func (v *localVolume) OpenReadStream(path string) (io.ReadCloser, error) {
	resolved := v.resolve(path)
	f, err := os.Open(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cmdrerrors.Wrap(cmdrerrors.NotFound, resolved, err)
		}
		if os.IsPermission(err) {
			return nil, cmdrerrors.Wrap(cmdrerrors.PermissionDenied, resolved, err)
		}
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, resolved, err)
	}
	return f, nil
}

func (v *localVolume) WriteFromStream(path string, r io.Reader) error {
	resolved := v.resolve(path)
	f, err := os.Create(resolved)
	if err != nil {
		if os.IsPermission(err) {
			return cmdrerrors.Wrap(cmdrerrors.PermissionDenied, resolved, err)
		}
		return cmdrerrors.Wrap(cmdrerrors.IoError, resolved, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, resolved, err)
	}
	return nil
}
