package volume

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/mtpsession"
)

// mtpVolume implements Volume against one device storage pool, translating
// the virtual `/mtp-volume/{device}/{storage}/...` path shape of spec.md
// §4.4 into the storage-relative paths internal/mtpsession.Device expects,
// grounded on original_source/.../file_system/volume/mtp.rs's to_mtp_path
// translation.
type mtpVolume struct {
	id, name  string
	deviceID  string
	storageID string
	root      string
	device    *mtpsession.Device
}

// NewMTP creates a Volume over one already-opened device session.
// storageID is carried as a string in the virtual path (spec.md §4.4),
// even though the underlying transport indexes storage pools numerically.
func NewMTP(id, name, deviceID, storageID string, device *mtpsession.Device) Volume {
	return &mtpVolume{
		id:        id,
		name:      name,
		deviceID:  deviceID,
		storageID: storageID,
		root:      path.Join("/mtp-volume", deviceID, storageID),
		device:    device,
	}
}

func (v *mtpVolume) ID() string   { return v.id }
func (v *mtpVolume) Name() string { return v.name }
func (v *mtpVolume) Root() string { return v.root }

// toStoragePath converts a virtual or bare path into a storage-relative
// path: an absolute virtual path under this volume's root has the root
// stripped, and any other path only loses a leading "/". An mtp:// URL is
// not recognized and passes through as-is.
func (v *mtpVolume) toStoragePath(p string) string {
	if strings.HasPrefix(p, v.root) {
		rel := strings.TrimPrefix(p, v.root)
		return strings.TrimPrefix(rel, "/")
	}
	return strings.TrimPrefix(p, "/")
}

func (v *mtpVolume) ListDirectory(p string, onEntry func(count int) bool) ([]*fsutil.FileEntry, error) {
	entries, err := v.device.List(context.Background(), v.toStoragePath(p))
	if err != nil {
		return nil, err
	}
	if onEntry != nil {
		onEntry(len(entries))
	}
	return entries, nil
}

func (v *mtpVolume) GetMetadata(p string) (*fsutil.FileEntry, error) {
	return v.device.GetMetadata(context.Background(), v.toStoragePath(p))
}

func (v *mtpVolume) Exists(p string) (bool, error) {
	_, err := v.GetMetadata(p)
	if err == nil {
		return true, nil
	}
	if cmdrerrors.Is(err, cmdrerrors.NotFound) {
		return false, nil
	}
	return false, err
}

func (v *mtpVolume) IsDirectory(p string) (bool, error) {
	entry, err := v.GetMetadata(p)
	if err != nil {
		return false, err
	}
	return entry.IsDirectory, nil
}

func (v *mtpVolume) SupportsWatching() bool { return false }

func (v *mtpVolume) LocalPath(p string) (string, bool) { return "", false }

func (v *mtpVolume) CreateFile(p string) error {
	return v.device.CreateFile(context.Background(), v.toStoragePath(p))
}

func (v *mtpVolume) CreateDirectory(p string) error {
	return v.device.CreateDirectory(context.Background(), v.toStoragePath(p))
}

func (v *mtpVolume) Delete(p string) error {
	return v.device.Delete(context.Background(), v.toStoragePath(p))
}

func (v *mtpVolume) Rename(from, to string, force bool) error {
	if !force {
		if exists, _ := v.Exists(to); exists {
			return cmdrerrors.WrapPaths(cmdrerrors.AlreadyExists, from, to, nil)
		}
	}
	return v.device.Rename(context.Background(), v.toStoragePath(from), v.toStoragePath(to))
}

// SupportsExport is true: a non-local volume is the side the write-op
// engine calls export_to_local/import_from_local on (spec.md §4.4).
func (v *mtpVolume) SupportsExport() bool { return true }

func (v *mtpVolume) ScanForCopy(sources []string, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}
	var walk func(p string) error
	walk = func(p string) error {
		if opts.Cancelled != nil && opts.Cancelled() {
			return cmdrerrors.New(cmdrerrors.Cancelled, "scan cancelled")
		}
		entries, err := v.ListDirectory(p, nil)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDirectory {
				result.DirCount++
				if err := walk(path.Join(p, e.Name)); err != nil {
					return err
				}
				continue
			}
			result.FileCount++
			if e.Size != nil {
				result.TotalBytes += *e.Size
			}
		}
		return nil
	}
	for _, source := range sources {
		if err := walk(source); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (v *mtpVolume) ExportToLocal(p, localDestination string) error {
	r, err := v.OpenReadStream(p)
	if err != nil {
		return err
	}
	defer r.Close()
	data, readErr := io.ReadAll(r)
	if readErr != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, p, readErr)
	}
	if err := writeLocalFile(localDestination, data); err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, localDestination, err)
	}
	return nil
}

func (v *mtpVolume) ImportFromLocal(localSource, p string) error {
	data, err := readLocalFile(localSource)
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, localSource, err)
	}
	return v.WriteFromStream(p, bytesReader(data))
}

// ScanForConflicts lists destinationDir once and checks it against names,
// avoiding a per-name GetMetadata round trip (spec.md §4.4's rationale for
// giving volumes their own conflict-sampling method rather than making the
// write-op engine stat every candidate individually).
func (v *mtpVolume) ScanForConflicts(destinationDir string, names []string) ([]string, error) {
	entries, err := v.ListDirectory(destinationDir, nil)
	if err != nil {
		if cmdrerrors.Is(err, cmdrerrors.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	existing := make(map[string]bool, len(entries))
	for _, e := range entries {
		existing[e.Name] = true
	}
	var colliding []string
	for _, name := range names {
		if existing[name] {
			colliding = append(colliding, name)
		}
	}
	return colliding, nil
}

func (v *mtpVolume) GetSpaceInfo(p string) (SpaceInfo, error) {
	total, available, err := v.device.SpaceInfo(context.Background())
	if err != nil {
		return SpaceInfo{}, cmdrerrors.Wrap(cmdrerrors.IoError, p, err)
	}
	return SpaceInfo{TotalBytes: total, AvailableBytes: available}, nil
}

func (v *mtpVolume) SupportsStreaming() bool { return true }

func (v *mtpVolume) OpenReadStream(p string) (io.ReadCloser, error) {
	return v.device.Read(context.Background(), v.toStoragePath(p))
}

func (v *mtpVolume) WriteFromStream(p string, r io.Reader) error {
	return v.device.Write(context.Background(), v.toStoragePath(p), r)
}
