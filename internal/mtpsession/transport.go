// Package mtpsession implements the MTP connection core described in
// spec.md §4.6: a per-device session registry (with no path→handle cache),
// a per-directory listing cache with a short TTL, and an event loop that
// turns device notifications into directory diffs. Device protocol access
// itself is abstracted behind the Transport interface so that this
// package's caching, debouncing, and serialization logic — the part the
// spec actually asks for — can be built and tested without a physical
// device attached, the same way the teacher's remote synchronization
// endpoint (pkg/synchronization/endpoint/remote) treats the wire protocol
// as a pluggable stream underneath a fixed session contract.
package mtpsession

import (
	"context"
	"io"
	"time"
)

// ObjectInfo is the raw information a Transport returns for one object
// (file or folder) on the device.
type ObjectInfo struct {
	Name        string
	IsDirectory bool
	Size        uint64
	ModifiedAt  time.Time
}

// EventKind identifies one of the three device notifications named in
// spec.md §4.6.
type EventKind int

const (
	ObjectAdded EventKind = iota
	ObjectRemoved
	ObjectInfoChanged
)

// Event is one device notification, reported with the storage-relative
// parent directory path it affects so the event loop knows which cached
// listing to invalidate and reload.
type Event struct {
	Kind       EventKind
	ParentPath string
	ObjectName string
}

// Transport is the low-level, per-storage-pool protocol surface a real
// MTP library implementation provides. Paths are storage-relative (no
// leading `/mtp-volume/...` prefix — that translation happens in
// internal/volume's MTP variant, per spec.md §4.4).
type Transport interface {
	List(ctx context.Context, storageID uint32, path string) ([]ObjectInfo, error)
	CreateFile(ctx context.Context, storageID uint32, path string) error
	CreateDirectory(ctx context.Context, storageID uint32, path string) error
	Delete(ctx context.Context, storageID uint32, path string) error
	Rename(ctx context.Context, storageID uint32, from, to string) error
	Read(ctx context.Context, storageID uint32, path string) (io.ReadCloser, error)
	Write(ctx context.Context, storageID uint32, path string, r io.Reader) error
	SpaceInfo(ctx context.Context, storageID uint32) (totalBytes, availableBytes uint64, err error)

	// PollEvents blocks until at least one event is available or ctx is
	// done, matching spec.md §5's "MTP engine suspends on the device event
	// channel."
	PollEvents(ctx context.Context) ([]Event, error)
}
