// Package core implements the facade described in SPEC_FULL.md §0: the
// command surface and event channels of spec.md §6, wiring the listing,
// volume, write-op, viewer, MTP session, and watch-bridge packages
// together behind one entry point. It is grounded on the teacher's
// pkg/synchronization.Manager: a process-wide registry object constructed
// once, handed a root logger, and exposing synchronous methods that start
// background work and return identifiers immediately.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vdavid/cmdr-core/internal/config"
	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/listing"
	"github.com/vdavid/cmdr-core/internal/logging"
	"github.com/vdavid/cmdr-core/internal/mtpsession"
	"github.com/vdavid/cmdr-core/internal/viewer"
	"github.com/vdavid/cmdr-core/internal/volume"
	"github.com/vdavid/cmdr-core/internal/watchbridge"
	"github.com/vdavid/cmdr-core/internal/writeop"
)

// Core is the single object a UI/IPC layer talks to. Every exported method
// corresponds to one entry in spec.md §6's command surface.
type Core struct {
	logger *logging.Logger
	config *config.Config

	volumes *volumeRegistry

	listingCache *listing.Cache
	lister       *listing.Lister

	writeEngine *writeop.Engine

	opsMu      sync.Mutex
	operations map[string]*writeop.WriteOperation
	previews   map[string]*writeop.ScanPreview

	viewer *viewer.Viewer

	mtpRegistry *mtpsession.Registry

	localWatcher *watchbridge.LocalWatcher
}

// New constructs a Core from cfg (nil falls back to config.Default()) and
// a root logger (nil is fine; every subsystem logger is nil-safe). It
// registers no volumes — callers add the default local volume and any
// others via RegisterLocalVolume/RegisterMemoryVolume/OpenMTPDevice.
func New(cfg *config.Config, logger *logging.Logger) *Core {
	if cfg == nil {
		cfg = config.Default()
	}

	listingCache := listing.NewCache()
	c := &Core{
		logger:       logger,
		config:       cfg,
		volumes:      newVolumeRegistry(),
		listingCache: listingCache,
		lister:       listing.NewLister(listingCache, logger.Sublogger("listing"), cfg.Listing.CancellationPollInterval),
		writeEngine:  writeop.NewEngine(logger.Sublogger("writeop")),
		operations:   make(map[string]*writeop.WriteOperation),
		previews:     make(map[string]*writeop.ScanPreview),
		viewer: viewer.NewViewer(viewer.Config{
			FullLoadThresholdBytes:    cfg.Viewer.FullLoadThresholdBytes,
			LineIndexCheckpointStride: cfg.Viewer.LineIndexCheckpointStride,
			ByteSeekBackscanBytes:     cfg.Viewer.ByteSeekBackscanBytes,
		}),
		mtpRegistry: mtpsession.NewRegistry(logger.Sublogger("mtp"), cfg.MTP.ListingCacheTTL, cfg.MTP.DebounceWindow),
	}
	c.localWatcher = watchbridge.NewLocalWatcher(localDirectoryLister{}, cfg.Watch.LocalDebounceWindow, logger.Sublogger("watch"))
	go c.localWatcher.Run()
	return c
}

// localDirectoryLister adapts fsutil.ReadDirectory to watchbridge's minimal
// DirectoryLister seam for the shared local watcher, rather than routing
// every poll through a specific volume's ListDirectory (the watcher polls
// by real OS path, which every local volume resolves identically).
type localDirectoryLister struct{}

func (localDirectoryLister) ListDirectory(path string, onEntry func(count int) bool) ([]*fsutil.FileEntry, error) {
	return fsutil.ReadDirectory(path, fsutil.SortByName, fsutil.SortAscending, onEntry)
}

// RegisterLocalVolume implements the administrative half of §4.4's Local
// POSIX variant: adds a volume backed by a real directory tree. The first
// volume registered on a Core becomes its default.
func (c *Core) RegisterLocalVolume(id, name, root string) {
	c.volumes.register(volume.NewLocal(id, name, root))
}

// RegisterMemoryVolume adds an in-memory volume, per §4.4's In-memory variant.
func (c *Core) RegisterMemoryVolume(id, name string, quotaBytes uint64) {
	c.volumes.register(volume.NewMemory(id, name, quotaBytes))
}

// OpenMTPDevice opens an MTP device session and registers its volume, per
// §4.6. The device's event loop runs until CloseMTPDevice or Shutdown
// closes the session.
func (c *Core) OpenMTPDevice(deviceID string, storageID uint32, transport mtpsession.Transport) volume.Volume {
	device := c.mtpRegistry.Open(context.Background(), deviceID, storageID, transport)
	v := volume.NewMTP("mtp-"+deviceID, "MTP: "+deviceID, deviceID, fmt.Sprintf("%d", storageID), device)
	c.volumes.register(v)
	return v
}

// CloseMTPDevice closes a device session and removes its volume.
func (c *Core) CloseMTPDevice(deviceID string) error {
	c.volumes.unregister("mtp-" + deviceID)
	return c.mtpRegistry.Close(deviceID)
}

// ---- Volumes (spec.md §6 "Volumes") ----

// ListVolumes implements list_volumes.
func (c *Core) ListVolumes() []volume.Volume { return c.volumes.list() }

// GetDefaultVolumeID implements get_default_volume_id.
func (c *Core) GetDefaultVolumeID() (string, bool) { return c.volumes.defaultVolumeID() }

// FindContainingVolume implements find_containing_volume.
func (c *Core) FindContainingVolume(path string) (volume.Volume, error) {
	return c.volumes.findContaining(path)
}

// GetVolumeSpace implements get_volume_space.
func (c *Core) GetVolumeSpace(path string) (volume.SpaceInfo, error) {
	return c.volumes.getSpace(path)
}

// Volume resolves a volume by id, returning the same error shape every
// other volume-facing command uses for an unknown id.
func (c *Core) Volume(id string) (volume.Volume, error) {
	v, ok := c.volumes.get(id)
	if !ok {
		return nil, unknownVolumeError(id)
	}
	return v, nil
}

// Shutdown stops background workers owned directly by Core (the shared
// local watcher and every open MTP device's event loop). It does not
// cancel in-flight listings, write operations, or viewer sessions —
// callers that need a clean stop should cancel those individually first.
func (c *Core) Shutdown() {
	c.localWatcher.Close()
	c.mtpRegistry.CloseAll()
}

// WatchInterval exposes the configured local debounce window, used by
// cmd/cmdr-core to report the effective poll cadence.
func (c *Core) WatchInterval() time.Duration {
	return c.config.Watch.LocalDebounceWindow
}

// Diffs returns the channel on which directory-diff events from the local
// watcher are delivered, per spec.md §6's "directory-diff" channel.
func (c *Core) Diffs() <-chan watchbridge.DirectoryDiff { return c.localWatcher.Diffs() }

// WatchLocalPath registers path with the shared local watcher so its
// future changes appear on Diffs().
func (c *Core) WatchLocalPath(path string) error { return c.localWatcher.Watch(path) }

// UnwatchLocalPath stops tracking path on the shared local watcher.
func (c *Core) UnwatchLocalPath(path string) { c.localWatcher.Unwatch(path) }
