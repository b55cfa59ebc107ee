package core

import (
	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/listing"
	"github.com/vdavid/cmdr-core/internal/viewer"
	"github.com/vdavid/cmdr-core/internal/writeop"
)

func unknownVolumeError(id string) error {
	return cmdrerrors.New(cmdrerrors.NotFound, "unknown volume: "+id)
}

// ---- Listings (spec.md §6 "Listings") ----

// ListDirectoryStartStreaming implements list_directory_start_streaming.
func (c *Core) ListDirectoryStartStreaming(volumeID, path string, by fsutil.SortBy, order fsutil.SortOrder) (string, <-chan listing.Event, error) {
	v, err := c.Volume(volumeID)
	if err != nil {
		return "", nil, err
	}
	listingID, events := c.lister.Start(volumeID, path, by, order, v.ListDirectory, v.Root())
	return listingID, events, nil
}

// ListDirectoryEnd implements list_directory_end.
func (c *Core) ListDirectoryEnd(listingID string) { c.lister.End(listingID) }

// CancelListing implements cancel_listing.
func (c *Core) CancelListing(listingID string) { c.lister.Cancel(listingID) }

// GetFileAt implements get_file_at.
func (c *Core) GetFileAt(listingID string, index int, includeHidden bool) (*fsutil.FileEntry, bool) {
	return c.listingCache.GetFileAt(listingID, index, includeHidden)
}

// GetFileRange implements get_file_range.
func (c *Core) GetFileRange(listingID string, start, end int, includeHidden bool) ([]*fsutil.FileEntry, bool) {
	return c.listingCache.GetFileRange(listingID, start, end, includeHidden)
}

// FindFileIndex implements find_file_index.
func (c *Core) FindFileIndex(listingID, name string, includeHidden bool) (int, bool) {
	return c.listingCache.FindFileIndex(listingID, name, includeHidden)
}

// GetTotalCount implements get_total_count.
func (c *Core) GetTotalCount(listingID string, includeHidden bool) (int, bool) {
	return c.listingCache.GetTotalCount(listingID, includeHidden)
}

// GetMaxFilenameWidth implements get_max_filename_width.
func (c *Core) GetMaxFilenameWidth(listingID string) (int, bool) {
	return c.listingCache.GetMaxFilenameWidth(listingID)
}

// ResortListing implements resort_listing.
func (c *Core) ResortListing(listingID string, by fsutil.SortBy, order fsutil.SortOrder) (*listing.ChangedIndices, bool) {
	return c.listingCache.Resort(listingID, by, order)
}

// ---- Write operations (spec.md §6 "Write operations") ----

// CopyFilesStart implements copy_files_start.
func (c *Core) CopyFilesStart(sourceVolumeID string, sources []string, destVolumeID, destDir string, cfg writeop.Config) (*writeop.WriteOperation, error) {
	sourceVol, err := c.Volume(sourceVolumeID)
	if err != nil {
		return nil, err
	}
	destVol, err := c.Volume(destVolumeID)
	if err != nil {
		return nil, err
	}
	op := c.writeEngine.StartCopy(sourceVol, sources, destVol, destDir, cfg)
	c.trackOperation(op)
	return op, nil
}

// MoveFilesStart implements move_files_start.
func (c *Core) MoveFilesStart(sourceVolumeID string, sources []string, destVolumeID, destDir string, cfg writeop.Config) (*writeop.WriteOperation, error) {
	sourceVol, err := c.Volume(sourceVolumeID)
	if err != nil {
		return nil, err
	}
	destVol, err := c.Volume(destVolumeID)
	if err != nil {
		return nil, err
	}
	op := c.writeEngine.StartMove(sourceVol, sources, destVol, destDir, cfg)
	c.trackOperation(op)
	return op, nil
}

// DeleteFilesStart implements delete_files_start.
func (c *Core) DeleteFilesStart(sourceVolumeID string, sources []string, cfg writeop.Config) (*writeop.WriteOperation, error) {
	sourceVol, err := c.Volume(sourceVolumeID)
	if err != nil {
		return nil, err
	}
	op := c.writeEngine.StartDelete(sourceVol, sources, cfg)
	c.trackOperation(op)
	return op, nil
}

// CancelWriteOperation implements cancel_write_operation.
func (c *Core) CancelWriteOperation(operationID string, skipRollback bool) error {
	op, ok := c.getOperation(operationID)
	if !ok {
		return cmdrerrors.New(cmdrerrors.NotFound, "unknown operation: "+operationID)
	}
	op.Cancel(skipRollback)
	return nil
}

// ResolveWriteConflict implements resolve_write_conflict.
func (c *Core) ResolveWriteConflict(operationID string, resolution writeop.ConflictResolution, applyToAll bool) error {
	op, ok := c.getOperation(operationID)
	if !ok {
		return cmdrerrors.New(cmdrerrors.NotFound, "unknown operation: "+operationID)
	}
	op.ResolveConflict(resolution, applyToAll)
	return nil
}

// GetOperationStatus implements get_operation_status.
func (c *Core) GetOperationStatus(operationID string) (*writeop.WriteOperation, bool) {
	return c.getOperation(operationID)
}

// ListActiveOperations implements list_active_operations: every tracked
// operation not yet in a terminal phase (Complete/Cancelled/Error).
func (c *Core) ListActiveOperations() []*writeop.WriteOperation {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	result := make([]*writeop.WriteOperation, 0, len(c.operations))
	for _, op := range c.operations {
		switch op.Phase() {
		case writeop.PhaseComplete, writeop.PhaseCancelled, writeop.PhaseError:
			continue
		}
		result = append(result, op)
	}
	return result
}

// StartScanPreview implements start_scan_preview.
func (c *Core) StartScanPreview(sourceVolumeID string, sources []string, destDir string, cfg writeop.Config) (*writeop.ScanPreview, error) {
	sourceVol, err := c.Volume(sourceVolumeID)
	if err != nil {
		return nil, err
	}
	preview := writeop.StartScanPreview(sourceVol, sources, destDir, cfg)
	c.opsMu.Lock()
	c.previews[preview.ScanID] = preview
	c.opsMu.Unlock()
	return preview, nil
}

// CancelScanPreview implements cancel_scan_preview.
func (c *Core) CancelScanPreview(scanID string) error {
	c.opsMu.Lock()
	preview, ok := c.previews[scanID]
	c.opsMu.Unlock()
	if !ok {
		return cmdrerrors.New(cmdrerrors.NotFound, "unknown scan preview: "+scanID)
	}
	preview.Cancel()
	return nil
}

func (c *Core) trackOperation(op *writeop.WriteOperation) {
	c.opsMu.Lock()
	c.operations[op.OperationID] = op
	c.opsMu.Unlock()
}

func (c *Core) getOperation(operationID string) (*writeop.WriteOperation, bool) {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	op, ok := c.operations[operationID]
	return op, ok
}

// ---- Viewer (spec.md §6 "Viewer") ----

// ViewerOpen implements viewer_open.
func (c *Core) ViewerOpen(path string) (*viewer.Session, error) { return c.viewer.Open(path) }

// ViewerGetLines implements viewer_get_lines.
func (c *Core) ViewerGetLines(sessionID string, target viewer.SeekTarget, count int) ([]viewer.LineResult, error) {
	session, ok := c.viewer.Get(sessionID)
	if !ok {
		return nil, cmdrerrors.New(cmdrerrors.NotFound, "unknown viewer session: "+sessionID)
	}
	return session.GetLines(target, count)
}

// ViewerSearchStart implements viewer_search_start.
func (c *Core) ViewerSearchStart(sessionID, query string, opts viewer.SearchOptions) error {
	session, ok := c.viewer.Get(sessionID)
	if !ok {
		return cmdrerrors.New(cmdrerrors.NotFound, "unknown viewer session: "+sessionID)
	}
	return session.StartSearch(query, opts)
}

// ViewerSearchPoll implements viewer_search_poll.
func (c *Core) ViewerSearchPoll(sessionID string) (viewer.SearchStatus, []viewer.Match, int64, error) {
	session, ok := c.viewer.Get(sessionID)
	if !ok {
		return viewer.Idle, nil, 0, cmdrerrors.New(cmdrerrors.NotFound, "unknown viewer session: "+sessionID)
	}
	return session.PollSearch()
}

// ViewerSearchCancel implements viewer_search_cancel.
func (c *Core) ViewerSearchCancel(sessionID string) error {
	session, ok := c.viewer.Get(sessionID)
	if !ok {
		return cmdrerrors.New(cmdrerrors.NotFound, "unknown viewer session: "+sessionID)
	}
	session.CancelSearch()
	return nil
}

// ViewerGetStatus implements viewer_get_status: the current backend and
// exact line count (if known) for a session.
func (c *Core) ViewerGetStatus(sessionID string) (viewer.Backend, int64, bool, error) {
	session, ok := c.viewer.Get(sessionID)
	if !ok {
		return 0, 0, false, cmdrerrors.New(cmdrerrors.NotFound, "unknown viewer session: "+sessionID)
	}
	total, known := session.TotalLines()
	return session.CurrentBackend(), total, known, nil
}

// ViewerClose implements viewer_close.
func (c *Core) ViewerClose(sessionID string) error { return c.viewer.Close(sessionID) }
