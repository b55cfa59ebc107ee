// Package listing implements the streaming directory listing engine and
// listing cache described in spec.md §4.1, grounded on the teacher's
// pkg/state.Tracker (condition-variable-driven change notification,
// generalized here to typed terminal events delivered over a channel) and
// pkg/synchronization/core/scan.go (single-pass directory-to-entry-tree
// construction).
package listing

import (
	"sync"

	"github.com/vdavid/cmdr-core/internal/fsutil"
)

// CachedListing is one completed directory in the cache, per spec.md §3.
// Entries is replaced wholesale (never mutated element-by-element) on
// resort, so that readers iterating a snapshot never observe a half-sorted
// sequence.
type CachedListing struct {
	ListingID  string
	VolumeID   string
	Path       string
	SortBy     fsutil.SortBy
	SortOrder  fsutil.SortOrder
	VolumeRoot string

	mu      sync.RWMutex
	entries []*fsutil.FileEntry
}

func newCachedListing(listingID, volumeID, path, volumeRoot string, by fsutil.SortBy, order fsutil.SortOrder, entries []*fsutil.FileEntry) *CachedListing {
	return &CachedListing{
		ListingID:  listingID,
		VolumeID:   volumeID,
		Path:       path,
		VolumeRoot: volumeRoot,
		SortBy:     by,
		SortOrder:  order,
		entries:    entries,
	}
}

// snapshot returns the current entries slice. Callers must not mutate it;
// it is shared with the cache and replaced, not edited, on resort.
func (c *CachedListing) snapshot() []*fsutil.FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries
}

// replace atomically swaps in a newly sorted entries slice, per the
// CachedListing invariant in spec.md §3: "resort operations replace the
// sequence atomically."
func (c *CachedListing) replace(by fsutil.SortBy, order fsutil.SortOrder, entries []*fsutil.FileEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.SortBy = by
	c.SortOrder = order
}

// visibleIndex maps a "visible" index (i.e. an index into the
// include_hidden-filtered view) back to an index into the stored sequence.
// Hidden filtering is applied as a view, never by re-sorting or mutating
// the stored sequence, per spec.md §4.1 "Random access".
func visibleIndex(entries []*fsutil.FileEntry, index int, includeHidden bool) int {
	if includeHidden {
		return index
	}
	seen := 0
	for i, e := range entries {
		if e.IsHidden() {
			continue
		}
		if seen == index {
			return i
		}
		seen++
	}
	return -1
}

// visibleCount returns the number of entries that pass the hidden filter.
func visibleCount(entries []*fsutil.FileEntry, includeHidden bool) int {
	if includeHidden {
		return len(entries)
	}
	count := 0
	for _, e := range entries {
		if !e.IsHidden() {
			count++
		}
	}
	return count
}

// Cache is the process-wide, keyed store of completed listings, per
// spec.md §3/§9: a typed key→value store behind a read-write lock with
// short critical sections, usable before any volume is registered.
type Cache struct {
	mu       sync.RWMutex
	listings map[string]*CachedListing
}

// NewCache creates an empty listing cache.
func NewCache() *Cache {
	return &Cache{listings: make(map[string]*CachedListing)}
}

func (c *Cache) put(l *CachedListing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings[l.ListingID] = l
}

func (c *Cache) get(listingID string) (*CachedListing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.listings[listingID]
	return l, ok
}

// Delete evicts a listing, used by list_directory_end, cancellation, and
// watcher-driven invalidation (spec.md §3 CachedListing Lifecycle).
func (c *Cache) Delete(listingID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listings, listingID)
}

// EvictByPath evicts every cached listing whose VolumeID and Path match.
// Nothing in this module calls it: directory-diff events from the watcher
// bridge do not evict cached listings.
func (c *Cache) EvictByPath(volumeID, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, l := range c.listings {
		if l.VolumeID == volumeID && l.Path == path {
			delete(c.listings, id)
		}
	}
}

// GetFileAt implements get_file_at (spec.md §4.1).
func (c *Cache) GetFileAt(listingID string, index int, includeHidden bool) (*fsutil.FileEntry, bool) {
	l, ok := c.get(listingID)
	if !ok {
		return nil, false
	}
	entries := l.snapshot()
	i := visibleIndex(entries, index, includeHidden)
	if i < 0 || i >= len(entries) {
		return nil, false
	}
	return entries[i], true
}

// GetFileRange implements get_file_range (spec.md §4.1). The range is
// expressed in visible-index space: [start, end).
func (c *Cache) GetFileRange(listingID string, start, end int, includeHidden bool) ([]*fsutil.FileEntry, bool) {
	l, ok := c.get(listingID)
	if !ok {
		return nil, false
	}
	entries := l.snapshot()
	if includeHidden {
		if start < 0 {
			start = 0
		}
		if end > len(entries) {
			end = len(entries)
		}
		if start >= end {
			return nil, true
		}
		result := make([]*fsutil.FileEntry, end-start)
		copy(result, entries[start:end])
		return result, true
	}

	result := make([]*fsutil.FileEntry, 0, end-start)
	seen := 0
	for _, e := range entries {
		if e.IsHidden() {
			continue
		}
		if seen >= start && seen < end {
			result = append(result, e)
		}
		seen++
		if seen >= end {
			break
		}
	}
	return result, true
}

// FindFileIndex implements find_file_index (spec.md §4.1), returning the
// visible index of the named entry.
func (c *Cache) FindFileIndex(listingID, name string, includeHidden bool) (int, bool) {
	l, ok := c.get(listingID)
	if !ok {
		return 0, false
	}
	entries := l.snapshot()
	visible := 0
	for _, e := range entries {
		if !includeHidden && e.IsHidden() {
			continue
		}
		if e.Name == name {
			return visible, true
		}
		visible++
	}
	return 0, false
}

// GetTotalCount implements get_total_count (spec.md §4.1). Hidden filtering
// is applied, matching what get_file_range/get_file_at would serve.
func (c *Cache) GetTotalCount(listingID string, includeHidden bool) (int, bool) {
	l, ok := c.get(listingID)
	if !ok {
		return 0, false
	}
	return visibleCount(l.snapshot(), includeHidden), true
}

// GetMaxFilenameWidth implements get_max_filename_width (spec.md §4.1).
func (c *Cache) GetMaxFilenameWidth(listingID string) (int, bool) {
	l, ok := c.get(listingID)
	if !ok {
		return 0, false
	}
	return fsutil.MaxFilenameWidth(l.snapshot()), true
}

// ChangedIndices describes what the UI should animate after a resort.
type ChangedIndices struct {
	// Before maps each entry's path to its index prior to the resort, and
	// After maps it to its index after the resort (paths are stable across
	// a resort, so they key both maps).
	Before map[string]int
	After  map[string]int
}

// Resort implements resort_listing (spec.md §4.1): it replaces the cached
// sequence in one step and returns enough information for the UI to
// animate the reorder.
func (c *Cache) Resort(listingID string, by fsutil.SortBy, order fsutil.SortOrder) (*ChangedIndices, bool) {
	l, ok := c.get(listingID)
	if !ok {
		return nil, false
	}

	before := l.snapshot()
	beforeIndex := make(map[string]int, len(before))
	for i, e := range before {
		beforeIndex[e.Path] = i
	}

	after := make([]*fsutil.FileEntry, len(before))
	copy(after, before)
	fsutil.SortEntries(after, by, order)

	afterIndex := make(map[string]int, len(after))
	for i, e := range after {
		afterIndex[e.Path] = i
	}

	l.replace(by, order, after)

	return &ChangedIndices{Before: beforeIndex, After: afterIndex}, true
}
