// Package watchbridge unifies two change sources — the local filesystem
// watcher and the MTP event loop — into one DirectoryDiff shape, per
// spec.md §4.7 and the "Diff unification" design note in §9: both sources
// compute a diff by comparing two sorted listings by name rather than by
// interpreting OS/device events directly, so the UI pipeline never
// branches on which kind of volume produced the change.
package watchbridge

import "github.com/vdavid/cmdr-core/internal/fsutil"

// DirectoryDiff describes what changed in one directory between two
// listings, per spec.md §4.7/§9.
type DirectoryDiff struct {
	Path     string
	Added    []*fsutil.FileEntry
	Removed  []*fsutil.FileEntry
	Modified []*fsutil.FileEntry
}

// IsEmpty reports whether the diff carries no changes, used to suppress
// a watch reload that turned out to be a no-op.
func (d DirectoryDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// ComputeDiff compares two listings of the same directory, keyed by name,
// and reports what was added, removed, or modified. Entries are matched by
// name through maps, so the input order does not matter and the order of
// entries within Added/Removed/Modified is not defined; an entry is
// "modified" when its size or modification time changed.
func ComputeDiff(path string, before, after []*fsutil.FileEntry) DirectoryDiff {
	diff := DirectoryDiff{Path: path}

	beforeByName := make(map[string]*fsutil.FileEntry, len(before))
	for _, e := range before {
		beforeByName[e.Name] = e
	}
	afterByName := make(map[string]*fsutil.FileEntry, len(after))
	for _, e := range after {
		afterByName[e.Name] = e
	}

	for name, e := range afterByName {
		prior, existed := beforeByName[name]
		if !existed {
			diff.Added = append(diff.Added, e)
			continue
		}
		if entryChanged(prior, e) {
			diff.Modified = append(diff.Modified, e)
		}
	}
	for name, e := range beforeByName {
		if _, stillPresent := afterByName[name]; !stillPresent {
			diff.Removed = append(diff.Removed, e)
		}
	}
	return diff
}

func entryChanged(a, b *fsutil.FileEntry) bool {
	if !a.ModifiedAt.Equal(b.ModifiedAt) {
		return true
	}
	aSize, bSize := uint64(0), uint64(0)
	if a.Size != nil {
		aSize = *a.Size
	}
	if b.Size != nil {
		bSize = *b.Size
	}
	return aSize != bSize
}
