package watchbridge

import (
	"testing"
	"time"

	"github.com/vdavid/cmdr-core/internal/fsutil"
)

func entry(name string, size uint64, modified time.Time) *fsutil.FileEntry {
	return &fsutil.FileEntry{Name: name, Size: &size, ModifiedAt: modified}
}

func TestComputeDiffDetectsAddedRemovedModified(t *testing.T) {
	t0 := time.Unix(1000, 0)
	t1 := time.Unix(2000, 0)

	before := []*fsutil.FileEntry{
		entry("a.txt", 10, t0),
		entry("b.txt", 20, t0),
	}
	after := []*fsutil.FileEntry{
		entry("a.txt", 10, t0),
		entry("b.txt", 25, t1),
		entry("c.txt", 5, t0),
	}

	diff := ComputeDiff("/dir", before, after)

	if len(diff.Added) != 1 || diff.Added[0].Name != "c.txt" {
		t.Fatalf("expected c.txt added, got %+v", diff.Added)
	}
	if len(diff.Removed) != 0 {
		t.Fatalf("expected no removals, got %+v", diff.Removed)
	}
	if len(diff.Modified) != 1 || diff.Modified[0].Name != "b.txt" {
		t.Fatalf("expected b.txt modified, got %+v", diff.Modified)
	}
}

func TestComputeDiffEmptyWhenUnchanged(t *testing.T) {
	t0 := time.Unix(1000, 0)
	listing := []*fsutil.FileEntry{entry("a.txt", 10, t0)}
	diff := ComputeDiff("/dir", listing, listing)
	if !diff.IsEmpty() {
		t.Fatalf("expected an empty diff, got %+v", diff)
	}
}
