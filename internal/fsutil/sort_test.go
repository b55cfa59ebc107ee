package fsutil

import "testing"

func mkEntry(name string, dir bool, size uint64) *FileEntry {
	e := &FileEntry{Name: name, IsDirectory: dir}
	if !dir {
		e.Size = &size
	}
	return e
}

func TestSortDirectoriesFirst(t *testing.T) {
	entries := []*FileEntry{
		mkEntry("zzz.txt", false, 10),
		mkEntry("aaa", true, 0),
	}
	SortEntries(entries, SortByName, SortAscending)
	if !entries[0].IsDirectory {
		t.Fatalf("expected directory first, got %q", entries[0].Name)
	}
}

func TestNaturalOrderingOfDigitRuns(t *testing.T) {
	entries := []*FileEntry{
		mkEntry("file10.txt", false, 1),
		mkEntry("file2.txt", false, 1),
		mkEntry("file1.txt", false, 1),
	}
	SortEntries(entries, SortByName, SortAscending)
	got := []string{entries[0].Name, entries[1].Name, entries[2].Name}
	want := []string{"file1.txt", "file2.txt", "file10.txt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSortDescendingKeepsDirectoriesFirst(t *testing.T) {
	entries := []*FileEntry{
		mkEntry("b.txt", false, 1),
		mkEntry("a.txt", false, 2),
		mkEntry("dir", true, 0),
	}
	SortEntries(entries, SortBySize, SortDescending)
	if !entries[0].IsDirectory {
		t.Fatalf("expected directory first even descending, got %q", entries[0].Name)
	}
	if entries[1].Name != "a.txt" {
		t.Fatalf("expected largest file second, got %q", entries[1].Name)
	}
}

func TestSortAntisymmetricAndTransitive(t *testing.T) {
	a := mkEntry("a", false, 1)
	b := mkEntry("b", false, 2)
	c := mkEntry("c", false, 3)
	if Less(a, b, SortBySize, SortAscending) == Less(b, a, SortBySize, SortAscending) {
		t.Fatalf("comparator is not antisymmetric")
	}
	if Less(a, b, SortBySize, SortAscending) && Less(b, c, SortBySize, SortAscending) &&
		!Less(a, c, SortBySize, SortAscending) {
		t.Fatalf("comparator is not transitive")
	}
}

func TestHiddenFilter(t *testing.T) {
	e := &FileEntry{Name: ".git"}
	if !e.IsHidden() {
		t.Fatalf("expected .git to be hidden")
	}
	e2 := &FileEntry{Name: "git"}
	if e2.IsHidden() {
		t.Fatalf("expected git to not be hidden")
	}
}
