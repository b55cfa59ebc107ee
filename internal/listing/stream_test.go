package listing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vdavid/cmdr-core/internal/fsutil"
)

// localReader adapts fsutil.ReadDirectory to the DirectoryReader shape, the
// same way internal/volume's local variant will.
func localReader(path string, onEntry func(int) bool) ([]*fsutil.FileEntry, error) {
	return fsutil.ReadDirectory(path, fsutil.SortByName, fsutil.SortAscending, onEntry)
}

func mustWriteFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListerCompletesNormally(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "a.txt"), "1")
	mustWriteFile(t, filepath.Join(dir, "b.txt"), "22")

	lister := NewLister(NewCache(), nil, 10*time.Millisecond)
	listingID, events := lister.Start("vol", dir, fsutil.SortByName, fsutil.SortAscending, localReader, dir)
	if listingID == "" {
		t.Fatal("expected non-empty listing id")
	}

	var sawComplete bool
	for ev := range events {
		if ce, ok := ev.(CompleteEvent); ok {
			sawComplete = true
			if ce.Total != 2 {
				t.Fatalf("expected 2 entries, got %d", ce.Total)
			}
		}
		if _, ok := ev.(ErrorEvent); ok {
			t.Fatalf("unexpected error event: %+v", ev)
		}
	}
	if !sawComplete {
		t.Fatal("expected a terminal complete event")
	}

	if _, ok := lister.cache.get(listingID); !ok {
		t.Fatal("expected listing to be cached after completion")
	}
}

// slowReader simulates a directory with many entries by calling onEntry
// repeatedly with a small sleep between calls, the same shape a real
// directory full of 10,000 files would drive the cancellation check at.
func slowReader(count int, perEntryDelay time.Duration) DirectoryReader {
	return func(path string, onEntry func(int) bool) ([]*fsutil.FileEntry, error) {
		entries := make([]*fsutil.FileEntry, 0, count)
		for i := 0; i < count; i++ {
			entries = append(entries, &fsutil.FileEntry{Name: filepath.Join("f", itoa(i))})
			time.Sleep(perEntryDelay)
			if onEntry != nil && !onEntry(i+1) {
				break
			}
		}
		return entries, nil
	}
}

func itoa(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = digits[i%10]
		i /= 10
	}
	return string(buf[pos:])
}

func TestListerCancellationIsTimely(t *testing.T) {
	lister := NewLister(NewCache(), nil, 5*time.Millisecond)
	reader := slowReader(10000, 100*time.Microsecond)

	listingID, events := lister.Start("vol", "/irrelevant", fsutil.SortByName, fsutil.SortAscending, reader, "/irrelevant")

	time.Sleep(50 * time.Millisecond)
	lister.Cancel(listingID)

	deadline := time.After(200 * time.Millisecond)
	var terminal Event
	for ev := range events {
		switch ev.(type) {
		case CancelledEvent, CompleteEvent, ErrorEvent:
			terminal = ev
		}
	}
	select {
	case <-deadline:
		t.Fatal("did not observe a terminal event within the expected bound")
	default:
	}

	if _, ok := terminal.(CancelledEvent); !ok {
		t.Fatalf("expected a cancelled event, got %+v", terminal)
	}
	if _, ok := lister.cache.get(listingID); ok {
		t.Fatal("a cancelled listing must not populate the cache")
	}
}
