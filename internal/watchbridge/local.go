package watchbridge

import (
	"sync"
	"time"

	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/logging"
)

// DirectoryLister is the minimal surface LocalWatcher needs from a volume;
// any volume.Volume satisfies it structurally without this package
// importing internal/volume, keeping the dependency graph leaves-first
// per spec.md §9's "no global init order dependency" note.
type DirectoryLister interface {
	ListDirectory(path string, onEntry func(count int) bool) ([]*fsutil.FileEntry, error)
}

// LocalWatcher polls a set of registered directories at a configurable
// interval and emits a DirectoryDiff whenever a reload differs from the
// last snapshot, grounded on the teacher's poll-based watch (pkg/
// filesystem/watch_poll.go), generalized from a whole-root recursive scan
// to per-directory listing comparisons since this module watches
// individually opened directories rather than one synchronization root.
type LocalWatcher struct {
	lister   DirectoryLister
	interval time.Duration
	logger   *logging.Logger

	mu        sync.Mutex
	snapshots map[string][]*fsutil.FileEntry

	diffs chan DirectoryDiff
	stop  chan struct{}
	done  chan struct{}
}

// NewLocalWatcher creates a LocalWatcher that reloads each watched
// directory via lister every interval (spec.md §4.7, SPEC_FULL.md §3.8's
// configurable local debounce window).
func NewLocalWatcher(lister DirectoryLister, interval time.Duration, logger *logging.Logger) *LocalWatcher {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &LocalWatcher{
		lister:    lister,
		interval:  interval,
		logger:    logger,
		snapshots: make(map[string][]*fsutil.FileEntry),
		diffs:     make(chan DirectoryDiff, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Watch begins tracking path, taking an initial snapshot so the first poll
// doesn't report every existing entry as "added".
func (w *LocalWatcher) Watch(path string) error {
	entries, err := w.lister.ListDirectory(path, nil)
	if err != nil {
		return err
	}
	fsutil.SortEntries(entries, fsutil.SortByName, fsutil.SortAscending)
	w.mu.Lock()
	w.snapshots[path] = entries
	w.mu.Unlock()
	return nil
}

// Unwatch stops tracking path.
func (w *LocalWatcher) Unwatch(path string) {
	w.mu.Lock()
	delete(w.snapshots, path)
	w.mu.Unlock()
}

// Diffs returns the channel on which directory-diff events are delivered.
func (w *LocalWatcher) Diffs() <-chan DirectoryDiff { return w.diffs }

// Run polls every watched directory at the configured interval until
// Close is called. It is meant to run on its own background goroutine,
// per spec.md §5's "long operations run on background tasks."
func (w *LocalWatcher) Run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *LocalWatcher) pollOnce() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.snapshots))
	for path := range w.snapshots {
		paths = append(paths, path)
	}
	w.mu.Unlock()

	for _, path := range paths {
		entries, err := w.lister.ListDirectory(path, nil)
		if err != nil {
			w.logger.Warn(err)
			continue
		}
		fsutil.SortEntries(entries, fsutil.SortByName, fsutil.SortAscending)

		w.mu.Lock()
		before := w.snapshots[path]
		w.snapshots[path] = entries
		w.mu.Unlock()

		diff := ComputeDiff(path, before, entries)
		if !diff.IsEmpty() {
			select {
			case w.diffs <- diff:
			default:
				// A slow consumer loses the oldest pending diff rather than
				// blocking the poll loop; the next poll will recompute a
				// superseding diff against the latest snapshot regardless.
				<-w.diffs
				w.diffs <- diff
			}
		}
	}
}

// Close stops the poll loop and waits for it to exit.
func (w *LocalWatcher) Close() {
	close(w.stop)
	<-w.done
}
