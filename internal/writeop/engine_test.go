package writeop

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/volume"
)

// drain collects every event from op until the channel closes, optionally
// auto-resolving conflicts via onConflict (nil means never resolve, which
// is fine for tests that expect no conflicts).
func drain(t *testing.T, op *WriteOperation, onConflict func(relativePath string)) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-op.Events():
			if !ok {
				return events
			}
			events = append(events, e)
			if ce, isConflict := e.(ConflictEvent); isConflict && onConflict != nil {
				onConflict(ce.RelativePath)
			}
		case <-timeout:
			t.Fatal("timed out waiting for write operation to finish")
		}
	}
}

func lastEvent(events []Event) Event {
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1]
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}
}

func TestEngineCopyBasicFile(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "hello")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"a.txt"}, dstVol, "", Config{})
	events := drain(t, op, nil)

	complete, ok := lastEvent(events).(CompleteEvent)
	if !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}
	if complete.Summary.FileCount != 1 {
		t.Fatalf("expected 1 file scanned, got %d", complete.Summary.FileCount)
	}
	if op.Phase() != PhaseComplete {
		t.Fatalf("expected PhaseComplete, got %v", op.Phase())
	}

	data, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
	if _, err := os.Stat(filepath.Join(srcDir, "a.txt")); err != nil {
		t.Fatalf("expected source to survive a copy: %v", err)
	}
}

func TestEngineCopyDirectoryRecursive(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	if err := os.Mkdir(filepath.Join(srcDir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, srcDir, "top.txt", "top")
	writeFile(t, filepath.Join(srcDir, "nested"), "inner.txt", "inner")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"."}, dstVol, "", Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	if data, err := os.ReadFile(filepath.Join(dstDir, "nested", "inner.txt")); err != nil || string(data) != "inner" {
		t.Fatalf("nested file not copied correctly: data=%q err=%v", data, err)
	}
}

func TestEngineCopyConflictStopByDefault(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "new")
	writeFile(t, dstDir, "a.txt", "old")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"a.txt"}, dstVol, "", Config{})
	events := drain(t, op, func(relativePath string) {
		op.ResolveConflict(Stop, false)
	})

	errEvent, ok := lastEvent(events).(ErrorEvent)
	if !ok {
		t.Fatalf("expected ErrorEvent, got %#v", lastEvent(events))
	}
	if op.Phase() != PhaseError {
		t.Fatalf("expected PhaseError, got %v", op.Phase())
	}
	_ = errEvent
}

func TestEngineCopyConflictOverwrite(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "new-contents")
	writeFile(t, dstDir, "a.txt", "old")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"a.txt"}, dstVol, "", Config{ConflictResolution: Overwrite})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	data, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	if err != nil || string(data) != "new-contents" {
		t.Fatalf("expected overwrite to land, data=%q err=%v", data, err)
	}
}

func TestEngineCopyConflictSkip(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "new-contents")
	writeFile(t, dstDir, "a.txt", "old")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"a.txt"}, dstVol, "", Config{ConflictResolution: Skip})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	data, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	if err != nil || string(data) != "old" {
		t.Fatalf("expected skip to leave destination untouched, data=%q err=%v", data, err)
	}
}

func TestEngineCopyConflictRename(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "new-contents")
	writeFile(t, dstDir, "a.txt", "old")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"a.txt"}, dstVol, "", Config{ConflictResolution: Rename})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	if data, err := os.ReadFile(filepath.Join(dstDir, "a.txt")); err != nil || string(data) != "old" {
		t.Fatalf("expected original to survive a rename resolution, data=%q err=%v", data, err)
	}
	if data, err := os.ReadFile(filepath.Join(dstDir, "a (1).txt")); err != nil || string(data) != "new-contents" {
		t.Fatalf("expected renamed copy, data=%q err=%v", data, err)
	}
}

func TestEngineMoveSameVolumeIsRename(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "from"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "to"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "from"), "a.txt", "hello")

	vol := volume.NewLocal("vol", "Volume", dir)

	engine := NewEngine(nil)
	op := engine.StartMove(vol, []string{"from/a.txt"}, vol, "to", Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	if _, err := os.Stat(filepath.Join(dir, "from", "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone after move, err=%v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "to", "a.txt")); err != nil || string(data) != "hello" {
		t.Fatalf("expected moved file at destination, data=%q err=%v", data, err)
	}
}

func TestEngineMoveCrossVolumeStagesThenDeletes(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "hello")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartMove(srcVol, []string{"a.txt"}, dstVol, "", Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	if _, err := os.Stat(filepath.Join(srcDir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected source removed after cross-volume move, err=%v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dstDir, "a.txt")); err != nil || string(data) != "hello" {
		t.Fatalf("expected moved file at destination, data=%q err=%v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "a.txt.cmdr-staging")); !os.IsNotExist(err) {
		t.Fatalf("staging artifact should not survive a successful move, err=%v", err)
	}
}

func TestEngineDelete(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")
	vol := volume.NewLocal("vol", "Volume", dir)

	engine := NewEngine(nil)
	op := engine.StartDelete(vol, []string{"a.txt"}, Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected file deleted, err=%v", err)
	}
}

func TestEngineDryRunMakesNoChanges(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "hello")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"a.txt"}, dstVol, "", Config{DryRun: true})
	events := drain(t, op, nil)

	complete, ok := lastEvent(events).(CompleteEvent)
	if !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}
	if complete.Summary.FileCount != 1 {
		t.Fatalf("expected summary to still report scanned files, got %d", complete.Summary.FileCount)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create files, err=%v", err)
	}
}

func TestEngineCopyDestinationNotFound(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "hello")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"a.txt"}, dstVol, "missing-dir", Config{})
	events := drain(t, op, nil)

	errEvent, ok := lastEvent(events).(ErrorEvent)
	if !ok {
		t.Fatalf("expected ErrorEvent, got %#v", lastEvent(events))
	}
	if op.Phase() != PhaseError {
		t.Fatalf("expected PhaseError, got %v", op.Phase())
	}
	_ = errEvent
}

func TestEngineCopySameFileRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")
	vol := volume.NewLocal("vol", "Volume", dir)

	engine := NewEngine(nil)
	op := engine.StartCopy(vol, []string{"a.txt"}, vol, "a.txt", Config{})
	events := drain(t, op, nil)

	errEvent, ok := lastEvent(events).(ErrorEvent)
	if !ok {
		t.Fatalf("expected ErrorEvent for same-file copy, got %#v", lastEvent(events))
	}
	_ = errEvent
}

func TestEngineCopyEmptySourcesRejected(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, nil, dstVol, "", Config{})
	events := drain(t, op, nil)

	errEvent, ok := lastEvent(events).(ErrorEvent)
	if !ok {
		t.Fatalf("expected ErrorEvent for empty sources, got %#v", lastEvent(events))
	}
	if cmdrerrors.Render(cmdrerrors.New(cmdrerrors.NotFound, "no sources given")) != errEvent.Message {
		t.Fatalf("unexpected message: %q", errEvent.Message)
	}
}

func TestScanPreviewReportsFileCount(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "a.txt", "hello")
	writeFile(t, srcDir, "b.txt", "world")
	srcVol := volume.NewLocal("src", "Source", srcDir)

	preview := StartScanPreview(srcVol, []string{"."}, "", Config{})
	<-preview.Done()
	result, err := preview.Result()
	if err != nil {
		t.Fatalf("scan preview: %v", err)
	}
	if result.FileCount != 2 {
		t.Fatalf("expected 2 files, got %d", result.FileCount)
	}
}

func TestEngineCopyPreservesSymlink(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "target.txt", "hello")
	if err := os.Symlink("target.txt", filepath.Join(srcDir, "link.txt")); err != nil {
		t.Fatal(err)
	}

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"link.txt"}, dstVol, "", Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	target, err := os.Readlink(filepath.Join(dstDir, "link.txt"))
	if err != nil {
		t.Fatalf("expected a symlink at the destination, got: %v", err)
	}
	if target != "target.txt" {
		t.Fatalf("expected link target %q, got %q", "target.txt", target)
	}
}

func TestEngineCopyDirectoryPreservesNestedSymlink(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "real.txt", "hello")
	if err := os.Symlink("real.txt", filepath.Join(srcDir, "alias.txt")); err != nil {
		t.Fatal(err)
	}

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"."}, dstVol, "", Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	if target, err := os.Readlink(filepath.Join(dstDir, "alias.txt")); err != nil || target != "real.txt" {
		t.Fatalf("expected nested symlink preserved, target=%q err=%v", target, err)
	}
}

func TestEngineCopySkipsSpecialFiles(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "hello")
	socketPath := filepath.Join(srcDir, "daemon.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Skipf("unable to create a unix socket fixture: %v", err)
	}
	defer listener.Close()

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"."}, dstVol, "", Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	if data, err := os.ReadFile(filepath.Join(dstDir, "a.txt")); err != nil || string(data) != "hello" {
		t.Fatalf("expected the regular file copied, data=%q err=%v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "daemon.sock")); !os.IsNotExist(err) {
		t.Fatalf("expected the socket to be skipped, not copied, err=%v", err)
	}
}

// TestEngineCopyDoesNotFollowSymlinkBackToAncestor guards against the
// original stack-overflow bug: a directory containing a symlink back to one
// of its own ancestors must not be recursed into, since symlinks are never
// dereferenced during a recursive copy.
func TestEngineCopyDoesNotFollowSymlinkBackToAncestor(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	if err := os.Mkdir(filepath.Join(srcDir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(srcDir, "sub"), "a.txt", "hello")
	if err := os.Symlink(srcDir, filepath.Join(srcDir, "sub", "loop")); err != nil {
		t.Fatal(err)
	}

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"."}, dstVol, "", Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected the loop to be skipped rather than hang, got %#v", lastEvent(events))
	}

	if data, err := os.ReadFile(filepath.Join(dstDir, "sub", "a.txt")); err != nil || string(data) != "hello" {
		t.Fatalf("expected the real nested file copied, data=%q err=%v", data, err)
	}
	if target, err := os.Readlink(filepath.Join(dstDir, "sub", "loop")); err != nil || target != srcDir {
		t.Fatalf("expected the loop symlink itself preserved, target=%q err=%v", target, err)
	}
}

// TestEngineCopyVisitedSetAbortsRevisitedDirectory exercises the
// (device, inode) visited set directly: copying the same directory twice in
// one operation must not recurse into it the second time.
func TestEngineCopyVisitedSetAbortsRevisitedDirectory(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	if err := os.Mkdir(filepath.Join(srcDir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(srcDir, "sub"), "a.txt", "hello")

	srcVol := volume.NewLocal("src", "Source", srcDir)
	dstVol := volume.NewLocal("dst", "Destination", dstDir)

	engine := NewEngine(nil)
	op := engine.StartCopy(srcVol, []string{"sub", "sub"}, dstVol, "", Config{})
	events := drain(t, op, nil)
	if _, ok := lastEvent(events).(CompleteEvent); !ok {
		t.Fatalf("expected CompleteEvent, got %#v", lastEvent(events))
	}

	if data, err := os.ReadFile(filepath.Join(dstDir, "sub", "a.txt")); err != nil || string(data) != "hello" {
		t.Fatalf("expected the file copied once, data=%q err=%v", data, err)
	}
}

func TestScanPreviewCancel(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "a.txt", "hello")
	srcVol := volume.NewLocal("src", "Source", srcDir)

	preview := StartScanPreview(srcVol, []string{"."}, "", Config{})
	preview.Cancel()
	<-preview.Done()
	// Either the scan raced ahead of the cancellation and completed, or it
	// observed the flag and reports a Cancelled error; both are valid
	// outcomes of a best-effort cooperative cancellation.
	if _, err := preview.Result(); err != nil && !cmdrerrors.Is(err, cmdrerrors.Cancelled) {
		t.Fatalf("unexpected error: %v", err)
	}
}
