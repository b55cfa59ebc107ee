package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

func TestLocalVolumeCreateListDelete(t *testing.T) {
	root := t.TempDir()
	v := NewLocal("local-1", "Home", root)

	if err := v.CreateDirectory("sub"); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if err := v.CreateFile("sub/a.txt"); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	entries, err := v.ListDirectory("sub", nil)
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "a.txt" {
		t.Fatalf("unexpected listing: %+v", entries)
	}

	if err := v.Delete("sub"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if exists, _ := v.Exists("sub"); exists {
		t.Fatal("expected sub to be gone after Delete")
	}
}

func TestLocalVolumeCreateFileAlreadyExists(t *testing.T) {
	root := t.TempDir()
	v := NewLocal("local-1", "Home", root)

	if err := v.CreateFile("a.txt"); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	err := v.CreateFile("a.txt")
	if !cmdrerrors.Is(err, cmdrerrors.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestLocalVolumeRenameRefusesOverwriteWithoutForce(t *testing.T) {
	root := t.TempDir()
	v := NewLocal("local-1", "Home", root)

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := v.Rename("a.txt", "b.txt", false)
	if !cmdrerrors.Is(err, cmdrerrors.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}

	if err := v.Rename("a.txt", "b.txt", true); err != nil {
		t.Fatalf("forced rename: %v", err)
	}
}

func TestLocalVolumeStreaming(t *testing.T) {
	root := t.TempDir()
	v := NewLocal("local-1", "Home", root)

	if err := v.WriteFromStream("data.bin", bytesReader([]byte("hello"))); err != nil {
		t.Fatalf("WriteFromStream: %v", err)
	}

	r, err := v.OpenReadStream("data.bin")
	if err != nil {
		t.Fatalf("OpenReadStream: %v", err)
	}
	defer r.Close()

	buf := make([]byte, 5)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", buf)
	}
}
