package volume

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/vdavid/cmdr-core/internal/mtpsession"
)

// stubTransport is a minimal mtpsession.Transport used only to exercise the
// Volume-level path translation in mtp.go; the protocol/cache/debounce
// behavior itself is covered in internal/mtpsession's own tests.
type stubTransport struct {
	mu      sync.Mutex
	objects map[string][]mtpsession.ObjectInfo
}

func newStubTransport() *stubTransport {
	return &stubTransport{objects: make(map[string][]mtpsession.ObjectInfo)}
}

func (s *stubTransport) List(ctx context.Context, storageID uint32, path string) ([]mtpsession.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mtpsession.ObjectInfo(nil), s.objects[path]...), nil
}
func (s *stubTransport) CreateFile(ctx context.Context, storageID uint32, path string) error {
	return nil
}
func (s *stubTransport) CreateDirectory(ctx context.Context, storageID uint32, path string) error {
	return nil
}
func (s *stubTransport) Delete(ctx context.Context, storageID uint32, path string) error { return nil }
func (s *stubTransport) Rename(ctx context.Context, storageID uint32, from, to string) error {
	return nil
}
func (s *stubTransport) Read(ctx context.Context, storageID uint32, path string) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}
func (s *stubTransport) Write(ctx context.Context, storageID uint32, path string, r io.Reader) error {
	return nil
}
func (s *stubTransport) SpaceInfo(ctx context.Context, storageID uint32) (uint64, uint64, error) {
	return 2000, 1000, nil
}
func (s *stubTransport) PollEvents(ctx context.Context) ([]mtpsession.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestMTPVolumeListDirectoryTranslatesVirtualPath(t *testing.T) {
	transport := newStubTransport()
	transport.objects["DCIM"] = []mtpsession.ObjectInfo{{Name: "photo.jpg", Size: 42}}

	registry := mtpsession.NewRegistry(nil, 5*time.Second, 500*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	device := registry.Open(ctx, "dev-1", 65537, transport)
	defer registry.CloseAll()

	v := NewMTP("mtp-dev-1-65537", "Phone", "dev-1", "65537", device)

	entries, err := v.ListDirectory("/mtp-volume/dev-1/65537/DCIM", nil)
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "photo.jpg" {
		t.Fatalf("unexpected listing: %+v", entries)
	}
}

func TestMTPVolumeGetSpaceInfo(t *testing.T) {
	transport := newStubTransport()
	registry := mtpsession.NewRegistry(nil, 5*time.Second, 500*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	device := registry.Open(ctx, "dev-1", 65537, transport)
	defer registry.CloseAll()

	v := NewMTP("mtp-dev-1-65537", "Phone", "dev-1", "65537", device)

	info, err := v.GetSpaceInfo("/mtp-volume/dev-1/65537")
	if err != nil {
		t.Fatalf("GetSpaceInfo: %v", err)
	}
	if info.TotalBytes != 2000 || info.AvailableBytes != 1000 {
		t.Fatalf("unexpected space info: %+v", info)
	}
}
