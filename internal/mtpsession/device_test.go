package mtpsession

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory stand-in for a real MTP protocol
// implementation, used to exercise the caching/debounce/event-loop logic
// this package actually owns without a physical device attached.
type fakeTransport struct {
	mu        sync.Mutex
	listCalls int32
	objects   map[string][]ObjectInfo
	events    chan []Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		objects: make(map[string][]ObjectInfo),
		events:  make(chan []Event, 8),
	}
}

func (f *fakeTransport) List(ctx context.Context, storageID uint32, path string) ([]ObjectInfo, error) {
	atomic.AddInt32(&f.listCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ObjectInfo(nil), f.objects[path]...), nil
}

func (f *fakeTransport) CreateFile(ctx context.Context, storageID uint32, path string) error { return nil }
func (f *fakeTransport) CreateDirectory(ctx context.Context, storageID uint32, path string) error {
	return nil
}
func (f *fakeTransport) Delete(ctx context.Context, storageID uint32, path string) error { return nil }
func (f *fakeTransport) Rename(ctx context.Context, storageID uint32, from, to string) error {
	return nil
}
func (f *fakeTransport) Read(ctx context.Context, storageID uint32, path string) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}
func (f *fakeTransport) Write(ctx context.Context, storageID uint32, path string, r io.Reader) error {
	return nil
}
func (f *fakeTransport) SpaceInfo(ctx context.Context, storageID uint32) (uint64, uint64, error) {
	return 1000, 500, nil
}
func (f *fakeTransport) PollEvents(ctx context.Context) ([]Event, error) {
	select {
	case evs := <-f.events:
		return evs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDeviceListIsCachedWithinTTL(t *testing.T) {
	transport := newFakeTransport()
	transport.objects["/DCIM"] = []ObjectInfo{{Name: "a.jpg", Size: 10}}

	device := newDevice("dev1", 1, transport, 5*time.Second, 500*time.Millisecond, nil)

	first, err := device.List(context.Background(), "/DCIM")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := device.List(context.Background(), "/DCIM")
	require.NoError(t, err)
	require.Len(t, second, 1)

	require.EqualValues(t, 1, atomic.LoadInt32(&transport.listCalls), "expected exactly one device round trip within the TTL")
}

func TestDeviceEventLoopEmitsDiffOnAdd(t *testing.T) {
	transport := newFakeTransport()
	transport.objects["/DCIM"] = []ObjectInfo{{Name: "a.jpg", Size: 10}}

	device := newDevice("dev1", 1, transport, 5*time.Second, 10*time.Millisecond, nil)

	_, err := device.List(context.Background(), "/DCIM")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go device.runEventLoop(ctx)
	defer device.Close()

	transport.mu.Lock()
	transport.objects["/DCIM"] = []ObjectInfo{
		{Name: "a.jpg", Size: 10},
		{Name: "b.jpg", Size: 20},
	}
	transport.mu.Unlock()
	transport.events <- []Event{{Kind: ObjectAdded, ParentPath: "/DCIM", ObjectName: "b.jpg"}}

	select {
	case diff := <-device.Diffs():
		require.Equal(t, "/DCIM", diff.Path)
		require.Len(t, diff.Added, 1)
		require.Equal(t, "b.jpg", diff.Added[0].Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a directory diff")
	}
}

func TestToStoragePath(t *testing.T) {
	require.Equal(t, "DCIM/Camera", toStoragePath("/mtp-volume/mtp-0-1/65537/DCIM/Camera"))
	require.Equal(t, "", toStoragePath("/mtp-volume/mtp-0-1/65537"))
}
