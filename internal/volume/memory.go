package volume

import (
	"bytes"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/fsutil"
)

// memoryNode is one entry in an entirely synthetic tree, used by
// in-memory volumes (spec.md §4.4 "In-memory: entirely synthetic, used by
// tests"). There is no teacher equivalent for this variant since the
// teacher has no in-process fake filesystem; its shape instead follows
// the same FileEntry fields every other volume variant produces, so
// tests written against it exercise identical code paths.
type memoryNode struct {
	name       string
	isDir      bool
	data       []byte
	modifiedAt time.Time
	children   map[string]*memoryNode
}

func newMemoryDir(name string) *memoryNode {
	return &memoryNode{name: name, isDir: true, children: make(map[string]*memoryNode), modifiedAt: time.Now()}
}

// memoryVolume is a Volume backed entirely by an in-memory tree, with a
// configurable fixed quota so tests can exercise the DiskSpace pre-flight
// error path described in SPEC_FULL.md §3.5.
type memoryVolume struct {
	id, name string

	mu    sync.RWMutex
	root  *memoryNode
	quota uint64 // 0 means unlimited
	used  uint64
}

// NewMemory creates an empty in-memory Volume. A quota of 0 means
// unlimited available space.
func NewMemory(id, name string, quotaBytes uint64) Volume {
	return &memoryVolume{id: id, name: name, root: newMemoryDir("/"), quota: quotaBytes}
}

func (v *memoryVolume) ID() string   { return v.id }
func (v *memoryVolume) Name() string { return v.name }
func (v *memoryVolume) Root() string { return "/" }

func splitPath(p string) []string {
	clean := strings.Trim(path.Clean("/"+p), "/")
	if clean == "" || clean == "." {
		return nil
	}
	return strings.Split(clean, "/")
}

func (v *memoryVolume) lookup(p string) (*memoryNode, error) {
	node := v.root
	for _, part := range splitPath(p) {
		if !node.isDir {
			return nil, cmdrerrors.Wrap(cmdrerrors.NotFound, p, nil)
		}
		child, ok := node.children[part]
		if !ok {
			return nil, cmdrerrors.Wrap(cmdrerrors.NotFound, p, nil)
		}
		node = child
	}
	return node, nil
}

func (v *memoryVolume) lookupParent(p string) (*memoryNode, string, error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return nil, "", cmdrerrors.New(cmdrerrors.NotSupported, "cannot operate on the volume root")
	}
	node := v.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node.children[part]
		if !ok || !child.isDir {
			return nil, "", cmdrerrors.Wrap(cmdrerrors.NotFound, p, nil)
		}
		node = child
	}
	return node, parts[len(parts)-1], nil
}

func (n *memoryNode) toFileEntry(fullPath string) *fsutil.FileEntry {
	entry := &fsutil.FileEntry{
		Name:        n.name,
		Path:        fullPath,
		IsDirectory: n.isDir,
		ModifiedAt:  n.modifiedAt,
		CreatedAt:   n.modifiedAt,
		Permissions: 0o644,
	}
	if !n.isDir {
		size := uint64(len(n.data))
		entry.Size = &size
	}
	return entry
}

func (v *memoryVolume) ListDirectory(p string, onEntry func(count int) bool) ([]*fsutil.FileEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	node, err := v.lookup(p)
	if err != nil {
		return nil, err
	}
	if !node.isDir {
		return nil, cmdrerrors.New(cmdrerrors.NotSupported, p+" is not a directory")
	}

	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]*fsutil.FileEntry, 0, len(names))
	for i, name := range names {
		child := node.children[name]
		entries = append(entries, child.toFileEntry(path.Join(p, name)))
		if onEntry != nil && !onEntry(i+1) {
			break
		}
	}
	fsutil.SortEntries(entries, fsutil.SortByName, fsutil.SortAscending)
	return entries, nil
}

func (v *memoryVolume) GetMetadata(p string) (*fsutil.FileEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	node, err := v.lookup(p)
	if err != nil {
		return nil, err
	}
	return node.toFileEntry(p), nil
}

func (v *memoryVolume) Exists(p string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, err := v.lookup(p)
	if err != nil {
		if cmdrerrors.Is(err, cmdrerrors.NotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (v *memoryVolume) IsDirectory(p string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	node, err := v.lookup(p)
	if err != nil {
		return false, err
	}
	return node.isDir, nil
}

func (v *memoryVolume) SupportsWatching() bool { return false }

func (v *memoryVolume) LocalPath(p string) (string, bool) { return "", false }

func (v *memoryVolume) CreateFile(p string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	parent, name, err := v.lookupParent(p)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return cmdrerrors.Wrap(cmdrerrors.AlreadyExists, p, nil)
	}
	parent.children[name] = &memoryNode{name: name, modifiedAt: time.Now()}
	return nil
}

func (v *memoryVolume) CreateDirectory(p string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	parent, name, err := v.lookupParent(p)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return cmdrerrors.Wrap(cmdrerrors.AlreadyExists, p, nil)
	}
	parent.children[name] = newMemoryDir(name)
	return nil
}

func (v *memoryVolume) Delete(p string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	parent, name, err := v.lookupParent(p)
	if err != nil {
		return err
	}
	if node, ok := parent.children[name]; ok {
		v.used -= sizeOfTree(node)
	}
	delete(parent.children, name)
	return nil
}

func sizeOfTree(n *memoryNode) uint64 {
	if !n.isDir {
		return uint64(len(n.data))
	}
	var total uint64
	for _, child := range n.children {
		total += sizeOfTree(child)
	}
	return total
}

func (v *memoryVolume) Rename(from, to string, force bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	fromParent, fromName, err := v.lookupParent(from)
	if err != nil {
		return err
	}
	node, ok := fromParent.children[fromName]
	if !ok {
		return cmdrerrors.Wrap(cmdrerrors.NotFound, from, nil)
	}
	toParent, toName, err := v.lookupParent(to)
	if err != nil {
		return err
	}
	if _, exists := toParent.children[toName]; exists && !force {
		return cmdrerrors.WrapPaths(cmdrerrors.AlreadyExists, from, to, nil)
	}
	delete(fromParent.children, fromName)
	node.name = toName
	toParent.children[toName] = node
	return nil
}

func (v *memoryVolume) SupportsExport() bool { return true }

func (v *memoryVolume) ScanForCopy(sources []string, opts ScanOptions) (*ScanResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	result := &ScanResult{}
	maxSamples := opts.MaxConflictSamples
	if maxSamples <= 0 {
		maxSamples = 50
	}
	var walk func(p string, n *memoryNode) error
	walk = func(p string, n *memoryNode) error {
		if opts.Cancelled != nil && opts.Cancelled() {
			return cmdrerrors.New(cmdrerrors.Cancelled, "scan cancelled")
		}
		if n.isDir {
			result.DirCount++
			names := make([]string, 0, len(n.children))
			for name := range n.children {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if err := walk(path.Join(p, name), n.children[name]); err != nil {
					return err
				}
			}
			return nil
		}
		result.FileCount++
		result.TotalBytes += uint64(len(n.data))
		return nil
	}
	for _, source := range sources {
		node, err := v.lookup(source)
		if err != nil {
			return nil, err
		}
		if err := walk(source, node); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (v *memoryVolume) ExportToLocal(p, localDestination string) error {
	v.mu.RLock()
	node, err := v.lookup(p)
	v.mu.RUnlock()
	if err != nil {
		return err
	}
	if node.isDir {
		return cmdrerrors.New(cmdrerrors.NotSupported, "exporting a directory requires recursive export")
	}
	if writeErr := writeLocalFile(localDestination, node.data); writeErr != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, localDestination, writeErr)
	}
	return nil
}

func (v *memoryVolume) ImportFromLocal(localSource, p string) error {
	data, err := readLocalFile(localSource)
	if err != nil {
		if os.IsNotExist(err) {
			return cmdrerrors.Wrap(cmdrerrors.NotFound, localSource, err)
		}
		return cmdrerrors.Wrap(cmdrerrors.IoError, localSource, err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	parent, name, err := v.lookupParent(p)
	if err != nil {
		return err
	}
	if v.quota > 0 && v.used+uint64(len(data)) > v.quota {
		return cmdrerrors.New(cmdrerrors.DiskSpace, "in-memory volume quota exceeded")
	}
	parent.children[name] = &memoryNode{name: name, data: data, modifiedAt: time.Now()}
	v.used += uint64(len(data))
	return nil
}

func (v *memoryVolume) ScanForConflicts(destinationDir string, names []string) ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	node, err := v.lookup(destinationDir)
	if err != nil {
		if cmdrerrors.Is(err, cmdrerrors.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	var colliding []string
	for _, name := range names {
		if _, exists := node.children[name]; exists {
			colliding = append(colliding, name)
		}
	}
	return colliding, nil
}

func (v *memoryVolume) GetSpaceInfo(p string) (SpaceInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.quota == 0 {
		return SpaceInfo{TotalBytes: 0, AvailableBytes: ^uint64(0)}, nil
	}
	available := uint64(0)
	if v.quota > v.used {
		available = v.quota - v.used
	}
	return SpaceInfo{TotalBytes: v.quota, AvailableBytes: available}, nil
}

func (v *memoryVolume) SupportsStreaming() bool { return true }

func (v *memoryVolume) OpenReadStream(p string) (io.ReadCloser, error) {
	v.mu.RLock()
	node, err := v.lookup(p)
	v.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if node.isDir {
		return nil, cmdrerrors.New(cmdrerrors.NotSupported, "cannot stream a directory")
	}
	return io.NopCloser(bytes.NewReader(node.data)), nil
}

func (v *memoryVolume) WriteFromStream(p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, p, err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	parent, name, err := v.lookupParent(p)
	if err != nil {
		return err
	}
	if v.quota > 0 && v.used+uint64(len(data)) > v.quota {
		return cmdrerrors.New(cmdrerrors.DiskSpace, "in-memory volume quota exceeded")
	}
	parent.children[name] = &memoryNode{name: name, data: data, modifiedAt: time.Now()}
	v.used += uint64(len(data))
	return nil
}
