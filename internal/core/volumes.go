package core

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/volume"
)

// volumeRegistry is the process-wide registry of open volumes, per spec.md
// §4.4/§6's list_volumes/get_default_volume_id/find_containing_volume
// command group. It starts empty (Core.New registers no volume); the first
// volume registered becomes the default.
type volumeRegistry struct {
	mu            sync.RWMutex
	volumes       map[string]volume.Volume
	order         []string // registration order, for a stable list_volumes result
	defaultVolume string
}

func newVolumeRegistry() *volumeRegistry {
	return &volumeRegistry{volumes: make(map[string]volume.Volume)}
}

// register adds v to the registry. The first volume registered becomes the
// default.
func (r *volumeRegistry) register(v volume.Volume) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.volumes[v.ID()]; !exists {
		r.order = append(r.order, v.ID())
	}
	r.volumes[v.ID()] = v
	if r.defaultVolume == "" {
		r.defaultVolume = v.ID()
	}
}

// unregister removes a volume, used when an MTP device is closed.
func (r *volumeRegistry) unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.volumes, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *volumeRegistry) get(id string) (volume.Volume, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.volumes[id]
	return v, ok
}

// list implements list_volumes, in registration order.
func (r *volumeRegistry) list() []volume.Volume {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]volume.Volume, 0, len(r.order))
	for _, id := range r.order {
		if v, ok := r.volumes[id]; ok {
			result = append(result, v)
		}
	}
	return result
}

// defaultVolumeID implements get_default_volume_id.
func (r *volumeRegistry) defaultVolumeID() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultVolume, r.defaultVolume != ""
}

// findContaining implements find_containing_volume: the local volume whose
// root is the longest matching prefix of path, since local volumes are the
// only kind addressed by a real OS path (spec.md §4.4: LocalPath returns
// ok=false for MTP/in-memory).
func (r *volumeRegistry) findContaining(path string) (volume.Volume, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cleaned := filepath.Clean(path)
	var best volume.Volume
	var bestLen int
	for _, id := range r.order {
		v, ok := r.volumes[id]
		if !ok {
			continue
		}
		if _, isLocal := v.LocalPath(""); !isLocal {
			continue
		}
		root := v.Root()
		if root == "" {
			continue
		}
		if !isWithinRoot(cleaned, root) {
			continue
		}
		if len(root) > bestLen {
			best = v
			bestLen = len(root)
		}
	}
	if best == nil {
		return nil, cmdrerrors.New(cmdrerrors.NotFound, "no volume contains "+path)
	}
	return best, nil
}

func isWithinRoot(path, root string) bool {
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// getSpace implements get_volume_space: resolves the containing volume for
// path and asks it for its free-space figures.
func (r *volumeRegistry) getSpace(path string) (volume.SpaceInfo, error) {
	v, err := r.findContaining(path)
	if err != nil {
		return volume.SpaceInfo{}, err
	}
	return v.GetSpaceInfo(path)
}
