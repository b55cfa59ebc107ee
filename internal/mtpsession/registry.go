package mtpsession

import (
	"context"
	"sync"
	"time"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/logging"
)

// Registry is the process-wide device registry of spec.md §4.6: "One
// registry per process, keyed by device id."
type Registry struct {
	logger *logging.Logger

	listingTTL     time.Duration
	debounceWindow time.Duration

	mu      sync.RWMutex
	devices map[string]*Device
}

// NewRegistry creates an empty Registry. listingTTL and debounceWindow are
// applied to every device opened through it (SPEC_FULL.md §1's
// configuration layer supplies these from internal/config.Config.MTP).
func NewRegistry(logger *logging.Logger, listingTTL, debounceWindow time.Duration) *Registry {
	return &Registry{
		logger:         logger,
		listingTTL:     listingTTL,
		debounceWindow: debounceWindow,
		devices:        make(map[string]*Device),
	}
}

// Open registers a new device session backed by transport and starts its
// event loop. Calling Open twice for the same deviceID replaces the prior
// session after closing it.
func (r *Registry) Open(ctx context.Context, deviceID string, storageID uint32, transport Transport) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.devices[deviceID]; ok {
		existing.Close()
	}

	device := newDevice(deviceID, storageID, transport, r.listingTTL, r.debounceWindow, r.logger.Sublogger(deviceID))
	r.devices[deviceID] = device
	go device.runEventLoop(ctx)
	return device
}

// Get returns a previously opened device, or false if none is registered
// under deviceID.
func (r *Registry) Get(deviceID string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	return d, ok
}

// Close shuts down one device's event loop and removes it from the
// registry.
func (r *Registry) Close(deviceID string) error {
	r.mu.Lock()
	device, ok := r.devices[deviceID]
	if ok {
		delete(r.devices, deviceID)
	}
	r.mu.Unlock()
	if !ok {
		return cmdrerrors.New(cmdrerrors.NotFound, "device "+deviceID+" is not open")
	}
	device.Close()
	return nil
}

// CloseAll shuts down every open device, used during process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	devices := make([]*Device, 0, len(r.devices))
	for id, d := range r.devices {
		devices = append(devices, d)
		delete(r.devices, id)
	}
	r.mu.Unlock()
	for _, d := range devices {
		d.Close()
	}
}
