package writeop

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vdavid/cmdr-core/internal/volume"
)

// ScanPreview is one independently started, cancellable pre-flight scan,
// per spec.md §4.3: "A scan can be started independently via
// start_scan_preview and cancelled."
type ScanPreview struct {
	ScanID    string
	cancelled atomic.Bool
	done      chan struct{}

	mu     sync.Mutex
	result *volume.ScanResult
	err    error
}

// StartScanPreview runs scanSources on a background goroutine and returns
// immediately with a cancellable handle.
func StartScanPreview(sourceVol volume.Volume, sources []string, destDir string, cfg Config) *ScanPreview {
	preview := &ScanPreview{ScanID: uuid.NewString(), done: make(chan struct{})}
	go func() {
		defer close(preview.done)
		result, err := scanSources(sourceVol, sources, destDir, cfg, preview.cancelled.Load)
		preview.mu.Lock()
		preview.result, preview.err = result, err
		preview.mu.Unlock()
	}()
	return preview
}

// Cancel requests cancellation; the preview still runs to its next
// checkpoint before observing the flag.
func (p *ScanPreview) Cancel() { p.cancelled.Store(true) }

// Done returns a channel closed once the preview finishes or is cancelled.
func (p *ScanPreview) Done() <-chan struct{} { return p.done }

// Result returns the scan outcome once Done is closed; calling it earlier
// returns (nil, nil).
func (p *ScanPreview) Result() (*volume.ScanResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.err
}
