// Package viewer implements the on-demand file viewer of spec.md §4.5: a
// session per open file whose serving strategy adapts to file size
// (FullLoad, LineIndex, ByteSeek), upgrading ByteSeek to LineIndex in the
// background exactly once indexing completes. It is grounded on the
// teacher's pkg/synchronization/core preemptable-write idiom (a writer that
// checks a cancellation channel every N operations, generalized here into
// buildLineIndex's periodic cancellation poll) and pkg/synchronization/rsync's
// block-boundary bookkeeping (generalized from rolling-checksum block
// offsets into LineIndex's sparse line-to-byte-offset checkpoints).
package viewer

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

// Backend identifies which serving strategy a session currently uses.
type Backend int

const (
	FullLoad Backend = iota
	LineIndex
	ByteSeek
)

func (b Backend) String() string {
	switch b {
	case FullLoad:
		return "FullLoad"
	case LineIndex:
		return "LineIndex"
	case ByteSeek:
		return "ByteSeek"
	default:
		return "Unknown"
	}
}

// TargetType identifies what kind of coordinate a seek targets, per
// spec.md §4.5's seek semantics table.
type TargetType int

const (
	Line TargetType = iota
	ByteOffset
	Fraction
)

// SeekTarget is the tagged union passed to GetLines, mirroring
// viewer_get_lines(session, target_type, target_value, count) of spec.md §6.
type SeekTarget struct {
	Type       TargetType
	LineNumber int64   // valid when Type == Line
	Offset     uint64  // valid when Type == ByteOffset
	Fraction   float64 // valid when Type == Fraction, in [0, 1]
}

// LineResult is one served line.
type LineResult struct {
	Number     int64
	ByteOffset uint64
	Text       string
}

// backend is the strategy interface every concrete backend satisfies. It is
// unexported: callers only see Backend (the enum) via Session.CurrentBackend.
type backend interface {
	kind() Backend
	getLines(target SeekTarget, count int) ([]LineResult, error)
	totalLines() (int64, bool)
	search(query string, opts SearchOptions, cancelled func() bool, onMatch func(Match), onProgress func(bytesScanned int64)) (bytesScanned int64, err error)
	close() error
}

// Session is one open file viewer, per spec.md §3's ViewerSession. Its
// backend may only ever upgrade ByteSeek→LineIndex; the swap is atomic so a
// concurrent GetLines call never observes a half-upgraded session.
type Session struct {
	SessionID  string
	Path       string
	FileName   string
	TotalBytes uint64

	backendPtr atomic.Pointer[backend]

	searchMu sync.Mutex
	search   *searchState

	indexCancel atomic.Bool
}

// CurrentBackend reports which strategy is currently serving this session.
func (s *Session) CurrentBackend() Backend {
	b := *s.backendPtr.Load()
	return b.kind()
}

// TotalLines reports the exact line count if the current backend can supply
// one (false for ByteSeek, per spec.md §4.5).
func (s *Session) TotalLines() (int64, bool) {
	b := *s.backendPtr.Load()
	return b.totalLines()
}

// GetLines implements viewer_get_lines, dispatching to whichever backend is
// currently active.
func (s *Session) GetLines(target SeekTarget, count int) ([]LineResult, error) {
	b := *s.backendPtr.Load()
	return b.getLines(target, count)
}

func (s *Session) upgradeTo(b backend) {
	s.backendPtr.Store(&b)
}

// Viewer manages the set of open sessions, per spec.md §4.5/§6.
type Viewer struct {
	config Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// Config configures viewer thresholds, mirroring internal/config.Config's
// Viewer section so callers can pass it through directly.
type Config struct {
	FullLoadThresholdBytes    int64
	LineIndexCheckpointStride int
	ByteSeekBackscanBytes     int64
}

// NewViewer creates a Viewer. A zero Config falls back to the defaults named
// in spec.md §4.5 (1 MiB, K=256, 8 KiB).
func NewViewer(cfg Config) *Viewer {
	if cfg.FullLoadThresholdBytes <= 0 {
		cfg.FullLoadThresholdBytes = 1 << 20
	}
	if cfg.LineIndexCheckpointStride <= 0 {
		cfg.LineIndexCheckpointStride = 256
	}
	if cfg.ByteSeekBackscanBytes <= 0 {
		cfg.ByteSeekBackscanBytes = 8 << 10
	}
	return &Viewer{config: cfg, sessions: make(map[string]*Session)}
}

// Open implements viewer_open: selects FullLoad for files at or below the
// configured threshold, otherwise opens ByteSeek immediately and starts a
// background indexing task that upgrades the session to LineIndex once done.
func (v *Viewer) Open(path string) (*Session, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cmdrerrors.Wrap(cmdrerrors.NotFound, path, err)
		}
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}
	if info.IsDir() {
		return nil, cmdrerrors.New(cmdrerrors.NotSupported, path+" is a directory")
	}

	session := &Session{
		SessionID:  uuid.NewString(),
		Path:       path,
		FileName:   info.Name(),
		TotalBytes: uint64(info.Size()),
	}

	var initial backend
	if info.Size() <= v.config.FullLoadThresholdBytes {
		loaded, err := newFullLoadBackend(path)
		if err != nil {
			return nil, err
		}
		initial = loaded
	} else {
		seek, err := newByteSeekBackend(path, uint64(info.Size()), v.config.ByteSeekBackscanBytes)
		if err != nil {
			return nil, err
		}
		initial = seek
		go v.indexInBackground(session, path, v.config.LineIndexCheckpointStride)
	}
	session.backendPtr.Store(&initial)

	v.mu.Lock()
	v.sessions[session.SessionID] = session
	v.mu.Unlock()
	return session, nil
}

// indexInBackground builds a LineIndex against an independent file handle
// and swaps it in atomically, per spec.md §9's "Viewer backend upgrade"
// design note. Indexing is cancellable: Close cancels any in-flight index
// build for its session.
func (v *Viewer) indexInBackground(session *Session, path string, stride int) {
	index, err := buildLineIndex(path, stride, func() bool { return session.indexCancel.Load() })
	if err != nil || index == nil {
		return
	}
	var upgraded backend = index
	session.upgradeTo(upgraded)
}

// Get returns the session for an id, per every viewer_* command taking
// session as its first argument.
func (v *Viewer) Get(sessionID string) (*Session, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sessions[sessionID]
	return s, ok
}

// Close implements viewer_close: cancels any in-flight indexing or search
// and releases the session.
func (v *Viewer) Close(sessionID string) error {
	v.mu.Lock()
	session, ok := v.sessions[sessionID]
	delete(v.sessions, sessionID)
	v.mu.Unlock()
	if !ok {
		return cmdrerrors.Wrap(cmdrerrors.NotFound, sessionID, nil)
	}
	session.indexCancel.Store(true)
	session.CancelSearch()
	b := *session.backendPtr.Load()
	return b.close()
}
