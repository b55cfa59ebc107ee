// Package writeop implements the write-operation engine of spec.md §4.2:
// copy, move, and delete pipelines with pre-flight scanning, conflict
// resolution, rollback, safe overwrite, chunked network copy, and
// cross-volume staging. It is grounded on the teacher's pkg/state.Tracker
// condition-variable idiom (generalized from an index tracker into the
// per-operation conflict gate) and pkg/filesystem's atomic-rename and
// bounded-parallel-descent patterns.
package writeop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vdavid/cmdr-core/internal/volume"
)

// OperationType identifies which pipeline a WriteOperation runs.
type OperationType int

const (
	Copy OperationType = iota
	Move
	Delete
)

// Phase is one state in the write-operation state machine of spec.md §4.2.
type Phase int

const (
	PhaseScanning Phase = iota
	PhaseAwaitingResolve
	PhaseCopying
	PhaseFinalizing
	PhaseComplete
	PhaseCancelled
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "Scanning"
	case PhaseAwaitingResolve:
		return "AwaitingResolve"
	case PhaseCopying:
		return "Copying"
	case PhaseFinalizing:
		return "Finalizing"
	case PhaseComplete:
		return "Complete"
	case PhaseCancelled:
		return "Cancelled"
	case PhaseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ConflictResolution is the action taken when a destination path already
// exists.
type ConflictResolution int

const (
	Stop ConflictResolution = iota
	Skip
	Overwrite
	Rename
)

// ScanSummary is the pre-flight walk output reported in CompleteEvent,
// matching volume.ScanResult (spec.md §3 "ScanResult").
type ScanSummary = volume.ScanResult

// Config configures one write operation, per spec.md §4.2.
type Config struct {
	ConflictResolution ConflictResolution
	DryRun             bool
	PreserveMetadata   bool
	ProgressInterval   time.Duration
	MaxConcurrentScans int
	MaxConflictSamples int
	NetworkCopyChunk   int64
}

// pendingConflict is the single outstanding conflict slot named in
// spec.md §3's WriteOperation data model.
type pendingConflict struct {
	relativePath string
	resolved     bool
	resolution   ConflictResolution
}

// WriteOperation is one copy/move/delete in flight, per spec.md §3.
// Conflict gating follows the teacher's state.Tracker shape: a
// sync.Cond-guarded slot that wakes on either a stored resolution or a
// cancellation, generalized here from an index counter to a one-shot
// conflict decision.
type WriteOperation struct {
	OperationID string
	Type        OperationType
	config      Config

	phase     atomic.Int32
	cancelled atomic.Bool

	skipRollback atomic.Bool

	conflictMu             sync.Mutex
	conflictCond           *sync.Cond
	conflict               *pendingConflict
	applyToAllResolution   *ConflictResolution
	applyToAllResolutionMu sync.Mutex

	transactionMu sync.Mutex
	transaction   []string

	events chan Event
}

func newOperation(opType OperationType, cfg Config) *WriteOperation {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 200 * time.Millisecond
	}
	if cfg.MaxConcurrentScans <= 0 {
		cfg.MaxConcurrentScans = 8
	}
	if cfg.MaxConflictSamples <= 0 {
		cfg.MaxConflictSamples = 50
	}
	if cfg.NetworkCopyChunk <= 0 {
		cfg.NetworkCopyChunk = 1 << 20
	}
	op := &WriteOperation{
		OperationID: uuid.NewString(),
		Type:        opType,
		config:      cfg,
		events:      make(chan Event, 16),
	}
	op.conflictCond = sync.NewCond(&op.conflictMu)
	op.phase.Store(int32(PhaseScanning))
	return op
}

// Phase reports the operation's current state-machine phase.
func (op *WriteOperation) Phase() Phase {
	return Phase(op.phase.Load())
}

func (op *WriteOperation) setPhase(p Phase) {
	op.phase.Store(int32(p))
}

// Cancel requests a graceful stop, per spec.md §4.2's cancel contract.
// skipRollback, if true, suppresses the rollback pass on this cancellation.
func (op *WriteOperation) Cancel(skipRollback bool) {
	if skipRollback {
		op.skipRollback.Store(true)
	}
	op.cancelled.Store(true)
	op.conflictMu.Lock()
	op.conflictCond.Broadcast()
	op.conflictMu.Unlock()
}

func (op *WriteOperation) isCancelled() bool {
	return op.cancelled.Load()
}

// ResolveConflict unblocks an operation parked in PhaseAwaitingResolve,
// per spec.md §4.2's resolve_conflict contract. applyToAll remembers the
// resolution for subsequent conflicts in the same operation.
func (op *WriteOperation) ResolveConflict(resolution ConflictResolution, applyToAll bool) {
	op.conflictMu.Lock()
	defer op.conflictMu.Unlock()
	if op.conflict != nil {
		op.conflict.resolved = true
		op.conflict.resolution = resolution
	}
	if applyToAll {
		r := resolution
		op.applyToAllResolutionMu.Lock()
		op.applyToAllResolution = &r
		op.applyToAllResolutionMu.Unlock()
	}
	op.conflictCond.Broadcast()
}

// resolveConflictFor blocks until a resolution is available for
// relativePath, consulting any remembered apply-to-all choice first. It
// returns the resolution and whether the operation was cancelled while
// waiting.
func (op *WriteOperation) resolveConflictFor(relativePath string) (ConflictResolution, bool) {
	op.applyToAllResolutionMu.Lock()
	remembered := op.applyToAllResolution
	op.applyToAllResolutionMu.Unlock()
	if remembered != nil {
		return *remembered, op.isCancelled()
	}
	if op.config.ConflictResolution != Stop {
		return op.config.ConflictResolution, op.isCancelled()
	}

	op.setPhase(PhaseAwaitingResolve)

	op.conflictMu.Lock()
	defer op.conflictMu.Unlock()
	op.conflict = &pendingConflict{relativePath: relativePath}
	op.emit(ConflictEvent{baseEvent{op.OperationID}, relativePath})
	for !op.conflict.resolved && !op.isCancelled() {
		op.conflictCond.Wait()
	}
	cancelled := op.isCancelled()
	resolution := op.conflict.resolution
	op.conflict = nil
	op.setPhase(PhaseCopying)
	return resolution, cancelled
}

// recordTransaction appends path to the rollback journal, per spec.md
// §4.2 "Rollback": every created path (file or directory) is recorded so
// it can be removed in reverse order on error or cancellation.
func (op *WriteOperation) recordTransaction(path string) {
	op.transactionMu.Lock()
	op.transaction = append(op.transaction, path)
	op.transactionMu.Unlock()
}

// transactionSnapshot returns a copy of the transaction journal for
// rollback, taken under lock since the operation's own goroutine is the
// only writer but callers outside it (e.g. the engine's failure path)
// should not race a concurrent recordTransaction.
func (op *WriteOperation) transactionSnapshot() []string {
	op.transactionMu.Lock()
	defer op.transactionMu.Unlock()
	return append([]string(nil), op.transaction...)
}

func (op *WriteOperation) emit(e Event) {
	select {
	case op.events <- e:
	default:
		<-op.events
		op.events <- e
	}
}

// Events returns the channel terminal and progress events are delivered
// on. It is closed after the terminal event.
func (op *WriteOperation) Events() <-chan Event { return op.events }
