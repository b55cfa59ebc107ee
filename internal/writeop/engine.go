package writeop

import (
	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/logging"
	"github.com/vdavid/cmdr-core/internal/volume"
)

// Engine runs write operations against a pair of volumes, per spec.md
// §4.2's copy_start/move_start/delete_start contract.
type Engine struct {
	logger *logging.Logger
}

// NewEngine creates an Engine. logger may be nil.
func NewEngine(logger *logging.Logger) *Engine {
	return &Engine{logger: logger}
}

// StartCopy begins a copy operation and returns it immediately in
// PhaseScanning; the result arrives on its event channel.
func (e *Engine) StartCopy(sourceVol volume.Volume, sources []string, destVol volume.Volume, destDir string, cfg Config) *WriteOperation {
	op := newOperation(Copy, cfg)
	go e.run(op, sourceVol, sources, destVol, destDir)
	return op
}

// StartMove begins a move operation.
func (e *Engine) StartMove(sourceVol volume.Volume, sources []string, destVol volume.Volume, destDir string, cfg Config) *WriteOperation {
	op := newOperation(Move, cfg)
	go e.run(op, sourceVol, sources, destVol, destDir)
	return op
}

// StartDelete begins a delete operation; sources are deleted from
// sourceVol. It takes no destination volume or directory.
func (e *Engine) StartDelete(sourceVol volume.Volume, sources []string, cfg Config) *WriteOperation {
	op := newOperation(Delete, cfg)
	go e.run(op, sourceVol, sources, nil, "")
	return op
}

func (e *Engine) run(op *WriteOperation, sourceVol volume.Volume, sources []string, destVol volume.Volume, destDir string) {
	defer close(op.events)

	if op.Type != Delete {
		if err := preflight(sourceVol, sources, destVol, destDir); err != nil {
			e.fail(op, err)
			return
		}
	}

	summary, err := scanSources(sourceVol, sources, destDir, op.config, op.isCancelled)
	if err != nil {
		if cmdrerrors.Is(err, cmdrerrors.Cancelled) {
			op.setPhase(PhaseCancelled)
			op.emit(CancelledEvent{baseEvent{op.OperationID}})
			return
		}
		e.fail(op, err)
		return
	}
	if op.isCancelled() {
		op.setPhase(PhaseCancelled)
		op.emit(CancelledEvent{baseEvent{op.OperationID}})
		return
	}

	if op.Type != Delete {
		if space, err := destVol.GetSpaceInfo(destDir); err == nil {
			if space.AvailableBytes < summary.TotalBytes {
				e.fail(op, cmdrerrors.New(cmdrerrors.DiskSpace, "not enough free space at destination"))
				return
			}
		}
	}

	if op.config.DryRun {
		op.setPhase(PhaseComplete)
		op.emit(CompleteEvent{baseEvent{op.OperationID}, *summary})
		return
	}

	op.setPhase(PhaseCopying)
	progress := newProgressTracker(op, op.config.ProgressInterval, summary.TotalBytes, summary.FileCount)
	visited := fsutil.NewVisitedSet()

	var runErr error
	switch op.Type {
	case Copy:
		for _, source := range sources {
			if op.isCancelled() {
				break
			}
			if err := copyTree(op, sourceVol, source, destVol, destDir, op.config, progress, e.logger, visited); err != nil {
				runErr = err
				break
			}
		}
	case Move:
		for _, source := range sources {
			if op.isCancelled() {
				break
			}
			if err := moveTree(op, sourceVol, source, destVol, destDir, op.config, progress, e.logger, visited); err != nil {
				runErr = err
				break
			}
		}
	case Delete:
		runErr = deleteTree(op, sourceVol, sources, progress)
	}

	op.setPhase(PhaseFinalizing)

	if runErr != nil {
		if !op.skipRollback.Load() && destVol != nil {
			rollback(destVol, op.transactionSnapshot())
		}
		e.fail(op, runErr)
		return
	}

	if op.isCancelled() {
		if !op.skipRollback.Load() && destVol != nil {
			rollback(destVol, op.transactionSnapshot())
		}
		op.setPhase(PhaseCancelled)
		op.emit(CancelledEvent{baseEvent{op.OperationID}})
		return
	}

	op.setPhase(PhaseComplete)
	op.emit(CompleteEvent{baseEvent{op.OperationID}, *summary})
}

func (e *Engine) fail(op *WriteOperation, err error) {
	if e.logger != nil {
		e.logger.Error(err)
	}
	op.setPhase(PhaseError)
	op.emit(ErrorEvent{baseEvent{op.OperationID}, cmdrerrors.Render(err)})
}
