package writeop

// Event is the common interface for every event emitted on a write
// operation's event channel, per spec.md §6.
type Event interface {
	OperationID() string
}

type baseEvent struct{ operationID string }

func (e baseEvent) OperationID() string { return e.operationID }

// ProgressEvent corresponds to write-progress, emitted at the operation's
// configured interval (spec.md §4.2: "capping at one emit per 200 ms by
// default"). Speed and ETA are pre-formatted with go-humanize so every
// event channel renders them identically.
type ProgressEvent struct {
	baseEvent
	BytesCompleted uint64
	BytesTotal     uint64
	FilesCompleted uint64
	FilesTotal     uint64
	CurrentPath    string
	Speed          string
	ETA            string
}

// ConflictEvent corresponds to write-conflict: the operation is parked on
// its condition variable awaiting ResolveConflict.
type ConflictEvent struct {
	baseEvent
	RelativePath string
}

// CompleteEvent corresponds to write-complete, the terminal success event.
type CompleteEvent struct {
	baseEvent
	Summary ScanSummary
}

// CancelledEvent corresponds to write-cancelled, terminal.
type CancelledEvent struct{ baseEvent }

// ErrorEvent corresponds to write-error, terminal.
type ErrorEvent struct {
	baseEvent
	Message string
}
