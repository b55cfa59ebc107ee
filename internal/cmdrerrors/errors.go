// Package cmdrerrors implements the closed error taxonomy described in
// spec.md §7 and a single rendering function so that user-visible text is
// consistent no matter which event channel (listing, write-op, viewer)
// surfaces the error.
package cmdrerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies one member of the closed error taxonomy.
type Code int

const (
	// NotFound indicates the target entity does not exist.
	NotFound Code = iota
	// AlreadyExists indicates a write would collide and no resolution permits overwrite.
	AlreadyExists
	// PermissionDenied indicates the OS denied the operation.
	PermissionDenied
	// NotSupported indicates the feature is unavailable on this volume variant.
	NotSupported
	// Cancelled indicates a cancellation flag was observed while the operation was in flight.
	Cancelled
	// DestinationInsideSource indicates a recursive copy would be unbounded.
	DestinationInsideSource
	// SameFile indicates source and destination resolve to the same inode.
	SameFile
	// DiskSpace indicates a pre-flight free-space check failed.
	DiskSpace
	// NameTooLong indicates a filename exceeds the permitted byte length.
	NameTooLong
	// PathTooLong indicates a full path exceeds the permitted byte length.
	PathTooLong
	// IoError is everything else surfaced from the OS.
	IoError
	// Parse indicates a malformed value (e.g. a protocol response) was encountered.
	Parse
	// Timeout indicates an operation exceeded its deadline.
	Timeout
	// Unavailable indicates a remote/volume endpoint could not be reached.
	Unavailable
	// ProtocolError indicates a transport-level protocol violation (MTP/network).
	ProtocolError
)

// String returns a short machine-stable name for the code.
func (c Code) String() string {
	switch c {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case PermissionDenied:
		return "PermissionDenied"
	case NotSupported:
		return "NotSupported"
	case Cancelled:
		return "Cancelled"
	case DestinationInsideSource:
		return "DestinationInsideSource"
	case SameFile:
		return "SameFile"
	case DiskSpace:
		return "DiskSpace"
	case NameTooLong:
		return "NameTooLong"
	case PathTooLong:
		return "PathTooLong"
	case IoError:
		return "IoError"
	case Parse:
		return "Parse"
	case Timeout:
		return "Timeout"
	case Unavailable:
		return "Unavailable"
	case ProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried across every subsystem boundary.
// It deliberately keeps very little state: a code, the offending path(s),
// and an optional wrapped cause, so that it can be constructed uniformly
// from volume, write-op, and viewer code alike.
type Error struct {
	Code    Code
	Path    string
	Path2   string // secondary path, e.g. destination for SameFile/DestinationInsideSource
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return Render(e)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error with the given code, wrapping cause, and a path.
func Wrap(code Code, path string, cause error) *Error {
	return &Error{Code: code, Path: path, Cause: cause}
}

// WrapPaths constructs an Error carrying two paths (source/destination).
func WrapPaths(code Code, path, path2 string, cause error) *Error {
	return &Error{Code: code, Path: path, Path2: path2, Cause: cause}
}

// Is reports whether err, or any error it wraps, is an *Error carrying
// code, found with errors.As.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Render produces the single, user-visible rendering of an error, used by
// every event channel so message wording never diverges between the
// listing, write-op, and viewer surfaces.
func Render(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Code {
	case NotFound:
		return fmt.Sprintf("%s: no such file or directory", e.Path)
	case AlreadyExists:
		return fmt.Sprintf("%s: already exists", e.Path)
	case PermissionDenied:
		return fmt.Sprintf("%s: permission denied", e.Path)
	case NotSupported:
		if e.Message != "" {
			return fmt.Sprintf("not supported: %s", e.Message)
		}
		return fmt.Sprintf("%s: operation not supported on this volume", e.Path)
	case Cancelled:
		if e.Message != "" {
			return fmt.Sprintf("cancelled: %s", e.Message)
		}
		return "operation cancelled"
	case DestinationInsideSource:
		return fmt.Sprintf("cannot copy %s into itself (%s is inside %s)", e.Path, e.Path2, e.Path)
	case SameFile:
		return fmt.Sprintf("%s and %s are the same file", e.Path, e.Path2)
	case DiskSpace:
		return fmt.Sprintf("not enough free space at %s", e.Path)
	case NameTooLong:
		return fmt.Sprintf("%s: filename too long", e.Path)
	case PathTooLong:
		return fmt.Sprintf("%s: path too long", e.Path)
	case Parse:
		return fmt.Sprintf("unable to parse response: %s", e.Message)
	case Timeout:
		return fmt.Sprintf("%s: operation timed out", e.Path)
	case Unavailable:
		return fmt.Sprintf("%s: unavailable", e.Path)
	case ProtocolError:
		return fmt.Sprintf("protocol error: %s", e.Message)
	default: // IoError and anything unclassified
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Path, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
}
