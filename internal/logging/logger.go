// Package logging provides a small, prefix-chained logger used by every
// subsystem in this module. It mirrors the structure of a process-wide
// logging facility without requiring a global instance: callers construct
// one root logger and hand derived subloggers down to each component.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

// DebugEnabled controls whether Debug* methods produce output. It is a
// package-level switch (rather than a per-logger field) so that a single
// environment flag can enable verbose output across an entire process.
var DebugEnabled = os.Getenv("CMDR_DEBUG") != ""

// Logger is the core logging type. It is safe to use with a nil receiver:
// every method is a no-op in that case, so components can be constructed
// with an absent logger in tests without guarding every call site.
type Logger struct {
	prefix string
	output *log.Logger
}

// NewRoot creates a new root logger that writes to the given writer. If w is
// nil, os.Stderr is used.
func NewRoot(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{output: log.New(w, "", log.LstdFlags)}
}

// Sublogger creates a new logger with the given name appended to the prefix
// chain, e.g. root.Sublogger("listing").Sublogger("cache") logs with the
// prefix "listing.cache".
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix, output: l.output}
}

func (l *Logger) line(format string, v ...interface{}) string {
	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s", l.prefix, msg)
	}
	return msg
}

// Info logs an informational message.
func (l *Logger) Info(format string, v ...interface{}) {
	if l == nil || l.output == nil {
		return
	}
	l.output.Output(2, l.line(format, v...))
}

// Debug logs a message only when DebugEnabled is set.
func (l *Logger) Debug(format string, v ...interface{}) {
	if l == nil || l.output == nil || !DebugEnabled {
		return
	}
	l.output.Output(2, l.line(format, v...))
}

// Warn logs a warning in yellow.
func (l *Logger) Warn(err error) {
	if l == nil || l.output == nil {
		return
	}
	l.output.Output(2, l.line("%s", color.YellowString("warning: %v", err)))
}

// Error logs an error in red.
func (l *Logger) Error(err error) {
	if l == nil || l.output == nil {
		return
	}
	l.output.Output(2, l.line("%s", color.RedString("error: %v", err)))
}
