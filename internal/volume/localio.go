package volume

import (
	"bytes"
	"io"
	"os"
)

// readLocalFile and writeLocalFile are small helpers shared by the
// non-local volume variants' ExportToLocal/ImportFromLocal implementations,
// which need to read/write a concrete OS path without going through a
// Volume (the local side of a cross-volume transfer, per spec.md §4.4, is
// always a plain OS path, not a Volume-relative one).
func readLocalFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func writeLocalFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// bytesReader adapts an in-memory byte slice to an io.Reader for callers
// that otherwise deal exclusively in streams.
func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
