package viewer

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

// byteSeekBackend implements spec.md §4.5's ByteSeek strategy: no pre-scan,
// instant open on arbitrarily large files. It trades exact line addressing
// for zero startup cost and is used only until the background LineIndex
// build completes and upgrades the session.
type byteSeekBackend struct {
	path          string
	totalBytes    uint64
	backscanBytes int64
}

func newByteSeekBackend(path string, totalBytes uint64, backscanBytes int64) (*byteSeekBackend, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}
	return &byteSeekBackend{path: path, totalBytes: totalBytes, backscanBytes: backscanBytes}, nil
}

func (b *byteSeekBackend) kind() Backend { return ByteSeek }

// totalLines is unknown for ByteSeek, per spec.md §4.5.
func (b *byteSeekBackend) totalLines() (int64, bool) { return 0, false }

func (b *byteSeekBackend) getLines(target SeekTarget, count int) ([]LineResult, error) {
	if count <= 0 {
		count = 1
	}
	offset := b.resolveOffset(target)
	alignedOffset, err := b.alignToLineStart(offset)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(b.path)
	if err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, b.path, err)
	}
	defer f.Close()
	if _, err := f.Seek(int64(alignedOffset), 0); err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, b.path, err)
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	var results []LineResult
	lineOffset := alignedOffset
	for len(results) < count {
		line, readErr := reader.ReadString('\n')
		if len(line) == 0 && readErr != nil {
			break
		}
		text := trimTerminator(line)
		// Line numbers are not addressable in ByteSeek, so Number reflects
		// only this result's position within the batch, not an absolute
		// file line number.
		results = append(results, LineResult{Number: int64(len(results)), ByteOffset: lineOffset, Text: text})
		lineOffset += uint64(len(line))
		if readErr != nil {
			break
		}
	}
	return results, nil
}

// resolveOffset maps a SeekTarget to a byte offset, per spec.md §4.5's
// ByteSeek column: Line(n) defaults to start, ByteOffset(o) is used as-is,
// Fraction(f) maps to round(f*total_bytes).
func (b *byteSeekBackend) resolveOffset(target SeekTarget) uint64 {
	switch target.Type {
	case Line:
		return 0
	case ByteOffset:
		if target.Offset > b.totalBytes {
			return b.totalBytes
		}
		return target.Offset
	case Fraction:
		f := target.Fraction
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		return uint64(f*float64(b.totalBytes) + 0.5)
	default:
		return 0
	}
}

// alignToLineStart scans backward at most backscanBytes from offset for a
// newline, per spec.md §4.5: "scans backward at most 8 KiB from o for a
// newline to align to a line start; if none is found, falls back to o - 8
// KiB."
func (b *byteSeekBackend) alignToLineStart(offset uint64) (uint64, error) {
	if offset == 0 {
		return 0, nil
	}

	back := b.backscanBytes
	var start uint64
	if uint64(back) >= offset {
		start = 0
	} else {
		start = offset - uint64(back)
	}
	length := offset - start
	if length == 0 {
		return 0, nil
	}

	f, err := os.Open(b.path)
	if err != nil {
		return 0, cmdrerrors.Wrap(cmdrerrors.IoError, b.path, err)
	}
	defer f.Close()
	if _, err := f.Seek(int64(start), 0); err != nil {
		return 0, cmdrerrors.Wrap(cmdrerrors.IoError, b.path, err)
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, cmdrerrors.Wrap(cmdrerrors.IoError, b.path, err)
	}
	buf = buf[:n]

	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
		return start + uint64(i) + 1, nil
	}
	// No newline found in the backscan window: fall back to o - 8 KiB, per
	// spec.md §4.5, clamped to the start of the file.
	if uint64(back) >= offset {
		return 0, nil
	}
	return offset - uint64(back), nil
}

func (b *byteSeekBackend) search(query string, opts SearchOptions, cancelled func() bool, onMatch func(Match), onProgress func(int64)) (int64, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return 0, cmdrerrors.Wrap(cmdrerrors.IoError, b.path, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)
	var lineNumber int64
	var scanned int64
	for {
		if cancelled() {
			return scanned, errSearchCancelled
		}
		line, readErr := reader.ReadString('\n')
		if len(line) == 0 && readErr != nil {
			break
		}
		text := trimTerminator(line)
		for _, m := range findMatches(lineNumber, text, query, opts) {
			onMatch(m)
		}
		scanned += int64(len(line))
		onProgress(scanned)
		lineNumber++
		if readErr != nil {
			break
		}
	}
	return scanned, nil
}

func (b *byteSeekBackend) close() error { return nil }
