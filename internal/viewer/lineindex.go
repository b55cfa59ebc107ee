package viewer

import (
	"bufio"
	"os"
	"sort"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

// checkpoint is one entry in a LineIndex's sparse offset table, per
// spec.md §4.5: "Builds a sparse table of byte offsets at every Kth line."
type checkpoint struct {
	Number int64
	Offset uint64
}

// lineIndexBackend implements spec.md §4.5's LineIndex strategy. It keeps
// no open file handle between requests: each GetLines call opens its own,
// seeks to the nearest checkpoint, and scans forward, so concurrent
// requests against the same session never contend on a shared cursor.
type lineIndexBackend struct {
	path        string
	checkpoints []checkpoint
	totalLines  int64
	totalBytes  uint64
	stride      int
}

// buildLineIndex scans path sequentially, recording a checkpoint every
// stride lines, per spec.md §4.5. It polls cancelled every 4096 lines so a
// session closed mid-index aborts promptly; on cancellation it returns
// (nil, nil) so the caller simply skips the upgrade rather than treating a
// cancelled build as an error.
func buildLineIndex(path string, stride int, cancelled func() bool) (*lineIndexBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}
	defer f.Close()

	b := &lineIndexBackend{path: path, stride: stride}
	reader := bufio.NewReaderSize(f, 64*1024)

	var lineNumber int64
	var offset uint64
	for {
		if lineNumber%int64(stride) == 0 {
			b.checkpoints = append(b.checkpoints, checkpoint{Number: lineNumber, Offset: offset})
		}
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			offset += uint64(len(line))
			lineNumber++
		}
		if readErr != nil {
			break
		}
		if lineNumber%4096 == 0 && cancelled() {
			return nil, nil
		}
	}
	b.totalLines = lineNumber
	b.totalBytes = offset
	return b, nil
}

func (b *lineIndexBackend) kind() Backend { return LineIndex }

func (b *lineIndexBackend) totalLines() (int64, bool) { return b.totalLines, true }

// nearestCheckpointByLine returns the checkpoint with the largest Number <= n.
func (b *lineIndexBackend) nearestCheckpointByLine(n int64) checkpoint {
	i := sort.Search(len(b.checkpoints), func(i int) bool { return b.checkpoints[i].Number > n })
	if i == 0 {
		return checkpoint{}
	}
	return b.checkpoints[i-1]
}

// nearestCheckpointByOffset returns the checkpoint with the largest Offset <= o.
func (b *lineIndexBackend) nearestCheckpointByOffset(o uint64) checkpoint {
	i := sort.Search(len(b.checkpoints), func(i int) bool { return b.checkpoints[i].Offset > o })
	if i == 0 {
		return checkpoint{}
	}
	return b.checkpoints[i-1]
}

func (b *lineIndexBackend) getLines(target SeekTarget, count int) ([]LineResult, error) {
	if count <= 0 {
		count = 1
	}
	if b.totalLines == 0 {
		return nil, nil
	}

	var start checkpoint
	var skipToLine int64 = -1
	var skipToOffset uint64

	switch target.Type {
	case Line:
		n := clampInt64(target.LineNumber, 0, b.totalLines-1)
		start = b.nearestCheckpointByLine(n)
		skipToLine = n
	case ByteOffset:
		start = b.nearestCheckpointByOffset(target.Offset)
		skipToOffset = target.Offset
	case Fraction:
		n := roundFraction(target.Fraction, int(b.totalLines-1))
		start = b.nearestCheckpointByLine(n)
		skipToLine = n
	default:
		start = checkpoint{}
	}

	f, err := os.Open(b.path)
	if err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, b.path, err)
	}
	defer f.Close()
	if _, err := f.Seek(int64(start.Offset), 0); err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, b.path, err)
	}
	reader := bufio.NewReaderSize(f, 64*1024)

	lineNumber := start.Number
	offset := start.Offset
	var pending *LineResult // the target line, if the skip loop below already consumed it from the reader

	if skipToLine >= 0 {
		// Line-based target: stop exactly before reading the target line, so
		// the results loop below reads it fresh.
		for lineNumber < skipToLine {
			line, readErr := reader.ReadString('\n')
			if len(line) == 0 && readErr != nil {
				break
			}
			offset += uint64(len(line))
			lineNumber++
			if readErr != nil {
				break
			}
		}
	} else {
		// Byte-offset target: the line containing skipToOffset can only be
		// identified after reading it, so keep it as the first result
		// instead of discarding it and losing a line to the next ReadString.
		for {
			line, readErr := reader.ReadString('\n')
			if len(line) == 0 && readErr != nil {
				break
			}
			nextOffset := offset + uint64(len(line))
			if nextOffset > skipToOffset || readErr != nil {
				pending = &LineResult{Number: lineNumber, ByteOffset: offset, Text: trimTerminator(line)}
				offset = nextOffset
				lineNumber++
				break
			}
			offset = nextOffset
			lineNumber++
		}
	}

	var results []LineResult
	if pending != nil {
		results = append(results, *pending)
	}
	for len(results) < count {
		line, readErr := reader.ReadString('\n')
		if len(line) == 0 && readErr != nil {
			break
		}
		text := trimTerminator(line)
		results = append(results, LineResult{Number: lineNumber, ByteOffset: offset, Text: text})
		offset += uint64(len(line))
		lineNumber++
		if readErr != nil {
			break
		}
	}
	return results, nil
}

func (b *lineIndexBackend) search(query string, opts SearchOptions, cancelled func() bool, onMatch func(Match), onProgress func(int64)) (int64, error) {
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

func (b *lineIndexBackend) close() error { return nil }

func trimTerminator(line string) string {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

func clampInt64(n, min, max int64) int64 {
	if max < min {
		return min
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
