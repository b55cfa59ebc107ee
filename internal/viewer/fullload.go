package viewer

import (
	"bufio"
	"os"
	"sort"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

// fullLoadBackend implements spec.md §4.5's FullLoad strategy: the entire
// file is read once and split into lines with a parallel byte-offset
// table, giving exact line counts and O(log n) seeks of any kind.
type fullLoadBackend struct {
	lines      []string
	offsets    []uint64 // offsets[i] is the byte offset at which lines[i] starts
	totalBytes uint64
}

func newFullLoadBackend(path string) (*fullLoadBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}
	defer f.Close()

	b := &fullLoadBackend{}
	var offset uint64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		b.lines = append(b.lines, line)
		b.offsets = append(b.offsets, offset)
		offset += uint64(len(line)) + 1 // +1 for the stripped terminator
	}
	if err := scanner.Err(); err != nil {
		return nil, cmdrerrors.Wrap(cmdrerrors.IoError, path, err)
	}
	b.totalBytes = offset
	return b, nil
}

func (b *fullLoadBackend) kind() Backend { return FullLoad }

func (b *fullLoadBackend) totalLines() (int64, bool) { return int64(len(b.lines)), true }

func (b *fullLoadBackend) getLines(target SeekTarget, count int) ([]LineResult, error) {
	if len(b.lines) == 0 {
		return nil, nil
	}
	start := b.resolveStart(target)
	return b.slice(start, count), nil
}

// resolveStart maps a SeekTarget to a starting line index, per spec.md
// §4.5's seek semantics table (FullLoad column): Line is exact, ByteOffset
// binary-searches the offset table, Fraction rounds to line
// round(f*(N-1)).
func (b *fullLoadBackend) resolveStart(target SeekTarget) int {
	switch target.Type {
	case Line:
		return clampInt(int(target.LineNumber), 0, len(b.lines)-1)
	case ByteOffset:
		i := sort.Search(len(b.offsets), func(i int) bool { return b.offsets[i] > target.Offset })
		return clampInt(i-1, 0, len(b.lines)-1)
	case Fraction:
		n := int(roundFraction(target.Fraction, len(b.lines)-1))
		return clampInt(n, 0, len(b.lines)-1)
	default:
		return 0
	}
}

func (b *fullLoadBackend) slice(start, count int) []LineResult {
	if count <= 0 {
		count = 1
	}
	end := start + count
	if end > len(b.lines) {
		end = len(b.lines)
	}
	result := make([]LineResult, 0, end-start)
	for i := start; i < end; i++ {
		result = append(result, LineResult{Number: int64(i), ByteOffset: b.offsets[i], Text: b.lines[i]})
	}
	return result
}

func (b *fullLoadBackend) search(query string, opts SearchOptions, cancelled func() bool, onMatch func(Match), onProgress func(int64)) (int64, error) {
	var scanned int64
	for i, line := range b.lines {
		if cancelled() {
			return scanned, errSearchCancelled
		}
		for _, m := range findMatches(int64(i), line, query, opts) {
			onMatch(m)
		}
		scanned += int64(len(line)) + 1
		onProgress(scanned)
	}
	return scanned, nil
}

func (b *fullLoadBackend) close() error { return nil }

func clampInt(n, min, max int) int {
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

// roundFraction maps f∈[0,1] to round(f·max), per spec.md §4.5's Fraction row.
func roundFraction(f float64, max int) int64 {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return int64(f*float64(max) + 0.5)
}
