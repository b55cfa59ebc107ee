package viewer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "line %d hello world\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestViewerOpenSelectsFullLoadUnderThreshold(t *testing.T) {
	path := writeLines(t, 10)
	v := NewViewer(Config{})
	session, err := v.Open(path)
	require.NoError(t, err)
	require.Equal(t, FullLoad, session.CurrentBackend())

	total, ok := session.TotalLines()
	require.True(t, ok)
	require.EqualValues(t, 10, total)
}

func TestViewerOpenSelectsByteSeekAboveThreshold(t *testing.T) {
	path := writeLines(t, 5)
	v := NewViewer(Config{FullLoadThresholdBytes: 1})
	session, err := v.Open(path)
	require.NoError(t, err)
	require.Equal(t, ByteSeek, session.CurrentBackend())

	_, ok := session.TotalLines()
	require.False(t, ok)
}

func TestViewerOpenRejectsDirectory(t *testing.T) {
	v := NewViewer(Config{})
	_, err := v.Open(t.TempDir())
	require.Error(t, err)
}

func TestViewerOpenRejectsMissingFile(t *testing.T) {
	v := NewViewer(Config{})
	_, err := v.Open(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

// TestFullLoadLineSeekRoundTrip exercises the "Viewer round-trip" property:
// get_lines(Line(n), 1).first_line_number == n.
func TestFullLoadLineSeekRoundTrip(t *testing.T) {
	path := writeLines(t, 100)
	v := NewViewer(Config{})
	session, err := v.Open(path)
	require.NoError(t, err)

	for _, n := range []int64{0, 1, 50, 99} {
		results, err := session.GetLines(SeekTarget{Type: Line, LineNumber: n}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, n, results[0].Number)
		require.Equal(t, fmt.Sprintf("line %d hello world", n), results[0].Text)
	}
}

// TestFullLoadByteOffsetSeekRoundTrip exercises the "Viewer round-trip"
// property: get_lines(ByteOffset(line_offset(n)), 1).first_line_number == n.
func TestFullLoadByteOffsetSeekRoundTrip(t *testing.T) {
	path := writeLines(t, 100)
	v := NewViewer(Config{})
	session, err := v.Open(path)
	require.NoError(t, err)

	for _, n := range []int64{0, 1, 50, 99} {
		lines, err := session.GetLines(SeekTarget{Type: Line, LineNumber: n}, 1)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		offset := lines[0].ByteOffset

		byOffset, err := session.GetLines(SeekTarget{Type: ByteOffset, Offset: offset}, 1)
		require.NoError(t, err)
		require.Len(t, byOffset, 1)
		require.Equal(t, n, byOffset[0].Number)
	}
}

func TestFullLoadFractionSeek(t *testing.T) {
	path := writeLines(t, 101)
	v := NewViewer(Config{})
	session, err := v.Open(path)
	require.NoError(t, err)

	results, err := session.GetLines(SeekTarget{Type: Fraction, Fraction: 0.5}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(50), results[0].Number)
}

func TestFullLoadGetLinesCount(t *testing.T) {
	path := writeLines(t, 20)
	v := NewViewer(Config{})
	session, err := v.Open(path)
	require.NoError(t, err)

	results, err := session.GetLines(SeekTarget{Type: Line, LineNumber: 15}, 10)
	require.NoError(t, err)
	require.Len(t, results, 5) // clamps at EOF: lines 15..19
	require.Equal(t, int64(15), results[0].Number)
	require.Equal(t, int64(19), results[len(results)-1].Number)
}

func TestLineIndexSeeksMatchFullLoad(t *testing.T) {
	path := writeLines(t, 2000)

	full, err := newFullLoadBackend(path)
	require.NoError(t, err)

	index, err := buildLineIndex(path, 256, func() bool { return false })
	require.NoError(t, err)
	require.NotNil(t, index)

	total, ok := index.totalLines()
	require.True(t, ok)
	require.EqualValues(t, 2000, total)

	for _, n := range []int64{0, 1, 255, 256, 257, 1000, 1999} {
		fromFull, err := full.getLines(SeekTarget{Type: Line, LineNumber: n}, 1)
		require.NoError(t, err)
		fromIndex, err := index.getLines(SeekTarget{Type: Line, LineNumber: n}, 1)
		require.NoError(t, err)
		require.Len(t, fromFull, 1)
		require.Len(t, fromIndex, 1)
		require.Equal(t, fromFull[0].Text, fromIndex[0].Text)
		require.Equal(t, fromFull[0].Number, fromIndex[0].Number)
		require.Equal(t, fromFull[0].ByteOffset, fromIndex[0].ByteOffset)
	}
}

// TestLineIndexByteOffsetSeekRoundTrip specifically targets the skip-loop
// bug class where the line containing the target byte offset gets consumed
// and discarded instead of returned.
func TestLineIndexByteOffsetSeekRoundTrip(t *testing.T) {
	path := writeLines(t, 2000)

	full, err := newFullLoadBackend(path)
	require.NoError(t, err)
	index, err := buildLineIndex(path, 256, func() bool { return false })
	require.NoError(t, err)
	require.NotNil(t, index)

	for _, n := range []int64{0, 1, 100, 255, 256, 500, 1999} {
		fromFull, err := full.getLines(SeekTarget{Type: Line, LineNumber: n}, 1)
		require.NoError(t, err)
		require.Len(t, fromFull, 1)
		offset := fromFull[0].ByteOffset

		results, err := index.getLines(SeekTarget{Type: ByteOffset, Offset: offset}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, n, results[0].Number)
		require.Equal(t, fromFull[0].Text, results[0].Text)

		// A multi-line batch starting from this offset must continue
		// sequentially without skipping or repeating the target line.
		batch, err := index.getLines(SeekTarget{Type: ByteOffset, Offset: offset}, 3)
		require.NoError(t, err)
		require.Len(t, batch, 3)
		require.Equal(t, n, batch[0].Number)
		require.Equal(t, n+1, batch[1].Number)
		require.Equal(t, n+2, batch[2].Number)
	}
}

func TestLineIndexBuildCancellation(t *testing.T) {
	path := writeLines(t, 100000)
	index, err := buildLineIndex(path, 256, func() bool { return true })
	require.NoError(t, err)
	require.Nil(t, index)
}

func TestByteSeekOpenIsInstantAndAligns(t *testing.T) {
	path := writeLines(t, 5000)
	info, err := os.Stat(path)
	require.NoError(t, err)

	backend, err := newByteSeekBackend(path, uint64(info.Size()), 8<<10)
	require.NoError(t, err)
	require.Equal(t, ByteSeek, backend.kind())

	_, ok := backend.totalLines()
	require.False(t, ok)

	results, err := backend.getLines(SeekTarget{Type: Fraction, Fraction: 0.5}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	target := uint64(0.5 * float64(info.Size()))
	low := target - 8192
	require.GreaterOrEqual(t, results[0].ByteOffset, low)
	require.LessOrEqual(t, results[0].ByteOffset, target)
	require.NotEmpty(t, results[0].Text) // aligned to a full line, not a fragment
}

func TestByteSeekLineDefaultsToStart(t *testing.T) {
	path := writeLines(t, 10)
	info, err := os.Stat(path)
	require.NoError(t, err)
	backend, err := newByteSeekBackend(path, uint64(info.Size()), 8<<10)
	require.NoError(t, err)

	results, err := backend.getLines(SeekTarget{Type: Line, LineNumber: 7}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "line 0 hello world", results[0].Text)
}

func TestViewerBackendUpgradesToLineIndex(t *testing.T) {
	path := writeLines(t, 500000) // large enough to force ByteSeek and take measurable time to index
	v := NewViewer(Config{FullLoadThresholdBytes: 1, LineIndexCheckpointStride: 256})
	session, err := v.Open(path)
	require.NoError(t, err)
	require.Equal(t, ByteSeek, session.CurrentBackend())

	require.Eventually(t, func() bool {
		return session.CurrentBackend() == LineIndex
	}, 5*time.Second, 10*time.Millisecond)

	results, err := session.GetLines(SeekTarget{Type: Line, LineNumber: 12345}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(12345), results[0].Number)
	require.Equal(t, "line 12345 hello world", results[0].Text)
}

func TestViewerCloseCancelsIndexingAndSearch(t *testing.T) {
	path := writeLines(t, 500000)
	v := NewViewer(Config{FullLoadThresholdBytes: 1})
	session, err := v.Open(path)
	require.NoError(t, err)

	require.NoError(t, session.StartSearch("line", SearchOptions{}))
	require.NoError(t, v.Close(session.SessionID))

	_, ok := v.Get(session.SessionID)
	require.False(t, ok)
}

func TestSearchFullLoadFindsAllMatchesWithUTF16Columns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	content := "Hello World\nhello again\nWORLD OF HELLO\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := NewViewer(Config{})
	session, err := v.Open(path)
	require.NoError(t, err)

	require.NoError(t, session.StartSearch("hello", SearchOptions{}))
	require.Eventually(t, func() bool {
		status, _, _, _ := session.PollSearch()
		return status == Done
	}, 2*time.Second, 5*time.Millisecond)

	status, matches, _, err := session.PollSearch()
	require.Equal(t, Done, status)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	require.Equal(t, int64(0), matches[0].LineNumber)
	require.Equal(t, 0, matches[0].Column)
	require.Equal(t, 5, matches[0].Length)

	require.Equal(t, int64(1), matches[1].LineNumber)
	require.Equal(t, 0, matches[1].Column)

	require.Equal(t, int64(2), matches[2].LineNumber)
	require.Equal(t, 9, matches[2].Column)
}

func TestSearchLineIndexMatchesFullLoad(t *testing.T) {
	path := writeLines(t, 3000)

	full, err := newFullLoadBackend(path)
	require.NoError(t, err)
	index, err := buildLineIndex(path, 256, func() bool { return false })
	require.NoError(t, err)
	require.NotNil(t, index)

	var fullMatches, indexMatches []Match
	_, err = full.search("line 12", SearchOptions{}, func() bool { return false }, func(m Match) { fullMatches = append(fullMatches, m) }, func(int64) {})
	require.NoError(t, err)
	_, err = index.search("line 12", SearchOptions{}, func() bool { return false }, func(m Match) { indexMatches = append(indexMatches, m) }, func(int64) {})
	require.NoError(t, err)

	require.Equal(t, fullMatches, indexMatches)
	require.NotEmpty(t, fullMatches)
}

func TestSearchCancellationStopsEarly(t *testing.T) {
	path := writeLines(t, 200000)
	v := NewViewer(Config{})
	session, err := v.Open(path)
	require.NoError(t, err)

	require.NoError(t, session.StartSearch("hello", SearchOptions{}))
	time.Sleep(5 * time.Millisecond)
	session.CancelSearch()

	require.Eventually(t, func() bool {
		status, _, _, _ := session.PollSearch()
		return status == Idle
	}, 2*time.Second, 5*time.Millisecond)

	_, matches, _, searchErr := session.PollSearch()
	require.Error(t, searchErr)
	require.Less(t, len(matches), 200000)
}

func TestSearchNFCNormalizationOptIn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	// NFD haystack: "e" followed by a combining acute accent (U+0301),
	// rather than the precomposed U+00E9 the query below uses.
	decomposed := "cafe\u0301 time\n"
	require.NoError(t, os.WriteFile(path, []byte(decomposed), 0o644))
	precomposedQuery := "caf\u00e9"

	v := NewViewer(Config{})
	session, err := v.Open(path)
	require.NoError(t, err)

	// The precomposed query should not match the raw NFD haystack without
	// normalization.
	require.NoError(t, session.StartSearch(precomposedQuery, SearchOptions{}))
	require.Eventually(t, func() bool {
		status, _, _, _ := session.PollSearch()
		return status == Done
	}, 2*time.Second, 5*time.Millisecond)
	_, matches, _, _ := session.PollSearch()
	require.Empty(t, matches)

	require.NoError(t, session.StartSearch(precomposedQuery, SearchOptions{NormalizeNFC: true}))
	require.Eventually(t, func() bool {
		status, _, _, _ := session.PollSearch()
		return status == Done
	}, 2*time.Second, 5*time.Millisecond)
	_, matches, _, _ = session.PollSearch()
	require.Len(t, matches, 1)
}
