package viewer

import (
	"sync"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

// SearchStatus is the status reported by viewer_search_poll.
type SearchStatus int

const (
	Idle SearchStatus = iota
	Running
	Done
)

func (s SearchStatus) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Match is one search hit, per spec.md §4.5: "Matches report line, column
// (in UTF-16 code units ...) and length (UTF-16 code units)."
type Match struct {
	LineNumber int64
	Column     int
	Length     int
}

// SearchOptions configures a search. NormalizeNFC is off by default per the
// Open Question resolution in spec.md §9 (SPEC_FULL.md §3.6): raw
// case-folding remains the default, with NFC normalization an explicit,
// testable opt-in rather than a hard-coded behavior.
type SearchOptions struct {
	NormalizeNFC bool
}

// searchState is the one outstanding search slot in spec.md §3's
// ViewerSession: "query, cancel flag, matches list, status".
type searchState struct {
	query     string
	cancelled func() bool
	stop      func()

	mu           sync.Mutex
	status       SearchStatus
	matches      []Match
	bytesScanned int64
	err          error
	done         chan struct{}
}

// StartSearch implements viewer_search_start. It replaces any previous
// search on this session.
func (s *Session) StartSearch(query string, opts SearchOptions) error {
	s.CancelSearch()

	cancelFlag := make(chan struct{})
	isCancelled := func() bool {
		select {
		case <-cancelFlag:
			return true
		default:
			return false
		}
	}
	state := &searchState{
		query:     query,
		cancelled: isCancelled,
		stop:      sync.OnceFunc(func() { close(cancelFlag) }),
		status:    Running,
		done:      make(chan struct{}),
	}

	s.searchMu.Lock()
	s.search = state
	s.searchMu.Unlock()

	b := *s.backendPtr.Load()
	go func() {
		defer close(state.done)
		scanned, err := b.search(query, opts, state.cancelled, func(m Match) {
			state.mu.Lock()
			state.matches = append(state.matches, m)
			state.mu.Unlock()
		}, func(scanned int64) {
			state.mu.Lock()
			state.bytesScanned = scanned
			state.mu.Unlock()
		})
		state.mu.Lock()
		state.bytesScanned = scanned
		state.err = err
		if err == errSearchCancelled {
			// A cancelled search settles back to Idle once its goroutine
			// exits; Done is reserved for a search that ran to completion.
			state.status = Idle
		} else {
			state.status = Done
		}
		state.mu.Unlock()
	}()
	return nil
}

// PollSearch implements viewer_search_poll: returns the current status, a
// snapshot of matches found so far, and bytes scanned.
func (s *Session) PollSearch() (SearchStatus, []Match, int64, error) {
	s.searchMu.Lock()
	state := s.search
	s.searchMu.Unlock()
	if state == nil {
		return Idle, nil, 0, nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	matches := make([]Match, len(state.matches))
	copy(matches, state.matches)
	return state.status, matches, state.bytesScanned, state.err
}

// CancelSearch implements viewer_search_cancel: sets the cancellation flag;
// the running task observes it at its next per-line check and exits.
func (s *Session) CancelSearch() {
	s.searchMu.Lock()
	state := s.search
	s.searchMu.Unlock()
	if state == nil {
		return
	}
	state.stop()
}

// findMatches scans one line (already split on its terminator) for
// case-insensitive occurrences of query, reporting columns/lengths in
// UTF-16 code units. Matching is done rune-by-rune (rather than on raw
// bytes) so that a haystack/needle pair stays positionally aligned even
// when case-folding would otherwise change a character's byte length.
func findMatches(lineNumber int64, line, query string, opts SearchOptions) []Match {
	if query == "" {
		return nil
	}
	if opts.NormalizeNFC {
		line = norm.NFC.String(line)
		query = norm.NFC.String(query)
	}

	haystack := foldRunes(line)
	needle := foldRunes(query)
	if len(needle) == 0 || len(needle) > len(haystack) {
		return nil
	}

	var matches []Match
	for start := 0; start+len(needle) <= len(haystack); start++ {
		if !runesEqual(haystack[start:start+len(needle)], needle) {
			continue
		}
		matches = append(matches, Match{
			LineNumber: lineNumber,
			Column:     utf16Units(line[:runeByteOffset(line, start)]),
			Length:     utf16Units(string(haystack[start : start+len(needle)])),
		})
	}
	return matches
}

func foldRunes(s string) []rune {
	runes := []rune(s)
	folded := make([]rune, len(runes))
	for i, r := range runes {
		folded[i] = unicode.ToLower(r)
	}
	return folded
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// runeByteOffset returns the byte offset of the runeIndex-th rune in s.
func runeByteOffset(s string, runeIndex int) int {
	i := 0
	for byteOffset := range s {
		if i == runeIndex {
			return byteOffset
		}
		i++
	}
	return len(s)
}

// utf16Units counts the UTF-16 code units needed to represent s, per
// spec.md §4.5's "column (in UTF-16 code units ...) and length (UTF-16 code
// units)" so the UI can index directly into a JS string.
func utf16Units(s string) int {
	return len(utf16.Encode([]rune(s)))
}

var errSearchCancelled = cmdrerrors.New(cmdrerrors.Cancelled, "search cancelled")
