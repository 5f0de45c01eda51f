// Package locator finds text inside an ordered list of paragraphs. The
// paragraphs are searched as one logical text joined with single newlines
// and every hit is mapped back to the range of paragraphs it covers.
//
// All offsets count Unicode code points.
package locator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultThreshold is the minimum fuzzy similarity accepted, on a 0-100 scale.
const DefaultThreshold = 98.0

var (
	ErrNotFound              = errors.New("text not found")
	ErrNoFuzzyMatch          = errors.New("no fuzzy match above threshold")
	ErrInternalInconsistency = errors.New("match does not map onto paragraphs")
)

// SearchError carries the needle and the scores behind a failed search.
type SearchError struct {
	Needle    string
	Threshold float64
	BestScore float64 // best fuzzy score seen, -1 when no candidate was scored
	Offset    int
	Err       error
}

func (e *SearchError) Error() string {
	switch {
	case errors.Is(e.Err, ErrNoFuzzyMatch):
		return fmt.Sprintf("%v: best score %.2f below %.2f for %q", e.Err, e.BestScore, e.Threshold, e.Needle)
	case errors.Is(e.Err, ErrInternalInconsistency):
		return fmt.Sprintf("%v: offset %d for %q", e.Err, e.Offset, e.Needle)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Needle)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Index holds the start offset of every paragraph in the logical text; the
// final entry is the logical length plus one.
type Index []int

// BuildIndex computes the prefix sums of len(text)+1.
func BuildIndex(paragraphs []string) Index {
	idx := make(Index, len(paragraphs)+1)
	for i, p := range paragraphs {
		idx[i+1] = idx[i] + utf8.RuneCountInString(p) + 1
	}
	return idx
}

// Paragraphs returns the number of paragraphs indexed.
func (idx Index) Paragraphs() int { return len(idx) - 1 }

// Range maps the half-open logical span [start, end) to the paragraphs
// holding its first and last character.
func (idx Index) Range(start, end int) (first, last int, ok bool) {
	first, last = -1, -1
	for i := 0; i+1 < len(idx); i++ {
		if idx[i] <= start && start < idx[i+1] {
			first = i
			break
		}
	}
	if first < 0 {
		return -1, -1, false
	}
	for i := first; i+1 < len(idx); i++ {
		if idx[i] < end && end <= idx[i+1] {
			last = i
			break
		}
	}
	return first, last, last >= 0
}

// Span is a paragraph range [First, Last] plus the offset of the match
// inside the first paragraph.
type Span struct {
	First, Last int
	IntraOffset int
}

// Candidate is a fuzzy hit starting at a paragraph boundary.
type Candidate struct {
	Offset      int
	Score       float64
	First, Last int
}

// Join returns the logical text of paragraphs.
func Join(paragraphs []string) string {
	return strings.Join(paragraphs, "\n")
}

// FindExact locates the first occurrence of needle.
func FindExact(paragraphs []string, needle string) (Span, error) {
	if needle == "" {
		return Span{}, &SearchError{Needle: needle, Err: ErrNotFound}
	}
	text := Join(paragraphs)
	at := strings.Index(text, needle)
	if at < 0 {
		return Span{}, &SearchError{Needle: needle, Err: ErrNotFound}
	}
	start := utf8.RuneCountInString(text[:at])
	end := start + utf8.RuneCountInString(needle)
	idx := BuildIndex(paragraphs)
	first, last, ok := idx.Range(start, end)
	if !ok {
		return Span{}, &SearchError{Needle: needle, Offset: start, Err: ErrInternalInconsistency}
	}
	return Span{First: first, Last: last, IntraOffset: start - idx[first]}, nil
}

// FindFuzzy scores the window of len(needle) code points starting at each
// paragraph boundary and returns the candidates at or above threshold, best
// first. Equal scores keep document order.
func FindFuzzy(paragraphs []string, needle string, threshold float64) ([]Candidate, error) {
	runes := []rune(Join(paragraphs))
	n := utf8.RuneCountInString(needle)
	idx := BuildIndex(paragraphs)
	best := -1.0
	var out []Candidate
	for i := 0; i < idx.Paragraphs(); i++ {
		off := idx[i]
		end := min(off+n, len(runes))
		score := Similarity(needle, string(runes[off:end]))
		best = max(best, score)
		if score < threshold {
			continue
		}
		first, last, ok := idx.Range(off, max(end, off+1))
		if !ok {
			return nil, &SearchError{Needle: needle, Threshold: threshold, Offset: off, Err: ErrInternalInconsistency}
		}
		out = append(out, Candidate{Offset: off, Score: score, First: first, Last: last})
	}
	if len(out) == 0 {
		return nil, &SearchError{Needle: needle, Threshold: threshold, BestScore: best, Err: ErrNoFuzzyMatch}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

type Method int

const (
	MethodExact Method = iota
	MethodFuzzy
)

func (m Method) String() string {
	if m == MethodFuzzy {
		return "fuzzy"
	}
	return "exact"
}

// Match is the outcome of Resolve. Score is 100 for exact matches.
type Match struct {
	Span
	Method Method
	Score  float64
}

// Resolve tries an exact search and falls back to the best fuzzy candidate
// when the needle does not occur verbatim. Fuzzy matches report no
// intra-paragraph offset.
func Resolve(paragraphs []string, needle string, threshold float64) (Match, error) {
	span, err := FindExact(paragraphs, needle)
	if err == nil {
		return Match{Span: span, Method: MethodExact, Score: 100}, nil
	}
	if !errors.Is(err, ErrNotFound) || needle == "" {
		return Match{}, err
	}
	cands, err := FindFuzzy(paragraphs, needle, threshold)
	if err != nil {
		return Match{}, err
	}
	c := cands[0]
	return Match{Span: Span{First: c.First, Last: c.Last}, Method: MethodFuzzy, Score: c.Score}, nil
}
