package locator

import (
	"errors"
	"strings"
	"testing"
)

var sample = []string{"Intro", "Body part one", "Body part two", "Body part three", "End"}

func TestBuildIndex(t *testing.T) {
	idx := BuildIndex([]string{"ab", "", "çé"})
	want := Index{0, 3, 4, 7}
	if len(idx) != len(want) {
		t.Fatalf("index = %v", idx)
	}
	for i := range want {
		if idx[i] != want[i] {
			t.Fatalf("index = %v, want %v", idx, want)
		}
	}
	if idx.Paragraphs() != 3 {
		t.Fatalf("paragraphs = %d", idx.Paragraphs())
	}
}

func TestFindExact_FullParagraphRoundTrip(t *testing.T) {
	paragraphs := []string{"alpha", "beta", "", "gamma delta", "é ü", "alpha"}
	text := Join(paragraphs)
	runes := []rune(text)
	idx := BuildIndex(paragraphs)
	for i := range paragraphs {
		needle := string(runes[idx[i] : idx[i+1]-1])
		if needle == "" {
			continue
		}
		span, err := FindExact(paragraphs, needle)
		if err != nil {
			t.Fatalf("paragraph %d: %v", i, err)
		}
		// "alpha" occurs twice; the first occurrence wins
		wantIdx := i
		if i == 5 {
			wantIdx = 0
		}
		if span.First != wantIdx || span.Last != wantIdx || span.IntraOffset != 0 {
			t.Fatalf("paragraph %d: span = %+v", i, span)
		}
	}
}

func TestFindExact_Spans(t *testing.T) {
	cases := []struct {
		needle string
		want   Span
	}{
		{"Body part one\nBody part two\nBody part three", Span{First: 1, Last: 3}},
		{"part two", Span{First: 2, Last: 2, IntraOffset: 5}},
		{"Intro\n", Span{First: 0, Last: 0}},
		{"three\nEnd", Span{First: 3, Last: 4, IntraOffset: 10}},
	}
	for _, tc := range cases {
		span, err := FindExact(sample, tc.needle)
		if err != nil {
			t.Fatalf("%q: %v", tc.needle, err)
		}
		if span != tc.want {
			t.Errorf("%q: span = %+v, want %+v", tc.needle, span, tc.want)
		}
	}
}

func TestFindExact_NotFound(t *testing.T) {
	for _, needle := range []string{"missing", ""} {
		_, err := FindExact(sample, needle)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%q: expected ErrNotFound, got %v", needle, err)
		}
		var se *SearchError
		if !errors.As(err, &se) || se.Needle != needle {
			t.Fatalf("%q: expected SearchError, got %#v", needle, err)
		}
	}
}

func TestFindExact_RuneOffsets(t *testing.T) {
	span, err := FindExact([]string{"héllo wörld", "naïve café"}, "café")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if span.First != 1 || span.IntraOffset != 6 {
		t.Fatalf("span = %+v", span)
	}
}

func TestFindFuzzy_SingleInsertedCharacter(t *testing.T) {
	target := strings.Repeat("abcdefghij", 5)
	paragraphs := []string{"preamble text here", target, "closing words"}
	needle := target[:20] + "X" + target[20:]

	if _, err := FindExact(paragraphs, needle); !errors.Is(err, ErrNotFound) {
		t.Fatalf("needle should not match exactly")
	}
	cands, err := FindFuzzy(paragraphs, needle, DefaultThreshold)
	if err != nil {
		t.Fatalf("fuzzy: %v", err)
	}
	if cands[0].First != 1 || cands[0].Last != 1 {
		t.Fatalf("best candidate = %+v", cands[0])
	}
	if cands[0].Score < DefaultThreshold {
		t.Fatalf("score %v below threshold", cands[0].Score)
	}
}

func TestFindFuzzy_OrderAndTies(t *testing.T) {
	paragraphs := []string{"same text", "same text", "same texx"}
	cands, err := FindFuzzy(paragraphs, "same text", 80)
	if err != nil {
		t.Fatalf("fuzzy: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("candidates = %+v", cands)
	}
	if cands[0].First != 0 || cands[1].First != 1 || cands[2].First != 2 {
		t.Fatalf("unexpected order %+v", cands)
	}
	for i := 1; i < len(cands); i++ {
		if cands[i].Score > cands[i-1].Score {
			t.Fatalf("scores not descending: %+v", cands)
		}
	}
}

func TestFindFuzzy_NoMatchCarriesBestScore(t *testing.T) {
	_, err := FindFuzzy(sample, "completely unrelated", DefaultThreshold)
	if !errors.Is(err, ErrNoFuzzyMatch) {
		t.Fatalf("expected ErrNoFuzzyMatch, got %v", err)
	}
	var se *SearchError
	if !errors.As(err, &se) || se.BestScore < 0 || se.BestScore >= DefaultThreshold {
		t.Fatalf("unexpected error detail %#v", err)
	}
}

func TestFindFuzzy_OnlyBoundaries(t *testing.T) {
	// the needle occurs mid-paragraph with one typo; boundary windows miss it
	_, err := FindFuzzy([]string{"prefix words then the target sentence"}, "the targat sentence", 90)
	if !errors.Is(err, ErrNoFuzzyMatch) {
		t.Fatalf("expected ErrNoFuzzyMatch, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	m, err := Resolve(sample, "Body part two", DefaultThreshold)
	if err != nil || m.Method != MethodExact || m.First != 2 || m.Score != 100 {
		t.Fatalf("exact resolve = %+v, %v", m, err)
	}

	m, err = Resolve(sample, "Body part twoo", 90)
	if err != nil {
		t.Fatalf("fuzzy resolve: %v", err)
	}
	if m.Method != MethodFuzzy || m.IntraOffset != 0 || m.First != 2 {
		t.Fatalf("fuzzy resolve = %+v", m)
	}
	if m.Method.String() != "fuzzy" {
		t.Fatalf("method string = %q", m.Method)
	}

	if _, err := Resolve(sample, "", DefaultThreshold); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty needle should be ErrNotFound, got %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"", "", 100},
		{"abc", "abc", 100},
		{"abc", "", 0},
		{"abcd", "abce", 75},
		{"héllo", "hello", 80},
	}
	for _, tc := range cases {
		if got := Similarity(tc.a, tc.b); got != tc.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if Similarity(tc.a, tc.b) != Similarity(tc.b, tc.a) {
			t.Errorf("Similarity(%q, %q) is not symmetric", tc.a, tc.b)
		}
	}
}
