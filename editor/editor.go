// Package editor replaces, removes and inserts text in the paragraphs of
// a document. Every call resolves its target with the locator, validates
// the edit and only then mutates paragraphs, so a failed call leaves the
// document untouched.
//
// An Engine keeps no state between calls. Callers must ensure at most one
// edit is in flight per document; the engine does no locking.
package editor

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/wudi/docsign/docx"
	"github.com/wudi/docsign/locator"
	"github.com/wudi/docsign/observability"
)

var (
	ErrEmptyOldText              = errors.New("old text is empty")
	ErrMisalignedBoundary        = errors.New("match starts inside a paragraph")
	ErrStyleMismatch             = errors.New("matched paragraphs have different styles")
	ErrUnsupportedInsertionPoint = errors.New("anchor does not end its paragraph")
)

// EditError reports which operation failed, on which text, and the
// paragraph range involved when one was resolved.
type EditError struct {
	Op          string
	Text        string
	First, Last int
	Err         error
}

func (e *EditError) Error() string {
	if e.First >= 0 {
		return fmt.Sprintf("%s %q (paragraphs %d-%d): %v", e.Op, e.Text, e.First, e.Last, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Text, e.Err)
}

func (e *EditError) Unwrap() error { return e.Err }

type Config struct {
	// Threshold is the minimum fuzzy similarity, 0-100. Nil selects
	// locator.DefaultThreshold; 0 accepts every candidate.
	Threshold *float64
	Logger    observability.Logger
	Tracer    observability.Tracer
	// OutputSuffix names persisted copies: report.docx becomes
	// report<suffix>.docx.
	OutputSuffix string
}

type Engine struct {
	cfg       Config
	threshold float64
}

func New(cfg Config) *Engine {
	threshold := locator.DefaultThreshold
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	return &Engine{cfg: cfg, threshold: threshold}
}

const (
	opReplace = "replace"
	opRemove  = "remove"
	opAdd     = "add paragraph"
)

func (e *Engine) resolve(op string, doc *docx.Document, needle string) (locator.Match, error) {
	m, err := locator.Resolve(doc.Texts(), needle, e.threshold)
	if err != nil {
		return m, &EditError{Op: op, Text: needle, First: -1, Last: -1, Err: err}
	}
	if m.Method == locator.MethodFuzzy {
		e.cfg.Logger.Info("exact match failed, using fuzzy match",
			observability.String("op", op),
			observability.Float64("score", m.Score),
			observability.Int("first", m.First),
			observability.Int("last", m.Last))
	}
	return m, nil
}

// ReplaceText replaces the paragraphs holding oldText with newText. The
// match must start at a paragraph boundary. Across several paragraphs,
// newText is split by code point count into equal shares.
func (e *Engine) ReplaceText(doc *docx.Document, oldText, newText string) error {
	if oldText == "" {
		if newText != "" {
			return &EditError{Op: opReplace, First: -1, Last: -1, Err: ErrEmptyOldText}
		}
		return nil
	}
	m, err := e.resolve(opReplace, doc, oldText)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		return &EditError{Op: opReplace, Text: oldText, First: m.First, Last: m.Last, Err: err}
	}
	if m.Method == locator.MethodExact && m.IntraOffset != 0 {
		return fail(ErrMisalignedBoundary)
	}
	paras := doc.Paragraphs
	if m.First == m.Last {
		paras[m.First].Text = newText
		return nil
	}
	style := paras[m.First].Style
	for _, p := range paras[m.First+1 : m.Last+1] {
		if p.Style != style {
			return fail(ErrStyleMismatch)
		}
	}
	for i, chunk := range Split(newText, m.Last-m.First+1) {
		paras[m.First+i].Text = chunk
	}
	return nil
}

// Split cuts text into n consecutive pieces; piece i spans code points
// [i*L/n, (i+1)*L/n).
func Split(text string, n int) []string {
	runes := []rune(text)
	out := make([]string, n)
	for i := range out {
		out[i] = string(runes[i*len(runes)/n : (i+1)*len(runes)/n])
	}
	return out
}

// RemoveText deletes text. The first paragraph keeps what precedes the
// match, the last keeps what follows it and paragraphs in between are
// emptied. The paragraph count never changes.
//
// A fuzzy match only approximates the length of the matched text, so a
// remainder of the last paragraph no longer than the edit slack the
// threshold allows is removed too.
func (e *Engine) RemoveText(doc *docx.Document, text string) error {
	if text == "" {
		return nil
	}
	m, err := e.resolve(opRemove, doc, text)
	if err != nil {
		return err
	}
	paras := doc.Paragraphs
	idx := locator.BuildIndex(doc.Texts())
	start := idx[m.First] + m.IntraOffset
	end := start + utf8.RuneCountInString(text)

	prefix := string([]rune(paras[m.First].Text)[:m.IntraOffset])
	lastRunes := []rune(paras[m.Last].Text)
	suffix := ""
	if cut := end - idx[m.Last]; cut < len(lastRunes) {
		suffix = string(lastRunes[cut:])
	}
	if m.Method == locator.MethodFuzzy && utf8.RuneCountInString(suffix) <= e.slack(text) {
		suffix = ""
	}
	for i := m.First; i <= m.Last; i++ {
		paras[i].Text = ""
	}
	if m.First == m.Last {
		paras[m.First].Text = prefix + suffix
		return nil
	}
	paras[m.First].Text = prefix
	paras[m.Last].Text = suffix
	return nil
}

// AddParagraph inserts inserted as the paragraph following the one that
// ends with anchor. Later paragraphs shift down by one until an empty
// paragraph absorbs the shift; past the end a paragraph is appended.
func (e *Engine) AddParagraph(doc *docx.Document, anchor, inserted string) error {
	if anchor == "" {
		return &EditError{Op: opAdd, First: -1, Last: -1, Err: ErrEmptyOldText}
	}
	m, err := e.resolve(opAdd, doc, anchor)
	if err != nil {
		return err
	}
	paras := doc.Paragraphs
	if !e.endsParagraph(doc, m, anchor) {
		return &EditError{Op: opAdd, Text: anchor, First: m.First, Last: m.Last, Err: ErrUnsupportedInsertionPoint}
	}

	carry := inserted
	for i := m.Last + 1; i < len(paras); i++ {
		if paras[i].Text == "" {
			if strings.Contains(inserted, "\n") {
				carry += "\n"
			}
			paras[i].Text = carry
			return nil
		}
		paras[i].Text, carry = carry, paras[i].Text
	}
	doc.Paragraphs = append(paras, docx.Paragraph{Text: carry, Style: paras[len(paras)-1].Style})
	return nil
}

// slack is the number of code points a fuzzy match of needle may differ
// by at the configured threshold.
func (e *Engine) slack(needle string) int {
	n := float64(utf8.RuneCountInString(needle))
	return int(math.Ceil(n * (100 - e.threshold) / 100))
}

// endsParagraph reports whether the anchor match reaches the end of its
// last paragraph. Fuzzy matches compare the trailing windows instead.
func (e *Engine) endsParagraph(doc *docx.Document, m locator.Match, anchor string) bool {
	last := []rune(doc.Paragraphs[m.Last].Text)
	if m.Method == locator.MethodExact {
		idx := locator.BuildIndex(doc.Texts())
		end := idx[m.First] + m.IntraOffset + utf8.RuneCountInString(anchor)
		return end-idx[m.Last] >= len(last)
	}
	tail := []rune(strings.TrimRight(anchor, "\n"))
	n := min(len(tail), len(last))
	return locator.Similarity(string(tail[len(tail)-n:]), string(last[len(last)-n:])) >= e.threshold
}
