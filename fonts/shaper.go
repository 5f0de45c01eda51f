package fonts

import (
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// shapedGlyph is one glyph of a shaped line. advance is in 1/1000 em.
type shapedGlyph struct {
	gid     int
	cluster int // first rune of the cluster
	runes   int
	advance float64
}

// shape runs HarfBuzz over text at 1000 ppem so advances land directly in
// PDF glyph space.
func shape(text string, face *gofont.Face) []shapedGlyph {
	runes := []rune(text)
	if face == nil || len(runes) == 0 {
		return nil
	}
	script := Script(text)
	dir := di.DirectionLTR
	if rightToLeft[script] {
		dir = di.DirectionRTL
	}
	var hb shaping.HarfbuzzShaper
	out := hb.Shape(shaping.Input{
		Text:      runes,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      face,
		Size:      fixed.I(1000),
		Script:    script,
		Language:  language.DefaultLanguage(),
	})
	glyphs := make([]shapedGlyph, len(out.Glyphs))
	for i, g := range out.Glyphs {
		glyphs[i] = shapedGlyph{
			gid:     int(g.GlyphID),
			cluster: g.ClusterIndex,
			runes:   g.RuneCount,
			advance: float64(g.XAdvance) / 64,
		}
	}
	return glyphs
}

var rightToLeft = map[language.Script]bool{
	language.Arabic: true,
	language.Hebrew: true,
	language.Syriac: true,
	language.Thaana: true,
	language.Nko:    true,
}

// scriptTables is checked in order; Latin comes early because signer
// names are mostly Latin.
var scriptTables = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Latin, language.Latin},
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
	{unicode.Syriac, language.Syriac},
	{unicode.Thaana, language.Thaana},
	{unicode.Nko, language.Nko},
}

// Script returns the script most runes of text belong to. Ties go to the
// script seen first; text with no recognised letters is Latin.
func Script(text string) language.Script {
	counts := make(map[language.Script]int)
	best, bestCount := language.Latin, 0
	for _, r := range text {
		for _, st := range scriptTables {
			if !unicode.Is(st.table, r) {
				continue
			}
			counts[st.script]++
			if counts[st.script] > bestCount {
				best, bestCount = st.script, counts[st.script]
			}
			break
		}
	}
	return best
}
