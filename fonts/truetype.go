package fonts

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	gofont "github.com/go-text/typesetting/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Metrics are the descriptor values of a TrueType font in 1/1000 em.
type Metrics struct {
	Ascent      float64
	Descent     float64
	CapHeight   float64
	ItalicAngle float64
	BBox        [4]float64
}

// GlyphUse records what a glyph shown by Encode looks like to a reader.
type GlyphUse struct {
	Width int // 1/1000 em
	Runes []rune
}

// TrueType is an embeddable font shown as Type0 with Identity-H, so the
// codes are big-endian glyph IDs.
type TrueType struct {
	data         []byte
	name         string
	face         *gofont.Face
	metrics      Metrics
	defaultWidth int
	used         map[uint16]GlyphUse
}

// LoadTrueType parses font data with sfnt for descriptor metrics and with
// go-text for shaping.
func LoadTrueType(data []byte) (*TrueType, error) {
	if len(data) == 0 {
		return nil, errors.New("truetype font data is empty")
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := f.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, errors.New("invalid unitsPerEm")
	}
	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load face: %w", err)
	}

	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)
	name := "CustomTT"
	if ps, _ := f.Name(buf, sfnt.NameIDPostScript); strings.TrimSpace(ps) != "" {
		name = strings.ReplaceAll(strings.TrimSpace(ps), " ", "")
	}
	m, _ := f.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := f.Bounds(buf, ppem, xfont.HintingNone)
	metrics := Metrics{
		Ascent:    scaleFixed(m.Ascent, unitsPerEm),
		Descent:   -scaleFixed(m.Descent, unitsPerEm),
		CapHeight: scaleFixed(m.CapHeight, unitsPerEm),
		BBox: [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			-scaleFixed(bounds.Max.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			-scaleFixed(bounds.Min.Y, unitsPerEm),
		},
	}
	if metrics.CapHeight == 0 {
		metrics.CapHeight = metrics.Ascent
	}
	if post := f.PostTable(); post != nil {
		metrics.ItalicAngle = post.ItalicAngle
	}
	dw := 1000
	if adv, err := f.GlyphAdvance(buf, 0, ppem, xfont.HintingNone); err == nil && adv > 0 {
		dw = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return &TrueType{
		data:         data,
		name:         name,
		face:         face,
		metrics:      metrics,
		defaultWidth: dw,
		used:         make(map[uint16]GlyphUse),
	}, nil
}

func (t *TrueType) BaseFont() string  { return t.name }
func (t *TrueType) Data() []byte      { return t.data }
func (t *TrueType) Metrics() Metrics  { return t.metrics }
func (t *TrueType) DefaultWidth() int { return t.defaultWidth }

// Used returns every glyph encoded so far.
func (t *TrueType) Used() map[uint16]GlyphUse { return t.used }

func (t *TrueType) Width(text string, size float64) float64 {
	total := 0.0
	for _, g := range shape(text, t.face) {
		total += g.advance
	}
	return total * size / 1000
}

// Encode shapes text and returns two-byte glyph IDs, recording each glyph's
// width and source runes for the font's W array and ToUnicode map.
func (t *TrueType) Encode(text string) ([]byte, error) {
	runes := []rune(text)
	glyphs := shape(text, t.face)
	out := make([]byte, 0, 2*len(glyphs))
	for _, g := range glyphs {
		if g.gid > math.MaxUint16 {
			return nil, fmt.Errorf("glyph id %d out of range", g.gid)
		}
		gid := uint16(g.gid)
		out = append(out, byte(gid>>8), byte(gid))
		if _, seen := t.used[gid]; seen {
			continue
		}
		use := GlyphUse{Width: int(math.Round(g.advance))}
		if g.cluster >= 0 && g.cluster < len(runes) {
			end := g.cluster + g.runes
			if g.runes <= 0 || end > len(runes) {
				end = g.cluster + 1
			}
			use.Runes = append([]rune(nil), runes[g.cluster:end]...)
		}
		t.used[gid] = use
	}
	return out, nil
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
