package fonts

import "golang.org/x/text/encoding/charmap"

// helveticaWidths holds advances for WinAnsi codes 32..126 in 1/1000 em.
var helveticaWidths = [...]int{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278, // space - /
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, // 0 - 9
	278, 278, 584, 584, 584, 556, 1015, // : - @
	667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833,
	722, 778, 667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, // A - Z
	278, 278, 278, 469, 556, 333, // [ - `
	556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833,
	556, 556, 556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, // a - z
	334, 260, 334, 584, // { - ~
}

const helveticaDefaultWidth = 556

// Standard is one of the base-14 fonts, shown with WinAnsiEncoding.
type Standard struct {
	name   string
	widths []int
	first  int
}

// Helvetica returns the built-in sans-serif face.
func Helvetica() *Standard {
	return &Standard{name: "Helvetica", widths: helveticaWidths[:], first: 32}
}

func (s *Standard) BaseFont() string { return s.name }

func (s *Standard) Width(text string, size float64) float64 {
	codes, _ := s.Encode(text)
	total := 0
	for _, c := range codes {
		total += s.codeWidth(c)
	}
	return float64(total) * size / 1000
}

func (s *Standard) codeWidth(c byte) int {
	i := int(c) - s.first
	if i >= 0 && i < len(s.widths) {
		return s.widths[i]
	}
	return helveticaDefaultWidth
}

// Encode maps text to Windows-1252 codes; runes outside it become '?'.
func (s *Standard) Encode(text string) ([]byte, error) {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out, nil
}
