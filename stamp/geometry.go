package stamp

import (
	"github.com/wudi/docsign/fonts"
	"github.com/wudi/docsign/ir/semantic"
)

// Rect places an overlay in top-left page coordinates: X grows rightwards
// and Y grows downwards from the top edge of the media box.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// FitSize returns the font size for text inside rect. It starts at the
// rectangle height and shrinks proportionally when the text is wider than
// the rectangle. It never grows beyond the height. A rectangle without
// positive width and height has no room for text and yields 0.
func FitSize(face fonts.Face, text string, rect Rect) float64 {
	size := rect.Height
	if size <= 0 || rect.Width <= 0 {
		return 0
	}
	measured := face.Width(text, size)
	if measured > rect.Width {
		size *= rect.Width / measured
	}
	return size
}

// Baseline converts rect's top-left origin to the PDF baseline origin of
// text drawn at size on a page with the given media box.
func Baseline(media semantic.Rectangle, rect Rect, size float64) (x, y float64) {
	x = media.LLX + rect.X
	y = media.LLY + media.Height() - rect.Y - size
	return x, y
}
