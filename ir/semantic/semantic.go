// Package semantic describes pages as the stamper sees them: geometry plus
// the dictionaries needed to attach overlay content.
package semantic

import "github.com/wudi/docsign/ir/raw"

// Rectangle is a PDF box in default user space units.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Normalize orders the corners so that LL is the lower-left point.
func (r Rectangle) Normalize() Rectangle {
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}

// LetterSize is the US Letter media box.
var LetterSize = Rectangle{URX: 612, URY: 792}

// Page is one leaf of the page tree with inherited attributes applied.
type Page struct {
	Index     int // zero-based position in document order
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  Rectangle
	CropBox   *Rectangle
	Rotate    int
	Resources *raw.DictObj // effective resources, resolved and possibly inherited
}
