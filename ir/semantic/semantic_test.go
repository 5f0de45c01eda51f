package semantic

import "testing"

func TestRectangleGeometry(t *testing.T) {
	r := Rectangle{LLX: 612, LLY: 792, URX: 0, URY: 0}.Normalize()
	if r != LetterSize {
		t.Fatalf("normalize mismatch: %+v", r)
	}
	if r.Width() != 612 || r.Height() != 792 {
		t.Fatalf("unexpected size %vx%v", r.Width(), r.Height())
	}
}
