package fonts

import (
	"testing"

	"github.com/go-text/typesetting/language"
	"golang.org/x/image/font/gofont/goregular"
)

func TestScript(t *testing.T) {
	cases := []struct {
		text string
		want language.Script
	}{
		{"Jane Doe", language.Latin},
		{"1234 --", language.Latin},
		{"Иван Петров", language.Cyrillic},
		{"שלום עולם", language.Hebrew},
		{"Ann مرحبا", language.Arabic},
		{"Anna Maria م", language.Latin},
		{"山田太郎", language.Han},
		{"김민준", language.Hangul},
		{"Γιώργος Παπάς", language.Greek},
	}
	for _, tc := range cases {
		if got := Script(tc.text); got != tc.want {
			t.Errorf("Script(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestShapeAdvances(t *testing.T) {
	tt, err := LoadTrueType(goregular.TTF)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	glyphs := shape("Jane", tt.face)
	if len(glyphs) != 4 {
		t.Fatalf("expected 4 glyphs, got %d", len(glyphs))
	}
	for i, g := range glyphs {
		if g.cluster != i || g.runes != 1 {
			t.Fatalf("glyph %d cluster=%d runes=%d", i, g.cluster, g.runes)
		}
		if g.advance <= 0 || g.advance > 1000 {
			t.Fatalf("glyph %d advance %v out of range", i, g.advance)
		}
	}
	if shape("", tt.face) != nil {
		t.Fatalf("empty text should shape to nothing")
	}
}
