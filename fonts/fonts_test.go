package fonts

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestHelveticaWidth(t *testing.T) {
	h := Helvetica()
	if got := h.Width("Jane Doe", 50); math.Abs(got-214) > 1e-9 {
		t.Fatalf("expected 214pt, got %v", got)
	}
	if got := h.Width("", 12); got != 0 {
		t.Fatalf("empty text should have zero width, got %v", got)
	}
	// é is outside the ASCII table and uses the default width
	if got := h.Width("é", 1000); got != helveticaDefaultWidth {
		t.Fatalf("unexpected width for é: %v", got)
	}
}

func TestHelveticaEncode(t *testing.T) {
	codes, err := Helvetica().Encode("Café €5 ✓")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{'C', 'a', 'f', 0xE9, ' ', 0x80, '5', ' ', '?'}
	if string(codes) != string(want) {
		t.Fatalf("got %v want %v", codes, want)
	}
}

func TestSelectFallsBack(t *testing.T) {
	sel := Select("")
	if sel.Source != SourceStandard || !errors.Is(sel.Fallback, ErrNoCustomFont) {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	sel = Select(filepath.Join(t.TempDir(), "missing.ttf"))
	if sel.Source != SourceStandard || sel.Fallback == nil || sel.Face.BaseFont() != "Helvetica" {
		t.Fatalf("missing file should fall back: %+v", sel)
	}

	bad := filepath.Join(t.TempDir(), "bad.ttf")
	if err := os.WriteFile(bad, []byte("not a font"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if sel = Select(bad); sel.Source != SourceStandard || sel.Fallback == nil {
		t.Fatalf("corrupt font should fall back: %+v", sel)
	}
}

func TestSelectCustom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sel := Select(path)
	if sel.Source != SourceCustom || sel.Fallback != nil {
		t.Fatalf("expected custom font, got %+v", sel)
	}
	if sel.Source.String() != "custom" {
		t.Fatalf("unexpected source name %q", sel.Source)
	}
}

func TestTrueTypeEncodeAndWidth(t *testing.T) {
	tt, err := LoadTrueType(goregular.TTF)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if name := tt.BaseFont(); name == "" || strings.Contains(name, " ") {
		t.Fatalf("unexpected base font %q", name)
	}
	m := tt.Metrics()
	if m.Ascent <= 0 || m.Descent >= 0 || m.BBox[2] <= m.BBox[0] {
		t.Fatalf("implausible metrics: %+v", m)
	}

	codes, err := tt.Encode("Hi")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(codes) != 4 {
		t.Fatalf("expected two glyph ids, got % X", codes)
	}
	if len(tt.Used()) != 2 {
		t.Fatalf("expected two used glyphs, got %d", len(tt.Used()))
	}
	for gid, use := range tt.Used() {
		if use.Width <= 0 || len(use.Runes) != 1 {
			t.Fatalf("glyph %d has bad usage %+v", gid, use)
		}
	}

	w10 := tt.Width("Hello", 10)
	w20 := tt.Width("Hello", 20)
	if w10 <= 0 || math.Abs(w20-2*w10) > 1e-6 {
		t.Fatalf("width should scale linearly: %v %v", w10, w20)
	}
}

func TestLoadTrueTypeRejectsEmpty(t *testing.T) {
	if _, err := LoadTrueType(nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
}
