// Package fonts measures and encodes text for the fonts a stamp can use:
// the built-in Helvetica and embedded TrueType faces.
package fonts

import (
	"errors"
	"fmt"
	"os"
)

// Face measures text and converts it to the codes shown by a text operator.
type Face interface {
	BaseFont() string
	// Width returns the advance of text at size, in points.
	Width(text string, size float64) float64
	Encode(text string) ([]byte, error)
}

// Source tags where a selected face came from.
type Source int

const (
	SourceStandard Source = iota
	SourceCustom
)

func (s Source) String() string {
	if s == SourceCustom {
		return "custom"
	}
	return "standard"
}

// ErrNoCustomFont is the fallback reason when no custom font is configured.
var ErrNoCustomFont = errors.New("no custom font configured")

// Selection is the result of a font lookup. Fallback explains why a
// standard face was returned instead of the custom one.
type Selection struct {
	Face     Face
	Source   Source
	Fallback error
}

// Select tries the TrueType font at path and falls back to Helvetica.
// It never fails; callers inspect Fallback to log the reason.
func Select(path string) Selection {
	if path == "" {
		return Selection{Face: Helvetica(), Source: SourceStandard, Fallback: ErrNoCustomFont}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Selection{Face: Helvetica(), Source: SourceStandard, Fallback: fmt.Errorf("read font: %w", err)}
	}
	tt, err := LoadTrueType(data)
	if err != nil {
		return Selection{Face: Helvetica(), Source: SourceStandard, Fallback: err}
	}
	return Selection{Face: tt, Source: SourceCustom}
}
