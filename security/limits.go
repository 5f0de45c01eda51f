// Package security bounds the resources spent on untrusted PDF input.
package security

import (
	"errors"

	"github.com/wudi/docsign/ir/raw"
)

// Limits defines security boundaries for parsing PDFs.
type Limits struct {
	// Maximum decompressed stream size. Default: 100 MB.
	MaxDecompressedSize int64

	// Maximum XRef chain depth (Prev entries). Default: 50.
	MaxXRefDepth int

	// Maximum nesting of arrays and dictionaries. Default: 100.
	MaxNestingDepth int

	// Maximum string length (bytes). Default: 10 MB.
	MaxStringLength int64

	// Maximum raw stream length (bytes). Default: 50 MB.
	MaxStreamLength int64

	// Maximum pages visited while walking the page tree. Default: 100,000.
	MaxPages int
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 * 1024 * 1024,
		MaxXRefDepth:        50,
		MaxNestingDepth:     100,
		MaxStringLength:     10 * 1024 * 1024,
		MaxStreamLength:     50 * 1024 * 1024,
		MaxPages:            100000,
	}
}

// ErrEncrypted is returned when an encrypted document would have to be modified.
var ErrEncrypted = errors.New("document is encrypted")

// CheckWritable rejects documents whose trailer declares an Encrypt dictionary.
func CheckWritable(trailer *raw.DictObj) error {
	if trailer.Get("Encrypt") != nil {
		return ErrEncrypted
	}
	return nil
}
