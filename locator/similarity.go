package locator

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Similarity returns 200*common/(len(a)+len(b)), where common is the number
// of code points in the equal segments of a minimal diff. Identical strings
// score 100; two empty strings also score 100.
func Similarity(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	common := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			common += utf8.RuneCountInString(d.Text)
		}
	}
	return 200 * float64(common) / float64(total)
}
