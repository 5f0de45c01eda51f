// Package raw holds the low-level PDF object model shared by the scanner,
// parser and incremental writer.
package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Document describes the parsed cross-reference state of a PDF file. Object
// bodies are loaded on demand through the parser's Resolver.
type Document struct {
	Trailer    *DictObj
	Version    string // e.g., "1.7"
	Size       int    // highest object number + 1 across all sections
	StartXRef  int64
	XRefStream bool // newest section is a cross-reference stream
	Encrypted  bool
	FileLength int64
}

// Root returns the catalog reference from the trailer.
func (d *Document) Root() (ObjectRef, bool) {
	if d == nil || d.Trailer == nil {
		return ObjectRef{}, false
	}
	r, ok := d.Trailer.Get("Root").(RefObj)
	return r.R, ok
}

// Keys returns dictionary keys in sorted order.
func (d *DictObj) Keys() []string {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone performs a shallow copy of the dictionary.
func (d *DictObj) Clone() *DictObj {
	out := Dict()
	for k, v := range d.KV {
		out.KV[k] = v
	}
	return out
}

// Name returns the value of a name entry.
func (d *DictObj) Name(key string) (string, bool) {
	n, ok := d.Get(key).(NameObj)
	return n.Val, ok
}

// Int returns the value of an integer entry.
func (d *DictObj) Int(key string) (int64, bool) {
	n, ok := d.Get(key).(NumberObj)
	if !ok {
		return 0, false
	}
	if n.IsInt {
		return n.I, true
	}
	return int64(n.F), true
}

// Float reports a numeric entry as float64.
func Float(o Object) (float64, bool) {
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}
