package writer

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/security"
)

// Incremental collects new and replaced objects and appends them to the
// original bytes as one update section. Bytes of the original file are
// never rewritten.
type Incremental struct {
	base       []byte
	doc        *raw.Document
	cfg        Config
	next       int
	objects    map[raw.ObjectRef]raw.Object
	xrefStream bool
}

// NewIncremental prepares an update of base, whose parsed cross-reference
// state is doc. The update uses the same xref flavour as the newest section
// unless cfg.XRefStreams forces a stream.
func NewIncremental(base []byte, doc *raw.Document, cfg Config) (*Incremental, error) {
	if doc == nil || doc.Trailer == nil {
		return nil, errors.New("incremental update requires a parsed trailer")
	}
	if err := security.CheckWritable(doc.Trailer); err != nil {
		return nil, err
	}
	if doc.StartXRef < 0 {
		return nil, errors.New("cannot append to a file without a valid startxref")
	}
	if _, ok := doc.Root(); !ok {
		return nil, errors.New("trailer has no Root")
	}
	return &Incremental{
		base:       base,
		doc:        doc,
		cfg:        cfg,
		next:       doc.Size,
		objects:    make(map[raw.ObjectRef]raw.Object),
		xrefStream: doc.XRefStream || cfg.XRefStreams,
	}, nil
}

// Add allocates a fresh object number for obj.
func (u *Incremental) Add(obj raw.Object) raw.ObjectRef {
	ref := raw.ObjectRef{Num: u.next}
	u.next++
	u.objects[ref] = obj
	return ref
}

// Replace records a new version of an existing object.
func (u *Incremental) Replace(ref raw.ObjectRef, obj raw.Object) {
	u.objects[ref] = obj
	if ref.Num >= u.next {
		u.next = ref.Num + 1
	}
}

// Len reports the number of objects in the pending update.
func (u *Incremental) Len() int { return len(u.objects) }

// Bytes returns the original file followed by the update section.
func (u *Incremental) Bytes() ([]byte, error) {
	if len(u.objects) == 0 {
		return nil, errors.New("incremental update has no objects")
	}
	var buf bytes.Buffer
	buf.Grow(len(u.base) + 4096)
	buf.Write(u.base)
	if len(u.base) > 0 && u.base[len(u.base)-1] != '\n' && u.base[len(u.base)-1] != '\r' {
		buf.WriteByte('\n')
	}
	updateStart := buf.Len()

	refs := make([]raw.ObjectRef, 0, len(u.objects))
	for r := range u.objects {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })

	d := &DocumentWriter{cfg: u.cfg}
	entries := make(map[int]xrefEntry, len(refs)+1)
	for _, r := range refs {
		obj, err := d.prepare(u.objects[r])
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", r, err)
		}
		entries[r.Num] = xrefEntry{kind: 1, offset: int64(buf.Len()), gen: r.Gen}
		buf.Write(SerializeObject(r, obj))
	}

	trailer := u.trailer(buf.Bytes()[updateStart:])
	if u.xrefStream {
		num := u.next
		if err := writeXRefStream(&buf, num, entries, trailer, num+1); err != nil {
			return nil, err
		}
	} else {
		writeXRefTable(&buf, entries, trailer, u.next)
	}
	return buf.Bytes(), nil
}

// trailer carries Root, Info and the first ID over from the original and
// chains to it through Prev.
func (u *Incremental) trailer(update []byte) *raw.DictObj {
	t := raw.Dict()
	for _, key := range []string{"Root", "Info"} {
		if v := u.doc.Trailer.Get(key); v != nil {
			t.Set(key, v)
		}
	}
	t.Set("Prev", raw.NumberInt(u.doc.StartXRef))

	h, _ := blake2b.New256(nil)
	h.Write(u.base)
	h.Write(update)
	changing := raw.HexStr(h.Sum(nil)[:16])
	permanent := changing
	if ids, ok := u.doc.Trailer.Get("ID").(*raw.ArrayObj); ok && len(ids.Items) == 2 {
		if first, ok := ids.Items[0].(raw.StringObj); ok {
			permanent = raw.HexStr(first.Bytes)
		}
	}
	t.Set("ID", raw.NewArray(permanent, changing))
	return t
}
