// Package writer serializes PDF objects, either as a complete file or as an
// incremental update appended to an existing one.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/docsign/filters"
	"github.com/wudi/docsign/ir/raw"
)

type Config struct {
	Version       string // header version, default "1.7"
	XRefStreams   bool   // write a cross-reference stream instead of a table
	ObjectStreams bool   // pack non-stream objects into one object stream; implies XRefStreams
	Compress      bool   // Flate-encode streams that carry no Filter
}

type DocumentWriter struct {
	cfg Config
}

func NewDocumentWriter(cfg Config) *DocumentWriter {
	if cfg.Version == "" {
		cfg.Version = "1.7"
	}
	if cfg.ObjectStreams {
		cfg.XRefStreams = true
	}
	return &DocumentWriter{cfg: cfg}
}

// Write emits a complete file containing objects. The trailer must carry
// Root; Size is computed.
func (w *DocumentWriter) Write(out io.Writer, objects map[raw.ObjectRef]raw.Object, trailer *raw.DictObj) error {
	if trailer == nil || trailer.Get("Root") == nil {
		return errors.New("trailer requires Root")
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", w.cfg.Version)

	refs := sortedRefs(objects)
	maxNum := 0
	for _, r := range refs {
		if r.Num > maxNum {
			maxNum = r.Num
		}
	}
	entries := make(map[int]xrefEntry)

	var packed []raw.ObjectRef
	if w.cfg.ObjectStreams {
		for _, r := range refs {
			if _, isStream := objects[r].(*raw.StreamObj); !isStream && r.Gen == 0 {
				packed = append(packed, r)
			}
		}
	}
	packedSet := make(map[raw.ObjectRef]bool, len(packed))
	for _, r := range packed {
		packedSet[r] = true
	}

	for _, r := range refs {
		if packedSet[r] {
			continue
		}
		obj, err := w.prepare(objects[r])
		if err != nil {
			return err
		}
		entries[r.Num] = xrefEntry{kind: 1, offset: int64(buf.Len()), gen: r.Gen}
		buf.Write(SerializeObject(r, obj))
	}

	if len(packed) > 0 {
		maxNum++
		stmRef := raw.ObjectRef{Num: maxNum}
		stm, err := buildObjectStream(packed, objects)
		if err != nil {
			return err
		}
		entries[stmRef.Num] = xrefEntry{kind: 1, offset: int64(buf.Len())}
		buf.Write(SerializeObject(stmRef, stm))
		for i, r := range packed {
			entries[r.Num] = xrefEntry{kind: 2, offset: int64(stmRef.Num), gen: i}
		}
	}

	trailer = trailer.Clone()
	delete(trailer.KV, "Prev")
	entries[0] = xrefEntry{kind: 0, gen: 65535}
	if w.cfg.XRefStreams {
		maxNum++
		if err := writeXRefStream(&buf, maxNum, entries, trailer, maxNum+1); err != nil {
			return err
		}
	} else {
		writeXRefTable(&buf, entries, trailer, maxNum+1)
	}
	_, err := out.Write(buf.Bytes())
	return err
}

func (w *DocumentWriter) prepare(obj raw.Object) (raw.Object, error) {
	s, ok := obj.(*raw.StreamObj)
	if !ok || !w.cfg.Compress || s.Dict.Get("Filter") != nil {
		return obj, nil
	}
	data, err := filters.FlateEncode(s.Data)
	if err != nil {
		return nil, err
	}
	d := s.Dict.Clone()
	d.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(d, data), nil
}

func buildObjectStream(refs []raw.ObjectRef, objects map[raw.ObjectRef]raw.Object) (*raw.StreamObj, error) {
	var header, body bytes.Buffer
	for i, r := range refs {
		if i > 0 {
			header.WriteByte(' ')
		}
		fmt.Fprintf(&header, "%d %d", r.Num, body.Len())
		body.Write(SerializePrimitive(objects[r]))
		body.WriteByte('\n')
	}
	header.WriteByte('\n')
	data, err := filters.FlateEncode(append(header.Bytes(), body.Bytes()...))
	if err != nil {
		return nil, err
	}
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("ObjStm"))
	d.Set("N", raw.NumberInt(int64(len(refs))))
	d.Set("First", raw.NumberInt(int64(header.Len())))
	d.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(d, data), nil
}

func sortedRefs(objects map[raw.ObjectRef]raw.Object) []raw.ObjectRef {
	refs := make([]raw.ObjectRef, 0, len(objects))
	for r := range objects {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	return refs
}
