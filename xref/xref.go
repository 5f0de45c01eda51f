// Package xref locates and merges the cross-reference sections of a PDF,
// covering classic tables, cross-reference streams, hybrid files and
// incremental updates chained through Prev.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/wudi/docsign/filters"
	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/recovery"
	"github.com/wudi/docsign/scanner"
	"github.com/wudi/docsign/security"
)

// ObjectParser parses PDF objects at absolute file offsets.
type ObjectParser interface {
	// ParseIndirectAt parses an "N G obj ... endobj" body starting at offset.
	ParseIndirectAt(ctx context.Context, offset int64) (raw.ObjectRef, raw.Object, error)
	// ParseValueAt parses one direct object starting at offset.
	ParseValueAt(ctx context.Context, offset int64) (raw.Object, error)
}

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry locates one object. Compressed entries live inside an object stream.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every cross-reference section in a file.
type Table struct {
	entries    map[int]Entry
	Trailer    *raw.DictObj
	StartXRef  int64
	XRefStream bool // newest section is a stream
	Sections   int
	Repaired   bool
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind == EntryFree {
		return Entry{}, false
	}
	return e, true
}

// Objects lists in-use object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// Size reports the trailer Size, widened to cover every known entry.
func (t *Table) Size() int {
	size := 0
	if v, ok := t.Trailer.Int("Size"); ok {
		size = int(v)
	}
	for k := range t.entries {
		if k+1 > size {
			size = k + 1
		}
	}
	return size
}

// add records an entry unless a newer section already defined it.
func (t *Table) add(num int, e Entry) {
	if _, ok := t.entries[num]; ok {
		return
	}
	t.entries[num] = e
}

type ResolverConfig struct {
	Limits   security.Limits
	Recovery recovery.Strategy
	Filters  *filters.Pipeline
}

type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Limits.MaxXRefDepth <= 0 {
		cfg.Limits = security.DefaultLimits()
	}
	if cfg.Filters == nil {
		cfg.Filters = filters.NewDefaultPipeline(cfg.Limits)
	}
	return &Resolver{cfg: cfg}
}

var (
	ErrNoStartXRef = errors.New("startxref not found")
	ErrNoTrailer   = errors.New("trailer not found")
)

// Resolve reads every section reachable from the final startxref. When the
// chain is unreadable and the recovery strategy allows it, the file is
// rescanned for object headers instead.
func (r *Resolver) Resolve(ctx context.Context, src io.ReaderAt, size int64, p ObjectParser) (*Table, error) {
	t, err := r.resolveChain(ctx, src, size, p)
	if err == nil {
		return t, nil
	}
	if r.cfg.Recovery == nil || r.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"}) == recovery.ActionFail {
		return nil, err
	}
	return repair(ctx, src, p)
}

func (r *Resolver) resolveChain(ctx context.Context, src io.ReaderAt, size int64, p ObjectParser) (*Table, error) {
	start, err := FindStartXRef(src, size)
	if err != nil {
		return nil, err
	}
	t := &Table{entries: make(map[int]Entry), StartXRef: start}
	visited := make(map[int64]bool)
	offset := start
	for depth := 0; offset >= 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.Limits.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d sections", r.cfg.Limits.MaxXRefDepth)
		}
		if visited[offset] {
			return nil, fmt.Errorf("xref loop at offset %d", offset)
		}
		visited[offset] = true
		if offset >= size {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}

		trailer, isStream, err := r.readSection(ctx, src, offset, p, t)
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", offset, err)
		}
		if depth == 0 {
			t.XRefStream = isStream
		}
		t.Sections++
		mergeTrailer(t, trailer)

		offset = -1
		if prev, ok := trailer.Int("Prev"); ok {
			offset = prev
		}
	}
	if _, ok := t.Trailer.Get("Root").(raw.RefObj); !ok {
		return nil, errors.New("trailer has no Root")
	}
	return t, nil
}

// sectionKeys describe a single section or its stream encoding and are not
// part of the document trailer.
var sectionKeys = map[string]bool{
	"Prev": true, "XRefStm": true, "Type": true, "W": true, "Index": true,
	"Filter": true, "DecodeParms": true, "Length": true,
}

// mergeTrailer keeps newer keys and fills gaps from older trailers.
func mergeTrailer(t *Table, trailer *raw.DictObj) {
	if t.Trailer == nil {
		t.Trailer = raw.Dict()
	}
	for k, v := range trailer.KV {
		if sectionKeys[k] {
			continue
		}
		if t.Trailer.Get(k) == nil {
			t.Trailer.Set(k, v)
		}
	}
}

func (r *Resolver) readSection(ctx context.Context, src io.ReaderAt, offset int64, p ObjectParser, t *Table) (*raw.DictObj, bool, error) {
	s := scanner.New(src, scanner.Config{})
	if err := s.Seek(offset); err != nil {
		return nil, false, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, false, err
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		trailer, err := r.readTable(ctx, s, p, t)
		if err != nil {
			return nil, false, err
		}
		if stm, ok := trailer.Int("XRefStm"); ok {
			if _, err := r.readStream(ctx, stm, p, t); err != nil {
				return nil, false, fmt.Errorf("hybrid XRefStm: %w", err)
			}
		}
		return trailer, false, nil
	}
	trailer, err := r.readStream(ctx, offset, p, t)
	return trailer, true, err
}

func (r *Resolver) readTable(ctx context.Context, s scanner.Scanner, p ObjectParser, t *Table) (*raw.DictObj, error) {
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := p.ParseValueAt(ctx, s.Position())
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, ErrNoTrailer
			}
			return dict, nil
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, fmt.Errorf("unexpected token %q in xref table", tok.Str)
		}
		countTok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if countTok.Type != scanner.TokenNumber || !countTok.IsInt {
			return nil, errors.New("invalid xref subsection header")
		}
		first := int(tok.Int)
		for i := 0; i < int(countTok.Int); i++ {
			offTok, err1 := s.Next()
			genTok, err2 := s.Next()
			kindTok, err3 := s.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("xref entry %d: %w", first+i, err)
			}
			if kindTok.Type != scanner.TokenKeyword || (kindTok.Str != "n" && kindTok.Str != "f") {
				return nil, fmt.Errorf("invalid xref entry %d", first+i)
			}
			e := Entry{Kind: EntryFree, Offset: offTok.Int, Gen: int(genTok.Int)}
			if kindTok.Str == "n" {
				e.Kind = EntryInUse
			}
			t.add(first+i, e)
		}
	}
}

func (r *Resolver) readStream(ctx context.Context, offset int64, p ObjectParser, t *Table) (*raw.DictObj, error) {
	_, obj, err := p.ParseIndirectAt(ctx, offset)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("expected xref table or stream")
	}
	if typ, _ := stream.Dict.Name("Type"); typ != "XRef" {
		return nil, fmt.Errorf("stream at %d is not an XRef stream", offset)
	}
	data, err := r.cfg.Filters.DecodeStream(ctx, stream)
	if err != nil {
		return nil, err
	}
	widths, err := intArray(stream.Dict.Get("W"))
	if err != nil || len(widths) != 3 {
		return nil, errors.New("invalid W array")
	}
	index, err := intArray(stream.Dict.Get("Index"))
	if err != nil || len(index) == 0 {
		size, _ := stream.Dict.Int("Size")
		index = []int64{0, size}
	}
	rowLen := int(widths[0] + widths[1] + widths[2])
	if rowLen == 0 {
		return nil, errors.New("empty xref stream row")
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil, errors.New("xref stream data truncated")
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			kind := int64(1)
			if widths[0] > 0 {
				kind = readField(row[:widths[0]])
			}
			f2 := readField(row[widths[0] : widths[0]+widths[1]])
			f3 := readField(row[widths[0]+widths[1]:])
			switch kind {
			case 0:
				t.add(first+j, Entry{Kind: EntryFree})
			case 1:
				t.add(first+j, Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)})
			case 2:
				t.add(first+j, Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)})
			}
		}
	}
	return stream.Dict, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func intArray(obj raw.Object) ([]int64, error) {
	arr, ok := obj.(*raw.ArrayObj)
	if !ok {
		return nil, errors.New("not an array")
	}
	out := make([]int64, 0, len(arr.Items))
	for _, item := range arr.Items {
		n, ok := item.(raw.NumberObj)
		if !ok {
			return nil, errors.New("non-numeric array item")
		}
		out = append(out, n.Int())
	}
	return out, nil
}

// FindStartXRef returns the offset recorded after the last startxref keyword.
func FindStartXRef(src io.ReaderAt, size int64) (int64, error) {
	const tail = 2048
	from := size - tail
	if from < 0 {
		from = 0
	}
	buf := make([]byte, size-from)
	n, err := src.ReadAt(buf, from)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	buf = buf[:n]
	idx := bytes.LastIndex(buf, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoStartXRef
	}
	fields := bytes.Fields(buf[idx+len("startxref"):])
	if len(fields) == 0 {
		return 0, ErrNoStartXRef
	}
	off, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	return off, nil
}
