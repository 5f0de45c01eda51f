package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wudi/docsign/filters"
	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/recovery"
	"github.com/wudi/docsign/scanner"
	"github.com/wudi/docsign/security"
	"github.com/wudi/docsign/xref"
)

type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

// ErrObjectNotFound is returned for references missing from the xref table.
var ErrObjectNotFound = errors.New("object not found")

// objectLoader parses objects at file offsets and, once a table is attached,
// resolves references including objects packed in object streams.
type objectLoader struct {
	reader   io.ReaderAt
	table    *xref.Table
	limits   security.Limits
	filters  *filters.Pipeline
	recovery recovery.Strategy
	cache    Cache

	mu     sync.Mutex
	objstm map[int]map[int]raw.Object
	active map[raw.ObjectRef]bool
}

func newObjectLoader(r io.ReaderAt, limits security.Limits, rec recovery.Strategy, cache Cache) *objectLoader {
	return &objectLoader{
		reader:   r,
		limits:   limits,
		filters:  filters.NewDefaultPipeline(limits),
		recovery: rec,
		cache:    cache,
		objstm:   make(map[int]map[int]raw.Object),
		active:   make(map[raw.ObjectRef]bool),
	}
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load(ctx, ref)
}

func (o *objectLoader) load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if o.cache != nil {
		if obj, ok := o.cache.Get(ref); ok {
			return obj, nil
		}
	}
	if o.table == nil {
		return nil, errors.New("object loader has no xref table")
	}
	if o.active[ref] {
		return nil, fmt.Errorf("reference cycle at %s", ref)
	}
	o.active[ref] = true
	defer delete(o.active, ref)

	e, ok := o.table.Lookup(ref.Num)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}
	var obj raw.Object
	var err error
	if e.Kind == xref.EntryCompressed {
		obj, err = o.loadFromObjectStream(ctx, e.Stream, ref.Num, e.Index)
	} else {
		var got raw.ObjectRef
		got, obj, err = o.parseIndirect(ctx, e.Offset)
		if err == nil && got.Num != ref.Num {
			err = fmt.Errorf("xref offset %d holds %s, expected %s", e.Offset, got, ref)
		}
	}
	if err != nil {
		loc := recovery.Location{ByteOffset: e.Offset, ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "loader"}
		if o.recovery != nil && o.recovery.OnError(ctx, err, loc) != recovery.ActionFail {
			obj = raw.NullObj{}
		} else {
			return nil, err
		}
	}
	if o.cache != nil {
		o.cache.Put(ref, obj)
	}
	return obj, nil
}

// ParseIndirectAt implements xref.ObjectParser.
func (o *objectLoader) ParseIndirectAt(ctx context.Context, offset int64) (raw.ObjectRef, raw.Object, error) {
	return o.parseIndirect(ctx, offset)
}

// ParseValueAt implements xref.ObjectParser.
func (o *objectLoader) ParseValueAt(ctx context.Context, offset int64) (raw.Object, error) {
	s := scanner.New(o.reader, o.scannerConfig())
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	return parseObject(&tokenReader{s: s}, o.limits.MaxNestingDepth)
}

func (o *objectLoader) scannerConfig() scanner.Config {
	return scanner.Config{
		MaxStringLength: o.limits.MaxStringLength,
		MaxStreamLength: o.limits.MaxStreamLength,
		Recovery:        o.recovery,
	}
}

func (o *objectLoader) parseIndirect(ctx context.Context, offset int64) (raw.ObjectRef, raw.Object, error) {
	if err := ctx.Err(); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	s := scanner.New(o.reader, o.scannerConfig())
	if err := s.Seek(offset); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	tr := &tokenReader{s: s}
	numTok, err1 := tr.next()
	genTok, err2 := tr.next()
	objTok, err3 := tr.next()
	if err := errors.Join(err1, err2, err3); err != nil {
		return raw.ObjectRef{}, nil, fmt.Errorf("object header at %d: %w", offset, err)
	}
	if numTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber ||
		objTok.Type != scanner.TokenKeyword || objTok.Str != "obj" {
		return raw.ObjectRef{}, nil, fmt.Errorf("no object header at offset %d", offset)
	}
	ref := raw.ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}
	obj, err := parseObject(tr, o.limits.MaxNestingDepth)
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return ref, obj, nil
	}
	s.SetNextStreamLength(o.streamLengthHint(ctx, dict))
	tok, err := tr.next()
	if err != nil || tok.Type != scanner.TokenStream {
		// a missing endobj is tolerated; the dictionary is complete
		return ref, dict, nil
	}
	return ref, raw.NewStream(dict, tok.Bytes), nil
}

// streamLengthHint resolves /Length, returning -1 when unknown.
func (o *objectLoader) streamLengthHint(ctx context.Context, dict *raw.DictObj) int64 {
	switch l := dict.Get("Length").(type) {
	case raw.NumberObj:
		return l.Int()
	case raw.RefObj:
		if o.table == nil {
			return -1
		}
		obj, err := o.load(ctx, l.R)
		if err != nil {
			return -1
		}
		if n, ok := obj.(raw.NumberObj); ok {
			return n.Int()
		}
	}
	return -1
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, streamNum, objNum, index int) (raw.Object, error) {
	objs, ok := o.objstm[streamNum]
	if !ok {
		var err error
		objs, err = o.readObjectStream(ctx, streamNum)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
		}
		o.objstm[streamNum] = objs
	}
	obj, ok := objs[objNum]
	if !ok {
		return nil, fmt.Errorf("%w: object %d not in stream %d (index %d)", ErrObjectNotFound, objNum, streamNum, index)
	}
	return obj, nil
}

func (o *objectLoader) readObjectStream(ctx context.Context, streamNum int) (map[int]raw.Object, error) {
	e, ok := o.table.Lookup(streamNum)
	if !ok || e.Kind != xref.EntryInUse {
		return nil, ErrObjectNotFound
	}
	_, obj, err := o.parseIndirect(ctx, e.Offset)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("not a stream")
	}
	n, _ := stream.Dict.Int("N")
	first, _ := stream.Dict.Int("First")
	data, err := o.filters.DecodeStream(ctx, stream)
	if err != nil {
		return nil, err
	}
	if first < 0 || first > int64(len(data)) {
		return nil, errors.New("invalid First offset")
	}

	r := bytes.NewReader(data)
	header := &tokenReader{s: scanner.New(r, scanner.Config{})}
	type pair struct{ num, off int64 }
	pairs := make([]pair, 0, n)
	for i := int64(0); i < n; i++ {
		numTok, err1 := header.next()
		offTok, err2 := header.next()
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		pairs = append(pairs, pair{numTok.Int, offTok.Int})
	}
	out := make(map[int]raw.Object, len(pairs))
	for _, p := range pairs {
		s := scanner.New(r, scanner.Config{})
		if err := s.Seek(first + p.off); err != nil {
			return nil, err
		}
		obj, err := parseObject(&tokenReader{s: s}, o.limits.MaxNestingDepth)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", p.num, err)
		}
		out[int(p.num)] = obj
	}
	return out, nil
}

// tokenReader wraps a scanner with a single-token pushback.
type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func (tr *tokenReader) next() (scanner.Token, error) {
	if n := len(tr.buf); n > 0 {
		tok := tr.buf[n-1]
		tr.buf = tr.buf[:n-1]
		return tok, nil
	}
	return tr.s.Next()
}

func (tr *tokenReader) unread(tok scanner.Token) { tr.buf = append(tr.buf, tok) }

func parseObject(tr *tokenReader, maxDepth int) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	return parseFrom(tr, tok, 0, maxDepth)
}

func parseFrom(tr *tokenReader, tok scanner.Token, depth, maxDepth int) (raw.Object, error) {
	if maxDepth > 0 && depth > maxDepth {
		return nil, errors.New("nesting too deep")
	}
	switch tok.Type {
	case scanner.TokenDict:
		return parseDict(tr, depth, maxDepth)
	case scanner.TokenArray:
		return parseArray(tr, depth, maxDepth)
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	}
	return nil, fmt.Errorf("unexpected token %q at %d", tok.Str, tok.Pos)
}

func parseArray(tr *tokenReader, depth, maxDepth int) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, fmt.Errorf("unterminated array: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		item, err := parseFrom(tr, tok, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *tokenReader, depth, maxDepth int) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("dictionary key must be a name at %d", tok.Pos)
		}
		valTok, err := tr.next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary: %w", err)
		}
		if valTok.Type == scanner.TokenKeyword && valTok.Str == ">>" {
			// key without value; treat as null and close
			dict.Set(tok.Str, raw.NullObj{})
			tr.unread(valTok)
			continue
		}
		val, err := parseFrom(tr, valTok, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		dict.Set(tok.Str, val)
	}
}
