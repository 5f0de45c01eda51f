// Package parser opens PDF files: it resolves the cross-reference chain,
// loads objects on demand and walks the page tree.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/observability"
	"github.com/wudi/docsign/recovery"
	"github.com/wudi/docsign/security"
	"github.com/wudi/docsign/xref"
)

// Config controls xref resolution and object loading.
type Config struct {
	Recovery recovery.Strategy
	Limits   security.Limits
	Cache    Cache
	Logger   observability.Logger
	Tracer   observability.Tracer
}

type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Limits.MaxXRefDepth == 0 {
		cfg.Limits = security.DefaultLimits()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	return &DocumentParser{cfg: cfg}
}

// Document is an opened PDF whose objects load lazily from the source.
type Document struct {
	raw    *raw.Document
	table  *xref.Table
	loader *objectLoader
	limits security.Limits
}

func (d *Document) Raw() *raw.Document { return d.raw }
func (d *Document) Table() *xref.Table { return d.table }

// Resolve loads one indirect object.
func (d *Document) Resolve(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	return d.loader.Load(ctx, ref)
}

// Deref follows references until a direct object is reached. A nil input
// yields nil.
func (d *Document) Deref(ctx context.Context, obj raw.Object) (raw.Object, error) {
	for i := 0; ; i++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj, nil
		}
		if i > 32 {
			return nil, fmt.Errorf("reference chain too long at %s", ref.R)
		}
		next, err := d.Resolve(ctx, ref.R)
		if err != nil {
			return nil, err
		}
		obj = next
	}
}

// DerefDict resolves obj and reports it as a dictionary (or a stream's dictionary).
func (d *Document) DerefDict(ctx context.Context, obj raw.Object) (*raw.DictObj, error) {
	if obj == nil {
		return nil, nil
	}
	v, err := d.Deref(ctx, obj)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case *raw.DictObj:
		return t, nil
	case *raw.StreamObj:
		return t.Dict, nil
	case raw.NullObj:
		return nil, nil
	}
	return nil, fmt.Errorf("expected dictionary, got %s", v.Type())
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*Document, error) {
	ctx, span := p.cfg.Tracer.StartSpan(ctx, observability.SpanParse)
	defer span.Finish()

	size, err := readerSize(r)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	version := detectHeaderVersion(r)
	if version == "" {
		p.cfg.Logger.Warn("missing PDF header")
	}

	loader := newObjectLoader(r, p.cfg.Limits, p.cfg.Recovery, p.cfg.Cache)
	resolver := xref.NewResolver(xref.ResolverConfig{Limits: p.cfg.Limits, Recovery: p.cfg.Recovery, Filters: loader.filters})
	table, err := resolver.Resolve(ctx, r, size, loader)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	loader.table = table
	if table.Repaired {
		p.cfg.Logger.Warn("xref table rebuilt from object scan", observability.Int("objects", len(table.Objects())))
	}

	doc := &raw.Document{
		Trailer:    table.Trailer,
		Version:    version,
		Size:       table.Size(),
		StartXRef:  table.StartXRef,
		XRefStream: table.XRefStream,
		Encrypted:  table.Trailer.Get("Encrypt") != nil,
		FileLength: size,
	}
	span.SetTag("sections", table.Sections)
	p.cfg.Logger.Debug("parsed xref",
		observability.String("version", version),
		observability.Int("sections", table.Sections),
		observability.Int("size", doc.Size))
	return &Document{raw: doc, table: table, loader: loader, limits: p.cfg.Limits}, nil
}

func readerSize(r io.ReaderAt) (int64, error) {
	switch v := r.(type) {
	case interface{ Size() int64 }:
		return v.Size(), nil
	case interface{ Stat() (os.FileInfo, error) }:
		fi, err := v.Stat()
		if err != nil {
			return 0, err
		}
		return fi.Size(), nil
	}
	return 0, errors.New("cannot determine input size")
}

func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 1024)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	head := string(buf[:n])
	idx := strings.Index(head, "%PDF-")
	if idx < 0 {
		return ""
	}
	line := head[idx+5:]
	if end := strings.IndexAny(line, "\r\n"); end >= 0 {
		line = line[:end]
	}
	return strings.TrimSpace(line)
}
