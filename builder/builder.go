// Package builder assembles small PDF documents page by page. It backs the
// sample command and the fixtures used to exercise the stamper.
package builder

import (
	"bytes"
	"errors"
	"io"

	"github.com/wudi/docsign/contentstream"
	"github.com/wudi/docsign/fonts"
	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/ir/semantic"
	"github.com/wudi/docsign/writer"
)

type PDFBuilder interface {
	NewPage(w, h float64) PageBuilder
	// Build returns the object set and trailer ready for writer.DocumentWriter.
	Build() (map[raw.ObjectRef]raw.Object, *raw.DictObj, error)
	Write(out io.Writer, cfg writer.Config) error
	Bytes(cfg writer.Config) ([]byte, error)
}

type PageBuilder interface {
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	SetRotation(degrees int) PageBuilder
	Finish() PDFBuilder
}

type TextOptions struct {
	FontSize float64
}

type Options struct {
	// InheritAttributes stores MediaBox and Resources on the page tree node
	// instead of on each page.
	InheritAttributes bool
	// IndirectResources stores each page's Resources as a separate object.
	IndirectResources bool
}

const (
	defaultFontName = "F1"
	defaultFontSize = 12
)

type builderImpl struct {
	opts  Options
	pages []*pageBuilderImpl
	font  *fonts.Standard
}

type pageBuilderImpl struct {
	parent   *builderImpl
	mediaBox semantic.Rectangle
	rotate   int
	ops      []contentstream.Operation
}

func NewBuilder(opts Options) PDFBuilder {
	return &builderImpl{opts: opts, font: fonts.Helvetica()}
}

func (b *builderImpl) NewPage(w, h float64) PageBuilder {
	p := &pageBuilderImpl{parent: b, mediaBox: semantic.Rectangle{URX: w, URY: h}}
	b.pages = append(b.pages, p)
	return p
}

func (p *pageBuilderImpl) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	size := opts.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	codes, _ := p.parent.font.Encode(text)
	p.ops = append(p.ops, contentstream.ShowText(defaultFontName, size, x, y, codes, false)...)
	return p
}

func (p *pageBuilderImpl) SetRotation(degrees int) PageBuilder {
	p.rotate = degrees
	return p
}

func (p *pageBuilderImpl) Finish() PDFBuilder { return p.parent }

// allocator numbers objects sequentially from 1.
type allocator struct {
	objects map[raw.ObjectRef]raw.Object
	next    int
}

func (a *allocator) Add(obj raw.Object) raw.ObjectRef {
	a.next++
	ref := raw.ObjectRef{Num: a.next}
	a.objects[ref] = obj
	return ref
}

func (a *allocator) reserve() raw.ObjectRef {
	a.next++
	return raw.ObjectRef{Num: a.next}
}

func (b *builderImpl) Build() (map[raw.ObjectRef]raw.Object, *raw.DictObj, error) {
	if len(b.pages) == 0 {
		return nil, nil, errors.New("document has no pages")
	}
	a := &allocator{objects: make(map[raw.ObjectRef]raw.Object)}
	catalogRef := a.reserve()
	pagesRef := a.reserve()

	fontRef, err := writer.AddFont(a, b.font)
	if err != nil {
		return nil, nil, err
	}
	fontDict := raw.Dict()
	fontDict.Set(defaultFontName, fontRef)
	resources := raw.Dict()
	resources.Set("Font", fontDict)
	resources.Set("ProcSet", raw.NewArray(raw.NameLiteral("PDF"), raw.NameLiteral("Text")))

	pagesDict := raw.Dict()
	pagesDict.Set("Type", raw.NameLiteral("Pages"))
	if b.opts.InheritAttributes {
		pagesDict.Set("MediaBox", rectArray(b.pages[0].mediaBox))
		pagesDict.Set("Resources", resources)
	}

	kids := raw.NewArray()
	for _, p := range b.pages {
		content := raw.NewStream(raw.Dict(), contentstream.Serialize(p.ops))
		contentRef := a.Add(content)

		page := raw.Dict()
		page.Set("Type", raw.NameLiteral("Page"))
		page.Set("Parent", raw.RefObj{R: pagesRef})
		page.Set("Contents", raw.RefObj{R: contentRef})
		if !b.opts.InheritAttributes || p.mediaBox != b.pages[0].mediaBox {
			page.Set("MediaBox", rectArray(p.mediaBox))
		}
		if !b.opts.InheritAttributes {
			if b.opts.IndirectResources {
				page.Set("Resources", raw.RefObj{R: a.Add(resources.Clone())})
			} else {
				page.Set("Resources", resources.Clone())
			}
		}
		if p.rotate != 0 {
			page.Set("Rotate", raw.NumberInt(int64(p.rotate)))
		}
		kids.Append(raw.RefObj{R: a.Add(page)})
	}
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", raw.NumberInt(int64(len(b.pages))))
	a.objects[pagesRef] = pagesDict

	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.RefObj{R: pagesRef})
	a.objects[catalogRef] = catalog

	trailer := raw.Dict()
	trailer.Set("Root", raw.RefObj{R: catalogRef})
	id := raw.HexStr([]byte("docsign-fixture01"))
	trailer.Set("ID", raw.NewArray(id, id))
	return a.objects, trailer, nil
}

func (b *builderImpl) Write(out io.Writer, cfg writer.Config) error {
	objects, trailer, err := b.Build()
	if err != nil {
		return err
	}
	return writer.NewDocumentWriter(cfg).Write(out, objects, trailer)
}

func (b *builderImpl) Bytes(cfg writer.Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Write(&buf, cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rectArray(r semantic.Rectangle) *raw.ArrayObj {
	return raw.NewArray(
		contentstream.Num(r.LLX), contentstream.Num(r.LLY),
		contentstream.Num(r.URX), contentstream.Num(r.URY))
}
