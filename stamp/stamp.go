// Package stamp draws a text overlay onto one page of an existing PDF.
// The result is an incremental update: the original bytes are kept and
// only the target page dictionary is replaced.
package stamp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/wudi/docsign/contentstream"
	"github.com/wudi/docsign/fonts"
	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/ir/semantic"
	"github.com/wudi/docsign/observability"
	"github.com/wudi/docsign/parser"
	"github.com/wudi/docsign/recovery"
	"github.com/wudi/docsign/security"
	"github.com/wudi/docsign/writer"
)

var (
	// ErrPageOutOfRange is returned when the target page does not exist.
	ErrPageOutOfRange = errors.New("page number out of range")
	ErrEmptyRect      = errors.New("stamp rectangle has no area")
)

// PageError reports a failure tied to one page.
type PageError struct {
	Page  int // 1-based page number requested
	Count int // pages in the document
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d of %d: %v", e.Page, e.Count, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

type Config struct {
	// FontPath names a TrueType font to embed. When empty or unloadable the
	// overlay uses Helvetica.
	FontPath string
	Limits   security.Limits
	Recovery recovery.Strategy
	Writer   writer.Config
	Logger   observability.Logger
	Tracer   observability.Tracer
}

// Stamper holds configuration only. Calls share no state and may run
// concurrently on different inputs.
type Stamper struct {
	cfg Config
}

func New(cfg Config) *Stamper {
	if cfg.Limits.MaxXRefDepth == 0 {
		cfg.Limits = security.DefaultLimits()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewStrictStrategy()
	}
	return &Stamper{cfg: cfg}
}

const fontResourcePrefix = "DocsignF"

// Stamp draws text inside rect on the 1-based page pageNumber of src and
// returns the updated file.
func (s *Stamper) Stamp(ctx context.Context, src []byte, pageNumber int, text string, rect Rect) ([]byte, error) {
	ctx, span := s.cfg.Tracer.StartSpan(ctx, observability.SpanStamp)
	defer span.Finish()
	span.SetTag("page", pageNumber)

	out, err := s.stamp(ctx, src, pageNumber, text, rect)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return out, nil
}

func (s *Stamper) stamp(ctx context.Context, src []byte, pageNumber int, text string, rect Rect) ([]byte, error) {
	if rect.Width <= 0 || rect.Height <= 0 {
		return nil, fmt.Errorf("%w: %vx%v", ErrEmptyRect, rect.Width, rect.Height)
	}
	doc, err := parser.NewDocumentParser(parser.Config{
		Recovery: s.cfg.Recovery,
		Limits:   s.cfg.Limits,
		Logger:   s.cfg.Logger,
		Tracer:   s.cfg.Tracer,
	}).Parse(ctx, bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	if err := security.CheckWritable(doc.Raw().Trailer); err != nil {
		return nil, err
	}
	pages, err := doc.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pages: %w", err)
	}
	if pageNumber < 1 || pageNumber > len(pages) {
		return nil, &PageError{Page: pageNumber, Count: len(pages), Err: ErrPageOutOfRange}
	}
	page := pages[pageNumber-1]

	face := s.selectFace()
	size := FitSize(face, text, rect)
	codes, err := face.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("encode overlay text: %w", err)
	}
	x, y := Baseline(page.MediaBox, rect, size)
	s.cfg.Logger.Debug("placing overlay",
		observability.Int("page", pageNumber),
		observability.String("font", face.BaseFont()),
		observability.Float64("size", size),
		observability.Float64("x", x),
		observability.Float64("y", y))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, wspan := s.cfg.Tracer.StartSpan(ctx, observability.SpanWrite)
	defer wspan.Finish()

	upd, err := writer.NewIncremental(src, doc.Raw(), s.cfg.Writer)
	if err != nil {
		wspan.SetError(err)
		return nil, err
	}
	fontRef, err := writer.AddFont(upd, face)
	if err != nil {
		wspan.SetError(err)
		return nil, fmt.Errorf("embed font: %w", err)
	}
	replaced, err := s.mergePage(ctx, doc, page, upd, fontRef, size, x, y, codes, isComposite(face))
	if err != nil {
		wspan.SetError(err)
		return nil, &PageError{Page: pageNumber, Count: len(pages), Err: err}
	}
	upd.Replace(page.Ref, replaced)
	out, err := upd.Bytes()
	if err != nil {
		wspan.SetError(err)
		return nil, fmt.Errorf("write update: %w", err)
	}
	s.cfg.Logger.Info("stamped page",
		observability.Int("page", pageNumber),
		observability.Int("objects", upd.Len()),
		observability.Int("bytes", len(out)-len(src)))
	return out, nil
}

func (s *Stamper) selectFace() fonts.Face {
	sel := fonts.Select(s.cfg.FontPath)
	if sel.Fallback != nil && s.cfg.FontPath != "" {
		s.cfg.Logger.Warn("custom font unavailable, using standard font",
			observability.String("path", s.cfg.FontPath),
			observability.String("font", sel.Face.BaseFont()),
			observability.Error("error", sel.Fallback))
	}
	return sel.Face
}

func isComposite(face fonts.Face) bool {
	_, ok := face.(*fonts.TrueType)
	return ok
}

// mergePage builds the replacement page dictionary. The existing content
// is wrapped in q/Q so its graphics state cannot shift the overlay.
func (s *Stamper) mergePage(ctx context.Context, doc *parser.Document, page semantic.Page, upd *writer.Incremental,
	fontRef raw.RefObj, size, x, y float64, codes []byte, hex bool) (*raw.DictObj, error) {
	resources := raw.Dict()
	if page.Resources != nil {
		resources = page.Resources.Clone()
	}
	fontDict, err := doc.DerefDict(ctx, resources.Get("Font"))
	if err != nil {
		return nil, fmt.Errorf("font resources: %w", err)
	}
	if fontDict == nil {
		fontDict = raw.Dict()
	} else {
		fontDict = fontDict.Clone()
	}
	name := uniqueName(fontDict, fontResourcePrefix)
	fontDict.Set(name, fontRef)
	resources.Set("Font", fontDict)

	contents, err := doc.Deref(ctx, page.Dict.Get("Contents"))
	if err != nil {
		return nil, fmt.Errorf("page contents: %w", err)
	}
	var existing []raw.Object
	switch c := contents.(type) {
	case *raw.ArrayObj:
		existing = c.Items
	case nil, raw.NullObj:
	default:
		existing = []raw.Object{page.Dict.Get("Contents")}
	}

	overlay := append([]contentstream.Operation{contentstream.Op("Q")},
		contentstream.ShowText(name, size, x, y, codes, hex)...)
	items := make([]raw.Object, 0, len(existing)+2)
	if len(existing) > 0 {
		items = append(items, raw.RefObj{R: upd.Add(raw.NewStream(raw.Dict(), []byte("q\n")))})
		items = append(items, existing...)
	} else {
		overlay = overlay[1:]
	}
	items = append(items, raw.RefObj{R: upd.Add(raw.NewStream(raw.Dict(), contentstream.Serialize(overlay)))})

	replaced := page.Dict.Clone()
	replaced.Set("Contents", raw.NewArray(items...))
	replaced.Set("Resources", resources)
	return replaced, nil
}

func uniqueName(d *raw.DictObj, prefix string) string {
	for i := 1; ; i++ {
		name := prefix + strconv.Itoa(i)
		if d.Get(name) == nil {
			return name
		}
	}
}

// StampFile stamps the file at inPath and writes the result to outPath.
func (s *Stamper) StampFile(ctx context.Context, inPath, outPath string, pageNumber int, text string, rect Rect) error {
	src, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	out, err := s.Stamp(ctx, src, pageNumber, text, rect)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
