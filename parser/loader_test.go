package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/recovery"
	"github.com/wudi/docsign/security"
)

// handPDF lays out numbered object bodies and writes a matching xref table.
func handPDF(bodies []string, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	offsets := make([]int, len(bodies))
	for i, body := range bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(bodies)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xrefAt)
	return buf.Bytes()
}

func TestLoader_IndirectStreamLength(t *testing.T) {
	content := "BT /F1 12 Tf (endstream inside) Tj ET"
	data := handPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>",
		"<< /Length 5 0 R >>\nstream\n" + content + "\nendstream",
		fmt.Sprint(len(content)),
	}, "<< /Size 6 /Root 1 0 R >>")

	doc := parseBytes(t, data)
	obj, err := doc.Resolve(context.Background(), raw.ObjectRef{Num: 4})
	if err != nil {
		t.Fatalf("resolve stream: %v", err)
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		t.Fatalf("expected stream, got %T", obj)
	}
	if string(stream.Data) != content {
		t.Fatalf("stream data = %q", stream.Data)
	}
	pages, err := doc.Pages(context.Background())
	if err != nil || len(pages) != 1 {
		t.Fatalf("pages: %d, %v", len(pages), err)
	}
	if pages[0].MediaBox.Width() != 612 {
		t.Fatalf("expected default letter media box, got %+v", pages[0].MediaBox)
	}
}

func TestLoader_MissingObject(t *testing.T) {
	data := handPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	}, "<< /Size 3 /Root 1 0 R >>")
	doc := parseBytes(t, data)
	if _, err := doc.Resolve(context.Background(), raw.ObjectRef{Num: 9}); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLoader_NestingLimit(t *testing.T) {
	deep := strings.Repeat("[", 20) + strings.Repeat("]", 20)
	data := handPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
		deep,
	}, "<< /Size 4 /Root 1 0 R >>")
	limits := security.DefaultLimits()
	limits.MaxNestingDepth = 5
	doc, err := NewDocumentParser(Config{Limits: limits}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := doc.Resolve(context.Background(), raw.ObjectRef{Num: 3}); err == nil {
		t.Fatalf("expected nesting error")
	}
}

func TestLoader_RecoveryYieldsNull(t *testing.T) {
	data := handPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
		"<< /Broken (unterminated >>",
	}, "<< /Size 4 /Root 1 0 R >>")
	lenient := recovery.NewLenientStrategy(nil)
	doc, err := NewDocumentParser(Config{Recovery: lenient}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	obj, err := doc.Resolve(context.Background(), raw.ObjectRef{Num: 3})
	if err != nil {
		t.Fatalf("lenient resolve: %v", err)
	}
	if _, ok := obj.(raw.NullObj); !ok {
		t.Fatalf("expected null for a broken object, got %T", obj)
	}
	if len(lenient.Errors) == 0 {
		t.Fatalf("expected recorded error")
	}
}

type mapCache map[raw.ObjectRef]raw.Object

func (m mapCache) Get(ref raw.ObjectRef) (raw.Object, bool) {
	o, ok := m[ref]
	return o, ok
}

func (m mapCache) Put(ref raw.ObjectRef, obj raw.Object) { m[ref] = obj }

func TestLoader_UsesCache(t *testing.T) {
	data := handPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	}, "<< /Size 3 /Root 1 0 R >>")
	cache := mapCache{}
	doc, err := NewDocumentParser(Config{Cache: cache}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := doc.Resolve(context.Background(), raw.ObjectRef{Num: 1}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := cache[raw.ObjectRef{Num: 1}]; !ok {
		t.Fatalf("object was not cached")
	}
}
