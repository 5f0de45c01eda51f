package xref_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/wudi/docsign/parser"
	"github.com/wudi/docsign/recovery"
	"github.com/wudi/docsign/writer"
)

func corruptStartXRef(data []byte) []byte {
	tail := bytes.LastIndex(data, []byte("startxref\n"))
	out := append([]byte{}, data[:tail]...)
	return append(out, []byte("startxref\n999999\n%%EOF\n")...)
}

func TestResolverRepairsCorruptXRef(t *testing.T) {
	broken := corruptStartXRef(samplePDF(t, writer.Config{}))

	strict := parser.NewDocumentParser(parser.Config{Recovery: recovery.NewStrictStrategy()})
	if _, err := strict.Parse(context.Background(), bytes.NewReader(broken)); err == nil {
		t.Fatalf("strict parse should fail on a bad startxref")
	}

	lenient := recovery.NewLenientStrategy(nil)
	doc := parse(t, broken, lenient)
	if !doc.Table().Repaired {
		t.Fatalf("expected repaired table")
	}
	if len(lenient.Errors) == 0 {
		t.Fatalf("lenient strategy should record the failure")
	}
	pages, err := doc.Pages(context.Background())
	if err != nil {
		t.Fatalf("pages after repair: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages after repair, got %d", len(pages))
	}
}

func TestResolverRepairsGarbagePrefix(t *testing.T) {
	data := samplePDF(t, writer.Config{})
	// every offset in the table is now off by the prefix length
	shifted := append([]byte("garbage before header\n"), data...)
	doc := parse(t, corruptStartXRef(shifted), recovery.NewLenientStrategy(nil))
	if _, ok := doc.Raw().Root(); !ok {
		t.Fatalf("repair did not recover Root")
	}
	pages, err := doc.Pages(context.Background())
	if err != nil || len(pages) != 2 {
		t.Fatalf("pages: %d, %v", len(pages), err)
	}
}
