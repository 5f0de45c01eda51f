package writer_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/security"
	"github.com/wudi/docsign/writer"
)

func TestIncrementalPreservesOriginalBytes(t *testing.T) {
	for name, cfg := range map[string]writer.Config{"table": {}, "stream": {XRefStreams: true}} {
		t.Run(name, func(t *testing.T) {
			base := buildPDF(t, cfg)
			doc := parsePDF(t, base)
			pages, err := doc.Pages(context.Background())
			if err != nil {
				t.Fatalf("pages: %v", err)
			}

			upd, err := writer.NewIncremental(base, doc.Raw(), writer.Config{})
			if err != nil {
				t.Fatalf("incremental: %v", err)
			}
			page := pages[0].Dict.Clone()
			page.Set("UserUnit", raw.NumberInt(1))
			upd.Replace(pages[0].Ref, page)
			if upd.Len() != 1 {
				t.Fatalf("expected one pending object")
			}
			out, err := upd.Bytes()
			if err != nil {
				t.Fatalf("bytes: %v", err)
			}
			if !bytes.HasPrefix(out, base) {
				t.Fatalf("original bytes were modified")
			}

			updated := parsePDF(t, out)
			if updated.Table().XRefStream != cfg.XRefStreams {
				t.Fatalf("update should keep the newest xref flavour")
			}
			if prev, _ := updated.Table().Trailer.Int("Prev"); prev != 0 {
				t.Fatalf("merged trailer should not carry Prev, got %d", prev)
			}
			newPages, err := updated.Pages(context.Background())
			if err != nil {
				t.Fatalf("pages after update: %v", err)
			}
			if len(newPages) != len(pages) {
				t.Fatalf("page count changed: %d -> %d", len(pages), len(newPages))
			}
			if newPages[0].Dict.Get("UserUnit") == nil {
				t.Fatalf("replacement page not visible")
			}

			ids, ok := updated.Raw().Trailer.Get("ID").(*raw.ArrayObj)
			if !ok || len(ids.Items) != 2 {
				t.Fatalf("missing ID array")
			}
			if string(ids.Items[0].(raw.StringObj).Bytes) != "docsign-fixture01" {
				t.Fatalf("permanent identifier changed")
			}
			if len(ids.Items[1].(raw.StringObj).Bytes) != 16 {
				t.Fatalf("changing identifier should be 16 bytes")
			}
		})
	}
}

func TestIncrementalRejectsEncrypted(t *testing.T) {
	doc := &raw.Document{Trailer: raw.Dict(), StartXRef: 10}
	doc.Trailer.Set("Root", raw.Ref(1, 0))
	doc.Trailer.Set("Encrypt", raw.Ref(5, 0))
	if _, err := writer.NewIncremental([]byte("%PDF-1.7\n"), doc, writer.Config{}); !errors.Is(err, security.ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
}

func TestIncrementalRequiresObjects(t *testing.T) {
	base := buildPDF(t, writer.Config{})
	upd, err := writer.NewIncremental(base, parsePDF(t, base).Raw(), writer.Config{})
	if err != nil {
		t.Fatalf("incremental: %v", err)
	}
	if _, err := upd.Bytes(); err == nil {
		t.Fatalf("expected error for an empty update")
	}
}
