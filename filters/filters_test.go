package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"errors"
	"testing"

	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/security"
)

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()
	return buf.Bytes()
}

func TestFlateDecode(t *testing.T) {
	out, err := NewFlateDecoder().Decode(context.Background(), zlibBytes(t, []byte("hello world")), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("bare deflate"))
	w.Close()

	out, err := NewFlateDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "bare deflate" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithPredictor(t *testing.T) {
	// PNG predictor rows: Sub then Up.
	comp := zlibBytes(t, []byte{1, 10, 12, 20, 2, 1, 1, 1})

	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(12))
	params.Set("Columns", raw.NumberInt(3))

	out, err := NewFlateDecoder().Decode(context.Background(), comp, params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 22, 42, 11, 23, 43}
	if !bytes.Equal(out, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", out, want)
	}
}

func TestASCIIDecoders(t *testing.T) {
	out, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48 65 6c\n6C 6F>"), nil)
	if err != nil || string(out) != "Hello" {
		t.Fatalf("hex decode: %q %v", out, err)
	}
	out, err = NewASCII85Decoder().Decode(context.Background(), []byte("<~87cURD]i,\"Ebo80~>"), nil)
	if err != nil || string(out) != "Hello World!" {
		t.Fatalf("ascii85 decode: %q %v", out, err)
	}
}

func TestPipelineDecodeStream(t *testing.T) {
	dict := raw.Dict()
	dict.Set("Filter", raw.NewArray(raw.NameLiteral("ASCIIHexDecode"), raw.NameLiteral("FlateDecode")))
	comp := zlibBytes(t, []byte("layered"))
	var hexed bytes.Buffer
	for _, b := range comp {
		hexed.WriteString(string("0123456789ABCDEF"[b>>4]) + string("0123456789ABCDEF"[b&0xF]))
	}
	hexed.WriteByte('>')

	p := NewDefaultPipeline(security.DefaultLimits())
	out, err := p.DecodeStream(context.Background(), raw.NewStream(dict, hexed.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "layered" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPipelineLimitsAndUnknown(t *testing.T) {
	limits := security.DefaultLimits()
	limits.MaxDecompressedSize = 4
	p := NewDefaultPipeline(limits)
	if _, err := p.Decode(context.Background(), zlibBytes(t, []byte("too long")), []string{"FlateDecode"}, nil); err == nil {
		t.Fatalf("expected size limit error")
	}
	_, err := p.Decode(context.Background(), []byte("x"), []string{"JBIG2Decode"}, nil)
	if !errors.Is(err, ErrUnsupportedFilter) {
		t.Fatalf("expected unsupported filter, got %v", err)
	}
}

func TestFlateEncodeRoundTrip(t *testing.T) {
	enc, err := FlateEncode([]byte("BT /F1 12 Tf ET"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := NewFlateDecoder().Decode(context.Background(), enc, nil)
	if err != nil || string(out) != "BT /F1 12 Tf ET" {
		t.Fatalf("round trip: %q %v", out, err)
	}
}
