// Package docx reads and writes the paragraph list of a WordprocessingML
// package. Only body-level paragraphs are exposed. Saving rewrites the
// paragraphs whose text or style changed and copies every other byte of
// the package unchanged.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// DefaultStyle is reported for paragraphs without a pStyle.
	DefaultStyle = "Normal"

	documentPart = "word/document.xml"
	wordNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

var (
	ErrNoDocumentPart = errors.New("package has no word/document.xml")
	ErrNoBody         = errors.New("document has no body")
)

type Paragraph struct {
	Text  string
	Style string
}

// Document is an opened package. Callers edit Paragraphs in place and call
// Save or Write; paragraphs may be changed or appended.
type Document struct {
	Paragraphs []Paragraph

	files  []*zip.File
	source []byte // word/document.xml as read
	layout bodyLayout
}

// Texts returns the paragraph texts in order.
func (d *Document) Texts() []string {
	out := make([]string, len(d.Paragraphs))
	for i, p := range d.Paragraphs {
		out[i] = p.Text
	}
	return out
}

// Text returns the logical text: paragraphs joined by a single newline.
func (d *Document) Text() string {
	return strings.Join(d.Texts(), "\n")
}

// Open reads the package at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	return Parse(data)
}

// Parse reads a package held in memory.
func Parse(data []byte) (*Document, error) {
	return Read(bytes.NewReader(data), int64(len(data)))
}

func Read(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, ErrNoDocumentPart
	}
	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", documentPart, err)
	}
	source, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", documentPart, err)
	}
	layout, err := scanBody(source)
	if err != nil {
		return nil, err
	}
	doc := &Document{files: zr.File, source: source, layout: layout}
	for _, p := range layout.paragraphs {
		doc.Paragraphs = append(doc.Paragraphs, Paragraph{Text: p.text, Style: p.style})
	}
	return doc, nil
}

// Save writes the package to path.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write emits the package. Entries other than the document part are copied
// without recompression.
func (d *Document) Write(w io.Writer) error {
	body, err := d.render()
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	for _, f := range d.files {
		if f.Name != documentPart {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		hdr := f.FileHeader
		hdr.Method = zip.Deflate
		hdr.CompressedSize64, hdr.UncompressedSize64, hdr.CRC32 = 0, 0, 0
		pw, err := zw.CreateHeader(&hdr)
		if err != nil {
			return fmt.Errorf("create %s: %w", documentPart, err)
		}
		if _, err := pw.Write(body); err != nil {
			return fmt.Errorf("write %s: %w", documentPart, err)
		}
	}
	return zw.Close()
}

// render splices rewritten paragraphs into the original part.
func (d *Document) render() ([]byte, error) {
	orig := d.layout.paragraphs
	var out bytes.Buffer
	out.Grow(len(d.source) + 256)
	pos := 0
	for i, p := range orig {
		out.Write(d.source[pos:p.start])
		pos = p.end
		if i >= len(d.Paragraphs) {
			continue
		}
		cur := d.Paragraphs[i]
		if cur.Text == p.text && cur.Style == p.style {
			out.Write(d.source[p.start:p.end])
			continue
		}
		out.Write(rewriteParagraph(d.source, p, cur, d.layout.prefix))
	}
	insertAt := d.layout.insertAt
	var runProps []byte
	if len(orig) > 0 {
		last := orig[len(orig)-1]
		insertAt, runProps = last.end, last.rPr
	}
	if insertAt < pos {
		return nil, errors.New("paragraph layout out of order")
	}
	out.Write(d.source[pos:insertAt])
	for i := len(orig); i < len(d.Paragraphs); i++ {
		out.Write(newParagraph(d.Paragraphs[i], d.layout.prefix, runProps))
	}
	out.Write(d.source[insertAt:])
	return out.Bytes(), nil
}
