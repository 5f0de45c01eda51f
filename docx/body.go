package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// paraSpan records where a body paragraph sits in the document part and
// the raw pieces reused when it is rewritten.
type paraSpan struct {
	start, end  int
	depth       int
	startTag    []byte
	selfClosing bool
	pPr         []byte // raw w:pPr element, nil when absent
	rPr         []byte // raw w:rPr of the first run, nil when absent
	text        string
	style       string
}

type bodyLayout struct {
	paragraphs []paraSpan
	insertAt   int    // where paragraphs are added to a body without any
	prefix     string // namespace prefix bound to the main namespace
}

type paraScan struct {
	span     paraSpan
	text     strings.Builder
	inText   bool
	runs     int
	pPrStart int
	rPrStart int
}

func scanBody(source []byte) (bodyLayout, error) {
	layout := bodyLayout{insertAt: -1, prefix: "w"}
	dec := xml.NewDecoder(bytes.NewReader(source))
	var stack []xml.Name
	var cur *paraScan
	bodyDepth := 0
	for {
		off := int(dec.InputOffset())
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return layout, fmt.Errorf("parse %s: %w", documentPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			parent := xml.Name{}
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, t.Name)
			depth := len(stack)
			if t.Name.Space != wordNS {
				continue
			}
			switch {
			case t.Name.Local == "body" && bodyDepth == 0:
				bodyDepth = depth
			case bodyDepth > 0 && depth == bodyDepth+1 && t.Name.Local == "p":
				end := int(dec.InputOffset())
				tag := source[off:end]
				cur = &paraScan{span: paraSpan{
					start:       off,
					depth:       depth,
					startTag:    tag,
					selfClosing: bytes.HasSuffix(tag, []byte("/>")),
					style:       DefaultStyle,
				}}
				layout.prefix = tagPrefix(tag)
			case bodyDepth > 0 && depth == bodyDepth+1 && t.Name.Local == "sectPr" && layout.insertAt < 0:
				layout.insertAt = off
			case cur != nil:
				cur.start(t, parent, depth, off)
			}
		case xml.EndElement:
			depth := len(stack)
			stack = stack[:len(stack)-1]
			if t.Name.Space != wordNS {
				continue
			}
			end := int(dec.InputOffset())
			switch {
			case cur != nil && depth == cur.span.depth && t.Name.Local == "p":
				cur.span.end = end
				cur.span.text = cur.text.String()
				layout.paragraphs = append(layout.paragraphs, cur.span)
				cur = nil
			case cur != nil:
				cur.finish(t, depth, source, end)
			case depth == bodyDepth && t.Name.Local == "body":
				if layout.insertAt < 0 {
					layout.insertAt = off
				}
				bodyDepth = -1
			}
		case xml.CharData:
			if cur != nil && cur.inText {
				cur.text.Write(t)
			}
		}
	}
	if bodyDepth == 0 {
		return layout, ErrNoBody
	}
	return layout, nil
}

func (s *paraScan) start(t xml.StartElement, parent xml.Name, depth, off int) {
	rel := depth - s.span.depth
	inRun := parent.Space == wordNS && parent.Local == "r"
	switch t.Name.Local {
	case "pPr":
		if rel == 1 {
			s.pPrStart = off
		}
	case "pStyle":
		if rel == 2 && parent.Local == "pPr" {
			for _, a := range t.Attr {
				if a.Name.Local == "val" {
					s.span.style = a.Value
				}
			}
		}
	case "r":
		s.runs++
	case "rPr":
		if inRun && s.runs == 1 && s.span.rPr == nil {
			s.rPrStart = off
		}
	case "t":
		s.inText = inRun
	case "tab":
		if inRun {
			s.text.WriteByte('\t')
		}
	case "br", "cr":
		if inRun {
			s.text.WriteByte('\n')
		}
	}
}

func (s *paraScan) finish(t xml.EndElement, depth int, source []byte, end int) {
	switch t.Name.Local {
	case "pPr":
		if depth-s.span.depth == 1 {
			s.span.pPr = source[s.pPrStart:end]
		}
	case "rPr":
		if s.runs == 1 && s.span.rPr == nil && s.rPrStart > 0 {
			s.span.rPr = source[s.rPrStart:end]
		}
	case "t":
		s.inText = false
	}
}

// tagPrefix extracts the namespace prefix from a raw start tag like "<w:p ...>".
func tagPrefix(tag []byte) string {
	name := tag[1:]
	if i := bytes.IndexAny(name, " \t\r\n/>"); i >= 0 {
		name = name[:i]
	}
	if i := bytes.IndexByte(name, ':'); i >= 0 {
		return string(name[:i])
	}
	return ""
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

// rewriteParagraph keeps the paragraph start tag and properties and
// replaces all runs with a single run carrying the first run's formatting.
// A changed style replaces the properties with a bare pStyle.
func rewriteParagraph(source []byte, p paraSpan, cur Paragraph, prefix string) []byte {
	var b bytes.Buffer
	tag := p.startTag
	if p.selfClosing {
		opening := bytes.TrimRight(tag[:len(tag)-2], " \t\r\n")
		tag = append(append(make([]byte, 0, len(opening)+1), opening...), '>')
	}
	b.Write(tag)
	if cur.Style == p.style {
		b.Write(p.pPr)
	} else {
		writeStyle(&b, cur.Style, prefix)
	}
	writeRun(&b, cur.Text, prefix, p.rPr)
	b.WriteString("</" + qualify(prefix, "p") + ">")
	return b.Bytes()
}

func newParagraph(p Paragraph, prefix string, rPr []byte) []byte {
	var b bytes.Buffer
	b.WriteString("<" + qualify(prefix, "p") + ">")
	writeStyle(&b, p.Style, prefix)
	writeRun(&b, p.Text, prefix, rPr)
	b.WriteString("</" + qualify(prefix, "p") + ">")
	return b.Bytes()
}

func writeStyle(b *bytes.Buffer, style, prefix string) {
	if style == "" || style == DefaultStyle {
		return
	}
	b.WriteString("<" + qualify(prefix, "pPr") + "><" + qualify(prefix, "pStyle") + " " + qualify(prefix, "val") + `="`)
	xml.EscapeText(b, []byte(style))
	b.WriteString(`"/></` + qualify(prefix, "pPr") + ">")
}

// writeRun emits text as one run. Tabs and line breaks become w:tab and
// w:br elements.
func writeRun(b *bytes.Buffer, text, prefix string, rPr []byte) {
	if text == "" {
		return
	}
	b.WriteString("<" + qualify(prefix, "r") + ">")
	b.Write(rPr)
	for text != "" {
		i := strings.IndexAny(text, "\t\n")
		if i < 0 {
			i = len(text)
		}
		if i > 0 {
			b.WriteString("<" + qualify(prefix, "t") + ` xml:space="preserve">`)
			xml.EscapeText(b, []byte(text[:i]))
			b.WriteString("</" + qualify(prefix, "t") + ">")
		}
		if i < len(text) {
			if text[i] == '\t' {
				b.WriteString("<" + qualify(prefix, "tab") + "/>")
			} else {
				b.WriteString("<" + qualify(prefix, "br") + "/>")
			}
			i++
		}
		text = text[i:]
	}
	b.WriteString("</" + qualify(prefix, "r") + ">")
}
