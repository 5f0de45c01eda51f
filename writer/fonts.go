package writer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/wudi/docsign/filters"
	"github.com/wudi/docsign/fonts"
	"github.com/wudi/docsign/ir/raw"
)

// Allocator hands out object numbers for new objects.
type Allocator interface {
	Add(obj raw.Object) raw.ObjectRef
}

// AddFont writes the objects describing face and returns the reference of
// its font dictionary. TrueType faces must already have encoded every string
// that will be shown, since only used glyphs get widths and Unicode mappings.
func AddFont(a Allocator, face fonts.Face) (raw.RefObj, error) {
	switch f := face.(type) {
	case *fonts.Standard:
		d := raw.Dict()
		d.Set("Type", raw.NameLiteral("Font"))
		d.Set("Subtype", raw.NameLiteral("Type1"))
		d.Set("BaseFont", raw.NameLiteral(f.BaseFont()))
		d.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
		return raw.RefObj{R: a.Add(d)}, nil
	case *fonts.TrueType:
		return addTrueType(a, f)
	}
	return raw.RefObj{}, fmt.Errorf("unsupported face %T", face)
}

func addTrueType(a Allocator, f *fonts.TrueType) (raw.RefObj, error) {
	compressed, err := filters.FlateEncode(f.Data())
	if err != nil {
		return raw.RefObj{}, err
	}
	fileDict := raw.Dict()
	fileDict.Set("Length1", raw.NumberInt(int64(len(f.Data()))))
	fileDict.Set("Filter", raw.NameLiteral("FlateDecode"))
	fileRef := a.Add(raw.NewStream(fileDict, compressed))

	m := f.Metrics()
	desc := raw.Dict()
	desc.Set("Type", raw.NameLiteral("FontDescriptor"))
	desc.Set("FontName", raw.NameLiteral(f.BaseFont()))
	desc.Set("Flags", raw.NumberInt(32)) // nonsymbolic
	desc.Set("ItalicAngle", raw.NumberFloat(m.ItalicAngle))
	desc.Set("Ascent", raw.NumberFloat(m.Ascent))
	desc.Set("Descent", raw.NumberFloat(m.Descent))
	desc.Set("CapHeight", raw.NumberFloat(m.CapHeight))
	desc.Set("StemV", raw.NumberInt(80))
	desc.Set("FontBBox", raw.NewArray(
		raw.NumberFloat(m.BBox[0]), raw.NumberFloat(m.BBox[1]),
		raw.NumberFloat(m.BBox[2]), raw.NumberFloat(m.BBox[3])))
	desc.Set("FontFile2", raw.RefObj{R: fileRef})
	descRef := a.Add(desc)

	widths := make(map[int]int, len(f.Used()))
	toUnicode := make(map[int][]rune, len(f.Used()))
	for gid, use := range f.Used() {
		widths[int(gid)] = use.Width
		if len(use.Runes) > 0 {
			toUnicode[int(gid)] = use.Runes
		}
	}

	sysInfo := raw.Dict()
	sysInfo.Set("Registry", raw.Str([]byte("Adobe")))
	sysInfo.Set("Ordering", raw.Str([]byte("Identity")))
	sysInfo.Set("Supplement", raw.NumberInt(0))

	cid := raw.Dict()
	cid.Set("Type", raw.NameLiteral("Font"))
	cid.Set("Subtype", raw.NameLiteral("CIDFontType2"))
	cid.Set("BaseFont", raw.NameLiteral(f.BaseFont()))
	cid.Set("CIDSystemInfo", sysInfo)
	cid.Set("FontDescriptor", raw.RefObj{R: descRef})
	cid.Set("CIDToGIDMap", raw.NameLiteral("Identity"))
	cid.Set("DW", raw.NumberInt(int64(f.DefaultWidth())))
	cid.Set("W", encodeCIDWidths(widths))
	cidRef := a.Add(cid)

	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type0"))
	font.Set("BaseFont", raw.NameLiteral(f.BaseFont()))
	font.Set("Encoding", raw.NameLiteral("Identity-H"))
	font.Set("DescendantFonts", raw.NewArray(raw.RefObj{R: cidRef}))
	if cmap := buildToUnicodeCMap(f.BaseFont(), toUnicode); cmap != nil {
		font.Set("ToUnicode", raw.RefObj{R: a.Add(raw.NewStream(raw.Dict(), cmap))})
	}
	return raw.RefObj{R: a.Add(font)}, nil
}

func buildToUnicodeCMap(baseFont string, mapping map[int][]rune) []byte {
	if len(mapping) == 0 {
		return nil
	}
	keys := make([]int, 0, len(mapping))
	for cid := range mapping {
		keys = append(keys, cid)
	}
	sort.Ints(keys)
	name := strings.ReplaceAll(baseFont, " ", "") + "-UTF16"

	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	fmt.Fprintf(&buf, "/CMapName /%s def\n/CMapType 2 def\n", name)
	buf.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	for i := 0; i < len(keys); i += 100 {
		chunk := keys[i:min(i+100, len(keys))]
		fmt.Fprintf(&buf, "%d beginbfchar\n", len(chunk))
		for _, cid := range chunk {
			fmt.Fprintf(&buf, "<%04X> <%s>\n", cid, utf16Hex(mapping[cid]))
		}
		buf.WriteString("endbfchar\n")
	}
	buf.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return buf.Bytes()
}

func utf16Hex(runes []rune) string {
	var b strings.Builder
	for _, u := range utf16.Encode(runes) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}

// encodeCIDWidths emits W entries of the form "first last width" for runs
// of consecutive glyph IDs sharing one width.
func encodeCIDWidths(widths map[int]int) *raw.ArrayObj {
	arr := raw.NewArray()
	if len(widths) == 0 {
		return arr
	}
	codes := make([]int, 0, len(widths))
	for c := range widths {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	start, prev, current := codes[0], codes[0], widths[codes[0]]
	flush := func() {
		arr.Append(raw.NumberInt(int64(start)))
		arr.Append(raw.NumberInt(int64(prev)))
		arr.Append(raw.NumberInt(int64(current)))
	}
	for _, code := range codes[1:] {
		w := widths[code]
		if w == current && code == prev+1 {
			prev = code
			continue
		}
		flush()
		start, prev, current = code, code, w
	}
	flush()
	return arr
}
