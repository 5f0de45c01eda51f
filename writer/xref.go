package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wudi/docsign/filters"
	"github.com/wudi/docsign/ir/raw"
)

// xrefEntry mirrors a cross-reference stream row: kind 0 free, 1 in use
// (offset, gen), 2 compressed (offset holds the object stream number, gen
// the index within it).
type xrefEntry struct {
	kind   int
	offset int64
	gen    int
}

// subsections groups sorted object numbers into contiguous runs.
func subsections(entries map[int]xrefEntry) [][2]int {
	nums := make([]int, 0, len(entries))
	for n := range entries {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var out [][2]int
	for _, n := range nums {
		if len(out) > 0 && out[len(out)-1][0]+out[len(out)-1][1] == n {
			out[len(out)-1][1]++
			continue
		}
		out = append(out, [2]int{n, 1})
	}
	return out
}

func writeXRefTable(buf *bytes.Buffer, entries map[int]xrefEntry, trailer *raw.DictObj, size int) {
	start := buf.Len()
	buf.WriteString("xref\n")
	for _, sub := range subsections(entries) {
		fmt.Fprintf(buf, "%d %d\n", sub[0], sub[1])
		for n := sub[0]; n < sub[0]+sub[1]; n++ {
			e := entries[n]
			if e.kind == 0 {
				fmt.Fprintf(buf, "%010d %05d f \n", e.offset, e.gen)
				continue
			}
			fmt.Fprintf(buf, "%010d %05d n \n", e.offset, e.gen)
		}
	}
	trailer.Set("Size", raw.NumberInt(int64(size)))
	buf.WriteString("trailer\n")
	buf.Write(SerializePrimitive(trailer))
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", start)
}

// writeXRefStream emits the section as object num, which indexes itself.
func writeXRefStream(buf *bytes.Buffer, num int, entries map[int]xrefEntry, trailer *raw.DictObj, size int) error {
	start := int64(buf.Len())
	entries[num] = xrefEntry{kind: 1, offset: start}

	index := raw.NewArray()
	var rows []byte
	for _, sub := range subsections(entries) {
		index.Append(raw.NumberInt(int64(sub[0])))
		index.Append(raw.NumberInt(int64(sub[1])))
		for n := sub[0]; n < sub[0]+sub[1]; n++ {
			rows = appendXRefStreamEntry(rows, entries[n])
		}
	}
	data, err := filters.FlateEncode(rows)
	if err != nil {
		return err
	}
	d := trailer.Clone()
	d.Set("Type", raw.NameLiteral("XRef"))
	d.Set("Size", raw.NumberInt(int64(size)))
	d.Set("Index", index)
	d.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(4), raw.NumberInt(2)))
	d.Set("Filter", raw.NameLiteral("FlateDecode"))
	buf.Write(SerializeObject(raw.ObjectRef{Num: num}, raw.NewStream(d, data)))
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", start)
	return nil
}

func appendXRefStreamEntry(buf []byte, e xrefEntry) []byte {
	off := uint32(e.offset)
	gen := uint16(e.gen)
	return append(buf, byte(e.kind),
		byte(off>>24), byte(off>>16), byte(off>>8), byte(off),
		byte(gen>>8), byte(gen))
}
