package raw

import "testing"

func TestDictHelpers(t *testing.T) {
	d := Dict()
	d.Set("Type", NameLiteral("Page"))
	d.Set("Count", NumberInt(3))
	d.Set("Width", NumberFloat(612.5))

	if n, ok := d.Name("Type"); !ok || n != "Page" {
		t.Fatalf("unexpected name: %q %v", n, ok)
	}
	if c, ok := d.Int("Count"); !ok || c != 3 {
		t.Fatalf("unexpected count: %d %v", c, ok)
	}
	if w, ok := Float(d.Get("Width")); !ok || w != 612.5 {
		t.Fatalf("unexpected width: %v", w)
	}
	if d.Get("Missing") != nil {
		t.Fatalf("missing key should be nil")
	}
	keys := d.Keys()
	if len(keys) != 3 || keys[0] != "Count" || keys[2] != "Width" {
		t.Fatalf("keys not sorted: %v", keys)
	}

	c := d.Clone()
	c.Set("Type", NameLiteral("Pages"))
	if n, _ := d.Name("Type"); n != "Page" {
		t.Fatalf("clone mutated source")
	}
}

func TestDocumentRoot(t *testing.T) {
	doc := &Document{Trailer: Dict()}
	if _, ok := doc.Root(); ok {
		t.Fatalf("expected no root")
	}
	doc.Trailer.Set("Root", Ref(1, 0))
	r, ok := doc.Root()
	if !ok || r != (ObjectRef{Num: 1}) {
		t.Fatalf("unexpected root %v", r)
	}
	if r.String() != "1 0 R" {
		t.Fatalf("unexpected ref string %q", r.String())
	}
}
