package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/scanner"
)

// repair scans the whole file for "N G obj" headers and trailer
// dictionaries to rebuild a table when the xref chain is unusable.
func repair(ctx context.Context, src io.ReaderAt, p ObjectParser) (*Table, error) {
	s := scanner.New(src, scanner.Config{})
	t := &Table{entries: make(map[int]Entry), StartXRef: -1, Repaired: true}
	var window [2]scanner.Token
	seen := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		switch {
		case tok.Type == scanner.TokenKeyword && tok.Str == "obj" && seen >= 2 &&
			window[0].Type == scanner.TokenNumber && window[0].IsInt &&
			window[1].Type == scanner.TokenNumber && window[1].IsInt:
			// later definitions override earlier ones, as in an update chain
			t.entries[int(window[0].Int)] = Entry{Kind: EntryInUse, Offset: window[0].Pos, Gen: int(window[1].Int)}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			if obj, err := p.ParseValueAt(ctx, s.Position()); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					t.Trailer = dict
				}
			}
		}
		window[0], window[1] = window[1], tok
		seen++
	}
	if len(t.entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if t.Trailer == nil {
		t.Trailer = raw.Dict()
	}
	if t.Trailer.Get("Root") == nil {
		for _, num := range t.Objects() {
			e := t.entries[num]
			_, obj, err := p.ParseIndirectAt(ctx, e.Offset)
			if err != nil {
				continue
			}
			if d, ok := obj.(*raw.DictObj); ok {
				if typ, _ := d.Name("Type"); typ == "Catalog" {
					t.Trailer.Set("Root", raw.Ref(num, e.Gen))
				}
			}
		}
	}
	if t.Trailer.Get("Root") == nil {
		return nil, ErrNoTrailer
	}
	t.Trailer.Set("Size", raw.NumberInt(int64(t.Size())))
	return t, nil
}
