// Package contentstream builds and reads page content operator sequences.
package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/scanner"
	"github.com/wudi/docsign/writer"
)

// Operation is one content operator with its operands in source order.
type Operation struct {
	Operator string
	Operands []raw.Object
}

func Op(operator string, operands ...raw.Object) Operation {
	return Operation{Operator: operator, Operands: operands}
}

// Num returns a numeric operand, integral when f has no fraction.
func Num(f float64) raw.Object {
	if f == float64(int64(f)) {
		return raw.NumberInt(int64(f))
	}
	return raw.NumberFloat(f)
}

func Serialize(ops []Operation) []byte {
	var b bytes.Buffer
	for _, op := range ops {
		for _, operand := range op.Operands {
			b.Write(writer.SerializePrimitive(operand))
			b.WriteByte(' ')
		}
		b.WriteString(op.Operator)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// ShowText draws codes with font at size, the baseline starting at (x, y),
// isolated in its own graphics state.
func ShowText(font string, size, x, y float64, codes []byte, hex bool) []Operation {
	text := raw.StringObj{Bytes: codes, Hex: hex}
	return []Operation{
		Op("q"),
		Op("BT"),
		Op("Tf", raw.NameLiteral(font), Num(size)),
		Op("Td", Num(x), Num(y)),
		Op("Tj", text),
		Op("ET"),
		Op("Q"),
	}
}

// Parse splits a content stream into operations, for reading back the
// overlays written by the stamper. Inline images are not supported.
func Parse(data []byte) ([]Operation, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	var ops []Operation
	var operands []raw.Object
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword {
			if tok.Str == "BI" {
				return nil, errors.New("inline images are not supported")
			}
			ops = append(ops, Operation{Operator: tok.Str, Operands: operands})
			operands = nil
			continue
		}
		obj, err := operand(s, tok)
		if err != nil {
			return nil, err
		}
		operands = append(operands, obj)
	}
	if len(operands) > 0 {
		return nil, fmt.Errorf("%d dangling operands at end of stream", len(operands))
	}
	return ops, nil
}

func operand(s scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			next, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("unterminated array: %w", err)
			}
			if next.Type == scanner.TokenKeyword && next.Str == "]" {
				return arr, nil
			}
			item, err := operand(s, next)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		d := raw.Dict()
		for {
			key, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("unterminated dictionary: %w", err)
			}
			if key.Type == scanner.TokenKeyword && key.Str == ">>" {
				return d, nil
			}
			valTok, err := s.Next()
			if err != nil {
				return nil, err
			}
			val, err := operand(s, valTok)
			if err != nil {
				return nil, err
			}
			d.Set(key.Str, val)
		}
	}
	return nil, fmt.Errorf("unexpected token %q in content stream", tok.Str)
}
