// Package form models the fields a requester places on a document before
// sending it for signature.
package form

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/wudi/docsign/stamp"
)

type FieldType string

const (
	Name      FieldType = "Name"
	Date      FieldType = "Date"
	Initials  FieldType = "Initials"
	Signature FieldType = "Signature"
	Text      FieldType = "Text"
)

func (t FieldType) Valid() bool {
	switch t {
	case Name, Date, Initials, Signature, Text:
		return true
	}
	return false
}

var ErrInvalidFields = errors.New("invalid form fields")

// FormField is a rectangle on a page in top-left coordinates.
type FormField struct {
	ID         string
	PageNumber int // 1-based
	X, Y       float64
	Width      float64
	Height     float64
	Type       FieldType
}

// Rect returns the stamping rectangle of the field.
func (f FormField) Rect() stamp.Rect {
	return stamp.Rect{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}
}

type Fields []FormField

// Signature returns the signature field. When several are present the
// last one wins.
func (fs Fields) Signature() (FormField, bool) {
	var out FormField
	found := false
	for _, f := range fs {
		if f.Type == Signature {
			out, found = f, true
		}
	}
	return out, found
}

// SignatureOr returns the signature field or def when there is none.
func (fs Fields) SignatureOr(def FormField) FormField {
	if f, ok := fs.Signature(); ok {
		return f
	}
	return def
}

// Parse reads fields from either a bare JSON array or an object holding
// them under "form_fields". A missing pageNumber means page 1.
func Parse(data []byte) (Fields, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidFields)
	}
	root := gjson.ParseBytes(data)
	list := root
	if root.IsObject() {
		list = root.Get("form_fields")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: expected an array of fields", ErrInvalidFields)
	}
	var out Fields
	var err error
	list.ForEach(func(_, v gjson.Result) bool {
		var f FormField
		f, err = parseField(len(out), v)
		if err != nil {
			return false
		}
		out = append(out, f)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseField(i int, v gjson.Result) (FormField, error) {
	if !v.IsObject() {
		return FormField{}, fmt.Errorf("%w: field %d is not an object", ErrInvalidFields, i)
	}
	f := FormField{
		ID:         v.Get("id").String(),
		PageNumber: 1,
		X:          v.Get("x").Float(),
		Y:          v.Get("y").Float(),
		Width:      v.Get("width").Float(),
		Height:     v.Get("height").Float(),
		Type:       FieldType(v.Get("type").String()),
	}
	if p := v.Get("pageNumber"); p.Exists() {
		f.PageNumber = int(p.Int())
	}
	if !f.Type.Valid() {
		return FormField{}, fmt.Errorf("%w: field %d has unknown type %q", ErrInvalidFields, i, f.Type)
	}
	if f.PageNumber < 1 {
		return FormField{}, fmt.Errorf("%w: field %d has page %d", ErrInvalidFields, i, f.PageNumber)
	}
	if f.Width < 0 || f.Height < 0 {
		return FormField{}, fmt.Errorf("%w: field %d has a negative size", ErrInvalidFields, i)
	}
	if f.Type == Signature && (f.Width == 0 || f.Height == 0) {
		return FormField{}, fmt.Errorf("%w: signature field %d has no area", ErrInvalidFields, i)
	}
	return f, nil
}

// JSON encodes fields in the object form accepted by Parse.
func (fs Fields) JSON() ([]byte, error) {
	out := []byte(`{"form_fields":[]}`)
	for _, f := range fs {
		var err error
		out, err = sjson.SetBytes(out, "form_fields.-1", map[string]any{
			"id":         f.ID,
			"type":       string(f.Type),
			"pageNumber": f.PageNumber,
			"x":          f.X,
			"y":          f.Y,
			"width":      f.Width,
			"height":     f.Height,
		})
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", f.ID, err)
		}
	}
	return out, nil
}
