package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/docsign/docx"
	"github.com/wudi/docsign/editor"
)

func newDoc(t *testing.T, texts ...string) *docx.Document {
	t.Helper()
	paras := make([]docx.Paragraph, len(texts))
	for i, text := range texts {
		paras[i] = docx.Paragraph{Text: text, Style: docx.DefaultStyle}
	}
	doc, err := docx.New(paras)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

func TestParseCall(t *testing.T) {
	call, err := ParseCall([]byte(`{"function_name": "deleteText", "arguments": {"text": "Clause 4"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if call.Function != DeleteText || call.Arguments["text"] != "Clause 4" {
		t.Fatalf("call = %+v", call)
	}
	if err := call.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestParseCall_Malformed(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{"function_name": `,
		"not object":       `["deleteText"]`,
		"no name":          `{"arguments": {}}`,
		"args not object":  `{"function_name": "deleteText", "arguments": ["x"]}`,
		"non string value": `{"function_name": "deleteText", "arguments": {"text": 3}}`,
	}
	for name, body := range cases {
		if _, err := ParseCall([]byte(body)); !errors.Is(err, ErrMalformedCall) {
			t.Errorf("%s: expected ErrMalformedCall, got %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		call Call
		want error
	}{
		{"unknown", Call{Function: "renameFile"}, ErrUnknownFunction},
		{"missing", Call{Function: EditParagraph, Arguments: map[string]string{"oldParagraph": "a"}}, ErrBadArguments},
		{"extra", Call{Function: DeleteText, Arguments: map[string]string{"text": "a", "b": "c"}}, ErrBadArguments},
		{"wrong name", Call{Function: AddParagraph, Arguments: map[string]string{"textBefore": "a", "text": "b"}}, ErrBadArguments},
		{"ok", Call{Function: AddParagraph, Arguments: map[string]string{"textBefore": "a", "addedText": "b"}}, nil},
	}
	for _, tc := range cases {
		err := tc.call.Validate()
		if tc.want == nil {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	err := Call{Function: DeleteText}.Validate()
	var argErr *ArgumentError
	if !errors.As(err, &argErr) || !strings.Contains(err.Error(), "deleteText expects (text)") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestApply(t *testing.T) {
	d := New(editor.New(editor.Config{}), nil)
	doc := newDoc(t, "Parties", "Term", "", "Signatures")

	steps := []Call{
		{Function: EditParagraph, Arguments: map[string]string{"oldParagraph": "Term", "newParagraph": "Term of lease"}},
		{Function: AddParagraph, Arguments: map[string]string{"textBefore": "Term of lease", "addedText": "Rent"}},
		{Function: DeleteText, Arguments: map[string]string{"text": "Parties"}},
	}
	for _, call := range steps {
		if err := d.Apply(doc, call); err != nil {
			t.Fatalf("%s: %v", call.Function, err)
		}
	}
	want := []string{"", "Term of lease", "Rent", "Signatures"}
	if got := doc.Texts(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("paragraphs = %q, want %q", got, want)
	}

	err := d.Apply(doc, Call{Function: DeleteText, Arguments: map[string]string{}})
	if !errors.Is(err, ErrBadArguments) {
		t.Fatalf("expected ErrBadArguments, got %v", err)
	}
}

func TestInvoke(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lease.docx")
	if err := newDoc(t, "Parties", "Term").Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	d := New(editor.New(editor.Config{OutputSuffix: "_output"}), nil)
	call, err := ParseCall([]byte(`{"function_name":"editParagraph","arguments":{"oldParagraph":"Term","newParagraph":"Duration"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := d.Invoke(context.Background(), path, call)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Output != filepath.Join(dir, "lease_output.docx") {
		t.Fatalf("output = %q", res.Output)
	}
	saved, err := docx.Open(res.Output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if got := saved.Texts(); len(got) != 2 || got[1] != "Duration" {
		t.Fatalf("saved paragraphs = %q", got)
	}
}

func TestFunctions(t *testing.T) {
	got := strings.Join(Functions(), ",")
	if got != "addParagraph,deleteText,editParagraph" {
		t.Fatalf("functions = %s", got)
	}
}
