package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/docsign/builder"
	"github.com/wudi/docsign/docx"
	"github.com/wudi/docsign/writer"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func writeDoc(t *testing.T, dir string, texts ...string) string {
	t.Helper()
	paras := make([]docx.Paragraph, len(texts))
	for i, text := range texts {
		paras[i] = docx.Paragraph{Text: text, Style: docx.DefaultStyle}
	}
	doc, err := docx.New(paras)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	path := filepath.Join(dir, "lease.docx")
	if err := doc.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"paragraphs"},
		{"remove", "a.docx"},
		{"sign", "a.pdf"},
	} {
		_, err := runCLI(t, "", args...)
		var ue usageError
		if !errors.As(err, &ue) {
			t.Errorf("%q: expected usage error, got %v", args, err)
		}
	}
}

func TestEditCommands(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "Parties", "Term", "End")

	out, err := runCLI(t, "", "replace", "-n", path, "Term", "Duration")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out, `"Duration"`) {
		t.Fatalf("dry run output missing edit:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "lease_output.docx")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not save, stat err = %v", err)
	}

	out, err = runCLI(t, "", "remove", path, "End")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	saved := strings.TrimSpace(out)
	if saved != filepath.Join(dir, "lease_output.docx") {
		t.Fatalf("output path = %q", saved)
	}
	doc, err := docx.Open(saved)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := doc.Texts(); len(got) != 3 || got[2] != "" {
		t.Fatalf("paragraphs = %q", got)
	}

	_, err = runCLI(t, "", "replace", path, "Nowhere in the document", "x")
	if err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestThresholdFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "Alpha beta", "Gamma")
	if _, err := runCLI(t, "", "replace", "-n", path, "zzzz", "X"); err == nil {
		t.Fatalf("default threshold should reject an unrelated needle")
	}

	t.Setenv("DOCSIGN_THRESHOLD", "0")
	out, err := runCLI(t, "", "replace", "-n", path, "zzzz", "X")
	if err != nil {
		t.Fatalf("replace at threshold 0: %v", err)
	}
	if !strings.Contains(out, `"X"`) {
		t.Fatalf("edit missing from output:\n%s", out)
	}
}

func TestCallCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "Parties", "Term")
	call := `{"function_name": "addParagraph", "arguments": {"textBefore": "Term", "addedText": "Rent"}}`
	out, err := runCLI(t, call, "call", path, "-")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	doc, err := docx.Open(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := strings.Join(doc.Texts(), "|"); got != "Parties|Term|Rent" {
		t.Fatalf("paragraphs = %s", got)
	}
}

func TestSignCommand(t *testing.T) {
	dir := t.TempDir()
	b := builder.NewBuilder(builder.Options{})
	b.NewPage(612, 792).DrawText("one", 72, 720, builder.TextOptions{}).Finish()
	b.NewPage(612, 792).DrawText("two", 72, 720, builder.TextOptions{}).Finish()
	src, err := b.Bytes(writer.Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	pdfPath := filepath.Join(dir, "lease.pdf")
	if err := os.WriteFile(pdfPath, src, 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	fieldsPath := filepath.Join(dir, "fields.json")
	fields := `[{"type": "Signature", "pageNumber": 2, "x": 100, "y": 100, "width": 200, "height": 40}]`
	if err := os.WriteFile(fieldsPath, []byte(fields), 0o644); err != nil {
		t.Fatalf("write fields: %v", err)
	}

	out, err := runCLI(t, "", "sign", "-fields", fieldsPath, pdfPath, "Jane Doe")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	dst := strings.TrimSpace(out)
	if dst != filepath.Join(dir, "lease_output.pdf") {
		t.Fatalf("output path = %q", dst)
	}
	signed, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(signed, src) || len(signed) == len(src) {
		t.Fatalf("output is not an incremental update of the input")
	}

	_, err = runCLI(t, "", "sign", "-page", "3", pdfPath, "Jane Doe")
	if err == nil {
		t.Fatalf("expected page out of range")
	}
}
