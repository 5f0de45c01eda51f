package editor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wudi/docsign/docx"
	"github.com/wudi/docsign/observability"
)

// Result describes a file edit. Output is empty when nothing was saved.
type Result struct {
	Document *docx.Document
	Output   string
}

// OutputPath derives the path edits are saved to. Paths that already carry
// the suffix are reused so repeated edits do not stack suffixes.
func OutputPath(path, suffix string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if suffix == "" || strings.HasSuffix(stem, suffix) {
		return path
	}
	return stem + suffix + ext
}

func (e *Engine) ReplaceFile(ctx context.Context, path, oldText, newText string, persist bool) (*Result, error) {
	return e.editFile(ctx, opReplace, path, persist, func(doc *docx.Document) error {
		return e.ReplaceText(doc, oldText, newText)
	})
}

func (e *Engine) RemoveFile(ctx context.Context, path, text string, persist bool) (*Result, error) {
	return e.editFile(ctx, opRemove, path, persist, func(doc *docx.Document) error {
		return e.RemoveText(doc, text)
	})
}

func (e *Engine) AddFile(ctx context.Context, path, anchor, inserted string, persist bool) (*Result, error) {
	return e.editFile(ctx, opAdd, path, persist, func(doc *docx.Document) error {
		return e.AddParagraph(doc, anchor, inserted)
	})
}

func (e *Engine) editFile(ctx context.Context, op, path string, persist bool, edit func(*docx.Document) error) (*Result, error) {
	_, span := e.cfg.Tracer.StartSpan(ctx, observability.SpanEdit)
	defer span.Finish()
	span.SetTag("op", op)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := docx.Open(path)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if err := edit(doc); err != nil {
		span.SetError(err)
		return nil, err
	}
	res := &Result{Document: doc}
	if !persist {
		return res, nil
	}
	res.Output = OutputPath(path, e.cfg.OutputSuffix)
	if err := doc.Save(res.Output); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.cfg.Logger.Info("saved edited document",
		observability.String("op", op),
		observability.String("input", path),
		observability.String("output", res.Output))
	return res, nil
}
