// Package dispatch maps named edit function calls onto the editor.
//
// A call is a JSON object:
//
//	{"function_name": "editParagraph",
//	 "arguments": {"oldParagraph": "...", "newParagraph": "..."}}
//
// Argument names and counts are checked before the document is opened.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wudi/docsign/docx"
	"github.com/wudi/docsign/editor"
	"github.com/wudi/docsign/observability"
)

const (
	EditParagraph = "editParagraph"
	DeleteText    = "deleteText"
	AddParagraph  = "addParagraph"
)

// signatures lists the exact argument names of each function, in call order.
var signatures = map[string][]string{
	EditParagraph: {"oldParagraph", "newParagraph"},
	DeleteText:    {"text"},
	AddParagraph:  {"textBefore", "addedText"},
}

var (
	ErrMalformedCall   = errors.New("malformed function call")
	ErrUnknownFunction = errors.New("unknown function")
	ErrBadArguments    = errors.New("bad arguments")
)

// ArgumentError describes a call whose arguments do not match the
// function's signature.
type ArgumentError struct {
	Function string
	Want     []string
	Got      []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s expects (%s), got (%s)",
		e.Function, strings.Join(e.Want, ", "), strings.Join(e.Got, ", "))
}

func (e *ArgumentError) Unwrap() error { return ErrBadArguments }

type Call struct {
	Function  string
	Arguments map[string]string
}

// ParseCall decodes a function call. Every argument must be a string.
func ParseCall(data []byte) (Call, error) {
	if !gjson.ValidBytes(data) {
		return Call{}, fmt.Errorf("%w: invalid JSON", ErrMalformedCall)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Call{}, fmt.Errorf("%w: expected an object", ErrMalformedCall)
	}
	name := root.Get("function_name")
	if name.Type != gjson.String || name.Str == "" {
		return Call{}, fmt.Errorf("%w: function_name missing", ErrMalformedCall)
	}
	call := Call{Function: name.Str, Arguments: map[string]string{}}
	args := root.Get("arguments")
	if !args.Exists() {
		return call, nil
	}
	if !args.IsObject() {
		return Call{}, fmt.Errorf("%w: arguments must be an object", ErrMalformedCall)
	}
	var err error
	args.ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.String {
			err = fmt.Errorf("%w: argument %q is not a string", ErrMalformedCall, k.String())
			return false
		}
		call.Arguments[k.String()] = v.Str
		return true
	})
	if err != nil {
		return Call{}, err
	}
	return call, nil
}

// Validate checks the function name and that the arguments are exactly
// the function's parameters.
func (c Call) Validate() error {
	want, ok := signatures[c.Function]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFunction, c.Function)
	}
	got := make([]string, 0, len(c.Arguments))
	for k := range c.Arguments {
		got = append(got, k)
	}
	sort.Strings(got)
	if len(got) != len(want) {
		return &ArgumentError{Function: c.Function, Want: want, Got: got}
	}
	for _, name := range want {
		if _, ok := c.Arguments[name]; !ok {
			return &ArgumentError{Function: c.Function, Want: want, Got: got}
		}
	}
	return nil
}

// Functions returns the supported function names, sorted.
func Functions() []string {
	out := make([]string, 0, len(signatures))
	for name := range signatures {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type Dispatcher struct {
	engine *editor.Engine
	logger observability.Logger
}

func New(engine *editor.Engine, logger observability.Logger) *Dispatcher {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Dispatcher{engine: engine, logger: logger}
}

// Apply runs call against an in-memory document.
func (d *Dispatcher) Apply(doc *docx.Document, call Call) error {
	if err := call.Validate(); err != nil {
		return err
	}
	a := call.Arguments
	switch call.Function {
	case EditParagraph:
		return d.engine.ReplaceText(doc, a["oldParagraph"], a["newParagraph"])
	case DeleteText:
		return d.engine.RemoveText(doc, a["text"])
	default:
		return d.engine.AddParagraph(doc, a["textBefore"], a["addedText"])
	}
}

// Invoke runs call against the document at path and saves the result.
func (d *Dispatcher) Invoke(ctx context.Context, path string, call Call) (*editor.Result, error) {
	if err := call.Validate(); err != nil {
		return nil, err
	}
	d.logger.Debug("dispatching function call",
		observability.String("function", call.Function),
		observability.String("path", path))
	a := call.Arguments
	switch call.Function {
	case EditParagraph:
		return d.engine.ReplaceFile(ctx, path, a["oldParagraph"], a["newParagraph"], true)
	case DeleteText:
		return d.engine.RemoveFile(ctx, path, a["text"], true)
	default:
		return d.engine.AddFile(ctx, path, a["textBefore"], a["addedText"], true)
	}
}
