package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/wudi/docsign/config"
	"github.com/wudi/docsign/dispatch"
	"github.com/wudi/docsign/docx"
	"github.com/wudi/docsign/editor"
	"github.com/wudi/docsign/form"
	"github.com/wudi/docsign/observability"
	"github.com/wudi/docsign/stamp"
)

const usage = `Usage: docsign [-config file] <command> [flags] <args>

Commands:
  paragraphs <docx>                 print the paragraphs of a document
  replace [-n] <docx> <old> <new>   replace text
  remove [-n] <docx> <text>         remove text
  add [-n] <docx> <anchor> <text>   insert a paragraph after anchor
  call <docx> <call.json|->         run an editParagraph/deleteText/addParagraph call
  sign [flags] <pdf> <text>         stamp text onto a page
`

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// parseError marks flag failures as usage errors; -h stays flag.ErrHelp.
func parseError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return usageError{err.Error()}
}

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "docsign: %v\n", err)
	var ue usageError
	if errors.As(err, &ue) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	os.Exit(1)
}

type app struct {
	cfg    config.Config
	logger observability.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("docsign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	cfgPath := fs.String("config", "", "TOML or YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return usageError{"missing command"}
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: observability.ParseLevel(cfg.Log.Level)})
	a := &app{
		cfg:    cfg,
		logger: observability.NewSlogLogger(slog.New(handler)),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "paragraphs":
		return a.paragraphs(rest)
	case "replace", "remove", "add":
		return a.edit(ctx, cmd, rest)
	case "call":
		return a.call(ctx, rest)
	case "sign":
		return a.sign(ctx, rest)
	default:
		fs.Usage()
		return usageError{fmt.Sprintf("unknown command %q", cmd)}
	}
}

func (a *app) engine() *editor.Engine {
	threshold := a.cfg.Locator.Threshold
	return editor.New(editor.Config{
		Threshold:    &threshold,
		Logger:       a.logger,
		OutputSuffix: a.cfg.Output.Suffix,
	})
}

func (a *app) paragraphs(args []string) error {
	if len(args) != 1 {
		return usageError{"paragraphs expects <docx>"}
	}
	doc, err := docx.Open(args[0])
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	return emit(a.stdout, doc.Paragraphs)
}

func (a *app) edit(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	dryRun := fs.Bool("n", false, "print the result instead of saving it")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	want := 3
	if cmd == "remove" {
		want = 2
	}
	if fs.NArg() != want {
		return usageError{fmt.Sprintf("%s expects %d arguments, got %d", cmd, want, fs.NArg())}
	}
	in := fs.Args()
	e := a.engine()
	persist := !*dryRun

	var res *editor.Result
	var err error
	switch cmd {
	case "replace":
		res, err = e.ReplaceFile(ctx, in[0], in[1], in[2], persist)
	case "remove":
		res, err = e.RemoveFile(ctx, in[0], in[1], persist)
	default:
		res, err = e.AddFile(ctx, in[0], in[1], in[2], persist)
	}
	if err != nil {
		return err
	}
	return a.report(res)
}

func (a *app) call(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError{"call expects <docx> <call.json|->"}
	}
	var data []byte
	var err error
	if args[1] == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return fmt.Errorf("read call: %w", err)
	}
	call, err := dispatch.ParseCall(data)
	if err != nil {
		return err
	}
	res, err := dispatch.New(a.engine(), a.logger).Invoke(ctx, args[0], call)
	if err != nil {
		return err
	}
	return a.report(res)
}

func (a *app) report(res *editor.Result) error {
	if res.Output == "" {
		return emit(a.stdout, res.Document.Paragraphs)
	}
	_, err := fmt.Fprintln(a.stdout, res.Output)
	return err
}

func (a *app) sign(ctx context.Context, args []string) error {
	def := a.cfg.Stamp
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fieldsPath := fs.String("fields", "", "JSON form fields; the last Signature field places the stamp")
	page := fs.Int("page", 1, "1-based page number")
	x := fs.Float64("x", def.DefaultX, "left edge from the page's left, in points")
	y := fs.Float64("y", def.DefaultY, "top edge from the page's top, in points")
	w := fs.Float64("width", def.DefaultWidth, "box width in points")
	h := fs.Float64("height", def.DefaultHeight, "box height in points")
	out := fs.String("out", "", "output path (default: input name with the output suffix)")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if fs.NArg() != 2 {
		return usageError{"sign expects <pdf> <text>"}
	}
	in, text := fs.Arg(0), fs.Arg(1)

	field := form.FormField{PageNumber: *page, X: *x, Y: *y, Width: *w, Height: *h, Type: form.Signature}
	if *fieldsPath != "" {
		data, err := os.ReadFile(*fieldsPath)
		if err != nil {
			return fmt.Errorf("read fields: %w", err)
		}
		fields, err := form.Parse(data)
		if err != nil {
			return err
		}
		field = fields.SignatureOr(field)
	}

	dst := *out
	if dst == "" {
		dst = editor.OutputPath(in, a.cfg.Output.Suffix)
	}
	if dst == in {
		return usageError{"output would overwrite the input; pass -out"}
	}
	s := stamp.New(stamp.Config{FontPath: def.FontPath, Logger: a.logger})
	if err := s.StampFile(ctx, in, dst, field.PageNumber, strings.TrimSpace(text), field.Rect()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(a.stdout, dst)
	return err
}

func emit(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
