// Package scanner tokenizes PDF file syntax from an io.ReaderAt.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wudi/docsign/recovery"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // numeric value
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenRef                      // indirect ref '5 0 R'
	TokenStream                   // stream payload following the 'stream' keyword
	TokenKeyword                  // other keywords (obj, endobj, >>, ], xref, trailer...)
)

// Token is a single lexical item. Only the fields relevant to Type are set.
type Token struct {
	Type  TokenType
	Str   string // name, keyword
	Bytes []byte // string or stream payload
	Hex   bool
	Int   int64 // integer value, or object number for TokenRef
	Float float64
	IsInt bool
	Bool  bool
	Gen   int // generation for TokenRef
	Pos   int64
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	// SetNextStreamLength hints the payload length of the next stream token.
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxStringLength int64
	MaxStreamLength int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

// pdfScanner buffers data from a ReaderAt in fixed-size windows as it advances.
type pdfScanner struct {
	reader        io.ReaderAt
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
}

func New(r io.ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64             { return s.pos }
func (s *pdfScanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *pdfScanner) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if err := s.ensure(offset - 1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.data)) {
		return fmt.Errorf("seek %d beyond end of data", offset)
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Str: "<<", Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Str: "[", Pos: start}, nil
	case ']', '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	return s.scanKeyword()
}

func (s *pdfScanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	n, err := s.reader.ReadAt(buf, int64(len(s.data)))
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if errors.Is(err, io.EOF) || (err == nil && n == 0) {
		s.eof = true
		return nil
	}
	return err
}

// peek returns the byte n positions ahead, or 0 past the end.
func (s *pdfScanner) peek(n int64) byte {
	if err := s.ensure(s.pos + n); err != nil {
		return 0
	}
	return s.data[s.pos+n]
}

// at reports whether a byte exists at the current position.
func (s *pdfScanner) at() bool {
	return s.ensure(s.pos) == nil
}

func (s *pdfScanner) skipWSAndComments() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c != '%' {
			return nil
		}
		for s.at() && !isEOL(s.data[s.pos]) {
			s.pos++
		}
	}
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++
	var out bytes.Buffer
	for s.at() {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && isHex(s.peek(1)) && isHex(s.peek(2)) {
			out.WriteByte(fromHex(s.peek(1))<<4 | fromHex(s.peek(2)))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++
	depth := 1
	var out bytes.Buffer
	for {
		if !s.at() {
			return Token{}, s.recover(errors.New("unterminated literal string"), start)
		}
		if s.cfg.MaxStringLength > 0 && int64(out.Len()) > s.cfg.MaxStringLength {
			return Token{}, errors.New("string exceeds limit")
		}
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: out.Bytes(), Pos: start}, nil
			}
			out.WriteByte(c)
		case '\\':
			if !s.at() {
				continue
			}
			e := s.data[s.pos]
			s.pos++
			switch {
			case e >= '0' && e <= '7':
				v := int(e - '0')
				for i := 0; i < 2 && s.at() && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
					v = v*8 + int(s.data[s.pos]-'0')
					s.pos++
				}
				out.WriteByte(byte(v))
			case e == '\r':
				if s.at() && s.data[s.pos] == '\n' {
					s.pos++
				}
			case e == '\n':
			default:
				out.WriteByte(translateEscape(e))
			}
		default:
			out.WriteByte(c)
		}
	}
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++
	var digits []byte
	for {
		if !s.at() {
			return Token{}, s.recover(errors.New("unterminated hex string"), start)
		}
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		if isHex(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = fromHex(digits[2*i])<<4 | fromHex(digits[2*i+1])
	}
	return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.at() && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		// stray delimiter such as ')'
		s.pos++
		return Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start}, nil
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	}
	return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
}

func (s *pdfScanner) scanStream(start int64) (Token, error) {
	hint := s.nextStreamLen
	s.nextStreamLen = -1
	if s.at() && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.at() && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	if hint >= 0 {
		if s.cfg.MaxStreamLength > 0 && hint > s.cfg.MaxStreamLength {
			return Token{}, fmt.Errorf("stream length %d exceeds limit", hint)
		}
		end := dataStart + hint
		if s.ensure(end-1) == nil || hint == 0 {
			save := s.pos
			s.pos = end
			if err := s.skipWSAndComments(); err == nil && s.ensure(s.pos+8) == nil && bytes.HasPrefix(s.data[s.pos:], []byte("endstream")) {
				payload := s.data[dataStart:end]
				s.pos += int64(len("endstream"))
				return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
			}
			s.pos = save
		}
		if err := s.recover(fmt.Errorf("stream length %d does not reach endstream", hint), start); err != nil {
			return Token{}, err
		}
	}
	end, err := s.findEndstream(dataStart)
	if err != nil {
		return Token{}, err
	}
	payload := s.data[dataStart:end]
	payload = bytes.TrimSuffix(payload, []byte("\n"))
	payload = bytes.TrimSuffix(payload, []byte("\r"))
	s.pos = end + int64(len("endstream"))
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

func (s *pdfScanner) findEndstream(from int64) (int64, error) {
	marker := []byte("endstream")
	for {
		if i := bytes.Index(s.data[from:], marker); i >= 0 {
			return from + int64(i), nil
		}
		if s.eof {
			return 0, errors.New("stream missing endstream")
		}
		if s.cfg.MaxStreamLength > 0 && int64(len(s.data))-from > s.cfg.MaxStreamLength {
			return 0, errors.New("stream exceeds limit")
		}
		if err := s.loadMore(); err != nil {
			return 0, err
		}
	}
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		s.pos++
		return Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start}, nil
	}
	tok, err := parseNumber(num1, start)
	if err != nil || !tok.IsInt {
		return tok, err
	}
	after := s.pos
	if s.skipWSAndComments() == nil {
		if num2 := s.scanNumberString(); num2 != "" {
			gen, err := strconv.Atoi(num2)
			if err == nil && s.skipWSAndComments() == nil && s.data[s.pos] == 'R' && isDelimiter(s.peek(1)) {
				s.pos++
				return Token{Type: TokenRef, Int: tok.Int, Gen: gen, Pos: start}, nil
			}
		}
	}
	s.pos = after
	return tok, nil
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for s.at() {
		c := s.data[s.pos]
		if c == '+' || c == '-' {
			if s.pos != start {
				break
			}
		} else if c >= '0' && c <= '9' {
			seenDigit = true
		} else if c != '.' {
			break
		}
		s.pos++
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

func parseNumber(lit string, pos int64) (Token, error) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Float: float64(i), Pos: pos}, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Token{}, fmt.Errorf("invalid number %q at %d", lit, pos)
	}
	return Token{Type: TokenNumber, Float: f, Pos: pos}, nil
}

// recover consults the recovery strategy; a nil return means continue.
func (s *pdfScanner) recover(err error, at int64) error {
	if s.cfg.Recovery == nil {
		return err
	}
	loc := recovery.Location{ByteOffset: at, Component: "scanner"}
	switch s.cfg.Recovery.OnError(context.Background(), err, loc) {
	case recovery.ActionFail:
		return err
	default:
		return nil
	}
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	}
	return c
}
