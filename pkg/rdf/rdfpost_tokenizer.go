package rdf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

const (
	chEquals    = '='
	chAmpersand = '&'
)

// RDFPostTokenizer splits an RDF/POST body into tokens.
//
// Every "key=value" segment becomes a directive token followed by a value
// token whose kind is derived from the key. Line breaks are not part of the
// encoding; they only advance the line counter.
type RDFPostTokenizer struct {
	reader *bufio.Reader
	line   int
	col    int

	token    *Token
	err      error
	finished bool

	// awaiting is the directive whose value segment is read next.
	awaiting DirectiveKey
	// prevKey is the key of the last value read; it decides whether a
	// sv/pv/ov value is a local name or an IRI of its own.
	prevKey DirectiveKey

	sb strings.Builder
}

// NewRDFPostTokenizer creates a tokenizer over r
func NewRDFPostTokenizer(r io.Reader) *RDFPostTokenizer {
	return &RDFPostTokenizer{
		reader: bufio.NewReader(r),
		line:   1,
		col:    1,
	}
}

// Line returns the current 1-based line of the reader
func (t *RDFPostTokenizer) Line() int {
	return t.line
}

// Column returns the current 1-based column of the reader
func (t *RDFPostTokenizer) Column() int {
	return t.col
}

// HasNext reports whether a token (or a pending error) is available.
func (t *RDFPostTokenizer) HasNext() bool {
	if t.finished {
		return false
	}
	if t.token != nil || t.err != nil {
		return true
	}

	tok, err := t.parseToken()
	if err != nil {
		t.err = err
		return true
	}
	if tok == nil {
		t.finished = true
		return false
	}
	t.token = tok
	return true
}

// Next returns the current token and advances past it.
func (t *RDFPostTokenizer) Next() (*Token, error) {
	if !t.HasNext() {
		return nil, ErrTokensExhausted
	}
	if t.err != nil {
		err := t.err
		t.err = nil
		t.finished = true
		return nil, err
	}
	tok := t.token
	t.token = nil
	return tok, nil
}

// Peek returns the current token without advancing, or nil at end of input.
func (t *RDFPostTokenizer) Peek() (*Token, error) {
	if !t.HasNext() {
		return nil, nil
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.token, nil
}

func (t *RDFPostTokenizer) parseToken() (*Token, error) {
	if t.awaiting != "" {
		return t.parseValue()
	}

	// Skip separators between segments
	for {
		ch, err := t.peekRune()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if ch != chAmpersand {
			break
		}
		t.readRune()
	}

	line, col := t.line, t.col
	raw, err := t.readSegment(true)
	if err != nil {
		return nil, err
	}
	// readSegment stops at EOF after trailing line breaks
	if raw == "" {
		if _, err := t.peekRune(); err == io.EOF {
			return nil, nil
		}
	}
	key, err := t.decode(raw, line, col)
	if err != nil {
		return nil, err
	}

	hasValue := false
	if ch, err := t.peekRune(); err == nil && ch == chEquals {
		t.readRune()
		hasValue = true
	}

	tok := &Token{Image: key, Line: line, Column: col}

	if !IsDirectiveKey(key) {
		// Unknown parameter: swallow its value so it is never read as a key
		tok.Kind = TokenUnknown
		if hasValue {
			vline, vcol := t.line, t.col
			rawValue, err := t.readSegment(false)
			if err != nil {
				return nil, err
			}
			if tok.Image2, err = t.decode(rawValue, vline, vcol); err != nil {
				return nil, err
			}
		}
		t.prevKey = DirectiveKey(key)
		return tok, nil
	}

	tok.Kind = TokenDirective
	if DirectiveKey(key) == KeyRDF {
		// The marker carries no value
		if hasValue {
			if _, err := t.readSegment(false); err != nil {
				return nil, err
			}
		}
		return tok, nil
	}

	if hasValue {
		t.awaiting = DirectiveKey(key)
	}
	return tok, nil
}

func (t *RDFPostTokenizer) parseValue() (*Token, error) {
	key := t.awaiting
	t.awaiting = ""

	line, col := t.line, t.col
	raw, err := t.readSegment(false)
	if err != nil {
		return nil, err
	}
	value, err := t.decode(raw, line, col)
	if err != nil {
		return nil, err
	}

	tok := &Token{Kind: valueKind(key, t.prevKey), Line: line, Column: col}
	switch {
	case tok.Kind == TokenLangTag:
		tok.Image2 = value
	case tok.Kind == TokenPrefixedName && companionOf[key] == "":
		// local name; the parser supplies the prefix
		tok.Image2 = value
	default:
		tok.Image = value
	}

	t.prevKey = key
	return tok, nil
}

// readSegment reads up to the next '&' (and '=' when stopAtEquals) without
// consuming the delimiter.
func (t *RDFPostTokenizer) readSegment(stopAtEquals bool) (string, error) {
	t.sb.Reset()
	for {
		ch, err := t.peekRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if ch == chAmpersand || (stopAtEquals && ch == chEquals) {
			break
		}
		t.readRune()
		if ch == '\n' || ch == '\r' {
			continue
		}
		t.sb.WriteRune(ch)
	}
	return t.sb.String(), nil
}

func (t *RDFPostTokenizer) decode(raw string, line, col int) (string, error) {
	value, err := url.QueryUnescape(raw)
	if err != nil {
		return "", &ParseError{
			Format:  "rdfpost",
			Kind:    DecodeFault,
			Message: fmt.Sprintf("bad percent-encoding in %q", raw),
			Line:    line,
			Column:  col,
			Err:     err,
		}
	}
	return value, nil
}

func (t *RDFPostTokenizer) peekRune() (rune, error) {
	ch, _, err := t.reader.ReadRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("error reading input: %w", err)
	}
	if err := t.reader.UnreadRune(); err != nil {
		return 0, err
	}
	return ch, nil
}

func (t *RDFPostTokenizer) readRune() {
	ch, _, err := t.reader.ReadRune()
	if err != nil {
		return
	}
	if ch == '\n' {
		t.line++
		t.col = 1
	} else {
		t.col++
	}
}
