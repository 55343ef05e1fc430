package rdf

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NQuadsParser parses N-Quads, and N-Triples as the subset without a graph position.
// Format: <subject> <predicate> <object> [<graph>] .
type NQuadsParser struct {
	input  string
	pos    int
	length int
	format string
}

// NewNQuadsParser creates a new N-Quads parser
func NewNQuadsParser(input string) *NQuadsParser {
	return &NQuadsParser{
		input:  input,
		length: len(input),
		format: "nquads",
	}
}

// NewNTriplesParser creates a parser that rejects the graph position
func NewNTriplesParser(input string) *NQuadsParser {
	p := NewNQuadsParser(input)
	p.format = "ntriples"
	return p
}

// Parse parses the document and returns quads; triples land in the default graph.
func (p *NQuadsParser) Parse() ([]*Quad, error) {
	var quads []*Quad

	for {
		p.skipWhitespaceAndComments()
		if p.pos >= p.length {
			break
		}

		quad, err := p.parseQuad()
		if err != nil {
			return nil, err
		}
		quads = append(quads, quad)
	}

	return quads, nil
}

// errorf builds a structural ParseError at the current position
func (p *NQuadsParser) errorf(msg string, args ...any) *ParseError {
	consumed := p.input[:min(p.pos, p.length)]
	line := strings.Count(consumed, "\n") + 1
	col := p.pos - strings.LastIndexByte(consumed, '\n')
	return newStructuralError(p.format, line, col, nil, msg, args...)
}

// skipWhitespaceAndComments skips whitespace and comments
func (p *NQuadsParser) skipWhitespaceAndComments() {
	for p.pos < p.length {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			p.pos++
			continue
		}
		if ch == '#' {
			for p.pos < p.length && p.input[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		break
	}
}

// parseQuad parses a quad: subject predicate object [graph] .
func (p *NQuadsParser) parseQuad() (*Quad, error) {
	subject, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if _, ok := subject.(*Literal); ok {
		return nil, p.errorf("literal in subject position")
	}
	p.skipWhitespaceAndComments()

	predicate, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if _, ok := predicate.(*NamedNode); !ok {
		return nil, p.errorf("predicate must be an IRI")
	}
	p.skipWhitespaceAndComments()

	object, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	p.skipWhitespaceAndComments()

	// Optional graph (4th position)
	var graph Term = NewDefaultGraph()
	if p.pos < p.length && (p.input[p.pos] == '<' || p.input[p.pos] == '_') {
		if p.format == "ntriples" {
			return nil, p.errorf("graph position not allowed in N-Triples")
		}
		graph, err = p.parseTerm()
		if err != nil {
			return nil, err
		}
		p.skipWhitespaceAndComments()
	}

	if p.pos >= p.length || p.input[p.pos] != '.' {
		return nil, p.errorf("expected '.' at end of statement")
	}
	p.pos++

	return NewQuad(subject, predicate, object, graph), nil
}

// parseTerm parses an IRI, blank node or literal
func (p *NQuadsParser) parseTerm() (Term, error) {
	if p.pos >= p.length {
		return nil, p.errorf("unexpected end of input")
	}

	switch ch := p.input[p.pos]; ch {
	case '<':
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		return NewNamedNode(iri), nil
	case '_':
		return p.parseBlankNode()
	case '"':
		return p.parseLiteral()
	default:
		return nil, p.errorf("unexpected character %q", ch)
	}
}

// parseIRI parses an IRI enclosed in < >
func (p *NQuadsParser) parseIRI() (string, error) {
	p.pos++ // skip '<'

	var result strings.Builder
	for p.pos < p.length && p.input[p.pos] != '>' {
		ch := p.input[p.pos]

		if ch == '\\' {
			if p.pos+1 < p.length && (p.input[p.pos+1] == 'u' || p.input[p.pos+1] == 'U') {
				escaped, err := p.processUnicodeEscape()
				if err != nil {
					return "", err
				}
				result.WriteString(escaped)
				continue
			}
			return "", p.errorf("invalid escape sequence in IRI")
		}

		// IRIs cannot contain space, <, >, ", {, }, |, ^, ` or control characters
		if ch == ' ' || ch == '<' || ch == '"' || ch == '{' || ch == '}' ||
			ch == '|' || ch == '^' || ch == '`' || ch <= 0x1F {
			return "", p.errorf("invalid character in IRI: %q", ch)
		}

		result.WriteByte(ch)
		p.pos++
	}

	if p.pos >= p.length {
		return "", p.errorf("unclosed IRI")
	}
	p.pos++ // skip '>'

	iri := result.String()
	if !strings.Contains(iri, ":") {
		return "", p.errorf("relative IRI not allowed: %s", iri)
	}
	return iri, nil
}

// parseBlankNode parses a blank node
func (p *NQuadsParser) parseBlankNode() (Term, error) {
	p.pos++ // skip '_'
	if p.pos >= p.length || p.input[p.pos] != ':' {
		return nil, p.errorf("expected ':' after '_' in blank node")
	}
	p.pos++

	start := p.pos
	for p.pos < p.length {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '<' {
			break
		}
		// a trailing '.' terminates the statement, not the label
		if ch == '.' && (p.pos+1 >= p.length || isSpace(p.input[p.pos+1])) {
			break
		}
		p.pos++
	}

	if p.pos == start {
		return nil, p.errorf("empty blank node label")
	}
	return NewBlankNode(p.input[start:p.pos]), nil
}

// parseLiteral parses a literal with an optional language tag or datatype
func (p *NQuadsParser) parseLiteral() (Term, error) {
	p.pos++ // skip opening '"'

	var value strings.Builder
	for p.pos < p.length && p.input[p.pos] != '"' {
		ch := p.input[p.pos]
		if ch != '\\' {
			value.WriteByte(ch)
			p.pos++
			continue
		}

		if p.pos+1 >= p.length {
			return nil, p.errorf("unexpected end of input in escape sequence")
		}
		switch esc := p.input[p.pos+1]; esc {
		case 'n':
			value.WriteByte('\n')
		case 't':
			value.WriteByte('\t')
		case 'r':
			value.WriteByte('\r')
		case 'b':
			value.WriteByte('\b')
		case 'f':
			value.WriteByte('\f')
		case '"':
			value.WriteByte('"')
		case '\'':
			value.WriteByte('\'')
		case '\\':
			value.WriteByte('\\')
		case 'u', 'U':
			escaped, err := p.processUnicodeEscape()
			if err != nil {
				return nil, err
			}
			value.WriteString(escaped)
			continue
		default:
			return nil, p.errorf("invalid escape sequence \\%c", esc)
		}
		p.pos += 2
	}

	if p.pos >= p.length {
		return nil, p.errorf("unclosed string literal")
	}
	p.pos++ // skip closing '"'

	if p.pos < p.length && p.input[p.pos] == '@' {
		p.pos++
		start := p.pos
		for p.pos < p.length {
			ch := p.input[p.pos]
			if !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '-') {
				break
			}
			p.pos++
		}
		if p.pos == start {
			return nil, p.errorf("empty language tag")
		}
		return NewLiteralWithLanguage(value.String(), p.input[start:p.pos]), nil
	}

	if strings.HasPrefix(p.input[p.pos:], "^^") {
		p.pos += 2
		if p.pos >= p.length || p.input[p.pos] != '<' {
			return nil, p.errorf("expected datatype IRI after '^^'")
		}
		datatype, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		return NewLiteralWithDatatype(value.String(), NewNamedNode(datatype)), nil
	}

	return NewLiteral(value.String()), nil
}

// processUnicodeEscape processes \uXXXX or \UXXXXXXXX escape sequences
func (p *NQuadsParser) processUnicodeEscape() (string, error) {
	hexDigits := 4
	if p.input[p.pos+1] == 'U' {
		hexDigits = 8
	}
	p.pos += 2

	if p.pos+hexDigits > p.length {
		return "", p.errorf("incomplete Unicode escape sequence")
	}
	hexStr := p.input[p.pos : p.pos+hexDigits]
	codePoint, err := strconv.ParseUint(hexStr, 16, 32)
	if err != nil {
		return "", p.errorf("invalid hex digits in Unicode escape: %s", hexStr)
	}
	p.pos += hexDigits

	return string(rune(codePoint)), nil
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// NQuadsWriter serializes quads one statement per line.
// With Triples set the graph position is never written.
type NQuadsWriter struct {
	w       io.Writer
	Triples bool
}

// NewNQuadsWriter creates a writer emitting N-Quads
func NewNQuadsWriter(w io.Writer) *NQuadsWriter {
	return &NQuadsWriter{w: w}
}

// NewNTriplesWriter creates a writer emitting N-Triples
func NewNTriplesWriter(w io.Writer) *NQuadsWriter {
	return &NQuadsWriter{w: w, Triples: true}
}

// Write serializes all quads
func (w *NQuadsWriter) Write(quads []*Quad) error {
	for _, q := range quads {
		var line string
		if w.Triples {
			line = q.Triple().String()
		} else {
			line = q.String()
		}
		if _, err := io.WriteString(w.w, line+"\n"); err != nil {
			return fmt.Errorf("error writing statement: %w", err)
		}
	}
	return nil
}

// escapeIRI escapes the characters N-Triples forbids inside <...>
func escapeIRI(iri string) string {
	if !strings.ContainsFunc(iri, func(r rune) bool { return r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) }) {
		return iri
	}
	var sb strings.Builder
	for _, r := range iri {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			fmt.Fprintf(&sb, "\\u%04X", r)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// escapeString escapes a literal's lexical form for N-Triples
func escapeString(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, "\\u%04X", r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
