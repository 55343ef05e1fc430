package rdf

import (
	"io"
)

// RDFPostParser decodes an RDF/POST body into base, prefix and triple events.
//
// Out-of-order or incomplete directives are skipped: the parser moves forward
// to the next directive that can start a subject, predicate or object again
// and continues from there. Only malformed percent-encoding, a missing leading
// "rdf" parameter, a missing mandatory value and unbound prefixes abort the
// parse.
type RDFPostParser struct {
	tokens *RDFPostTokenizer
	eof    *Token
	sink   Sink

	prefixes map[string]string
	base     string
	baseSet  bool
	bnodes   map[string]*BlankNode

	skipEmptyLiterals bool
	resolveIRIs       bool

	// position of the last consumed token
	line int
	col  int
}

// NewRDFPostParser creates a parser reading the RDF/POST body from r
func NewRDFPostParser(r io.Reader) *RDFPostParser {
	return &RDFPostParser{
		tokens:            NewRDFPostTokenizer(r),
		prefixes:          make(map[string]string),
		bnodes:            make(map[string]*BlankNode),
		skipEmptyLiterals: true,
	}
}

// SkipEmptyLiterals reports whether zero-length plain literals are dropped.
// Unset form fields are submitted as empty "ol" values.
func (p *RDFPostParser) SkipEmptyLiterals() bool {
	return p.skipEmptyLiterals
}

// SetSkipEmptyLiterals controls empty literal suppression (default true)
func (p *RDFPostParser) SetSkipEmptyLiterals(skip bool) {
	p.skipEmptyLiterals = skip
}

// SetResolveRelativeIRIs enables resolution of relative IRIs against the
// declared base. By default IRIs are passed through unchanged.
func (p *RDFPostParser) SetResolveRelativeIRIs(resolve bool) {
	p.resolveIRIs = resolve
}

// Prefixes returns the prefix map built so far
func (p *RDFPostParser) Prefixes() map[string]string {
	return p.prefixes
}

// Parse runs the parser to the end of input, sending events to sink.
// Events emitted before an error are not retracted.
func (p *RDFPostParser) Parse(sink Sink) error {
	p.sink = sink

	tok, err := p.peek()
	if err != nil {
		return err
	}
	if tok.Kind == TokenEOF {
		return nil
	}
	if tok.Key() != KeyRDF {
		return p.fatal(tok, nil, "RDF/POST needs to start with the 'rdf' parameter (found %s)", tok)
	}
	if _, err := p.next(); err != nil {
		return err
	}

	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}
		if tok.Kind == TokenEOF {
			return nil
		}

		if tok.role() == roleDeclaration {
			if err := p.directive(); err != nil {
				return err
			}
			continue
		}

		if err := p.triples(); err != nil {
			return err
		}
	}
}

// peek returns the lookahead token, synthesizing an EOF token at the end.
func (p *RDFPostParser) peek() (*Token, error) {
	if p.eof != nil {
		return p.eof, nil
	}
	tok, err := p.tokens.Peek()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		p.eof = &Token{Kind: TokenEOF, Line: p.tokens.Line(), Column: p.tokens.Column()}
		return p.eof, nil
	}
	return tok, nil
}

// next consumes the lookahead token. At the end it keeps returning EOF.
func (p *RDFPostParser) next() (*Token, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokenEOF {
		return tok, nil
	}
	if _, err := p.tokens.Next(); err != nil {
		return nil, err
	}
	p.line, p.col = tok.Line, tok.Column
	return tok, nil
}

// expectValue consumes the value token of dir, which must be of the given kind.
func (p *RDFPostParser) expectValue(dir *Token, kind TokenKind) (*Token, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != kind {
		return nil, p.fatal(tok, nil, "'%s' requires a %s (found %s)", dir.Image, kind, tok)
	}
	return p.next()
}

func (p *RDFPostParser) directive() error {
	dir, err := p.next()
	if err != nil {
		return err
	}

	switch dir.Key() {
	case KeyDefaultNS:
		return p.directiveBase(dir)
	case KeyNS:
		return p.directivePrefix(dir)
	default:
		return p.fatal(dir, nil, "unrecognized directive: %s", dir.Image)
	}
}

func (p *RDFPostParser) directiveBase(dir *Token) error {
	tok, err := p.expectValue(dir, TokenIRI)
	if err != nil {
		return err
	}
	// The base can be declared once
	if p.baseSet {
		return nil
	}
	p.base = tok.Image
	p.baseSet = true
	p.sink.Base(p.base)
	return nil
}

func (p *RDFPostParser) directivePrefix(dir *Token) error {
	prefixTok, err := p.expectValue(dir, TokenPrefixedName)
	if err != nil {
		return err
	}

	companion, err := p.peek()
	if err != nil {
		return err
	}
	if companion.Key() != KeyDefaultNS {
		return p.skipToSubject()
	}
	if _, err := p.next(); err != nil {
		return err
	}

	iriTok, err := p.expectValue(companion, TokenIRI)
	if err != nil {
		return err
	}

	p.prefixes[prefixTok.Image] = iriTok.Image
	p.sink.Prefix(prefixTok.Image, iriTok.Image)
	return nil
}

func (p *RDFPostParser) triples() error {
	tok, err := p.peek()
	if err != nil {
		return err
	}
	if tok.role() != roleSubject {
		return p.skipToSubject()
	}

	subject, err := p.subject()
	if err != nil {
		return err
	}
	if subject == nil {
		return nil
	}
	return p.predicateObjectList(subject)
}

func (p *RDFPostParser) subject() (Term, error) {
	dir, err := p.next()
	if err != nil {
		return nil, err
	}

	switch dir.Key() {
	case KeySubjectNS:
		return p.prefixedNode(dir, p.skipToSubject)
	case KeySubjectBlank:
		tok, err := p.expectValue(dir, TokenBlankNode)
		if err != nil {
			return nil, err
		}
		return p.blankNode(tok.Image), nil
	default:
		tok, err := p.expectValue(dir, TokenIRI)
		if err != nil {
			return nil, err
		}
		return p.iriNode(tok), nil
	}
}

// predicateObjectList reads predicates with their objects until something
// other than a predicate comes up; a subject may have no predicates at all.
func (p *RDFPostParser) predicateObjectList(subject Term) error {
	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}
		if tok.Kind == TokenEOF {
			return nil
		}
		if tok.role() != rolePredicate {
			return p.skipToSubject()
		}

		predicate, err := p.predicate()
		if err != nil {
			return err
		}
		if predicate == nil {
			continue
		}

		if err := p.objectList(subject, predicate); err != nil {
			return err
		}
	}
}

func (p *RDFPostParser) predicate() (Term, error) {
	dir, err := p.next()
	if err != nil {
		return nil, err
	}

	if dir.Key() == KeyPredicateNS {
		return p.prefixedNode(dir, p.skipToSubject)
	}
	tok, err := p.expectValue(dir, TokenIRI)
	if err != nil {
		return nil, err
	}
	return p.iriNode(tok), nil
}

func (p *RDFPostParser) objectList(subject, predicate Term) error {
	for {
		object, err := p.object()
		if err != nil {
			return err
		}
		if object == nil {
			return nil
		}
		p.emit(subject, predicate, object)

		// the list continues while objects or literal qualifiers follow
		tok, err := p.peek()
		if err != nil {
			return err
		}
		if role := tok.role(); role != roleObject && role != roleLiteral {
			return nil
		}
	}
}

// object returns the next object, or nil after skipping ahead when no object
// can be read at this position.
func (p *RDFPostParser) object() (Term, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}

	switch tok.role() {
	case roleObject:
		dir, err := p.next()
		if err != nil {
			return nil, err
		}
		switch dir.Key() {
		case KeyObjectNS:
			return p.prefixedNode(dir, p.skipToSubjectOrPredicate)
		case KeyObjectBlank:
			val, err := p.expectValue(dir, TokenBlankNode)
			if err != nil {
				return nil, err
			}
			return p.blankNode(val.Image), nil
		default:
			val, err := p.expectValue(dir, TokenIRI)
			if err != nil {
				return nil, err
			}
			return p.iriNode(val), nil
		}

	case roleLiteral:
		if tok.Key() == KeyObjectLiteral {
			return p.objectLiteral()
		}

		lit, err := p.qualifiedLiteral()
		if err != nil {
			return nil, err
		}
		if lit != nil {
			return lit, nil
		}

		// lt or ll without a following ol
		if err := p.skipToSubjectOrPredicateOrNonLiteralObject(); err != nil {
			return nil, err
		}
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.role() == roleObject {
			return p.object()
		}
		return nil, nil

	default:
		if tok.Kind == TokenUnknown {
			return nil, p.skipToSubject()
		}
		return nil, p.skipToSubjectOrPredicate()
	}
}

// objectLiteral reads "ol" followed by an optional "lt" or "ll".
func (p *RDFPostParser) objectLiteral() (Term, error) {
	dir, err := p.next()
	if err != nil {
		return nil, err
	}
	val, err := p.expectValue(dir, TokenString)
	if err != nil {
		return nil, err
	}

	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Key() {
	case KeyDatatype:
		datatype, err := p.datatype()
		if err != nil {
			return nil, err
		}
		return newLiteral(val.Image, "", datatype), nil
	case KeyLanguage:
		lang, err := p.language()
		if err != nil {
			return nil, err
		}
		return newLiteral(val.Image, lang, nil), nil
	default:
		return newLiteral(val.Image, "", nil), nil
	}
}

// qualifiedLiteral reads "lt" or "ll" followed by "ol". It returns nil when
// the qualifier is not followed by a value.
func (p *RDFPostParser) qualifiedLiteral() (Term, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}

	var datatype *NamedNode
	var lang string
	if tok.Key() == KeyDatatype {
		if datatype, err = p.datatype(); err != nil {
			return nil, err
		}
	} else {
		if lang, err = p.language(); err != nil {
			return nil, err
		}
	}

	tok, err = p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Key() != KeyObjectLiteral {
		return nil, nil
	}
	dir, err := p.next()
	if err != nil {
		return nil, err
	}
	val, err := p.expectValue(dir, TokenString)
	if err != nil {
		return nil, err
	}
	return newLiteral(val.Image, lang, datatype), nil
}

func (p *RDFPostParser) datatype() (*NamedNode, error) {
	dir, err := p.next()
	if err != nil {
		return nil, err
	}
	val, err := p.expectValue(dir, TokenIRI)
	if err != nil {
		return nil, err
	}
	return p.iriNode(val), nil
}

func (p *RDFPostParser) language() (string, error) {
	dir, err := p.next()
	if err != nil {
		return "", err
	}
	val, err := p.expectValue(dir, TokenLangTag)
	if err != nil {
		return "", err
	}
	return val.Image2, nil
}

func (p *RDFPostParser) emit(subject, predicate, object Term) {
	if lit, ok := object.(*Literal); ok && p.skipEmptyLiterals && lit.Value == "" && lit.IsPlain() {
		return
	}
	p.sink.Triple(NewTriple(subject, predicate, object))
}

// skipToSubject moves forward to the next subject or declaration.
func (p *RDFPostParser) skipToSubject() error {
	return p.skipUntil(roleSubject, roleDeclaration)
}

// skipToSubjectOrPredicate moves forward to the next subject, predicate or declaration.
func (p *RDFPostParser) skipToSubjectOrPredicate() error {
	return p.skipUntil(roleSubject, rolePredicate, roleDeclaration)
}

// skipToSubjectOrPredicateOrNonLiteralObject additionally stops at ob, ou, ov and on.
func (p *RDFPostParser) skipToSubjectOrPredicateOrNonLiteralObject() error {
	return p.skipUntil(roleSubject, rolePredicate, roleObject, roleDeclaration)
}

func (p *RDFPostParser) skipUntil(roles ...directiveRole) error {
	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}
		if tok.Kind == TokenEOF {
			return nil
		}
		if tok.Kind == TokenDirective {
			r := tok.role()
			for _, stop := range roles {
				if r == stop {
					return nil
				}
			}
		}
		if _, err := p.next(); err != nil {
			return err
		}
	}
}

func (p *RDFPostParser) fatal(tok *Token, err error, msg string, args ...any) *ParseError {
	line, col := p.line, p.col
	if tok != nil {
		line, col = tok.Line, tok.Column
	}
	return newStructuralError("rdfpost", line, col, err, msg, args...)
}

// ParseRDFPost decodes a complete RDF/POST body.
func ParseRDFPost(r io.Reader) (*TripleCollector, error) {
	collector := NewTripleCollector()
	if err := NewRDFPostParser(r).Parse(collector); err != nil {
		return nil, err
	}
	return collector, nil
}
