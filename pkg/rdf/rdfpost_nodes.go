package rdf

import (
	"net/url"
)

// iriNode turns an IRI token into a named node. Relative references are only
// resolved when enabled and a base has been declared.
func (p *RDFPostParser) iriNode(tok *Token) *NamedNode {
	iri := tok.Image
	if p.resolveIRIs && p.baseSet {
		iri = resolveIRI(p.base, iri)
	}
	return NewNamedNode(iri)
}

// blankNode returns the node for label, the same instance for every mention
// within one parse.
func (p *RDFPostParser) blankNode(label string) *BlankNode {
	if node, ok := p.bnodes[label]; ok {
		return node
	}
	node := NewBlankNode(label)
	p.bnodes[label] = node
	return node
}

// prefixedNode reads the prefix value of dir and its local-name companion.
// When the companion directive is missing, onMissing is run and nil returned.
func (p *RDFPostParser) prefixedNode(dir *Token, onMissing func() error) (Term, error) {
	prefixTok, err := p.expectValue(dir, TokenPrefixedName)
	if err != nil {
		return nil, err
	}

	companion, err := p.peek()
	if err != nil {
		return nil, err
	}
	if companion.Key() != companionOf[dir.Key()] {
		return nil, onMissing()
	}
	if _, err := p.next(); err != nil {
		return nil, err
	}

	localTok, err := p.expectValue(companion, TokenPrefixedName)
	if err != nil {
		return nil, err
	}
	return p.resolvePrefixedName(prefixTok.Image, localTok.Image2, localTok)
}

func (p *RDFPostParser) resolvePrefixedName(prefix, local string, tok *Token) (*NamedNode, error) {
	ns, ok := p.prefixes[prefix]
	if !ok {
		return nil, p.fatal(tok, ErrUnboundPrefix, "unbound prefix '%s'", prefix)
	}
	return NewNamedNode(ns + local), nil
}

// newLiteral builds a literal; lang and datatype are never both set.
func newLiteral(value, lang string, datatype *NamedNode) *Literal {
	switch {
	case lang != "":
		return NewLiteralWithLanguage(value, lang)
	case datatype != nil:
		return NewLiteralWithDatatype(value, datatype)
	default:
		return NewLiteral(value)
	}
}

func resolveIRI(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
