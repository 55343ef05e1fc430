package rdf

import "fmt"

// RDF/POST encoding: http://www.lsrn.org/semweb/rdfpost.html

// DirectiveKey is one of the fixed RDF/POST parameter names.
type DirectiveKey string

const (
	KeyRDF DirectiveKey = "rdf" // leading marker

	KeyDefaultNS DirectiveKey = "v" // base IRI, or namespace IRI after "n"
	KeyNS        DirectiveKey = "n" // namespace prefix

	KeySubjectBlank     DirectiveKey = "sb"
	KeySubjectIRI       DirectiveKey = "su"
	KeySubjectDefaultNS DirectiveKey = "sv"
	KeySubjectNS        DirectiveKey = "sn"

	KeyPredicateIRI       DirectiveKey = "pu"
	KeyPredicateDefaultNS DirectiveKey = "pv"
	KeyPredicateNS        DirectiveKey = "pn"

	KeyObjectBlank     DirectiveKey = "ob"
	KeyObjectIRI       DirectiveKey = "ou"
	KeyObjectDefaultNS DirectiveKey = "ov"
	KeyObjectNS        DirectiveKey = "on"
	KeyObjectLiteral   DirectiveKey = "ol"

	KeyDatatype DirectiveKey = "lt"
	KeyLanguage DirectiveKey = "ll"
)

// directiveRole is the structural class of a directive key.
type directiveRole int

const (
	roleNone directiveRole = iota
	roleMarker
	roleDeclaration
	roleSubject
	rolePredicate
	roleObject  // ob, ou, ov, on
	roleLiteral // ol, lt, ll
)

var directiveRoles = map[DirectiveKey]directiveRole{
	KeyRDF:                roleMarker,
	KeyDefaultNS:          roleDeclaration,
	KeyNS:                 roleDeclaration,
	KeySubjectBlank:       roleSubject,
	KeySubjectIRI:         roleSubject,
	KeySubjectDefaultNS:   roleSubject,
	KeySubjectNS:          roleSubject,
	KeyPredicateIRI:       rolePredicate,
	KeyPredicateDefaultNS: rolePredicate,
	KeyPredicateNS:        rolePredicate,
	KeyObjectBlank:        roleObject,
	KeyObjectIRI:          roleObject,
	KeyObjectDefaultNS:    roleObject,
	KeyObjectNS:           roleObject,
	KeyObjectLiteral:      roleLiteral,
	KeyDatatype:           roleLiteral,
	KeyLanguage:           roleLiteral,
}

// IsDirectiveKey reports whether s belongs to the RDF/POST vocabulary.
func IsDirectiveKey(s string) bool {
	_, ok := directiveRoles[DirectiveKey(s)]
	return ok
}

// companionOf maps the prefix half of a compound directive to the key that
// carries its local name.
var companionOf = map[DirectiveKey]DirectiveKey{
	KeySubjectNS:   KeySubjectDefaultNS,
	KeyPredicateNS: KeyPredicateDefaultNS,
	KeyObjectNS:    KeyObjectDefaultNS,
	KeyNS:          KeyDefaultNS,
}

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	// TokenUnknown is the kind left unset for keys outside the vocabulary.
	TokenUnknown TokenKind = iota
	TokenDirective
	TokenIRI
	TokenPrefixedName
	TokenBlankNode
	TokenString
	TokenLangTag
	TokenEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokenDirective:
		return "directive"
	case TokenIRI:
		return "IRI"
	case TokenPrefixedName:
		return "prefixed name"
	case TokenBlankNode:
		return "blank node"
	case TokenString:
		return "string"
	case TokenLangTag:
		return "language tag"
	case TokenEOF:
		return "end of input"
	default:
		return "unknown"
	}
}

// Token is one lexical unit of an RDF/POST body.
//
// Image holds the directive key, the IRI, the prefix, the blank node label or
// the literal text. Image2 holds the local name of a prefixed name, the
// language tag of an "ll" value, or the raw value of an unknown key.
type Token struct {
	Kind   TokenKind
	Image  string
	Image2 string
	Line   int
	Column int
}

// Key returns the directive key of a directive token, or "" for other kinds.
func (t *Token) Key() DirectiveKey {
	if t == nil || t.Kind != TokenDirective {
		return ""
	}
	return DirectiveKey(t.Image)
}

func (t *Token) role() directiveRole {
	return directiveRoles[t.Key()]
}

func (t *Token) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TokenDirective:
		return fmt.Sprintf("directive '%s'", t.Image)
	case TokenEOF:
		return "end of input"
	case TokenPrefixedName:
		if t.Image2 != "" {
			return fmt.Sprintf("prefixed name %s:%s", t.Image, t.Image2)
		}
		return fmt.Sprintf("prefix '%s'", t.Image)
	case TokenLangTag:
		return fmt.Sprintf("language tag '%s'", t.Image2)
	default:
		return fmt.Sprintf("%s '%s'", t.Kind, t.Image)
	}
}

// valueKind returns the token kind of the value that follows key, taking the
// previous key into account for the context-sensitive local-name keys.
func valueKind(key, prevKey DirectiveKey) TokenKind {
	switch key {
	case KeyDefaultNS, KeySubjectIRI, KeyPredicateIRI, KeyObjectIRI, KeyDatatype:
		return TokenIRI
	case KeyNS, KeySubjectNS, KeyPredicateNS, KeyObjectNS:
		return TokenPrefixedName
	case KeySubjectDefaultNS, KeyPredicateDefaultNS, KeyObjectDefaultNS:
		for prefixKey, companion := range companionOf {
			if companion == key && prevKey == prefixKey {
				return TokenPrefixedName
			}
		}
		return TokenIRI
	case KeySubjectBlank, KeyObjectBlank:
		return TokenBlankNode
	case KeyObjectLiteral:
		return TokenString
	case KeyLanguage:
		return TokenLangTag
	default:
		return TokenUnknown
	}
}
