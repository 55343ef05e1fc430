package store

import (
	"github.com/aleksaelezovic/graphstore/pkg/rdf"
)

// EncodedTermSize is the width of an encoded term: a type byte and 16 bytes of
// hash or inline data.
const EncodedTermSize = 17

// InlineFlag marks a type byte whose term data is stored in the key itself
const InlineFlag byte = 0x80

// EncodedTerm represents a term encoded as a type byte followed by up to 16 bytes of data
type EncodedTerm [EncodedTermSize]byte

// Type returns the term type stored in the first byte
func (e EncodedTerm) Type() rdf.TermType {
	return rdf.TermType(e[0] &^ InlineFlag)
}

// Inline reports whether the term can be decoded without an id2str lookup
func (e EncodedTerm) Inline() bool {
	return e[0]&InlineFlag != 0
}

// TermEncoder handles encoding of RDF terms into a compact binary format
type TermEncoder interface {
	// EncodeTerm encodes an RDF term into a fixed-size byte array.
	// Returns the encoded term and optionally a string to store in id2str table
	EncodeTerm(term rdf.Term) (EncodedTerm, *string, error)

	// EncodeQuadKey concatenates encoded terms into an index key
	EncodeQuadKey(terms ...EncodedTerm) []byte
}

// TermDecoder handles decoding of RDF terms from binary format
type TermDecoder interface {
	// DecodeTerm decodes an encoded term back to an rdf.Term.
	// For terms that require string lookup, stringValue should be provided
	DecodeTerm(encoded EncodedTerm, stringValue *string) (rdf.Term, error)
}
