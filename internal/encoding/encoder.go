package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/graphstore/pkg/rdf"
	"github.com/aleksaelezovic/graphstore/pkg/store"
	"github.com/zeebo/xxh3"
)

const (
	// Maximum size for inline strings (16 bytes of UTF-8)
	MaxInlineStringSize = 16

	// Encoded term size (type byte + 16 bytes for 128-bit hash or inline data)
	EncodedTermSize = store.EncodedTermSize
)

// EncodedTerm is the fixed-size key form of a term
type EncodedTerm = store.EncodedTerm

// TermEncoder handles encoding of RDF terms
type TermEncoder struct{}

func NewTermEncoder() *TermEncoder {
	return &TermEncoder{}
}

// Hash128 computes a 128-bit xxhash3 hash of the input string
func (e *TermEncoder) Hash128(s string) [16]byte {
	hash := xxh3.HashString128(s)
	var result [16]byte
	binary.BigEndian.PutUint64(result[0:8], hash.Hi)
	binary.BigEndian.PutUint64(result[8:16], hash.Lo)
	return result
}

// EncodeTerm encodes an RDF term into a fixed-size byte array
// Returns the encoded term and optionally a string to store in id2str table
func (e *TermEncoder) EncodeTerm(term rdf.Term) (EncodedTerm, *string, error) {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return e.hashed(rdf.TermTypeNamedNode, t.IRI)
	case *rdf.BlankNode:
		return e.encodeBlankNode(t)
	case *rdf.Literal:
		return e.encodeLiteral(t)
	case *rdf.DefaultGraph:
		return inline(rdf.TermTypeDefaultGraph), nil, nil
	default:
		var encoded EncodedTerm
		return encoded, nil, fmt.Errorf("unknown term type: %T", term)
	}
}

// hashed stores the 128-bit hash of s and returns s for the id2str table
func (e *TermEncoder) hashed(termType rdf.TermType, s string) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = byte(termType)
	hash := e.Hash128(s)
	copy(encoded[1:], hash[:])
	return encoded, &s, nil
}

func inline(termType rdf.TermType) EncodedTerm {
	var encoded EncodedTerm
	encoded[0] = byte(termType) | store.InlineFlag
	return encoded
}

func (e *TermEncoder) encodeBlankNode(node *rdf.BlankNode) (EncodedTerm, *string, error) {
	// Numeric IDs in canonical form are stored inline (big endian)
	if num, err := strconv.ParseUint(node.ID, 10, 64); err == nil && strconv.FormatUint(num, 10) == node.ID {
		encoded := inline(rdf.TermTypeBlankNode)
		binary.BigEndian.PutUint64(encoded[1:9], num)
		return encoded, nil, nil
	}
	return e.hashed(rdf.TermTypeBlankNode, node.ID)
}

func (e *TermEncoder) encodeLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	if lit.Language != "" {
		return e.hashed(rdf.TermTypeLangStringLiteral, lit.Value+"@"+lit.Language)
	}

	if lit.Datatype == nil {
		// Inline small strings without NUL bytes
		if len(lit.Value) <= MaxInlineStringSize && !strings.ContainsRune(lit.Value, 0) {
			encoded := inline(rdf.TermTypeStringLiteral)
			copy(encoded[1:], lit.Value)
			return encoded, nil, nil
		}
		return e.hashed(rdf.TermTypeStringLiteral, lit.Value)
	}

	// Numeric and boolean values are inlined when the lexical form survives
	// a round trip, anything else keeps its datatype and lexical form
	switch lit.Datatype.IRI {
	case rdf.XSDInteger.IRI:
		if value, err := strconv.ParseInt(lit.Value, 10, 64); err == nil && strconv.FormatInt(value, 10) == lit.Value {
			encoded := inline(rdf.TermTypeIntegerLiteral)
			binary.BigEndian.PutUint64(encoded[1:9], uint64(value)) // #nosec G115 - intentional bit-pattern conversion for binary encoding
			return encoded, nil, nil
		}
	case rdf.XSDDouble.IRI:
		if value, err := strconv.ParseFloat(lit.Value, 64); err == nil && strconv.FormatFloat(value, 'g', -1, 64) == lit.Value {
			encoded := inline(rdf.TermTypeDoubleLiteral)
			binary.BigEndian.PutUint64(encoded[1:9], math.Float64bits(value))
			return encoded, nil, nil
		}
	case rdf.XSDBoolean.IRI:
		if lit.Value == "true" || lit.Value == "false" {
			encoded := inline(rdf.TermTypeBooleanLiteral)
			if lit.Value == "true" {
				encoded[1] = 1
			}
			return encoded, nil, nil
		}
	}

	return e.hashed(rdf.TermTypeTypedLiteral, typedLiteralString(lit.Value, lit.Datatype.IRI))
}

// typedLiteralString packs a datatype IRI and lexical form as
// <uvarint len(datatype)><datatype><value>
func typedLiteralString(value, datatype string) string {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(datatype)))
	var sb strings.Builder
	sb.Grow(n + len(datatype) + len(value))
	sb.Write(lenBuf[:n])
	sb.WriteString(datatype)
	sb.WriteString(value)
	return sb.String()
}

// EncodeQuadKey concatenates encoded terms into an index key.
// Returns a big-endian byte array for lexicographic sorting
func (e *TermEncoder) EncodeQuadKey(terms ...EncodedTerm) []byte {
	result := make([]byte, 0, len(terms)*EncodedTermSize)
	for _, term := range terms {
		result = append(result, term[:]...)
	}
	return result
}
