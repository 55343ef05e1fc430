package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/graphstore/pkg/rdf"
)

// TermDecoder handles decoding of RDF terms
type TermDecoder struct{}

// NewTermDecoder creates a new term decoder
func NewTermDecoder() *TermDecoder {
	return &TermDecoder{}
}

// DecodeTerm decodes an encoded term back to an rdf.Term
// For terms that require string lookup, stringValue should be provided
func (d *TermDecoder) DecodeTerm(encoded EncodedTerm, stringValue *string) (rdf.Term, error) {
	termType := encoded.Type()

	if encoded.Inline() {
		return decodeInline(termType, encoded)
	}
	if stringValue == nil {
		return nil, fmt.Errorf("string value required for term type %d", termType)
	}
	value := *stringValue

	switch termType {
	case rdf.TermTypeNamedNode:
		return rdf.NewNamedNode(value), nil

	case rdf.TermTypeBlankNode:
		return rdf.NewBlankNode(value), nil

	case rdf.TermTypeStringLiteral:
		return rdf.NewLiteral(value), nil

	case rdf.TermTypeLangStringLiteral:
		// Split value@language, tags never contain '@'
		i := strings.LastIndexByte(value, '@')
		if i < 0 {
			return nil, fmt.Errorf("malformed language-tagged literal %q", value)
		}
		return rdf.NewLiteralWithLanguage(value[:i], value[i+1:]), nil

	case rdf.TermTypeTypedLiteral:
		lexical, datatype, err := splitTypedLiteral(value)
		if err != nil {
			return nil, err
		}
		return rdf.NewLiteralWithDatatype(lexical, rdf.NewNamedNode(datatype)), nil

	default:
		return nil, fmt.Errorf("unknown term type: %d", termType)
	}
}

func decodeInline(termType rdf.TermType, encoded EncodedTerm) (rdf.Term, error) {
	switch termType {
	case rdf.TermTypeBlankNode:
		numericID := binary.BigEndian.Uint64(encoded[1:9])
		return rdf.NewBlankNode(strconv.FormatUint(numericID, 10)), nil

	case rdf.TermTypeStringLiteral:
		// Inline strings are NUL padded
		data := encoded[1:]
		if end := bytes.IndexByte(data, 0); end >= 0 {
			data = data[:end]
		}
		return rdf.NewLiteral(string(data)), nil

	case rdf.TermTypeIntegerLiteral:
		value := int64(binary.BigEndian.Uint64(encoded[1:9])) // #nosec G115 - intentional bit-pattern conversion for binary decoding
		return rdf.NewIntegerLiteral(value), nil

	case rdf.TermTypeDoubleLiteral:
		bits := binary.BigEndian.Uint64(encoded[1:9])
		return rdf.NewDoubleLiteral(math.Float64frombits(bits)), nil

	case rdf.TermTypeBooleanLiteral:
		return rdf.NewBooleanLiteral(encoded[1] != 0), nil

	case rdf.TermTypeDefaultGraph:
		return rdf.NewDefaultGraph(), nil

	default:
		return nil, fmt.Errorf("unknown inline term type: %d", termType)
	}
}

func splitTypedLiteral(s string) (value, datatype string, err error) {
	n, width := binary.Uvarint([]byte(s))
	if width <= 0 || uint64(len(s)-width) < n {
		return "", "", fmt.Errorf("malformed typed literal record")
	}
	end := width + int(n) // #nosec G115 - bounded by len(s) above
	return s[end:], s[width:end], nil
}
