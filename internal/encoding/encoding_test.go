package encoding

import (
	"testing"

	"github.com/aleksaelezovic/graphstore/pkg/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	enc := NewTermEncoder()
	dec := NewTermDecoder()

	terms := []rdf.Term{
		rdf.NewNamedNode("http://example.org/s"),
		rdf.NewBlankNode("b0"),
		rdf.NewBlankNode("42"),
		rdf.NewBlankNode("007"),
		rdf.NewLiteral(""),
		rdf.NewLiteral("short"),
		rdf.NewLiteral("exactly16bytes!!"),
		rdf.NewLiteral("a string well over the inline limit"),
		rdf.NewLiteral("nul\x00inside"),
		rdf.NewLiteralWithLanguage("chat", "fr"),
		rdf.NewLiteralWithLanguage("mail@host", "en-GB"),
		rdf.NewIntegerLiteral(-17),
		rdf.NewLiteralWithDatatype("0017", rdf.XSDInteger),
		rdf.NewLiteralWithDatatype("not a number", rdf.XSDInteger),
		rdf.NewDoubleLiteral(2.5),
		rdf.NewLiteralWithDatatype("2.50E0", rdf.XSDDouble),
		rdf.NewLiteralWithDatatype("1.10", rdf.XSDDecimal),
		rdf.NewBooleanLiteral(true),
		rdf.NewLiteralWithDatatype("1", rdf.XSDBoolean),
		rdf.NewLiteralWithDatatype("abc", rdf.XSDString),
		rdf.NewLiteralWithDatatype("x", rdf.NewNamedNode("http://example.org/dt")),
		rdf.NewDefaultGraph(),
	}

	for _, term := range terms {
		t.Run(term.String(), func(t *testing.T) {
			encoded, str, err := enc.EncodeTerm(term)
			require.NoError(t, err)
			assert.Equal(t, str == nil, encoded.Inline())

			decoded, err := dec.DecodeTerm(encoded, str)
			require.NoError(t, err)
			assert.True(t, term.Equals(decoded), "got %s", decoded)
		})
	}
}

func TestEncodeTerm_Inline(t *testing.T) {
	enc := NewTermEncoder()

	tests := []struct {
		term     rdf.Term
		inline   bool
		termType rdf.TermType
	}{
		{rdf.NewNamedNode("http://a"), false, rdf.TermTypeNamedNode},
		{rdf.NewLiteral("hi"), true, rdf.TermTypeStringLiteral},
		{rdf.NewIntegerLiteral(5), true, rdf.TermTypeIntegerLiteral},
		{rdf.NewLiteralWithDatatype("+5", rdf.XSDInteger), false, rdf.TermTypeTypedLiteral},
		{rdf.NewLiteralWithDatatype("1.0", rdf.XSDDecimal), false, rdf.TermTypeTypedLiteral},
		{rdf.NewBlankNode("12"), true, rdf.TermTypeBlankNode},
		{rdf.NewDefaultGraph(), true, rdf.TermTypeDefaultGraph},
	}

	for _, tt := range tests {
		encoded, _, err := enc.EncodeTerm(tt.term)
		require.NoError(t, err)
		assert.Equal(t, tt.inline, encoded.Inline(), tt.term.String())
		assert.Equal(t, tt.termType, encoded.Type(), tt.term.String())
	}
}

func TestEncodeTerm_DistinctDatatypes(t *testing.T) {
	enc := NewTermEncoder()

	a, _, err := enc.EncodeTerm(rdf.NewLiteralWithDatatype("1", rdf.NewNamedNode("http://example.org/a")))
	require.NoError(t, err)
	b, _, err := enc.EncodeTerm(rdf.NewLiteralWithDatatype("1", rdf.NewNamedNode("http://example.org/b")))
	require.NoError(t, err)
	plain, _, err := enc.EncodeTerm(rdf.NewLiteral("1"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, plain)
}

func TestEncodeQuadKey(t *testing.T) {
	enc := NewTermEncoder()
	s, _, _ := enc.EncodeTerm(rdf.NewNamedNode("http://s"))
	p, _, _ := enc.EncodeTerm(rdf.NewNamedNode("http://p"))

	key := enc.EncodeQuadKey(s, p)
	require.Len(t, key, 2*EncodedTermSize)
	assert.Equal(t, s[:], key[:EncodedTermSize])
	assert.Equal(t, p[:], key[EncodedTermSize:])
}

func TestDecodeTerm_MissingString(t *testing.T) {
	enc := NewTermEncoder()
	encoded, _, err := enc.EncodeTerm(rdf.NewNamedNode("http://a"))
	require.NoError(t, err)

	_, err = NewTermDecoder().DecodeTerm(encoded, nil)
	assert.Error(t, err)
}
