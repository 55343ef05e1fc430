package rdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser(t *testing.T) {
	tests := []struct {
		contentType string
		expected    string
	}{
		{"application/rdf+x-www-form-urlencoded", ContentTypeRDFPost},
		{"application/x-www-form-urlencoded; charset=UTF-8", ContentTypeRDFPost},
		{"Application/N-Triples", ContentTypeNTriples},
		{"text/plain", ContentTypeNTriples},
		{"application/n-quads", ContentTypeNQuads},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			parser, err := NewParser(tt.contentType)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, parser.ContentType())
		})
	}

	_, err := NewParser("text/turtle")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewWriter(t *testing.T) {
	for _, ct := range GetWritableContentTypes() {
		_, err := NewWriter(ct)
		assert.NoError(t, err, ct)
	}

	_, err := NewWriter(ContentTypeForm)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSupportedContentTypesHaveParsers(t *testing.T) {
	for _, ct := range GetSupportedContentTypes() {
		_, err := NewParser(ct)
		assert.NoError(t, err, ct)
	}
}

func TestRDFPostIOParser_DefaultGraph(t *testing.T) {
	parser, err := NewParser(ContentTypeRDFPost)
	require.NoError(t, err)

	quads, err := parser.Parse(strings.NewReader("rdf=&su=http%3A%2F%2Fs&pu=http%3A%2F%2Fp&ol=x&ol="))
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.Equal(t, TermTypeDefaultGraph, quads[0].Graph.Type())
}

func TestWriters_RoundTripThroughRegistry(t *testing.T) {
	quads := []*Quad{
		NewQuad(NewNamedNode("http://ex/s"), NewNamedNode("http://ex/p"), NewLiteral("v"), NewDefaultGraph()),
		NewQuad(NewNamedNode("http://ex/s"), NewNamedNode("http://ex/p"), NewBlankNode("b"), NewDefaultGraph()),
	}

	for _, ct := range []string{ContentTypeNTriples, ContentTypeNQuads, ContentTypeRDFPost} {
		t.Run(ct, func(t *testing.T) {
			writer, err := NewWriter(ct)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, writer.Write(&buf, quads))

			parser, err := NewParser(ct)
			require.NoError(t, err)
			parsed, err := parser.Parse(&buf)
			require.NoError(t, err)
			assert.True(t, AreQuadsIsomorphic(quads, parsed))
		})
	}
}
