package rdf

import (
	"fmt"
	"io"
	"strings"
)

// Media types understood by the registry
const (
	ContentTypeRDFPost  = "application/rdf+x-www-form-urlencoded"
	ContentTypeForm     = "application/x-www-form-urlencoded"
	ContentTypeNTriples = "application/n-triples"
	ContentTypeNQuads   = "application/n-quads"
	ContentTypeText     = "text/plain"
)

// RDFParser is the interface for parsing RDF data in various formats
type RDFParser interface {
	// Parse parses RDF data from a reader and returns quads
	Parse(reader io.Reader) ([]*Quad, error)

	// ContentType returns the MIME type this parser handles
	ContentType() string
}

// RDFWriter is the interface for serializing quads
type RDFWriter interface {
	Write(w io.Writer, quads []*Quad) error

	// ContentType returns the MIME type this writer produces
	ContentType() string
}

// NormalizeContentType lowercases a media type and strips its parameters
func NormalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}

// NewParser creates an RDF parser based on the content type
func NewParser(contentType string) (RDFParser, error) {
	switch NormalizeContentType(contentType) {
	case ContentTypeRDFPost, ContentTypeForm:
		return &RDFPostIOParser{SkipEmptyLiterals: true}, nil
	case ContentTypeNTriples, ContentTypeText:
		return &NTriplesIOParser{}, nil
	case ContentTypeNQuads:
		return &NQuadsIOParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}
}

// NewWriter creates an RDF writer based on the content type
func NewWriter(contentType string) (RDFWriter, error) {
	switch NormalizeContentType(contentType) {
	case ContentTypeRDFPost:
		return &RDFPostIOWriter{}, nil
	case ContentTypeNTriples, ContentTypeText:
		return &NTriplesIOWriter{}, nil
	case ContentTypeNQuads:
		return &NQuadsIOWriter{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}
}

// RDFPostIOParser parses RDF/POST bodies into the default graph
type RDFPostIOParser struct {
	SkipEmptyLiterals   bool
	ResolveRelativeIRIs bool
}

func (p *RDFPostIOParser) ContentType() string {
	return ContentTypeRDFPost
}

func (p *RDFPostIOParser) Parse(reader io.Reader) ([]*Quad, error) {
	parser := NewRDFPostParser(reader)
	parser.SetSkipEmptyLiterals(p.SkipEmptyLiterals)
	parser.SetResolveRelativeIRIs(p.ResolveRelativeIRIs)

	collector := NewTripleCollector()
	if err := parser.Parse(collector); err != nil {
		return nil, err
	}
	return collector.Quads(nil), nil
}

// NTriplesIOParser parses N-Triples format (triples only, default graph)
type NTriplesIOParser struct{}

func (p *NTriplesIOParser) ContentType() string {
	return ContentTypeNTriples
}

func (p *NTriplesIOParser) Parse(reader io.Reader) ([]*Quad, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return NewNTriplesParser(string(data)).Parse()
}

// NQuadsIOParser parses N-Quads format (quads with optional graph)
type NQuadsIOParser struct{}

func (p *NQuadsIOParser) ContentType() string {
	return ContentTypeNQuads
}

func (p *NQuadsIOParser) Parse(reader io.Reader) ([]*Quad, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return NewNQuadsParser(string(data)).Parse()
}

// RDFPostIOWriter writes the triples of the quads as one RDF/POST body
type RDFPostIOWriter struct{}

func (w *RDFPostIOWriter) ContentType() string {
	return ContentTypeRDFPost
}

func (w *RDFPostIOWriter) Write(out io.Writer, quads []*Quad) error {
	triples := make([]*Triple, len(quads))
	for i, q := range quads {
		triples[i] = q.Triple()
	}
	return NewRDFPostWriter(out).Write(triples)
}

// NTriplesIOWriter writes quads as N-Triples, dropping graph names
type NTriplesIOWriter struct{}

func (w *NTriplesIOWriter) ContentType() string {
	return ContentTypeNTriples
}

func (w *NTriplesIOWriter) Write(out io.Writer, quads []*Quad) error {
	return NewNTriplesWriter(out).Write(quads)
}

// NQuadsIOWriter writes quads as N-Quads
type NQuadsIOWriter struct{}

func (w *NQuadsIOWriter) ContentType() string {
	return ContentTypeNQuads
}

func (w *NQuadsIOWriter) Write(out io.Writer, quads []*Quad) error {
	return NewNQuadsWriter(out).Write(quads)
}

// GetSupportedContentTypes returns a list of all supported content types
func GetSupportedContentTypes() []string {
	return []string{
		ContentTypeRDFPost,
		ContentTypeForm, // HTML forms posting RDF/POST
		ContentTypeNTriples,
		ContentTypeNQuads,
		ContentTypeText, // Alias for N-Triples
	}
}

// GetWritableContentTypes returns the content types NewWriter accepts, preferred first
func GetWritableContentTypes() []string {
	return []string{
		ContentTypeNTriples,
		ContentTypeNQuads,
		ContentTypeRDFPost,
		ContentTypeText,
	}
}
