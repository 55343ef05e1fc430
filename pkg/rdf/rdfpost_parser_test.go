package rdf

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enc percent-encodes a value the way HTML forms do
func enc(s string) string {
	return url.QueryEscape(s)
}

func parseBody(t *testing.T, body string) []*Triple {
	t.Helper()
	collector, err := ParseRDFPost(strings.NewReader(body))
	require.NoError(t, err)
	return collector.Triples
}

func assertIsomorphic(t *testing.T, expected, actual []*Triple) {
	t.Helper()
	if !AreGraphsIsomorphic(expected, actual) {
		t.Errorf("graphs are not isomorphic\nexpected: %v\nactual:   %v", expected, actual)
	}
}

func TestParser_ValidBody(t *testing.T) {
	body := "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://dc.org/#title") + "&ol=" + enc("title") + "&ll=da" +
		"&su=" + enc("http://subject1") + "&pu=" + enc("http://predicate1") + "&ou=" + enc("http://object1") +
		"&pu=" + enc("http://predicate2") + "&ou=" + enc("http://object2") +
		"&ou=" + enc("http://object3") +
		"&su=" + enc("http://subject2") + "&pu=" + enc("http://predicate3") + "&ol=" + enc("literal1") +
		"&su=" + enc("http://subject3") + "&pu=" + enc("http://predicate4") + "&ol=" + enc("literal2") + "&ll=da" +
		"&su=" + enc("http://subject4") + "&pu=" + enc("http://predicate5") + "&ol=" + enc("literal3") + "&lt=" + enc("http://type") +
		"&pu=" + enc("http://dct.org/#hasPart") + "&ob=" + enc("b1") +
		"&sb=" + enc("b1") + "&pu=" + enc("http://rdf.org/#first") + "&ou=" + enc("http://something/") +
		"&pu=" + enc("http://rdf.org/#rest") + "&ou=" + enc("http://rdf.org/#nil")

	n := NewNamedNode
	b1 := NewBlankNode("x")
	expected := []*Triple{
		NewTriple(n("http://subject1"), n("http://dc.org/#title"), NewLiteralWithLanguage("title", "da")),
		NewTriple(n("http://subject1"), n("http://predicate1"), n("http://object1")),
		NewTriple(n("http://subject1"), n("http://predicate2"), n("http://object2")),
		NewTriple(n("http://subject1"), n("http://predicate2"), n("http://object3")),
		NewTriple(n("http://subject2"), n("http://predicate3"), NewLiteral("literal1")),
		NewTriple(n("http://subject3"), n("http://predicate4"), NewLiteralWithLanguage("literal2", "da")),
		NewTriple(n("http://subject4"), n("http://predicate5"), NewLiteralWithDatatype("literal3", n("http://type"))),
		NewTriple(n("http://subject4"), n("http://dct.org/#hasPart"), b1),
		NewTriple(b1, n("http://rdf.org/#first"), n("http://something/")),
		NewTriple(b1, n("http://rdf.org/#rest"), n("http://rdf.org/#nil")),
	}

	assertIsomorphic(t, expected, parseBody(t, body))
}

func TestParser_Recovery(t *testing.T) {
	n := NewNamedNode
	tests := []struct {
		name     string
		body     string
		expected []*Triple
	}{
		{
			name: "unknown parameters abandon the subject",
			body: "&rdf=&su=" + enc("http://subject1") + "&x=123&pu=" + enc("http://predicate1") + "&ol=" + enc("literal") + "&ZZZ=pu" +
				"&su=" + enc("http://subject2") + "&q=42&pu=" + enc("http://predicate3") + "&ol=" + enc("literal1"),
			expected: nil,
		},
		{
			name: "missing predicate skips to next subject",
			body: "&rdf=&su=" + enc("http://subject1") + "&ol=" + enc("literal") +
				"&su=" + enc("http://subject2") + "&pu=" + enc("http://predicate3") + "&ol=" + enc("literal1"),
			expected: []*Triple{NewTriple(n("http://subject2"), n("http://predicate3"), NewLiteral("literal1"))},
		},
		{
			name: "predicate prefix without local name",
			body: "&rdf=&su=" + enc("http://subject1") + "&pn=" + enc("http://ns/") + "&ol=" + enc("literal") +
				"&su=" + enc("http://subject2") + "&pu=" + enc("http://predicate3") + "&ol=" + enc("literal1"),
			expected: []*Triple{NewTriple(n("http://subject2"), n("http://predicate3"), NewLiteral("literal1"))},
		},
		{
			name: "missing object before next subject",
			body: "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://dc.org/#title") +
				"&su=" + enc("http://subject2") + "&pu=" + enc("http://predicate3") + "&ol=" + enc("literal1"),
			expected: []*Triple{NewTriple(n("http://subject2"), n("http://predicate3"), NewLiteral("literal1"))},
		},
		{
			name: "missing object before next predicate",
			body: "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://dc.org/#title") +
				"&pu=" + enc("http://predicate1") + "&ol=" + enc("literal"),
			expected: []*Triple{NewTriple(n("http://subject1"), n("http://predicate1"), NewLiteral("literal"))},
		},
		{
			name: "object prefix without local name before next subject",
			body: "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://predicate1") + "&on=" + enc("http://ns/") +
				"&su=" + enc("http://subject2") + "&pu=" + enc("http://predicate3") + "&ol=" + enc("literal1"),
			expected: []*Triple{NewTriple(n("http://subject2"), n("http://predicate3"), NewLiteral("literal1"))},
		},
		{
			name: "object prefix without local name before next predicate",
			body: "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://predicate1") + "&on=" + enc("http://ns/") +
				"&pu=" + enc("http://predicate3") + "&ol=" + enc("literal1"),
			expected: []*Triple{NewTriple(n("http://subject1"), n("http://predicate3"), NewLiteral("literal1"))},
		},
		{
			name: "datatype without literal before non-literal object",
			body: "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://predicate1") + "&lt=" + enc("http://type") + "ll=da" +
				"&ou=" + enc("http://object1"),
			expected: []*Triple{NewTriple(n("http://subject1"), n("http://predicate1"), n("http://object1"))},
		},
		{
			name: "datatype without literal before next predicate",
			body: "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://predicate1") + "&lt=" + enc("http://type") + "ll=da" +
				"&pu=" + enc("http://predicate3") + "&ou=" + enc("http://object1"),
			expected: []*Triple{NewTriple(n("http://subject1"), n("http://predicate3"), n("http://object1"))},
		},
		{
			name: "language without literal before non-literal object",
			body: "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://predicate1") + "&ll=da&lt=" + enc("http://type") +
				"&ou=" + enc("http://object1"),
			expected: []*Triple{NewTriple(n("http://subject1"), n("http://predicate1"), n("http://object1"))},
		},
		{
			name: "language without literal before next predicate",
			body: "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://predicate1") + "&ll=da&lt=" + enc("http://type") +
				"&pu=" + enc("http://predicate3") + "&ou=" + enc("http://object1"),
			expected: []*Triple{NewTriple(n("http://subject1"), n("http://predicate3"), n("http://object1"))},
		},
		{
			name:     "qualifier without literal at end of input",
			body:     "&rdf=&su=" + enc("http://subject1") + "&pu=" + enc("http://dc.org/#title") + "&lt=" + enc("http://type"),
			expected: nil,
		},
		{
			name: "subject prefix without local name",
			body: "rdf=&sn=ex&pu=" + enc("http://p") + "&ou=" + enc("http://o") +
				"&su=" + enc("http://s2") + "&pu=" + enc("http://p") + "&ou=" + enc("http://o"),
			expected: []*Triple{NewTriple(n("http://s2"), n("http://p"), n("http://o"))},
		},
		{
			name: "namespace prefix without namespace IRI",
			body: "rdf=&n=ex&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ou=" + enc("http://o"),
			expected: []*Triple{NewTriple(n("http://s"), n("http://p"), n("http://o"))},
		},
		{
			name: "unknown parameter between objects drops the rest of the subject",
			body: "rdf=&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ou=" + enc("http://o1") + "&x=1" +
				"&pu=" + enc("http://p2") + "&ou=" + enc("http://o2"),
			expected: []*Triple{NewTriple(n("http://s"), n("http://p"), n("http://o1"))},
		},
		{
			name: "subject with no predicates",
			body: "rdf=&sb=a&sb=b&pu=" + enc("http://p") + "&ol=x",
			expected: []*Triple{NewTriple(NewBlankNode("b"), n("http://p"), NewLiteral("x"))},
		},
		{
			name:     "stray value-less marker",
			body:     "rdf=&rdf&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ol=x",
			expected: []*Triple{NewTriple(n("http://s"), n("http://p"), NewLiteral("x"))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertIsomorphic(t, tt.expected, parseBody(t, tt.body))
		})
	}
}

func TestParser_CanonicalTriple(t *testing.T) {
	triples := parseBody(t, "rdf=&su="+enc("http://ex/s")+"&pu="+enc("http://ex/p")+"&ou="+enc("http://ex/o"))
	require.Len(t, triples, 1)
	assert.True(t, triples[0].Equals(NewTriple(
		NewNamedNode("http://ex/s"), NewNamedNode("http://ex/p"), NewNamedNode("http://ex/o"))))
}

func TestParser_BlankNodes(t *testing.T) {
	triples := parseBody(t, "rdf=&sb=x1&pu=http%3A%2F%2Fex%2Fp&ob=x2")
	require.Len(t, triples, 1)
	assert.Equal(t, "_:x1 <http://ex/p> _:x2 .", triples[0].String())

	// one node per label within a parse
	triples = parseBody(t, "rdf=&sb=a&pu="+enc("http://p")+"&ob=a&ob=b&sb=b&pu="+enc("http://q")+"&ob=a")
	require.Len(t, triples, 3)
	assert.Same(t, triples[0].Subject, triples[0].Object)
	assert.Same(t, triples[1].Object, triples[2].Subject)
	assert.Same(t, triples[0].Subject, triples[2].Object)
}

func TestParser_Literals(t *testing.T) {
	s, p := "rdf=&su="+enc("http://s"), "&pu="+enc("http://p")

	tests := []struct {
		name     string
		object   string
		expected *Literal
	}{
		{"plain", "&ol=hello", NewLiteral("hello")},
		{"language after value", "&ol=hello&ll=en", NewLiteralWithLanguage("hello", "en")},
		{"language before value", "&ll=en&ol=hello", NewLiteralWithLanguage("hello", "en")},
		{"datatype after value", "&ol=hi&lt=" + enc("http://x/type"), NewLiteralWithDatatype("hi", NewNamedNode("http://x/type"))},
		{"datatype before value", "&lt=" + enc("http://x/type") + "&ol=hi", NewLiteralWithDatatype("hi", NewNamedNode("http://x/type"))},
		{"plus and percent decoding", "&ol=a+b%26c%3Dd", NewLiteral("a b&c=d")},
		{"unicode", "&ol=" + enc("žąsis"), NewLiteral("žąsis")},
		{"empty with language", "&ol=&ll=en", NewLiteralWithLanguage("", "en")},
		{"empty with datatype", "&ol=&lt=" + enc("http://x/type"), NewLiteralWithDatatype("", NewNamedNode("http://x/type"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triples := parseBody(t, s+p+tt.object)
			require.Len(t, triples, 1)
			assert.True(t, tt.expected.Equals(triples[0].Object), "got %s", triples[0].Object)
		})
	}
}

func TestParser_QualifierPositionIsEquivalent(t *testing.T) {
	prefix := "rdf=&su=" + enc("http://s") + "&pu=" + enc("http://p")
	after := parseBody(t, prefix+"&ol=hi&lt=http://x/type")
	before := parseBody(t, prefix+"&lt=http://x/type&ol=hi")

	require.Len(t, after, 1)
	require.Len(t, before, 1)
	assert.True(t, after[0].Equals(before[0]))
}

func TestParser_QualifiedLiteralFollowedByObjects(t *testing.T) {
	triples := parseBody(t, "rdf=&su="+enc("http://s")+"&pu="+enc("http://p")+
		"&ll=en&ol=one&ol=two&ou="+enc("http://o"))
	require.Len(t, triples, 3)
	assert.Equal(t, `"one"@en`, triples[0].Object.String())
	assert.Equal(t, `"two"`, triples[1].Object.String())
	assert.Equal(t, "<http://o>", triples[2].Object.String())
}

func TestParser_EmptyLiterals(t *testing.T) {
	body := "rdf=&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ol=&ol=x"

	assert.Len(t, parseBody(t, body), 1)

	parser := NewRDFPostParser(strings.NewReader(body))
	assert.True(t, parser.SkipEmptyLiterals())
	parser.SetSkipEmptyLiterals(false)
	collector := NewTripleCollector()
	require.NoError(t, parser.Parse(collector))
	require.Len(t, collector.Triples, 2)
	assert.Equal(t, `""`, collector.Triples[0].Object.String())
}

func TestParser_Prefixes(t *testing.T) {
	body := "rdf=&n=ex&v=" + enc("http://example.org/") +
		"&sn=ex&sv=alice&pn=ex&pv=knows&on=ex&ov=bob" +
		"&pv=" + enc("http://xmlns.com/foaf/0.1/name") + "&ol=Alice"

	collector, err := ParseRDFPost(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"ex": "http://example.org/"}, collector.Prefixes)
	require.Len(t, collector.Triples, 2)
	assert.Equal(t, "<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .", collector.Triples[0].String())
	assert.Equal(t, "<http://xmlns.com/foaf/0.1/name>", collector.Triples[1].Predicate.String())
}

func TestParser_DeclarationsBetweenTriples(t *testing.T) {
	body := "rdf=&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ou=" + enc("http://o") +
		"&n=ex&v=" + enc("http://example.org/") +
		"&su=" + enc("http://s") + "&pn=ex&pv=q&ol=x"

	triples := parseBody(t, body)
	require.Len(t, triples, 2)
	assert.Equal(t, "<http://example.org/q>", triples[1].Predicate.String())
}

func TestParser_Base(t *testing.T) {
	body := "rdf=&v=" + enc("http://base.org/dir/") + "&v=" + enc("http://other/") +
		"&su=rel&pu=" + enc("http://p") + "&ou=" + enc("../up") + "&ou=" + enc("http://abs/o")

	collector, err := ParseRDFPost(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "http://base.org/dir/", collector.BaseIRI)
	require.Len(t, collector.Triples, 2)
	assert.Equal(t, "<rel>", collector.Triples[0].Subject.String())
	assert.Equal(t, "<../up>", collector.Triples[0].Object.String())

	var bases []string
	parser := NewRDFPostParser(strings.NewReader(body))
	parser.SetResolveRelativeIRIs(true)
	resolved := NewTripleCollector()
	require.NoError(t, parser.Parse(SinkFuncs{
		OnBase:   func(iri string) { bases = append(bases, iri) },
		OnTriple: resolved.Triple,
	}))
	assert.Equal(t, []string{"http://base.org/dir/"}, bases)
	require.Len(t, resolved.Triples, 2)
	assert.Equal(t, "<http://base.org/dir/rel>", resolved.Triples[0].Subject.String())
	assert.Equal(t, "<http://base.org/up>", resolved.Triples[0].Object.String())
	assert.Equal(t, "<http://abs/o>", resolved.Triples[1].Object.String())
}

func TestParser_EmptyInput(t *testing.T) {
	assert.Empty(t, parseBody(t, ""))
	assert.Empty(t, parseBody(t, "rdf="))
	assert.Empty(t, parseBody(t, "rdf"))
}

func TestParser_StructuralFaults(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing rdf marker", "su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ol=x"},
		{"unknown first parameter", "x=1&rdf="},
		{"literal without value", "rdf=&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ol&su=" + enc("http://s2")},
		{"datatype without value", "rdf=&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ol=x&lt"},
		{"language without value", "rdf=&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ol=x&ll"},
		{"subject without value", "rdf=&su&pu=" + enc("http://p") + "&ol=x"},
		{"namespace without prefix value", "rdf=&n&v=" + enc("http://ex/")},
		{"base without value", "rdf=&v&su=" + enc("http://s")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRDFPost(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Equal(t, StructuralFault, FaultOf(err))
			assert.ErrorIs(t, err, ErrStructure)
		})
	}
}

func TestParser_UnboundPrefix(t *testing.T) {
	body := "rdf=&su=" + enc("http://s") + "&pn=ex&pv=p&ou=" + enc("http://o")

	_, err := ParseRDFPost(strings.NewReader(body))
	require.Error(t, err)
	assert.Equal(t, StructuralFault, FaultOf(err))
	assert.True(t, errors.Is(err, ErrUnboundPrefix))
}

func TestParser_DecodeFault(t *testing.T) {
	_, err := ParseRDFPost(strings.NewReader("rdf=\n&su=%zz"))
	require.Error(t, err)
	assert.Equal(t, DecodeFault, FaultOf(err))

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Line)
	assert.Equal(t, 5, parseErr.Column)
	assert.Contains(t, err.Error(), "rdfpost:2:5")
}

func TestParser_PartialOutputStays(t *testing.T) {
	body := "rdf=&su=" + enc("http://s") + "&pu=" + enc("http://p") + "&ol=kept&su=%"

	var triples []*Triple
	err := NewRDFPostParser(strings.NewReader(body)).Parse(SinkFuncs{
		OnTriple: func(t *Triple) { triples = append(triples, t) },
	})
	require.Error(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, `"kept"`, triples[0].Object.String())
}
