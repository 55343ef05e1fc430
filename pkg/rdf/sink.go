package rdf

// Sink receives the events produced by a streaming parser.
type Sink interface {
	// Base is called when the document declares a base IRI.
	Base(iri string)

	// Prefix is called for every namespace prefix declaration.
	Prefix(prefix, iri string)

	// Triple is called once per decoded triple, in document order.
	Triple(t *Triple)
}

// SinkFuncs adapts plain functions to the Sink interface. Nil fields are ignored.
type SinkFuncs struct {
	OnBase   func(iri string)
	OnPrefix func(prefix, iri string)
	OnTriple func(t *Triple)
}

func (f SinkFuncs) Base(iri string) {
	if f.OnBase != nil {
		f.OnBase(iri)
	}
}

func (f SinkFuncs) Prefix(prefix, iri string) {
	if f.OnPrefix != nil {
		f.OnPrefix(prefix, iri)
	}
}

func (f SinkFuncs) Triple(t *Triple) {
	if f.OnTriple != nil {
		f.OnTriple(t)
	}
}

// TripleCollector is a Sink that keeps everything it receives.
type TripleCollector struct {
	BaseIRI  string
	Prefixes map[string]string
	Triples  []*Triple
}

// NewTripleCollector creates an empty collector
func NewTripleCollector() *TripleCollector {
	return &TripleCollector{Prefixes: make(map[string]string)}
}

func (c *TripleCollector) Base(iri string) {
	c.BaseIRI = iri
}

func (c *TripleCollector) Prefix(prefix, iri string) {
	if c.Prefixes == nil {
		c.Prefixes = make(map[string]string)
	}
	c.Prefixes[prefix] = iri
}

func (c *TripleCollector) Triple(t *Triple) {
	c.Triples = append(c.Triples, t)
}

// Quads returns the collected triples as quads in the given graph.
func (c *TripleCollector) Quads(graph Term) []*Quad {
	if graph == nil {
		graph = NewDefaultGraph()
	}
	quads := make([]*Quad, len(c.Triples))
	for i, t := range c.Triples {
		quads[i] = NewQuad(t.Subject, t.Predicate, t.Object, graph)
	}
	return quads
}
