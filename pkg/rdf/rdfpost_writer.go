package rdf

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
)

// RDFPostWriter serializes triples in the RDF/POST encoding.
//
// Consecutive triples sharing a subject are written under one subject
// directive, and consecutive objects of one predicate under one predicate
// directive, which is how an HTML form lays them out. IRIs covered by a
// declared prefix are written with the sn/sv, pn/pv or on/ov pairs.
type RDFPostWriter struct {
	w        io.Writer
	base     string
	prefixes map[string]string
}

// NewRDFPostWriter creates a writer emitting to w
func NewRDFPostWriter(w io.Writer) *RDFPostWriter {
	return &RDFPostWriter{w: w, prefixes: make(map[string]string)}
}

// SetBase declares a base IRI written as the leading "v" parameter
func (w *RDFPostWriter) SetBase(iri string) {
	w.base = iri
}

// AddPrefix declares a namespace used to abbreviate IRIs
func (w *RDFPostWriter) AddPrefix(prefix, iri string) {
	w.prefixes[prefix] = iri
}

// Write serializes triples as one RDF/POST body
func (w *RDFPostWriter) Write(triples []*Triple) error {
	enc := &rdfpostEncoder{}
	enc.param(KeyRDF, "")

	if w.base != "" {
		enc.param(KeyDefaultNS, w.base)
	}
	names := w.sortedPrefixes()
	for _, prefix := range names {
		enc.param(KeyNS, prefix)
		enc.param(KeyDefaultNS, w.prefixes[prefix])
	}

	var subject, predicate Term
	for _, t := range triples {
		if subject == nil || !subject.Equals(t.Subject) {
			if err := w.writeSubject(enc, t.Subject); err != nil {
				return err
			}
			subject, predicate = t.Subject, nil
		}
		if predicate == nil || !predicate.Equals(t.Predicate) {
			if err := w.writePredicate(enc, t.Predicate); err != nil {
				return err
			}
			predicate = t.Predicate
		}
		if err := w.writeObject(enc, t.Object); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w.w, enc.String()); err != nil {
		return fmt.Errorf("error writing RDF/POST: %w", err)
	}
	return nil
}

func (w *RDFPostWriter) writeSubject(enc *rdfpostEncoder, term Term) error {
	switch s := term.(type) {
	case *BlankNode:
		enc.param(KeySubjectBlank, s.ID)
	case *NamedNode:
		w.writeIRI(enc, KeySubjectIRI, KeySubjectNS, s.IRI)
	default:
		return fmt.Errorf("rdfpost: cannot write %T as subject", term)
	}
	return nil
}

func (w *RDFPostWriter) writePredicate(enc *rdfpostEncoder, term Term) error {
	p, ok := term.(*NamedNode)
	if !ok {
		return fmt.Errorf("rdfpost: cannot write %T as predicate", term)
	}
	w.writeIRI(enc, KeyPredicateIRI, KeyPredicateNS, p.IRI)
	return nil
}

func (w *RDFPostWriter) writeObject(enc *rdfpostEncoder, term Term) error {
	switch o := term.(type) {
	case *BlankNode:
		enc.param(KeyObjectBlank, o.ID)
	case *NamedNode:
		w.writeIRI(enc, KeyObjectIRI, KeyObjectNS, o.IRI)
	case *Literal:
		enc.param(KeyObjectLiteral, o.Value)
		if o.Language != "" {
			enc.param(KeyLanguage, o.Language)
		} else if o.Datatype != nil {
			enc.param(KeyDatatype, o.Datatype.IRI)
		}
	default:
		return fmt.Errorf("rdfpost: cannot write %T as object", term)
	}
	return nil
}

// writeIRI writes iri with the IRI key, or as prefix plus local name when a
// declared namespace covers it.
func (w *RDFPostWriter) writeIRI(enc *rdfpostEncoder, iriKey, nsKey DirectiveKey, iri string) {
	if prefix, local, ok := w.abbreviate(iri); ok {
		enc.param(nsKey, prefix)
		enc.param(companionOf[nsKey], local)
		return
	}
	enc.param(iriKey, iri)
}

// abbreviate picks the longest declared namespace that is a proper prefix of iri
func (w *RDFPostWriter) abbreviate(iri string) (string, string, bool) {
	best, bestNS := "", ""
	for prefix, ns := range w.prefixes {
		if ns == "" || len(ns) >= len(iri) || !strings.HasPrefix(iri, ns) {
			continue
		}
		if len(ns) > len(bestNS) || (len(ns) == len(bestNS) && prefix < best) {
			best, bestNS = prefix, ns
		}
	}
	if bestNS == "" {
		return "", "", false
	}
	return best, iri[len(bestNS):], true
}

func (w *RDFPostWriter) sortedPrefixes() []string {
	names := make([]string, 0, len(w.prefixes))
	for prefix := range w.prefixes {
		names = append(names, prefix)
	}
	sort.Strings(names)
	return names
}

type rdfpostEncoder struct {
	sb strings.Builder
}

func (e *rdfpostEncoder) param(key DirectiveKey, value string) {
	if e.sb.Len() > 0 {
		e.sb.WriteByte(chAmpersand)
	}
	e.sb.WriteString(string(key))
	e.sb.WriteByte(chEquals)
	e.sb.WriteString(url.QueryEscape(value))
}

func (e *rdfpostEncoder) String() string {
	return e.sb.String()
}

// EncodeRDFPost returns triples as an RDF/POST body without prefixes
func EncodeRDFPost(triples []*Triple) (string, error) {
	var sb strings.Builder
	if err := NewRDFPostWriter(&sb).Write(triples); err != nil {
		return "", err
	}
	return sb.String(), nil
}
