package store

import (
	"fmt"

	"github.com/aleksaelezovic/graphstore/pkg/rdf"
)

// Pattern represents a quad pattern with optional variables.
//
// Graph selects where to look: nil or rdf.DefaultGraph is the default graph,
// a *Variable matches every named graph, and any other term matches that
// named graph only.
type Pattern struct {
	Subject   any // rdf.Term or *Variable
	Predicate any // rdf.Term or *Variable
	Object    any // rdf.Term or *Variable
	Graph     any // rdf.Term, *Variable or nil
}

// Variable is an unbound position in a Pattern
type Variable struct {
	Name string
}

// NewVariable creates a new variable
func NewVariable(name string) *Variable {
	return &Variable{Name: name}
}

func (v *Variable) String() string {
	return "?" + v.Name
}

// QuadIterator iterates over quads matching a pattern
type QuadIterator interface {
	Next() bool
	Quad() (*rdf.Quad, error)
	Close() error
}

// Positions in an SPOG tuple
const (
	posS = iota
	posP
	posO
	posG
)

// Match returns an iterator over the quads matching pattern. The iterator
// holds a read transaction until it is closed.
func (s *GraphStore) Match(pattern *Pattern) (QuadIterator, error) {
	bound, err := s.encodePattern(pattern)
	if err != nil {
		return nil, err
	}

	table, keyPattern := selectIndex(pattern, bound)

	// The scan prefix covers the leading bound positions of the key
	var prefix []byte
	for _, idx := range keyPattern {
		if bound[idx] == nil {
			break
		}
		prefix = append(prefix, bound[idx][:]...)
	}

	txn, err := s.storage.Begin(false)
	if err != nil {
		return nil, err
	}

	it, err := txn.Scan(table, prefix)
	if err != nil {
		_ = txn.Rollback() // #nosec G104 - rollback error less important than original error
		return nil, err
	}

	return &quadIterator{
		store:      s,
		txn:        txn,
		it:         it,
		bound:      bound,
		keyPattern: keyPattern,
	}, nil
}

// encodePattern encodes the bound positions of pattern. Unbound positions,
// and the graph of a default graph pattern, are left nil.
func (s *GraphStore) encodePattern(pattern *Pattern) ([4]*EncodedTerm, error) {
	var bound [4]*EncodedTerm
	positions := [4]any{pattern.Subject, pattern.Predicate, pattern.Object, pattern.Graph}

	for i, v := range positions {
		if v == nil || isVariable(v) {
			continue
		}
		term, ok := v.(rdf.Term)
		if !ok {
			return bound, fmt.Errorf("pattern position %d: unsupported value %T", i, v)
		}
		if i == posG && isDefault(term) {
			continue
		}
		encoded, _, err := s.encoder.EncodeTerm(term)
		if err != nil {
			return bound, err
		}
		bound[i] = &encoded
	}
	return bound, nil
}

// selectIndex chooses the best index based on which positions are bound.
// keyPattern maps key position to SPOG position.
func selectIndex(pattern *Pattern, bound [4]*EncodedTerm) (Table, []int) {
	sBound := bound[posS] != nil
	pBound := bound[posP] != nil
	oBound := bound[posO] != nil

	if pattern.Graph == nil || (!isVariable(pattern.Graph) && bound[posG] == nil) {
		switch {
		case sBound && pBound:
			return TableSPO, []int{posS, posP, posO}
		case pBound && oBound:
			return TablePOS, []int{posP, posO, posS}
		case oBound && sBound:
			return TableOSP, []int{posO, posS, posP}
		case sBound:
			return TableSPO, []int{posS, posP, posO}
		case pBound:
			return TablePOS, []int{posP, posO, posS}
		case oBound:
			return TableOSP, []int{posO, posS, posP}
		}
		return TableSPO, []int{posS, posP, posO}
	}

	if isVariable(pattern.Graph) {
		// Only spog starts with a non-graph position; other bound
		// positions are filtered
		return TableSPOG, []int{posS, posP, posO, posG}
	}

	switch {
	case sBound && pBound:
		return TableGSPO, []int{posG, posS, posP, posO}
	case pBound && oBound:
		return TableGPOS, []int{posG, posP, posO, posS}
	case oBound && sBound:
		return TableGOSP, []int{posG, posO, posS, posP}
	case sBound:
		return TableGSPO, []int{posG, posS, posP, posO}
	case pBound:
		return TableGPOS, []int{posG, posP, posO, posS}
	case oBound:
		return TableGOSP, []int{posG, posO, posS, posP}
	}
	return TableGSPO, []int{posG, posS, posP, posO}
}

// isVariable checks if a value is a variable
func isVariable(v any) bool {
	_, ok := v.(*Variable)
	return ok
}

// quadIterator implements QuadIterator
type quadIterator struct {
	store      *GraphStore
	txn        Transaction
	it         Iterator
	bound      [4]*EncodedTerm
	keyPattern []int
	current    [4]EncodedTerm
	closed     bool
}

func (qi *quadIterator) Next() bool {
	if qi.closed {
		return false
	}
	for qi.it.Next() {
		if qi.load(qi.it.Key()) {
			return true
		}
	}
	return false
}

// load unpacks key into SPOG order and reports whether it matches every
// bound position
func (qi *quadIterator) load(key []byte) bool {
	if len(key) < len(qi.keyPattern)*EncodedTermSize {
		return false
	}
	for i, idx := range qi.keyPattern {
		copy(qi.current[idx][:], key[i*EncodedTermSize:(i+1)*EncodedTermSize])
	}
	for i, b := range qi.bound {
		if b != nil && *b != qi.current[i] {
			return false
		}
	}
	return true
}

func (qi *quadIterator) Quad() (*rdf.Quad, error) {
	if qi.closed {
		return nil, fmt.Errorf("iterator closed")
	}

	names := [4]string{"subject", "predicate", "object", "graph"}
	var terms [4]rdf.Term
	for i := range qi.keyPattern {
		term, err := qi.store.decodeTerm(qi.txn, qi.current[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", names[i], err)
		}
		terms[i] = term
	}
	if len(qi.keyPattern) < 4 {
		terms[posG] = rdf.NewDefaultGraph()
	}

	return rdf.NewQuad(terms[posS], terms[posP], terms[posO], terms[posG]), nil
}

func (qi *quadIterator) Close() error {
	if qi.closed {
		return nil
	}
	qi.closed = true
	_ = qi.it.Close() // #nosec G104 - iterator close error less critical than transaction rollback error
	return qi.txn.Rollback()
}
