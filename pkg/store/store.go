package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/aleksaelezovic/graphstore/pkg/rdf"
)

// GraphStore keeps a default graph and any number of named graphs on top of
// a key-value Storage.
//
// Default graph triples are indexed in spo, pos and osp. Named graph quads
// are indexed in spog, gspo, gpos and gosp, and every named graph has an
// entry in the graphs table so that empty graphs survive.
type GraphStore struct {
	storage Storage
	encoder TermEncoder
	decoder TermDecoder

	// held by every write; readers use their own read-only transactions
	writeMu sync.Mutex
}

// NewGraphStore creates a graph store
func NewGraphStore(storage Storage, encoder TermEncoder, decoder TermDecoder) *GraphStore {
	return &GraphStore{
		storage: storage,
		encoder: encoder,
		decoder: decoder,
	}
}

// Close closes the underlying storage
func (s *GraphStore) Close() error {
	return s.storage.Close()
}

// Sync flushes the underlying storage
func (s *GraphStore) Sync() error {
	return s.storage.Sync()
}

// isDefault reports whether graph names the default graph
func isDefault(graph rdf.Term) bool {
	return graph == nil || graph.Type() == rdf.TermTypeDefaultGraph
}

// encodedQuad is a quad whose terms are already encoded
type encodedQuad struct {
	s, p, o, g EncodedTerm
	named      bool
}

func (q encodedQuad) primaryKey(enc TermEncoder) (Table, []byte) {
	if q.named {
		return TableGSPO, enc.EncodeQuadKey(q.g, q.s, q.p, q.o)
	}
	return TableSPO, enc.EncodeQuadKey(q.s, q.p, q.o)
}

func (q encodedQuad) keys(enc TermEncoder) map[Table][]byte {
	if q.named {
		return map[Table][]byte{
			TableSPOG: enc.EncodeQuadKey(q.s, q.p, q.o, q.g),
			TableGSPO: enc.EncodeQuadKey(q.g, q.s, q.p, q.o),
			TableGPOS: enc.EncodeQuadKey(q.g, q.p, q.o, q.s),
			TableGOSP: enc.EncodeQuadKey(q.g, q.o, q.s, q.p),
		}
	}
	return map[Table][]byte{
		TableSPO: enc.EncodeQuadKey(q.s, q.p, q.o),
		TablePOS: enc.EncodeQuadKey(q.p, q.o, q.s),
		TableOSP: enc.EncodeQuadKey(q.o, q.s, q.p),
	}
}

// InsertQuads adds quads to the store and returns how many were not already
// present. A nil graph means the default graph.
func (s *GraphStore) InsertQuads(quads []*rdf.Quad) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	w, err := s.newWriter()
	if err != nil {
		return 0, err
	}
	defer w.rollback()

	added := 0
	for _, quad := range quads {
		isNew, err := s.insertQuad(w, quad)
		if err != nil {
			return 0, err
		}
		if isNew {
			added++
		}
	}

	if err := w.commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Add merges triples into graph and returns how many were new. Adding to a
// named graph creates it, unless triples is empty.
func (s *GraphStore) Add(graph rdf.Term, triples []*rdf.Triple) (int, error) {
	return s.InsertQuads(toQuads(graph, triples))
}

// Replace sets the content of graph to triples. A named graph is created if
// needed, even with no triples. It reports whether the graph was created.
func (s *GraphStore) Replace(graph rdf.Term, triples []*rdf.Triple) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	w, err := s.newWriter()
	if err != nil {
		return false, err
	}
	defer w.rollback()

	created := false
	if isDefault(graph) {
		if err := s.clearDefault(w); err != nil {
			return false, err
		}
	} else {
		exists, err := s.containsGraph(w.txn, graph)
		if err != nil {
			return false, err
		}
		if exists {
			if err := s.clearNamed(w, graph); err != nil {
				return false, err
			}
		} else {
			created = true
		}
		if err := s.registerGraph(w, graph); err != nil {
			return false, err
		}
	}

	for _, quad := range toQuads(graph, triples) {
		if _, err := s.insertQuad(w, quad); err != nil {
			return false, err
		}
	}

	if err := w.commit(); err != nil {
		return false, err
	}
	return created, nil
}

// DeleteGraph removes a named graph and all its quads, or empties the
// default graph. Deleting an unknown named graph returns ErrGraphNotFound.
func (s *GraphStore) DeleteGraph(graph rdf.Term) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	w, err := s.newWriter()
	if err != nil {
		return err
	}
	defer w.rollback()

	if isDefault(graph) {
		err = s.clearDefault(w)
	} else {
		err = s.deleteNamed(w, graph)
	}
	if err != nil {
		return err
	}
	return w.commit()
}

// ClearDefault removes every triple of the default graph
func (s *GraphStore) ClearDefault() error {
	return s.DeleteGraph(nil)
}

// DeleteQuad removes a single quad. Removing the last quad of a named graph
// leaves the graph in place.
func (s *GraphStore) DeleteQuad(quad *rdf.Quad) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	eq, err := s.encodeQuad(quad, nil)
	if err != nil {
		return err
	}

	w, err := s.newWriter()
	if err != nil {
		return err
	}
	defer w.rollback()

	for table, key := range eq.keys(s.encoder) {
		if err := w.delete(table, key); err != nil {
			return err
		}
	}
	return w.commit()
}

func (s *GraphStore) insertQuad(w *writer, quad *rdf.Quad) (bool, error) {
	strs := make(map[EncodedTerm]string, 4)
	eq, err := s.encodeQuad(quad, strs)
	if err != nil {
		return false, err
	}

	table, key := eq.primaryKey(s.encoder)
	_, err = w.txn.Get(table, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	for encoded, str := range strs {
		if err := s.storeString(w, encoded, str); err != nil {
			return false, err
		}
	}

	for table, key := range eq.keys(s.encoder) {
		if err := w.set(table, key, nil); err != nil {
			return false, err
		}
	}

	if eq.named {
		if err := w.set(TableGraphs, eq.g[:], nil); err != nil {
			return false, err
		}
	}
	return true, nil
}

// encodeQuad encodes the terms of quad and records in strs the strings that
// belong in id2str
func (s *GraphStore) encodeQuad(quad *rdf.Quad, strs map[EncodedTerm]string) (encodedQuad, error) {
	var eq encodedQuad

	if quad.Subject == nil || quad.Predicate == nil || quad.Object == nil {
		return eq, fmt.Errorf("incomplete quad %v", quad)
	}
	if quad.Subject.Type() == rdf.TermTypeLiteral {
		return eq, fmt.Errorf("literal subject in %s", quad)
	}
	if quad.Predicate.Type() != rdf.TermTypeNamedNode {
		return eq, fmt.Errorf("predicate must be an IRI in %s", quad)
	}

	terms := []struct {
		name string
		term rdf.Term
		dst  *EncodedTerm
	}{
		{"subject", quad.Subject, &eq.s},
		{"predicate", quad.Predicate, &eq.p},
		{"object", quad.Object, &eq.o},
	}
	if !isDefault(quad.Graph) {
		eq.named = true
		terms = append(terms, struct {
			name string
			term rdf.Term
			dst  *EncodedTerm
		}{"graph", quad.Graph, &eq.g})
	}

	for _, t := range terms {
		encoded, str, err := s.encoder.EncodeTerm(t.term)
		if err != nil {
			return eq, fmt.Errorf("failed to encode %s: %w", t.name, err)
		}
		*t.dst = encoded
		if str != nil && strs != nil {
			strs[encoded] = *str
		}
	}
	return eq, nil
}

// storeString stores a string in the id2str table keyed by the hash part of
// its encoded term
func (s *GraphStore) storeString(w *writer, encoded EncodedTerm, str string) error {
	key := encoded[1:]
	value := []byte(str)

	existing, err := w.txn.Get(TableID2Str, key)
	if err == nil && bytes.Equal(existing, value) {
		return nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return w.set(TableID2Str, key, value)
}

func (s *GraphStore) registerGraph(w *writer, graph rdf.Term) error {
	encoded, str, err := s.encoder.EncodeTerm(graph)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	if str != nil {
		if err := s.storeString(w, encoded, *str); err != nil {
			return err
		}
	}
	return w.set(TableGraphs, encoded[:], nil)
}

func (s *GraphStore) clearDefault(w *writer) error {
	keys, err := collectKeys(w.txn, TableSPO, nil)
	if err != nil {
		return err
	}
	for _, key := range keys {
		var eq encodedQuad
		splitKey(key, &eq.s, &eq.p, &eq.o)
		for table, k := range eq.keys(s.encoder) {
			if err := w.delete(table, k); err != nil {
				return err
			}
		}
	}
	return nil
}

// clearNamed removes the quads of a named graph but keeps its graphs entry
func (s *GraphStore) clearNamed(w *writer, graph rdf.Term) error {
	g, _, err := s.encoder.EncodeTerm(graph)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}

	keys, err := collectKeys(w.txn, TableGSPO, g[:])
	if err != nil {
		return err
	}
	for _, key := range keys {
		eq := encodedQuad{named: true}
		splitKey(key, &eq.g, &eq.s, &eq.p, &eq.o)
		for table, k := range eq.keys(s.encoder) {
			if err := w.delete(table, k); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *GraphStore) deleteNamed(w *writer, graph rdf.Term) error {
	exists, err := s.containsGraph(w.txn, graph)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, graph)
	}
	if err := s.clearNamed(w, graph); err != nil {
		return err
	}

	g, _, err := s.encoder.EncodeTerm(graph)
	if err != nil {
		return err
	}
	return w.delete(TableGraphs, g[:])
}

// collectKeys copies every key of table under prefix. Deleting while a
// badger iterator is open on the same transaction is not allowed.
func collectKeys(txn Transaction, table Table, prefix []byte) ([][]byte, error) {
	it, err := txn.Scan(table, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	return keys, nil
}

// splitKey copies the consecutive encoded terms of key into dst
func splitKey(key []byte, dst ...*EncodedTerm) {
	for i, d := range dst {
		copy(d[:], key[i*EncodedTermSize:(i+1)*EncodedTermSize])
	}
}

func toQuads(graph rdf.Term, triples []*rdf.Triple) []*rdf.Quad {
	if isDefault(graph) {
		graph = rdf.NewDefaultGraph()
	}
	quads := make([]*rdf.Quad, len(triples))
	for i, t := range triples {
		quads[i] = rdf.NewQuad(t.Subject, t.Predicate, t.Object, graph)
	}
	return quads
}

// ContainsGraph reports whether graph exists. The default graph always exists.
func (s *GraphStore) ContainsGraph(graph rdf.Term) (bool, error) {
	if isDefault(graph) {
		return true, nil
	}

	txn, err := s.storage.Begin(false)
	if err != nil {
		return false, err
	}
	defer txn.Rollback() // #nosec G104 - read-only transaction

	return s.containsGraph(txn, graph)
}

func (s *GraphStore) containsGraph(txn Transaction, graph rdf.Term) (bool, error) {
	g, _, err := s.encoder.EncodeTerm(graph)
	if err != nil {
		return false, fmt.Errorf("failed to encode graph: %w", err)
	}

	_, err = txn.Get(TableGraphs, g[:])
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ContainsQuad checks if a quad exists in the store
func (s *GraphStore) ContainsQuad(quad *rdf.Quad) (bool, error) {
	eq, err := s.encodeQuad(quad, nil)
	if err != nil {
		return false, err
	}

	txn, err := s.storage.Begin(false)
	if err != nil {
		return false, err
	}
	defer txn.Rollback() // #nosec G104 - read-only transaction

	table, key := eq.primaryKey(s.encoder)
	_, err = txn.Get(table, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Graph returns the triples of graph. An unknown named graph returns
// ErrGraphNotFound.
func (s *GraphStore) Graph(graph rdf.Term) ([]*rdf.Triple, error) {
	if !isDefault(graph) {
		exists, err := s.ContainsGraph(graph)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, graph)
		}
	}

	it, err := s.Match(&Pattern{
		Subject:   NewVariable("s"),
		Predicate: NewVariable("p"),
		Object:    NewVariable("o"),
		Graph:     graph,
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var triples []*rdf.Triple
	for it.Next() {
		quad, err := it.Quad()
		if err != nil {
			return nil, err
		}
		triples = append(triples, quad.Triple())
	}
	return triples, nil
}

// NamedGraphs lists every named graph, including empty ones
func (s *GraphStore) NamedGraphs() ([]rdf.Term, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return nil, err
	}
	defer txn.Rollback() // #nosec G104 - read-only transaction

	keys, err := collectKeys(txn, TableGraphs, nil)
	if err != nil {
		return nil, err
	}

	graphs := make([]rdf.Term, 0, len(keys))
	for _, key := range keys {
		var g EncodedTerm
		splitKey(key, &g)
		term, err := s.decodeTerm(txn, g)
		if err != nil {
			return nil, fmt.Errorf("failed to decode graph name: %w", err)
		}
		graphs = append(graphs, term)
	}
	return graphs, nil
}

// GraphSize returns the number of triples in graph
func (s *GraphStore) GraphSize(graph rdf.Term) (int, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback() // #nosec G104 - read-only transaction

	if isDefault(graph) {
		return countKeys(txn, TableSPO, nil)
	}

	g, _, err := s.encoder.EncodeTerm(graph)
	if err != nil {
		return 0, fmt.Errorf("failed to encode graph: %w", err)
	}
	return countKeys(txn, TableGSPO, g[:])
}

// Count returns the number of quads across all graphs
func (s *GraphStore) Count() (int, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback() // #nosec G104 - read-only transaction

	defaultCount, err := countKeys(txn, TableSPO, nil)
	if err != nil {
		return 0, err
	}
	namedCount, err := countKeys(txn, TableSPOG, nil)
	if err != nil {
		return 0, err
	}
	return defaultCount + namedCount, nil
}

func countKeys(txn Transaction, table Table, prefix []byte) (int, error) {
	it, err := txn.Scan(table, prefix)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	count := 0
	for it.Next() {
		count++
	}
	return count, nil
}

// decodeTerm decodes an encoded term, looking up its string when needed
func (s *GraphStore) decodeTerm(txn Transaction, encoded EncodedTerm) (rdf.Term, error) {
	if encoded.Inline() {
		return s.decoder.DecodeTerm(encoded, nil)
	}

	str, err := txn.Get(TableID2Str, encoded[1:])
	if err != nil {
		return nil, fmt.Errorf("id2str lookup: %w", err)
	}
	value := string(str)
	return s.decoder.DecodeTerm(encoded, &value)
}

// writer wraps a writable transaction and commits early when badger reports
// the transaction is full. Uploads larger than one transaction are therefore
// not atomic.
type writer struct {
	storage Storage
	txn     Transaction
}

func (s *GraphStore) newWriter() (*writer, error) {
	txn, err := s.storage.Begin(true)
	if err != nil {
		return nil, err
	}
	return &writer{storage: s.storage, txn: txn}, nil
}

func (w *writer) set(table Table, key, value []byte) error {
	err := w.txn.Set(table, key, value)
	if errors.Is(err, ErrTxnTooBig) {
		if err := w.renew(); err != nil {
			return err
		}
		err = w.txn.Set(table, key, value)
	}
	return err
}

func (w *writer) delete(table Table, key []byte) error {
	err := w.txn.Delete(table, key)
	if errors.Is(err, ErrTxnTooBig) {
		if err := w.renew(); err != nil {
			return err
		}
		err = w.txn.Delete(table, key)
	}
	return err
}

func (w *writer) renew() error {
	if err := w.txn.Commit(); err != nil {
		return err
	}
	txn, err := w.storage.Begin(true)
	if err != nil {
		return err
	}
	w.txn = txn
	return nil
}

func (w *writer) commit() error {
	return w.txn.Commit()
}

func (w *writer) rollback() {
	_ = w.txn.Rollback() // #nosec G104 - a committed transaction ignores the discard
}
