package rdf

import (
	"sort"
	"strings"
)

// statement is a triple or quad viewed as a list of terms.
type statement []Term

// AreGraphsIsomorphic checks if two sets of triples are isomorphic,
// accounting for blank node label differences.
// Two graphs are isomorphic if there exists a bijection between their
// blank nodes such that when applied, the graphs are identical.
func AreGraphsIsomorphic(expected, actual []*Triple) bool {
	toStatements := func(triples []*Triple) []statement {
		out := make([]statement, len(triples))
		for i, t := range triples {
			out[i] = statement{t.Subject, t.Predicate, t.Object}
		}
		return out
	}
	return isomorphic(toStatements(expected), toStatements(actual))
}

// AreQuadsIsomorphic checks if two sets of quads are isomorphic,
// accounting for blank node label differences in both triples and graph names.
func AreQuadsIsomorphic(expected, actual []*Quad) bool {
	toStatements := func(quads []*Quad) []statement {
		out := make([]statement, len(quads))
		for i, q := range quads {
			graph := q.Graph
			if graph == nil {
				graph = NewDefaultGraph()
			}
			out[i] = statement{q.Subject, q.Predicate, q.Object, graph}
		}
		return out
	}
	return isomorphic(toStatements(expected), toStatements(actual))
}

func isomorphic(expected, actual []statement) bool {
	if len(expected) != len(actual) {
		return false
	}

	expectedBlanks := blankDegrees(expected)
	actualBlanks := blankDegrees(actual)
	if len(expectedBlanks) != len(actualBlanks) {
		return false
	}

	actualSet := make(map[string]bool, len(actual))
	for _, st := range actual {
		actualSet[statementKey(st, nil)] = true
	}

	if len(expectedBlanks) == 0 {
		return verifyMapping(expected, actualSet, nil)
	}

	// Match high-degree nodes first
	e := sortByDegree(expectedBlanks)
	a := sortByDegree(actualBlanks)

	m := &matcher{
		expected:    expected,
		actualSet:   actualSet,
		expectedDeg: expectedBlanks,
		actualDeg:   actualBlanks,
		mapping:     make(map[string]string),
		usedTargets: make(map[string]bool),
	}
	return m.backtrack(e, a, 0)
}

// blankDegrees counts how often each blank node label occurs
func blankDegrees(statements []statement) map[string]int {
	degrees := make(map[string]int)
	for _, st := range statements {
		for _, term := range st {
			if b, ok := term.(*BlankNode); ok {
				degrees[b.ID]++
			}
		}
	}
	return degrees
}

// sortByDegree returns the labels sorted by descending degree, then by label
func sortByDegree(degrees map[string]int) []string {
	labels := make([]string, 0, len(degrees))
	for label := range degrees {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if degrees[labels[i]] != degrees[labels[j]] {
			return degrees[labels[i]] > degrees[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

type matcher struct {
	expected    []statement
	actualSet   map[string]bool
	expectedDeg map[string]int
	actualDeg   map[string]int
	mapping     map[string]string
	usedTargets map[string]bool
}

// backtrack recursively tries to find a valid mapping between blank nodes
func (m *matcher) backtrack(expectedBlanks, actualBlanks []string, index int) bool {
	if index == len(expectedBlanks) {
		return verifyMapping(m.expected, m.actualSet, m.mapping)
	}

	current := expectedBlanks[index]
	for _, candidate := range actualBlanks {
		if m.usedTargets[candidate] || m.expectedDeg[current] != m.actualDeg[candidate] {
			continue
		}

		m.mapping[current] = candidate
		m.usedTargets[candidate] = true

		if m.consistentSoFar() && m.backtrack(expectedBlanks, actualBlanks, index+1) {
			return true
		}

		delete(m.mapping, current)
		delete(m.usedTargets, candidate)
	}

	return false
}

// consistentSoFar checks that every fully mapped statement exists in actual
func (m *matcher) consistentSoFar() bool {
	for _, st := range m.expected {
		if !fullyMapped(st, m.mapping) {
			continue
		}
		if !m.actualSet[statementKey(st, m.mapping)] {
			return false
		}
	}
	return true
}

func fullyMapped(st statement, mapping map[string]string) bool {
	for _, term := range st {
		if b, ok := term.(*BlankNode); ok {
			if _, exists := mapping[b.ID]; !exists {
				return false
			}
		}
	}
	return true
}

// verifyMapping checks if the given mapping makes the graphs identical
func verifyMapping(expected []statement, actualSet map[string]bool, mapping map[string]string) bool {
	expectedMapped := make(map[string]bool, len(expected))
	for _, st := range expected {
		key := statementKey(st, mapping)
		if !actualSet[key] {
			return false
		}
		expectedMapped[key] = true
	}
	return len(expectedMapped) == len(actualSet)
}

// statementKey creates a string key, applying the blank node mapping if provided
func statementKey(st statement, mapping map[string]string) string {
	parts := make([]string, len(st))
	for i, term := range st {
		parts[i] = term.String()
		if b, ok := term.(*BlankNode); ok && mapping != nil {
			if mapped, exists := mapping[b.ID]; exists {
				parts[i] = "_:" + mapped
			}
		}
	}
	return strings.Join(parts, "|")
}
