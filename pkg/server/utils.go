package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aleksaelezovic/graphstore/pkg/rdf"
	"github.com/aleksaelezovic/graphstore/pkg/store"
	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/munnerz/goautoneg"
)

type ctxKey int

const requestIDKey ctxKey = iota

// requestID returns the id assigned to the request by requestContext
func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// requestContext assigns every request a UUID, echoed in X-Request-ID
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// instrument logs one line per request and records request metrics
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		m := httpsnoop.CaptureMetrics(next, w, r)

		s.metrics.ObserveRequest(r.Method, route, m.Code, m.Duration)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration", m.Duration,
			"bytes", m.Written,
			"request_id", requestID(r))
	})
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	detail := errorDetail{Code: statusCode, Message: err.Error()}
	var parseErr *rdf.ParseError
	if errors.As(err, &parseErr) {
		detail.Line = parseErr.Line
		detail.Column = parseErr.Column
	}

	if statusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", requestID(r))
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", statusCode, "error", err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail}) // #nosec G104 - client went away
}

// statusFor maps an error to its HTTP status code
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, rdf.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case rdf.FaultOf(err) != rdf.NoFault:
		return http.StatusBadRequest
	case errors.Is(err, store.ErrGraphNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var errNoGraph = errors.New("query must name the 'default' graph or a 'graph' IRI")

// targetGraph reads the graph selected by the query string. It returns nil
// for the default graph.
func targetGraph(r *http.Request) (rdf.Term, error) {
	query := r.URL.Query()
	hasDefault := query.Has("default")
	graphs := query["graph"]

	switch {
	case hasDefault && len(graphs) > 0:
		return nil, errors.New("'default' and 'graph' are mutually exclusive")
	case hasDefault:
		return nil, nil
	case len(graphs) == 1:
		iri, err := url.Parse(graphs[0])
		if err != nil || !iri.IsAbs() {
			return nil, fmt.Errorf("graph %q is not an absolute IRI", graphs[0])
		}
		return rdf.NewNamedNode(graphs[0]), nil
	case len(graphs) > 1:
		return nil, errors.New("only one 'graph' parameter is allowed")
	default:
		return nil, errNoGraph
	}
}

// readQuads parses the request body according to its Content-Type
func (s *Server) readQuads(w http.ResponseWriter, r *http.Request) ([]*rdf.Quad, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = rdf.ContentTypeRDFPost
	}

	parser, err := rdf.NewParser(contentType)
	if err != nil {
		return nil, err
	}
	if p, ok := parser.(*rdf.RDFPostIOParser); ok {
		p.SkipEmptyLiterals = s.rdfpost.SkipEmptyLiterals
		p.ResolveRelativeIRIs = s.rdfpost.ResolveRelativeIRIs
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	quads, err := parser.Parse(r.Body)
	if err != nil {
		if kind := rdf.FaultOf(err); kind != rdf.NoFault {
			s.metrics.ParseError(parser.ContentType(), kind.String())
		}
		return nil, err
	}
	if parser.ContentType() == rdf.ContentTypeRDFPost {
		s.metrics.AddDecodedTriples(len(quads))
	}
	return quads, nil
}

// readTriples reads the body like readQuads, drops the graph component of
// N-Quads input and scopes blank node labels to the request
func (s *Server) readTriples(w http.ResponseWriter, r *http.Request) ([]*rdf.Triple, error) {
	quads, err := s.readQuads(w, r)
	if err != nil {
		return nil, err
	}

	scope := strings.ReplaceAll(requestID(r), "-", "")
	if scope == "" {
		scope = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	scoped := make(map[string]*rdf.BlankNode)
	relabel := func(t rdf.Term) rdf.Term {
		b, ok := t.(*rdf.BlankNode)
		if !ok {
			return t
		}
		if n, ok := scoped[b.ID]; ok {
			return n
		}
		n := rdf.NewBlankNode(b.ID + "_" + scope)
		scoped[b.ID] = n
		return n
	}

	triples := make([]*rdf.Triple, len(quads))
	for i, q := range quads {
		triples[i] = rdf.NewTriple(relabel(q.Subject), q.Predicate, relabel(q.Object))
	}
	return triples, nil
}

// negotiate picks a writer for the Accept header. N-Triples is the default.
func negotiate(accept string) (rdf.RDFWriter, bool) {
	if strings.TrimSpace(accept) == "" {
		return &rdf.NTriplesIOWriter{}, true
	}

	contentType := goautoneg.Negotiate(strings.ToLower(accept), rdf.GetWritableContentTypes())
	if contentType == "" {
		return nil, false
	}
	writer, err := rdf.NewWriter(contentType)
	if err != nil {
		return nil, false
	}
	return writer, true
}

// writeGraph serializes triples of graph in the negotiated format
func (s *Server) writeGraph(w http.ResponseWriter, r *http.Request, graph rdf.Term, triples []*rdf.Triple) {
	w.Header().Add("Vary", "Accept")

	writer, ok := negotiate(r.Header.Get("Accept"))
	if !ok {
		s.writeError(w, r, http.StatusNotAcceptable,
			fmt.Errorf("no acceptable representation, available: %s", strings.Join(rdf.GetWritableContentTypes(), ", ")))
		return
	}

	if graph == nil {
		graph = rdf.NewDefaultGraph()
	}
	quads := make([]*rdf.Quad, len(triples))
	for i, t := range triples {
		quads[i] = rdf.NewQuad(t.Subject, t.Predicate, t.Object, graph)
	}

	w.Header().Set("Content-Type", writer.ContentType()+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if err := writer.Write(w, quads); err != nil {
		s.logger.Warn("writing response failed", "error", err, "request_id", requestID(r))
	}
}
