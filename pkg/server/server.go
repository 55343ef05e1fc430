package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aleksaelezovic/graphstore/internal/config"
	"github.com/aleksaelezovic/graphstore/internal/metrics"
	"github.com/aleksaelezovic/graphstore/pkg/store"
	"github.com/gorilla/mux"
)

// Server serves the Graph Store Protocol and the RDF/POST decoder over HTTP
type Server struct {
	store   *store.GraphStore
	cfg     config.ServerConfig
	rdfpost config.RDFPostConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	router  *mux.Router
}

// New creates a server. A nil logger falls back to slog.Default and a nil
// metrics set disables instrumentation.
func New(gs *store.GraphStore, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		store:   gs,
		cfg:     cfg.Server,
		rdfpost: cfg.RDFPost,
		logger:  logger,
		metrics: m,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestContext, s.instrument)

	r.HandleFunc("/service", s.handleGet).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/service", s.handlePut).Methods(http.MethodPut)
	r.HandleFunc("/service", s.handlePost).Methods(http.MethodPost)
	r.HandleFunc("/service", s.handleDelete).Methods(http.MethodDelete)

	r.HandleFunc("/rdfpost", s.handleDecode).Methods(http.MethodPost)
	r.HandleFunc("/graphs", s.handleGraphs).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
	})
	return r
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("graph store listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
