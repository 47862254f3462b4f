// Package server exposes candidate lookup over HTTP for clients that do not
// embed locally. It only suggests; nothing here executes commands.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/ashwch/syntaxpilot/internal/resolver"
	"github.com/ashwch/syntaxpilot/internal/safety"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxRequestBytes = 64 << 10

const RequestIDHeader = "X-Request-Id"

// Lookup is the part of a resolver strategy the server needs.
type Lookup interface {
	Lookup(ctx context.Context, query string) (resolver.Candidate, bool, error)
}

type Options struct {
	Addr            string
	AllowedOrigins  []string
	Lookup          Lookup
	Version         string
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
}

type Server struct {
	addr            string
	lookup          Lookup
	version         string
	logger          *zap.Logger
	handler         http.Handler
	shutdownTimeout time.Duration
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func New(opts Options) (*Server, error) {
	if opts.Lookup == nil {
		return nil, errors.New("server: lookup is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		addr:            opts.Addr,
		lookup:          opts.Lookup,
		version:         opts.Version,
		logger:          logger.Named("server"),
		shutdownTimeout: opts.ShutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /suggest", s.handleSuggest)

	var h http.Handler = mux
	h = s.withRequestID(h)
	h = corsFor(opts.AllowedOrigins).Handler(h)
	s.handler = h
	return s, nil
}

// corsFor allows no cross-origin callers unless origins are configured.
func corsFor(origins []string) *cors.Cors {
	if len(origins) == 0 {
		return cors.New(cors.Options{AllowOriginFunc: func(string) bool { return false }})
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address until ctx ends, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", zap.Error(err))
			return err
		}
		s.logger.Info("stopped")
		return nil
	})
	return g.Wait()
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>syntaxpilot</title></head>
<body>
<h1>syntaxpilot {{.}}</h1>
<p>POST a JSON body <code>{"query": "..."}</code> to <code>/suggest</code>.</p>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTemplate.Execute(w, s.version)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	id := requestID(r)
	start := time.Now()

	var req resolver.SuggestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be JSON like {\"query\": \"...\"}", RequestID: id})
		return
	}

	candidate, ok, err := s.lookup.Lookup(r.Context(), req.Query)
	switch {
	case errors.Is(err, resolver.ErrEmptyQuery):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), RequestID: id})
		return
	case err != nil:
		s.logger.Warn("lookup failed",
			zap.String("request_id", id),
			zap.String("query", safety.RedactText(req.Query)),
			zap.Error(err),
		)
		respondJSON(w, http.StatusBadGateway, errorResponse{Error: "lookup failed", RequestID: id})
		return
	}

	resp := resolver.SuggestResponse{}
	if ok {
		resp.Response = candidate.Command
	}
	s.logger.Debug("suggested",
		zap.String("request_id", id),
		zap.Bool("matched", ok),
		zap.Float32("confidence", candidate.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
