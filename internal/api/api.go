// Package api implements the relnotes HTTP API server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sprite-ai/relnotes/internal/collect"
	"github.com/sprite-ai/relnotes/internal/logger"
	"github.com/sprite-ai/relnotes/internal/render"
	"github.com/sprite-ai/relnotes/internal/source"
)

// Options wires the server to its collaborators. Source may be nil, in which
// case only the endpoints that take facts in the request body work.
type Options struct {
	Source      source.Source
	Repos       []string // default repository list for live aggregation
	Render      render.Options
	Concurrency int
	Policy      collect.Policy
	Logger      *logger.Logger
	Clock       func() time.Time
}

// Server is the relnotes HTTP API server.
type Server struct {
	addr   string
	opts   Options
	log    *logger.Logger
	router chi.Router
	server *http.Server
}

// New creates a new API server.
func New(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Render.Format == "" {
		opts.Render.Format = render.FormatMarkdown
	}
	s := &Server{addr: addr, opts: opts, log: opts.Logger}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/aggregate", s.handleAggregate)
		r.Post("/render", s.handleRender)
		r.Get("/releases/{version}", s.handleRelease)
		r.Get("/ws", s.handleWebSocket)
	})
	s.router = r
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("relnotes API server listening", "addr", s.addr)
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down API server")
		return s.server.Shutdown(shutdownCtx)
	}
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.Warn("json encode error", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
