// Package server exposes a docstore over the JSON API consumed by the remote
// backend. Each collection is watched once, lazily, and its snapshots are
// numbered so clients can long-poll for the next version.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/docstore/remote"
)

const (
	maxWait      = 60 * time.Second
	maxBodyBytes = 1 << 20
)

// Config configures a Server.
type Config struct {
	Addr    string
	Backend string
	Logger  *slog.Logger
}

// Server serves one docstore.
type Server struct {
	cfg     Config
	store   docstore.Store
	logger  *slog.Logger
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	feeds map[string]*feed
	seq   atomic.Uint64
}

// New returns a server for store. Call Close to stop its watches.
func New(store docstore.Store, cfg Config) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("server: addr is empty")
	}
	if store == nil {
		return nil, errors.New("server: store is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		store:   store,
		logger:  logger.With("component", "server"),
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
		feeds:   make(map[string]*feed),
	}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Close stops every collection watch.
func (s *Server) Close() {
	s.cancel()
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/collections/{collection}/documents", s.handleList)
	mux.HandleFunc("POST /api/collections/{collection}/documents", s.handleAdd)
	mux.HandleFunc("PUT /api/collections/{collection}/documents/{key}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/collections/{collection}/documents/{key}", s.handleDelete)
	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "backend", s.cfg.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}
	// Long polls end with the base context.
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, remote.HealthResponse{
		OK:        true,
		Backend:   s.cfg.Backend,
		StartedAt: s.started.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	q := r.URL.Query()
	after, err := parseUint(q.Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid after")
		return
	}
	waitMS, err := parseUint(q.Get("wait_ms"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wait_ms")
		return
	}
	wait := min(time.Duration(waitMS)*time.Millisecond, maxWait)

	f, err := s.feedFor(r.Context(), collection)
	if err != nil {
		s.logger.Error("watch failed", "collection", collection, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	version, docs, changed := f.current()
	if after != 0 && after == version && wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-changed:
		case <-timer.C:
		case <-r.Context().Done():
			return
		case <-s.ctx.Done():
		}
		version, docs, _ = f.current()
	}
	writeJSON(w, http.StatusOK, remote.DocumentsResponse{Version: version, Documents: docs})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	key, err := s.store.Add(r.Context(), r.PathValue("collection"), fields)
	if err != nil {
		s.logger.Error("add failed", "collection", r.PathValue("collection"), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, remote.AddResponse{Key: key})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	err := s.store.Update(r.Context(), r.PathValue("collection"), r.PathValue("key"), fields)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error("update failed", "collection", r.PathValue("collection"), "key", r.PathValue("key"), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("collection"), r.PathValue("key")); err != nil {
		s.logger.Error("delete failed", "collection", r.PathValue("collection"), "key", r.PathValue("key"), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	var req remote.FieldsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return nil, false
	}
	if req.Fields == nil {
		req.Fields = map[string]string{}
	}
	return req.Fields, true
}

func parseUint(v string) (uint64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, remote.ErrorResponse{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
