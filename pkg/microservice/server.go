// Package microservice exposes an asset library over HTTP.
package microservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/illmade-knight/go-assetcache/pkg/assetcache"
	"github.com/illmade-knight/go-assetcache/pkg/library"
	"github.com/illmade-knight/go-assetcache/pkg/loader"
	"github.com/illmade-knight/go-assetcache/pkg/registry"
	"github.com/rs/zerolog"
)

// StatusClientClosedRequest is written when the caller cancels a request
// before its asset is ready.
const StatusClientClosedRequest = 499

// AssetStore is the library surface served over HTTP. *library.Library satisfies it.
type AssetStore interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Evict(collection, key string) error
	Clear(collection string) error
	Stats() map[string]assetcache.Stats
}

// Server serves assets, cache stats and health checks.
type Server struct {
	Logger     zerolog.Logger
	HTTPPort   string
	store      AssetStore
	httpServer *http.Server
	mux        *http.ServeMux
	actualAddr string
	mu         sync.RWMutex
}

// NewServer creates a server for store listening on httpPort (e.g. ":8080").
func NewServer(store AssetStore, httpPort string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		Logger:   logger.With().Str("component", "AssetServer").Logger(),
		HTTPPort: httpPort,
		store:    store,
		mux:      mux,
		httpServer: &http.Server{
			Addr:    httpPort,
			Handler: mux,
		},
	}

	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /assets/{collection}/{key}", s.handleGet)
	mux.HandleFunc("POST /assets/{collection}/{key}/evict", s.handleEvict)
	mux.HandleFunc("POST /assets/{collection}/clear", s.handleClear)
	return s
}

// Start initiates the HTTP server in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.HTTPPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.HTTPPort, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.Logger.Info().Str("address", s.actualAddr).Msg("HTTP server starting to listen")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server, respecting the provided context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info().Msg("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("Error during HTTP server shutdown.")
		return err
	}
	s.Logger.Info().Msg("HTTP server stopped.")
	return nil
}

// GetHTTPPort returns the actual port the server is listening on.
func (s *Server) GetHTTPPort() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, port, err := net.SplitHostPort(s.actualAddr)
	if err != nil {
		return s.HTTPPort
	}
	return ":" + port
}

// Mux returns the underlying ServeMux.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	collection, key := r.PathValue("collection"), r.PathValue("key")
	data, err := s.store.Get(r.Context(), collection, key)
	if err != nil {
		s.writeError(w, err, collection, key)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	collection, key := r.PathValue("collection"), r.PathValue("key")
	if err := s.store.Evict(collection, key); err != nil {
		s.writeError(w, err, collection, key)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if err := s.store.Clear(collection); err != nil {
		s.writeError(w, err, collection, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.store.Stats()); err != nil {
		s.Logger.Error().Err(err).Msg("Failed to encode stats.")
	}
}

// writeError maps library errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error, collection, key string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, library.ErrUnknownCollection), errors.Is(err, registry.ErrUnknownKey):
		status = http.StatusNotFound
	case errors.Is(err, loader.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, assetcache.ErrLoadFailed):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads this response.
		status = StatusClientClosedRequest
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error().Err(err).Str("collection", collection).Str("key", key).Msg("Asset request failed.")
	}
	http.Error(w, err.Error(), status)
}

// HealthzHandler responds to health check probes.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
