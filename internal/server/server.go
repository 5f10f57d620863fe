// Package server provides the HTTP server for the drowsiness monitor.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/drowsewatch/internal/server/api"
	"github.com/ayusman/drowsewatch/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Monitor   api.Monitor
	Logger    logrus.FieldLogger
}

// Server represents the HTTP server for the drowsiness monitor.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	status *StatusHandler

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register monitor controls, preview stream and status push if a Monitor is configured
	if s.config.Monitor != nil {
		monitorHandler := api.NewMonitorHandler(s.config.Monitor)
		s.mux.HandleFunc("/api/status", monitorHandler.Status)
		s.mux.HandleFunc("/api/live", monitorHandler.Live)
		s.mux.HandleFunc("/api/restart", monitorHandler.Restart)

		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Monitor))

		s.status = NewStatusHandler(s.config.Monitor, s.config.Logger)
		s.mux.Handle("/api/ws", s.status)
	}

	// Register session journal API if Store is configured
	if s.config.Store != nil {
		var active api.ActiveSessionFunc
		if s.config.Monitor != nil {
			active = func() string { return s.config.Monitor.Session().ID }
		}
		sessionHandler := api.NewSessionHandler(s.config.Store, active)
		s.mux.Handle("/api/sessions", sessionHandler)
		s.mux.Handle("/api/sessions/", sessionHandler)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.Monitor != nil {
		response["live"] = s.config.Monitor.IsLive()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address. It returns nil
// after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.config.Logger.WithField("addr", addr).Info("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes websocket clients and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.status != nil {
		s.status.Close()
	}

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
