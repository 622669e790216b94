// Package server provides the HTTP server for the Facepalm camera.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/facepalm/internal/capture"
	"github.com/ayusman/facepalm/internal/event"
	"github.com/ayusman/facepalm/internal/server/api"
	"github.com/ayusman/facepalm/internal/store"
)

// Controller is the readiness control the server drives.
type Controller interface {
	Arm() bool
	Disarm() bool
	// Status returns a JSON-encodable snapshot of the app.
	Status() any
}

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller Controller
	Bus        *event.Bus
	Shutter    *capture.Shutter
}

// Server represents the HTTP server for the Facepalm application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
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

	if s.config.Controller != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/arm", s.handleArm)
		s.mux.HandleFunc("/api/disarm", s.handleDisarm)
	}

	if s.config.Store != nil {
		photos := api.NewPhotoHandler(s.config.Store)
		s.mux.Handle("/api/photos", photos)
		s.mux.Handle("/api/photos/", photos)
	}

	if s.config.Bus != nil {
		s.events = NewEventsHandler(s.config.Bus)
		s.mux.Handle("/api/events", s.events)
	}

	if s.config.Shutter != nil {
		s.mux.Handle("/api/preview", NewStreamHandler(s.config.Shutter))
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

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Controller.Status())
}

// handleArm handles POST requests to /api/arm.
func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.config.Controller.Arm()
	writeJSON(w, http.StatusOK, s.config.Controller.Status())
}

// handleDisarm handles POST requests to /api/disarm.
func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.config.Controller.Disarm()
	writeJSON(w, http.StatusOK, s.config.Controller.Status())
}

// EventClients reports how many clients are connected to /api/events.
func (s *Server) EventClients() int {
	if s.events == nil {
		return 0
	}
	return s.events.Clients()
}

// Close disconnects event stream clients.
func (s *Server) Close() {
	if s.events != nil {
		s.events.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
