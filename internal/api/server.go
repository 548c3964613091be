package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/output"
	"github.com/bryanchriswhite/IPCamMonitor/internal/session"
)

// Controller is the set of monitor actions the API exposes
type Controller interface {
	Connect(ctx context.Context, params connection.Params) error
	Disconnect() error
	ToggleFloating() error
	FloatingClosed() error
	ToggleRecording() error
	Status() session.Status
	Subscribe() chan session.Status
	Unsubscribe(ch chan session.Status)
}

// OverlaySwitch turns the on-video overlay on and off
type OverlaySwitch interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// Options configures optional parts of the server
type Options struct {
	// Camera fills fields missing from a connect request
	Camera connection.Params

	// Main and Floating are served at /stream/main and /stream/floating
	// when the web display backend is in use
	Main     *output.MJPEGSurface
	Floating *output.MJPEGSurface

	// Overlay is toggled by POST /api/overlay/toggle when set
	Overlay OverlaySwitch
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	ctrl     Controller
	opts     Options
	upgrader websocket.Upgrader
	http     *http.Server
}

// NewServer creates a new API server
func NewServer(ctrl Controller, opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		ctrl:   ctrl,
		opts:   opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local control UI
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Registered on the root router so a wrong method answers 405; a
	// PathPrefix subrouter reports it as 404
	r := s.router

	// Actions
	r.HandleFunc("/api/connect", s.handleConnect).Methods("POST")
	r.HandleFunc("/api/disconnect", s.handleDisconnect).Methods("POST")
	r.HandleFunc("/api/floating/toggle", s.handleToggleFloating).Methods("POST")
	r.HandleFunc("/api/floating/close", s.handleFloatingClosed).Methods("POST")
	r.HandleFunc("/api/recording/toggle", s.handleToggleRecording).Methods("POST")
	if s.opts.Overlay != nil {
		r.HandleFunc("/api/overlay/toggle", s.handleToggleOverlay).Methods("POST")
	}

	// State
	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/api/events", s.handleEvents)
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")

	if s.opts.Main != nil {
		s.router.Handle("/stream/main", s.opts.Main).Methods("GET")
	}
	if s.opts.Floating != nil {
		s.router.Handle("/stream/floating", s.opts.Floating).Methods("GET")
		s.router.Handle("/floating", output.ViewerHandler("Floating Video", "/stream/floating", "/api/floating/close")).Methods("GET")
	}

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until Shutdown
func (s *Server) Start(port int) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.WithComponent("api").Info().
		Str("url", fmt.Sprintf("http://localhost:%d", port)).
		Msg("Starting server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for handlers up to ctx
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusCode maps the error taxonomy onto HTTP
func statusCode(err error) int {
	switch {
	case errors.Is(err, connection.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrNoActiveCapture):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusCode(err), map[string]string{"error": err.Error()})
}

// respond writes the action result and the status that follows it
func (s *Server) respond(w http.ResponseWriter, action string, err error) {
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Str("action", action).Msg("Action failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// HTTP Handlers

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connection.Params
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, fmt.Errorf("%w: malformed request body: %v", connection.ErrInvalidInput, err))
		return
	}

	// an empty request reuses the configured camera
	if req == (connection.Params{}) {
		req = s.opts.Camera
	}

	s.respond(w, "connect", s.ctrl.Connect(r.Context(), req))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "disconnect", s.ctrl.Disconnect())
}

func (s *Server) handleToggleFloating(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "toggle_floating", s.ctrl.ToggleFloating())
}

func (s *Server) handleFloatingClosed(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "floating_closed", s.ctrl.FloatingClosed())
}

func (s *Server) handleToggleRecording(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "toggle_recording", s.ctrl.ToggleRecording())
}

func (s *Server) handleToggleOverlay(w http.ResponseWriter, r *http.Request) {
	enabled := !s.opts.Overlay.IsEnabled()
	s.opts.Overlay.SetEnabled(enabled)

	logger.WithComponent("api").Info().Bool("enabled", enabled).Msg("Overlay toggled")
	writeJSON(w, http.StatusOK, map[string]bool{"overlay": enabled})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type surfaces struct {
		Main     *output.Stats `json:"main,omitempty"`
		Floating *output.Stats `json:"floating,omitempty"`
	}
	resp := struct {
		session.Status
		Surfaces surfaces `json:"surfaces"`
	}{Status: s.ctrl.Status()}

	if s.opts.Main != nil {
		st := s.opts.Main.Stats()
		resp.Surfaces.Main = &st
	}
	if s.opts.Floating != nil {
		st := s.opts.Floating.Stats()
		resp.Surfaces.Floating = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(updates)

	// reader goroutine notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.ctrl.Status()); err != nil {
		log.Debug().Err(err).Msg("WebSocket write error")
		return
	}

	for {
		select {
		case <-gone:
			return
		case st, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "monitor closed"))
				return
			}
			if err := conn.WriteJSON(st); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Camera   connection.Params
		HasMain  bool
		HasFloat bool
	}{
		Camera:   s.opts.Camera,
		HasMain:  s.opts.Main != nil,
		HasFloat: s.opts.Floating != nil,
	}
	// never prefill the password into the page
	data.Camera.Password = ""

	if err := indexTemplate.Execute(w, data); err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("Failed to render index")
	}
}
