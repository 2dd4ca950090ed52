// Package api serves the live control and feedback endpoints of a recording session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bryanchriswhite/StepRecorder/internal/config"
	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	"github.com/bryanchriswhite/StepRecorder/internal/recorder"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

const (
	streamBuffer = 32
	writeTimeout = 5 * time.Second
)

// Session is the recording the server controls
type Session interface {
	ID() string
	State() recorder.State
	StepCount() int
	Steps() []recorder.Step
	Step(seq int) (recorder.Step, bool)
	Pause() error
	Resume() error
	Stop()
	Done() <-chan struct{}
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	session   Session
	configMgr *config.Manager
	upgrader  websocket.Upgrader
	log       *zerolog.Logger

	mu      sync.Mutex
	streams map[chan recorder.Step]struct{}
}

// StepView is the JSON form of a step; images are fetched separately
type StepView struct {
	recorder.Step
	ScreenshotURL string `json:"screenshot_url,omitempty"`
}

// SessionStatus is the JSON form of the session summary
type SessionStatus struct {
	ID    string         `json:"id"`
	State recorder.State `json:"state"`
	Steps int            `json:"steps"`
}

// NewServer creates a new API server. configMgr may be nil, in which case the
// settings endpoints are not registered.
func NewServer(session Session, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		session:   session,
		configMgr: configMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:     logger.WithSession("api", session.ID()),
		streams: make(map[chan recorder.Step]struct{}),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session control
	api.HandleFunc("/session", s.handleGetSession).Methods("GET")
	api.HandleFunc("/session/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/session/resume", s.handleResume).Methods("POST")
	api.HandleFunc("/session/stop", s.handleStop).Methods("POST")

	// Steps
	api.HandleFunc("/steps", s.handleGetSteps).Methods("GET")
	api.HandleFunc("/steps/stream", s.handleStepStream)
	api.HandleFunc("/steps/{n:[0-9]+}/screenshot", s.handleGetScreenshot).Methods("GET")

	// Settings
	if s.configMgr != nil {
		api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
		api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")
	}

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS headers
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Control server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.closeStreams()
		return srv.Shutdown(shutdownCtx)
	}
}

// Publish forwards a newly appended step to every live stream. It never
// blocks: a subscriber that has fallen behind misses the step.
func (s *Server) Publish(step recorder.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.streams {
		select {
		case ch <- step:
		default:
			s.log.Warn().Int("step", step.Sequence).Msg("Stream subscriber too slow, step not sent")
		}
	}
	return nil
}

func (s *Server) subscribe() chan recorder.Step {
	ch := make(chan recorder.Step, streamBuffer)
	s.mu.Lock()
	s.streams[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan recorder.Step) {
	s.mu.Lock()
	if _, ok := s.streams[ch]; ok {
		delete(s.streams, ch)
		close(ch)
	}
	s.mu.Unlock()
}

func (s *Server) closeStreams() {
	s.mu.Lock()
	for ch := range s.streams {
		delete(s.streams, ch)
		close(ch)
	}
	s.mu.Unlock()
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func viewOf(step recorder.Step) StepView {
	v := StepView{Step: step}
	if step.HasScreenshot() {
		v.ScreenshotURL = "/api/steps/" + strconv.Itoa(step.Sequence) + "/screenshot"
	}
	return v
}

func (s *Server) status() SessionStatus {
	return SessionStatus{
		ID:    s.session.ID(),
		State: s.session.State(),
		Steps: s.session.StepCount(),
	}
}

// HTTP Handlers

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Pause(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Resume(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.log.Info().Str("remote", r.RemoteAddr).Msg("Stop requested over API")
	s.session.Stop()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleGetSteps(w http.ResponseWriter, r *http.Request) {
	steps := s.session.Steps()
	views := make([]StepView, 0, len(steps))
	for _, step := range steps {
		views = append(views, viewOf(step))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetScreenshot(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		http.Error(w, "invalid step number", http.StatusBadRequest)
		return
	}

	step, ok := s.session.Step(n)
	if !ok || !step.HasScreenshot() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(step.Screenshot)))
	w.Write(step.Screenshot)
}

// handleStepStream sends every recorded step, then each new one as it is
// appended, and closes once the session stops.
func (s *Server) handleStepStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Subscribe before the snapshot so nothing appended in between is lost
	updates := s.subscribe()
	defer s.unsubscribe(updates)

	// Observers may report steps slightly out of order, so dedupe by sequence
	sent := make(map[int]struct{})
	send := func(step recorder.Step) bool {
		if _, ok := sent[step.Sequence]; ok {
			return true
		}
		sent[step.Sequence] = struct{}{}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(viewOf(step)); err != nil {
			s.log.Debug().Err(err).Msg("WebSocket write error")
			return false
		}
		return true
	}

	for _, step := range s.session.Steps() {
		if !send(step) {
			return
		}
	}

	// The client never sends; reading detects its disconnect
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case step, ok := <-updates:
			if !ok {
				return
			}
			if !send(step) {
				return
			}
		case <-s.session.Done():
			// drain whatever was appended while stopping
			for drained := false; !drained; {
				select {
				case step, ok := <-updates:
					if !ok {
						drained = true
					} else if !send(step) {
						return
					}
				default:
					drained = true
				}
			}
			// the final step may be reported after done closes
			for _, step := range s.session.Steps() {
				if !send(step) {
					return
				}
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "recording stopped"))
			return
		case <-gone:
			return
		}
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	settings := s.configMgr.Get()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.configMgr.Update(settings); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}
