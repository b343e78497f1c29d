package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/puppetworks/puppetstage/internal/show"
	"github.com/puppetworks/puppetstage/internal/stage"
)

// Server exposes the stage over HTTP so external hosts (VR frontends,
// control panels, scripts) can drive the engine.
type Server struct {
	stage      *stage.Stage
	httpServer *http.Server
}

// GenericResponse is the envelope for mutating endpoints.
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ShowStatus is the JSON shape of GET /api/show/status.
type ShowStatus struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	CreatorID   string  `json:"creator_id"`
	IsCreator   bool    `json:"is_creator"`
	Loaded      bool    `json:"loaded"`
	Ready       bool    `json:"ready"`
	Playing     bool    `json:"playing"`
	Duration    float64 `json:"duration"`
	CurrentTime float64 `json:"current_time"`
	EventCount  int     `json:"event_count"`
	AudioCount  int     `json:"audio_count"`
}

// RecorderStatus is the JSON shape of GET /api/recorder/status.
type RecorderStatus struct {
	Enabled     bool    `json:"enabled"`
	Ready       bool    `json:"ready"`
	Recording   bool    `json:"recording"`
	CurrentTime float64 `json:"current_time"`
}

// LoadRequest identifies a show to load.
type LoadRequest struct {
	ID string `json:"id"`
}

// TitleRequest carries a rename.
type TitleRequest struct {
	Title string `json:"title"`
}

// EventRequest is a user interaction to append or record.
type EventRequest struct {
	Type     string         `json:"type"`
	Params   map[string]any `json:"params"`
	Index    *int           `json:"index,omitempty"`
	Duration float64        `json:"duration"`
	Time     *float64       `json:"time,omitempty"`
}

// New builds a server around a stage.
func New(st *stage.Stage, port int) *Server {
	s := &Server{stage: st}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/show", func(r chi.Router) {
		r.Get("/status", s.handleShowStatus)
		r.Post("/create", s.handleCreate)
		r.Post("/load", s.handleLoad)
		r.Post("/unload", s.handleUnload)
		r.Post("/play", s.handlePlay)
		r.Post("/pause", s.handlePause)
		r.Post("/rewind", s.handleRewind)
		r.Post("/title", s.handleTitle)
		r.Post("/erase", s.handleErase)
		r.Post("/events", s.handleAddEvent)
	})

	r.Route("/api/recorder", func(r chi.Router) {
		r.Get("/status", s.handleRecorderStatus)
		r.Post("/enable", s.handleEnable)
		r.Post("/disable", s.handleDisable)
		r.Post("/start", s.handleRecordStart)
		r.Post("/stop", s.handleRecordStop)
		r.Post("/reset", s.handleRecordReset)
		r.Post("/event", s.handleRecordEvent)
	})

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting puppetstage server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleShowStatus(w http.ResponseWriter, r *http.Request) {
	sh := s.stage.Show()
	writeJSON(w, http.StatusOK, ShowStatus{
		ID:          sh.ID(),
		Title:       sh.Title(),
		CreatorID:   sh.CreatorID(),
		IsCreator:   sh.IsCreator(),
		Loaded:      sh.Loaded(),
		Ready:       sh.Ready(),
		Playing:     sh.Playing(),
		Duration:    sh.Duration(),
		CurrentTime: sh.CurrentTime(),
		EventCount:  len(sh.Events()),
		AudioCount:  len(sh.AudioAssets()),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.stage.Show().Create()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Show created"})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Show id is required")
		return
	}
	s.stage.Show().Load(req.ID)
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Load started"})
}

func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	s.stage.Show().Unload()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Show unloaded"})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	sh := s.stage.Show()
	if !sh.Ready() {
		writeError(w, http.StatusConflict, "Show is not ready")
		return
	}
	sh.Play()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Playing"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.stage.Show().Pause()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Paused"})
}

func (s *Server) handleRewind(w http.ResponseWriter, r *http.Request) {
	s.stage.Show().Rewind()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Rewound"})
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	s.stage.Show().SetTitle(req.Title)
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Title updated"})
}

func (s *Server) handleErase(w http.ResponseWriter, r *http.Request) {
	s.stage.Show().Erase()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Show erased"})
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "Event type is required")
		return
	}

	at := s.stage.Show().CurrentTime()
	if req.Time != nil {
		at = *req.Time
	}
	s.stage.Show().AddEvent(req.Type, req.Params, req.Index, req.Duration, at)
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Event added"})
}

func (s *Server) handleRecorderStatus(w http.ResponseWriter, r *http.Request) {
	rec := s.stage.Recorder()
	writeJSON(w, http.StatusOK, RecorderStatus{
		Enabled:     rec.Enabled(),
		Ready:       rec.Ready(),
		Recording:   rec.Recording(),
		CurrentTime: rec.CurrentTime(),
	})
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.stage.Recorder().Enable()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recorder enabling"})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.stage.Recorder().Disable()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recorder disabled"})
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if err := s.stage.Recorder().Start(); err != nil {
		if errors.Is(err, show.ErrNotReady) {
			writeError(w, http.StatusConflict, "Recorder is not ready")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to start recording: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording"})
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	s.stage.Recorder().Stop()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording stopped"})
}

func (s *Server) handleRecordReset(w http.ResponseWriter, r *http.Request) {
	s.stage.Recorder().Reset()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recorder reset"})
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "Event type is required")
		return
	}
	s.stage.Recorder().RecordEvent(req.Type, req.Params, req.Index, req.Duration)
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Event recorded"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, GenericResponse{Success: false, Error: message})
}
