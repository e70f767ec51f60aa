// Package server exposes the recorder's message surface over localhost
// HTTP: state queries, recording transitions, event intake from page
// agents, guide resources, and a server-sent-events stream of state
// broadcasts.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/guidesnap/guidesnap/internal/agent"
	"github.com/guidesnap/guidesnap/internal/editor"
	"github.com/guidesnap/guidesnap/internal/guide"
	"github.com/guidesnap/guidesnap/internal/recorder"
	"github.com/guidesnap/guidesnap/internal/store"
)

type Server struct {
	router      chi.Router
	recorder    *recorder.Recorder
	store       *store.Store
	editor      *editor.Editor
	agentRoutes http.Handler
	registry    *agent.Registry
}

// Option configures a Server.
type Option func(*Server)

// WithAgentRoutes mounts the page-agent transport under /agent.
func WithAgentRoutes(h http.Handler) Option {
	return func(s *Server) { s.agentRoutes = h }
}

// WithInteractions enables raw interaction intake at /interactions,
// routed through per-page capture agents that filter, debounce and
// normalize before anything reaches the recorder.
func WithInteractions(reg *agent.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

func New(rec *recorder.Recorder, st *store.Store, ed *editor.Editor, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		recorder: rec,
		store:    st,
		editor:   ed,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/state", s.handleState)
	s.router.Post("/recording/start", s.handleStart)
	s.router.Post("/recording/stop", s.handleStop)
	s.router.Post("/recording/pause", s.handlePause)
	s.router.Post("/events", s.handleEvent)
	s.router.Get("/updates", s.handleUpdates)
	if s.registry != nil {
		s.router.Post("/interactions", s.handleInteraction)
	}

	s.router.Get("/guides", s.handleListGuides)
	s.router.Get("/guides/{id}", s.handleGetGuide)
	s.router.Delete("/guides/{id}", s.handleDeleteGuide)
	s.router.Post("/guides/{id}/reorder", s.handleReorder)
	s.router.Post("/guides/{id}/steps", s.handleInsertStep)
	s.router.Patch("/guides/{id}", s.handleRenameGuide)
	s.router.Patch("/steps/{id}", s.handleUpdateStep)
	s.router.Delete("/guides/{id}/steps/{stepID}", s.handleDeleteStep)

	if s.agentRoutes != nil {
		s.router.Mount("/agent", s.agentRoutes)
	}
}

// stateResponse is the GET_STATE payload shared by /state and the update
// stream.
type stateResponse struct {
	State      guide.Status    `json:"state"`
	StepCount  int             `json:"stepCount"`
	GuideID    string          `json:"guideId,omitempty"`
	GuideTitle string          `json:"guideTitle,omitempty"`
	GuideType  guide.GuideType `json:"guideType,omitempty"`
}

func stateFrom(snap guide.StateSnapshot) stateResponse {
	return stateResponse{
		State:      snap.Status,
		StepCount:  snap.StepCount,
		GuideID:    snap.GuideID,
		GuideTitle: snap.GuideTitle,
		GuideType:  snap.GuideType,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}
