package server

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/guidesnap/guidesnap/internal/agent"
	"github.com/guidesnap/guidesnap/internal/editor"
	"github.com/guidesnap/guidesnap/internal/guide"
	"github.com/guidesnap/guidesnap/internal/recorder"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateFrom(s.recorder.Snapshot()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuideTitle string          `json:"guideTitle"`
		GuideType  guide.GuideType `json:"guideType"`
		Target     string          `json:"target"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.recorder.Start(r.Context(), req.GuideTitle, req.GuideType, req.Target)
	switch {
	case recorder.IsStateError(err):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "guideId": id})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.recorder.Stop(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	status, err := s.recorder.TogglePause(r.Context())
	if recorder.IsStateError(err) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": status})
}

// handleEvent accepts one normalized event from a page agent. Delivery is
// fire and forget: the response acknowledges intake, not processing.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
		guide.UserEvent
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if !s.recorder.Submit(req.UserEvent, req.Source) {
		writeError(w, http.StatusServiceUnavailable, errors.New("recorder is shut down"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleInteraction accepts a raw page interaction and runs it through
// the source's capture agent: overlay clicks and password fields are
// suppressed, text is bounded, scrolling is debounced, and coordinates
// are scaled to device pixels before the recorder sees anything.
// /events stays for payloads a page has already normalized itself.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source           string             `json:"source"`
		Kind             string             `json:"kind"`
		Element          *agent.PageElement `json:"element,omitempty"`
		X                float64            `json:"x"`
		Y                float64            `json:"y"`
		Value            string             `json:"value,omitempty"`
		ScrollY          float64            `json:"scrollY"`
		DevicePixelRatio float64            `json:"devicePixelRatio,omitempty"`
		PageTitle        string             `json:"pageTitle"`
		PageURL          string             `json:"pageUrl"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, errors.New("source is required"))
		return
	}

	var el agent.PageElement
	if req.Element != nil {
		el = *req.Element
	}

	a := s.registry.Agent(req.Source, req.DevicePixelRatio)
	switch req.Kind {
	case "click":
		a.HandleClick(el, req.X, req.Y, req.PageTitle, req.PageURL)
	case "change":
		a.HandleChange(el, req.Value, req.PageTitle, req.PageURL)
	case "navigate":
		a.HandleNavigation(req.PageTitle, req.PageURL)
	case "scroll":
		a.HandleScroll(req.ScrollY, req.PageTitle, req.PageURL)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown interaction kind %q", req.Kind))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListGuides(w http.ResponseWriter, r *http.Request) {
	guides, err := s.store.ListGuides(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"guides": guides})
}

func (s *Server) handleGetGuide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	g, err := s.store.GetGuide(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, errors.New("guide not found"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	steps, err := s.store.StepsForGuide(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"guide": g, "steps": steps})
}

func (s *Server) handleDeleteGuide(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteGuide(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StepIDs []string `json:"stepIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.editor.ReorderSteps(r.Context(), chi.URLParam(r, "id"), req.StepIDs)
	switch {
	case errors.Is(err, editor.ErrBadOrder):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (s *Server) handleInsertStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	step, err := s.editor.InsertManualStep(r.Context(), chi.URLParam(r, "id"), req.Description)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "step": step})
}

func (s *Server) handleRenameGuide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.editor.RenameGuide(r.Context(), chi.URLParam(r, "id"), req.Title)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.editor.UpdateDescription(r.Context(), chi.URLParam(r, "id"), req.Description)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	err := s.editor.DeleteStep(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "stepID"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
