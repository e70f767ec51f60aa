package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
)

// maxScreenshotBytes caps a single screenshot upload.
const maxScreenshotBytes = 16 << 20

// Routes returns the HTTP surface page agents dial into: a command
// stream per target and a screenshot upload endpoint.
func (h *Hub) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/commands", h.handleCommands)
	r.Post("/screenshots/{captureID}", h.handleScreenshot)
	return r
}

// handleCommands streams hub commands to one agent as server-sent
// events. Connecting replaces any previous agent for the same target.
func (h *Hub) handleCommands(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		httpError(w, http.StatusBadRequest, errors.New("missing target"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	// Attach before the headers go out, so a client that has seen the
	// response is guaranteed to be the hub's current connection.
	commands, detach := h.Attach(target)
	defer detach()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case cmd, ok := <-commands:
			if !ok {
				// Replaced by a newer connection for this target.
				return
			}
			data, err := json.Marshal(cmd)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: command\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleScreenshot receives the PNG an agent captured for an earlier
// capture command.
func (h *Hub) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "captureID"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("invalid capture id: %w", err))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxScreenshotBytes))
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	if !h.CompleteCapture(id, data) {
		httpError(w, http.StatusNotFound, fmt.Errorf("unknown capture %d", id))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

func httpError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
}
