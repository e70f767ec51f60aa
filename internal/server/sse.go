package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// handleUpdates streams state broadcasts as server-sent events. Page
// agents and the presentation layer use the same stream; each frame is
// the full snapshot, so a late or lossy subscriber self-heals on the next
// one. A failed write means the target is gone and the subscription ends
// silently.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, cancel := s.recorder.Subscribe()
	defer cancel()

	// The current state first, so a freshly injected agent can mirror it
	// without a separate query.
	if err := writeFrame(w, stateFrom(s.recorder.Snapshot())); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeFrame(w, stateFrom(snap)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, payload stateResponse) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}
