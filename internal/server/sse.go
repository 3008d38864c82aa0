package server

import (
	"fmt"
	"log/slog"
	"net/http"
)

// handleEvents streams a group's committed expense events over SSE. Events
// arrive in commit order; delivery is at-most-once, so a reconnecting client
// should re-fetch the expense list before resuming.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	if _, err := s.groups.GetGroup(r.Context(), groupID); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		slog.Warn("streaming unsupported, closing event stream", "group_id", groupID, "error", err)
		return
	}

	sub, cancel := s.broadcaster.Subscribe(groupID)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				// Evicted or broadcaster shut down.
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", event); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
