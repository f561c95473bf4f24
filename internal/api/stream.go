package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"descansos/internal/metrics"
)

// handleStream serves GET /api/stream: a Server-Sent Events feed of
// reservation changes. Clients re-fetch their snapshot on every event.
func (s *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("stream")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := s.feed.Subscribe(32)
	defer s.feed.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error().Err(err).Msg("encode stream event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
