package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultHeartbeat = 15 * time.Second

// handleStream pushes every job snapshot as an SSE "progress" event until
// the job reaches a terminal state or the client goes away. Leaving early
// does not cancel the job.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	updates, unsubscribe, err := s.registry.Subscribe(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, msgJobNotFound)
		return
	}
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	_ = rc.Flush()

	every := s.cfg.SSEHeartbeat
	if every <= 0 {
		every = defaultHeartbeat
	}
	heartbeat := time.NewTicker(every)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case job, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, "progress", job); err != nil {
				return
			}
			_ = rc.Flush()
			if job.Status.Terminal() {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

func writeEvent(w io.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
