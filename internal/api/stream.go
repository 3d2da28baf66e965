package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const sseHeartbeat = 25 * time.Second

// handleStream pushes new messages of one conversation as server-sent events.
func (s *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := principal(r)
	otherID := chi.URLParam(r, "userID")

	sub, err := s.svc.Chat.Subscribe(ctx, p, otherID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	// поток живет дольше WriteTimeout сервера
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.log.Debug().Err(err).Msg("write deadline not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Warn().Err(err).Msg("streaming not supported")
		return
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error().Err(err).Msg("failed to encode chat event")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", ev.ID, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
