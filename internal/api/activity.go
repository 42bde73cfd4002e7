package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"taskmaster/internal/logging"
	"taskmaster/pkg/activity"
	"taskmaster/pkg/task"
)

// streamHeartbeat keeps idle SSE connections from being closed by proxies.
const streamHeartbeat = 15 * time.Second

func (s *Server) handleActivityList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := queryLimit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if raw := r.URL.Query().Get("task"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid task ID")
			return
		}
		events, err := s.activity.ForTask(ctx, id, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}

	events, err := s.activity.Recent(ctx, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ch := s.activity.Subscribe()
	defer s.activity.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ctx := r.Context()
	log := logging.FromContext(ctx, s.log)
	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				log.Warn("encode activity event", "id", e.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
			flusher.Flush()
		}
	}
}

// queryLimit reads the limit parameter. Absent means the store default;
// anything but a non-negative integer is a validation error.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return activity.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &task.ValidationError{Field: "limit", Message: "Invalid limit " + raw}
	}
	return n, nil
}
