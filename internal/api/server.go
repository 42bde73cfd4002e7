package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"taskmaster/internal/logging"
	"taskmaster/pkg/activity"
	"taskmaster/pkg/query"
	"taskmaster/pkg/task"
	"taskmaster/pkg/user"
)

// UserHeader names the request header carrying the acting username.
const UserHeader = "X-User"

// Options configures a Server. Zero values are usable.
type Options struct {
	Logger *slog.Logger
	// DefaultActor is recorded when a request names no known user.
	DefaultActor string
	// RequestsPerSecond and Burst bound each client. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// Now overrides the clock used for derived fields.
	Now func() time.Time
}

// Server is the HTTP API server.
type Server struct {
	tasks        task.Store
	users        user.Store
	activity     *activity.Bus
	composer     *query.Composer
	log          *slog.Logger
	defaultActor string
	now          func() time.Time
	mux          *http.ServeMux
	handler      http.Handler
}

// New creates a new Server.
func New(tasks task.Store, users user.Store, bus *activity.Bus, opts Options) *Server {
	s := &Server{
		tasks:        tasks,
		users:        users,
		activity:     bus,
		composer:     query.NewComposer(tasks),
		log:          opts.Logger,
		defaultActor: opts.DefaultActor,
		now:          opts.Now,
		mux:          http.NewServeMux(),
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.defaultActor == "" {
		s.defaultActor = "System User"
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()

	var h http.Handler = s.mux
	if opts.RequestsPerSecond > 0 {
		h = newRateLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst).middleware(h)
	}
	h = s.recoverer(h)
	h = s.accessLog(h)
	s.handler = s.requestID(h)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/counts", s.handleTaskCounts)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("POST /api/tasks/{id}/status", s.handleTaskStatus)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)

	// Activity
	if s.activity != nil {
		s.mux.HandleFunc("GET /api/activity", s.handleActivityList)
		s.mux.HandleFunc("GET /api/activity/stream", s.handleActivityStream)
	}

	// System
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write json", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// fail maps a store or validation error to a response. Anything that is not
// a validation error or a missing task is logged and reported as a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *task.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	default:
		logging.FromContext(r.Context(), s.log).Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// actor resolves the acting user from the request. Unknown or absent users
// fall back to the default display name with no id.
func (s *Server) actor(r *http.Request) task.Attribution {
	name := r.Header.Get(UserHeader)
	if name == "" || s.users == nil {
		return task.Attribution{Name: s.defaultActor}
	}
	u, err := s.users.ByUsername(r.Context(), name)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			logging.FromContext(r.Context(), s.log).Warn("resolve user", "user", name, "error", err)
		}
		return task.Attribution{Name: s.defaultActor}
	}
	id := u.ID
	return task.Attribution{ID: &id, Name: u.Username}
}
