package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"taskmaster/internal/logging"
	"taskmaster/pkg/activity"
	"taskmaster/pkg/query"
	"taskmaster/pkg/task"
)

// taskView is a task as served, with its derived priority.
type taskView struct {
	task.Task
	Priority query.Level `json:"priority"`
}

func (s *Server) view(t task.Task) taskView {
	return taskView{Task: t, Priority: query.Priority(t.DueDate, s.now())}
}

func (s *Server) views(tasks []task.Task) []taskView {
	out := make([]taskView, len(tasks))
	for i, t := range tasks {
		out[i] = s.view(t)
	}
	return out
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	params, err := query.ParseParams(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tasks, err := s.composer.Compose(r.Context(), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.views(tasks))
}

func (s *Server) handleTaskCounts(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.All(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, query.CountBuckets(tasks, s.now()))
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(*t))
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var in task.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	by := s.actor(r)
	t, err := s.tasks.Create(r.Context(), in, by)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.record(r, activity.TaskCreated, t.ID, by, t)
	writeJSON(w, http.StatusCreated, s.view(*t))
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	// An empty body is an empty patch.
	var p task.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	s.update(w, r, id, p)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status *task.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if body.Status == nil {
		s.fail(w, r, &task.ValidationError{Field: "status", Message: "Required"})
		return
	}
	s.update(w, r, id, task.Patch{Status: body.Status})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, id int64, p task.Patch) {
	by := s.actor(r)
	t, err := s.tasks.Update(r.Context(), id, p, by)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.record(r, activity.TaskUpdated, t.ID, by, map[string]any{"changes": p, "task": t})
	writeJSON(w, http.StatusOK, s.view(*t))
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	removed, err := s.tasks.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !removed {
		s.fail(w, r, task.ErrNotFound)
		return
	}
	s.record(r, activity.TaskDeleted, id, s.actor(r), map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// taskID parses the {id} path value, writing a 400 when it is not a
// positive integer.
func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return 0, false
	}
	return id, true
}

// record appends an activity event. The mutation has already committed, so
// a failure here is logged and otherwise ignored.
func (s *Server) record(r *http.Request, eventType string, taskID int64, by task.Attribution, content any) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Append(r.Context(), eventType, taskID, by.Name, content); err != nil {
		logging.FromContext(r.Context(), s.log).Warn("record activity",
			"type", eventType, "task_id", taskID, "error", err)
	}
}
