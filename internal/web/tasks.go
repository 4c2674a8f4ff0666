package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chime/internal/reminder"
	"chime/internal/store"
	logx "chime/pkg/logx"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	tasks, err := s.tasks.TasksByUser(r.Context(), userID)
	if err != nil {
		s.log.Error("list tasks", logx.Int64("user_id", userID), logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "list failed")
		return
	}
	s.respondJSON(w, http.StatusOK, toTaskList(tasks))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	var req taskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	t := &reminder.Task{UserID: userID}
	req.apply(t)
	if err := s.tasks.CreateTask(r.Context(), t); err != nil {
		s.log.Error("create task", logx.Int64("user_id", userID), logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "create failed")
		return
	}

	// Arming may fail on a malformed clock; the row is already saved and the
	// facade logs the problem, so the request still succeeds.
	s.sched.ScheduleTask(t)

	s.respondJSON(w, http.StatusCreated, toTaskResponse(t))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	id, ok := pathID(w, s, r)
	if !ok {
		return
	}
	var req taskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	t, err := s.tasks.Task(r.Context(), id)
	if err != nil || t.UserID != userID {
		s.respondTaskLookup(w, id, userID, err)
		return
	}

	req.apply(t)
	if err := s.tasks.UpdateTask(r.Context(), t); err != nil {
		s.log.Error("update task", logx.Int64("task_id", id), logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "update failed")
		return
	}

	// Re-arm from scratch so a changed clock replaces the old trigger and a
	// stale fired marker cannot suppress the new time.
	s.sched.CancelTask(t.ID)
	s.sched.ScheduleTask(t)

	s.respondJSON(w, http.StatusOK, toTaskResponse(t))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	id, ok := pathID(w, s, r)
	if !ok {
		return
	}
	if err := s.tasks.DeleteTask(r.Context(), id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "task not found")
			return
		}
		s.log.Error("delete task", logx.Int64("task_id", id), logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	s.sched.CancelTask(id)
	s.respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleClearTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	tasks, err := s.tasks.TasksByUser(r.Context(), userID)
	if err != nil {
		s.log.Error("clear tasks", logx.Int64("user_id", userID), logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	n, err := s.tasks.DeleteAllTasks(r.Context(), userID)
	if err != nil {
		s.log.Error("clear tasks", logx.Int64("user_id", userID), logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	for i := range tasks {
		s.sched.CancelTask(tasks[i].ID)
	}
	s.log.Info("tasks cleared", logx.Int64("user_id", userID), logx.Int64("count", n))
	s.respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	id, ok := pathID(w, s, r)
	if !ok {
		return
	}
	t, err := s.tasks.Task(r.Context(), id)
	if err != nil || t.UserID != userID {
		s.respondTaskLookup(w, id, userID, err)
		return
	}
	s.sched.RunNow(id)
	s.respondJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// handleDueNotifications is the polling fallback for clients without a
// websocket: it returns the caller's enabled tasks due at the current minute.
func (s *Server) handleDueNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	clock := s.now().In(s.loc).Format("15:04")
	tasks, err := s.tasks.TasksDueAt(r.Context(), userID, clock)
	if err != nil {
		s.log.Error("due tasks", logx.Int64("user_id", userID), logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	s.respondJSON(w, http.StatusOK, toTaskList(tasks))
}

func (s *Server) respondTaskLookup(w http.ResponseWriter, id, userID int64, err error) {
	switch {
	case err == nil:
		// Owned by someone else; indistinguishable from missing.
		s.respondError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, store.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "task not found")
	default:
		s.log.Error("load task", logx.Int64("task_id", id), logx.Int64("user_id", userID), logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
	}
}

func pathID(w http.ResponseWriter, s *Server, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}
