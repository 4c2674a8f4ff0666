package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"chime/internal/reminder"
	"chime/internal/store"
	logx "chime/pkg/logx"
)

// Scheduler is the slice of the scheduling facade the handlers need.
type Scheduler interface {
	ScheduleTask(t *reminder.Task)
	CancelTask(taskID int64)
	RunNow(taskID int64)
}

// Hub serves the per-user websocket push channel.
type Hub interface {
	Serve(w http.ResponseWriter, r *http.Request, userID int64) error
}

// Server hosts the JSON API and the websocket endpoint.
type Server struct {
	users store.UserStore
	tasks store.TaskStore
	sched Scheduler
	hub   Hub

	auth AuthConfig
	loc  *time.Location
	now  func() time.Time

	validate *validator.Validate
	log      logx.Logger
}

func NewServer(users store.UserStore, tasks store.TaskStore, sched Scheduler, hub Hub,
	auth AuthConfig, loc *time.Location, log logx.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	if auth.TokenTTL == 0 {
		auth.TokenTTL = 24 * time.Hour
	}
	return &Server{
		users:    users,
		tasks:    tasks,
		sched:    sched,
		hub:      hub,
		auth:     auth,
		loc:      loc,
		now:      time.Now,
		validate: validator.New(),
		log:      log,
	}
}

// Routes builds the chi router for the whole API surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The websocket route stays outside this group: the request timeout
	// would tear down long-lived connections.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/tasks", s.handleListTasks)
			r.Post("/tasks", s.handleCreateTask)
			r.Put("/tasks/{id}", s.handleUpdateTask)
			r.Delete("/tasks/{id}", s.handleDeleteTask)
			r.Post("/tasks/clear", s.handleClearTasks)
			r.Post("/tasks/{id}/run", s.handleRunTask)
			r.Get("/notifications/due", s.handleDueNotifications)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/ws", s.handleWS)
	})

	return r
}
