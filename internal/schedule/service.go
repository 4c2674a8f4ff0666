package schedule

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chime/internal/notify"
	"chime/internal/reminder"
	logx "chime/pkg/logx"
)

// Config controls the scheduling facade.
type Config struct {
	Timezone string // IANA TZ, e.g. "Asia/Kolkata"; empty means system local
}

// TaskReader is the store surface the facade and dispatcher consume. The core
// only ever reads; all writes happen in the web CRUD layer.
type TaskReader interface {
	TaskSource
	EnabledTasks(ctx context.Context) ([]reminder.Task, error)
}

// Service is the scheduling facade: the only entry point the surrounding
// application uses. Its operations are total from the caller's perspective:
// they log and no-op on malformed input instead of failing, because a
// scheduling hiccup must never block the CRUD operation that triggered it.
// Calling anything but Start before Start is a programming-contract violation
// and panics.
type Service struct {
	cfg   Config
	log   logx.Logger
	clock Clock
	tasks TaskReader
	sink  notify.Sink
	sides []notify.SideChannel

	mu      sync.Mutex
	started bool
	loc     *time.Location
	reg     *Registry
	disp    *Dispatcher
	cron    *cron.Cron
}

func New(cfg Config, tasks TaskReader, sink notify.Sink, sides []notify.SideChannel,
	clock Clock, log logx.Logger) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log, clock: clock, tasks: tasks, sink: sink, sides: sides}
}

// Start is idempotent: the housekeeping cron and the registry come up exactly
// once per process; every call (re)builds the armed set from the store.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		loc := s.loadLocation()
		s.loc = loc
		s.reg = NewRegistry(s.clock, loc, s.log.With(logx.String("comp", "registry")))
		s.disp = NewDispatcher(s.tasks, s.sink, s.sides, s.clock, loc,
			s.log.With(logx.String("comp", "dispatcher")))

		// Housekeeping runs on cron in the scheduler's zone: the fired-marker
		// set rolls over at the local day boundary so dedupe is once-per-day.
		s.cron = cron.New(cron.WithLocation(loc))
		_, _ = s.cron.AddFunc("0 0 * * *", s.rollover)
		s.cron.Start()

		s.started = true
		s.log.Info("scheduler started", logx.String("tz", loc.String()))
	}
	s.mu.Unlock()

	s.LoadAll(ctx)
}

// Stop cancels every armed job and the housekeeping cron.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c := s.cron
	reg := s.reg
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	reg.Stop()
	s.log.Info("scheduler stopped")
}

// LoadAll rebuilds the armed set from all enabled tasks in the store. Tasks
// without a syntactically valid HH:MM are skipped, never fatal.
func (s *Service) LoadAll(ctx context.Context) {
	s.ensureStarted("LoadAll")

	tasks, err := s.tasks.EnabledTasks(ctx)
	if err != nil {
		s.log.Error("loading tasks from store failed", logx.Err(err))
		return
	}

	armed := 0
	for i := range tasks {
		t := &tasks[i]
		if strings.TrimSpace(t.Clock) == "" {
			// Event-trigger-only task; nothing to arm.
			s.log.Debug("task has no clock, not arming", logx.Int64("task", t.ID))
			continue
		}
		h, m, err := reminder.ParseClock(t.Clock)
		if err != nil {
			s.log.Warn("skipping task with malformed time", logx.Int64("task", t.ID),
				logx.String("clock", t.Clock), logx.Err(err))
			continue
		}
		if err := s.reg.Arm(t.ID, h, m, s.disp.OnFire); err != nil {
			s.log.Warn("arming failed", logx.Int64("task", t.ID), logx.Err(err))
			continue
		}
		armed++
	}
	s.log.Info("schedule rebuilt from store", logx.Int("armed", armed), logx.Int("enabled", len(tasks)))
}

// ScheduleTask arms (or re-arms) a task. Malformed times are logged and
// skipped; the task stays unarmed and the caller's CRUD operation proceeds.
func (s *Service) ScheduleTask(t *reminder.Task) {
	s.ensureStarted("ScheduleTask")
	if t == nil {
		return
	}
	if !t.Enabled {
		// Disabled tasks are never armed; clear any stale job.
		s.reg.Disarm(t.ID)
		s.disp.ClearMarker(t.ID)
		return
	}
	h, m, err := reminder.ParseClock(t.Clock)
	if err != nil {
		s.log.Warn("not arming task, malformed trigger", logx.Int64("task", t.ID),
			logx.String("clock", t.Clock), logx.Err(err))
		return
	}
	if err := s.reg.Arm(t.ID, h, m, s.disp.OnFire); err != nil {
		s.log.Warn("arming failed", logx.Int64("task", t.ID), logx.Err(err))
		return
	}
	s.log.Debug("task scheduled", logx.Int64("task", t.ID), logx.String("clock", t.Clock))
}

// CancelTask disarms unconditionally and clears the fired marker so the next
// arm allows a fresh notification. Safe to call for ids with no armed job.
func (s *Service) CancelTask(taskID int64) {
	s.ensureStarted("CancelTask")
	s.reg.Disarm(taskID)
	s.disp.ClearMarker(taskID)
}

// RunNow fires the dispatch path out of band; an explicit manual trigger
// always notifies.
func (s *Service) RunNow(taskID int64) {
	s.ensureStarted("RunNow")
	s.disp.RunNow(taskID)
}

// IsArmed reports whether taskID currently has an armed job.
func (s *Service) IsArmed(taskID int64) bool {
	s.ensureStarted("IsArmed")
	return s.reg.IsArmed(taskID)
}

// Count returns the number of armed jobs (startup diagnostics and tests).
func (s *Service) Count() int {
	s.ensureStarted("Count")
	return s.reg.Count()
}

func (s *Service) rollover() {
	s.mu.Lock()
	disp := s.disp
	reg := s.reg
	s.mu.Unlock()
	if disp == nil {
		return
	}
	n := disp.Rollover()
	s.log.Debug("fired markers rolled over", logx.Int("cleared", n), logx.Int("armed", reg.Count()))
}

func (s *Service) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) ensureStarted(op string) {
	s.mu.Lock()
	ok := s.started
	s.mu.Unlock()
	if !ok {
		panic("schedule: " + op + " called before Start")
	}
}
