package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	logx "chime/pkg/logx"
)

// FireFunc is invoked (on a timer goroutine, outside the registry lock) each
// time a job's daily trigger comes due.
type FireFunc func(taskID int64)

// Registry is the single source of truth for "what is currently armed".
// At most one job exists per task id; arming an id that already has a job
// cancels and replaces it.
type Registry struct {
	clock Clock
	loc   *time.Location
	log   logx.Logger

	mu   sync.Mutex
	jobs map[int64]*job
	seq  uint64
}

type job struct {
	hour, minute int
	// gen invalidates timer callbacks that were queued before this job
	// replaced an older one for the same id.
	gen   uint64
	timer Timer
	fire  FireFunc
}

func NewRegistry(clock Clock, loc *time.Location, log logx.Logger) *Registry {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{clock: clock, loc: loc, log: log, jobs: map[int64]*job{}}
}

// Arm registers a recurring daily trigger for taskID at hour:minute local
// time. An existing job for the same id is cancelled first (idempotent
// re-arm).
func (r *Registry) Arm(taskID int64, hour, minute int, fire FireFunc) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute %d out of range", minute)
	}
	if fire == nil {
		return errors.New("fire func required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.jobs[taskID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	r.seq++
	j := &job{hour: hour, minute: minute, gen: r.seq, fire: fire}
	r.jobs[taskID] = j
	next := r.scheduleLocked(taskID, j)
	r.log.Debug("job armed", logx.Int64("task", taskID),
		logx.String("at", fmt.Sprintf("%02d:%02d", hour, minute)), logx.Time("next", next))
	return nil
}

// Disarm cancels and removes the job if present. Calling it for an unknown id
// is a no-op, not an error.
func (r *Registry) Disarm(taskID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[taskID]
	if !ok {
		return false
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	delete(r.jobs, taskID)
	r.log.Debug("job disarmed", logx.Int64("task", taskID))
	return true
}

func (r *Registry) IsArmed(taskID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[taskID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Stop cancels every armed job.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, j := range r.jobs {
		if j.timer != nil {
			j.timer.Stop()
		}
		delete(r.jobs, id)
	}
}

// scheduleLocked computes the next fire instant and parks a timer for it.
// Call with r.mu held.
func (r *Registry) scheduleLocked(taskID int64, j *job) time.Time {
	now := r.clock.Now().In(r.loc)
	next := nextFire(now, j.hour, j.minute)
	gen := j.gen
	j.timer = r.clock.AfterFunc(next.Sub(now), func() { r.onTimer(taskID, gen) })
	return next
}

func (r *Registry) onTimer(taskID int64, gen uint64) {
	r.mu.Lock()
	j, ok := r.jobs[taskID]
	if !ok || j.gen != gen {
		// Disarmed or replaced after this tick was queued; stale callback.
		r.mu.Unlock()
		return
	}
	// Reschedule for the next day before firing so a slow handler never
	// delays the trigger cadence.
	r.scheduleLocked(taskID, j)
	fire := j.fire
	r.mu.Unlock()

	fire(taskID)
}

// nextFire returns the next instant at which the wall clock in now's location
// reads hour:minute. A trigger landing exactly on now schedules for tomorrow.
func nextFire(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		d := now.AddDate(0, 0, 1)
		// Rebuild from components so a DST shift cannot skew the clock reading.
		next = time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, now.Location())
	}
	return next
}
