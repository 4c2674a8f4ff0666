package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"chime/internal/notify"
	"chime/internal/reminder"
	"chime/internal/store"
	logx "chime/pkg/logx"
)

const lookupTimeout = 5 * time.Second

// TaskSource is the read-only slice of the task store the dispatcher needs at
// fire time. The live record is always consulted, never a cached copy.
type TaskSource interface {
	Task(ctx context.Context, id int64) (*reminder.Task, error)
}

// Decision is the outcome of the pure policy step, separated from the
// effectful publish so it can be unit-tested on its own.
type Decision struct {
	Fire   bool // record the fire and run side channels
	Notify bool // forward to the outward sink
	Reason string
}

// Decide applies the firing policy for a task on the given local day.
//
// forced marks an explicit manual trigger (run-now): it bypasses the fired
// marker, the date window, and notify_enabled, but still requires a live
// enabled task.
func Decide(t *reminder.Task, day time.Time, alreadyFired, forced bool) Decision {
	if t == nil || !t.Enabled {
		return Decision{Reason: "vanished or disabled"}
	}
	if forced {
		return Decision{Fire: true, Notify: true, Reason: "forced"}
	}
	if !t.InWindow(day) {
		return Decision{Reason: "outside date window"}
	}
	if alreadyFired {
		return Decision{Reason: "already fired"}
	}
	return Decision{Fire: true, Notify: t.NotifyEnabled, Reason: "due"}
}

// Dispatcher reacts to jobs firing: it resolves live task state, deduplicates
// via the fired-marker set, and emits the notification.
type Dispatcher struct {
	log   logx.Logger
	tasks TaskSource
	sink  notify.Sink
	sides []notify.SideChannel
	clock Clock
	loc   *time.Location

	mu    sync.Mutex
	fired map[int64]struct{}

	sideWG sync.WaitGroup
}

func NewDispatcher(tasks TaskSource, sink notify.Sink, sides []notify.SideChannel,
	clock Clock, loc *time.Location, log logx.Logger) *Dispatcher {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		log:   log,
		tasks: tasks,
		sink:  sink,
		sides: sides,
		clock: clock,
		loc:   loc,
		fired: map[int64]struct{}{},
	}
}

// OnFire handles a scheduled trigger for taskID.
func (d *Dispatcher) OnFire(taskID int64) { d.dispatch(taskID, false) }

// RunNow handles an explicit manual trigger for taskID. It does not touch the
// fired-marker set, so the regular daily fire still happens.
func (d *Dispatcher) RunNow(taskID int64) { d.dispatch(taskID, true) }

func (d *Dispatcher) dispatch(taskID int64, forced bool) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	// Live read, outside any lock: the record may have been edited, disabled
	// or deleted between arming and firing.
	t, err := d.tasks.Task(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.log.Debug("fired task no longer exists", logx.Int64("task", taskID))
		} else {
			d.log.Warn("task lookup failed at fire time", logx.Int64("task", taskID), logx.Err(err))
		}
		return
	}

	day := d.clock.Now().In(d.loc)

	d.mu.Lock()
	_, already := d.fired[taskID]
	dec := Decide(t, day, already, forced)
	if dec.Fire && !forced {
		d.fired[taskID] = struct{}{}
	}
	d.mu.Unlock()

	if !dec.Fire {
		d.log.Debug("fire suppressed", logx.Int64("task", taskID), logx.String("reason", dec.Reason))
		return
	}

	p := notify.Payload{TaskID: t.ID, Title: t.NotifyTitle(), Body: t.NotifyBody()}
	d.log.Info("reminder fired", logx.Int64("task", t.ID), logx.Int64("user", t.UserID),
		logx.Bool("notify", dec.Notify), logx.String("reason", dec.Reason))

	if dec.Notify {
		if err := d.sink.Publish(ctx, t.UserID, p); err != nil {
			d.log.Warn("notification publish failed", logx.Int64("task", t.ID), logx.Err(err))
		}
	}
	// Side channels run regardless of notify_enabled and never block or fail
	// the dispatch.
	d.announce(p)
}

func (d *Dispatcher) announce(p notify.Payload) {
	if len(d.sides) == 0 {
		return
	}
	d.sideWG.Add(1)
	go func() {
		defer d.sideWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, sc := range d.sides {
			if err := sc.Announce(ctx, p.Title, p.Body); err != nil {
				d.log.Warn("side channel failed", logx.String("channel", sc.Name()), logx.Err(err))
			}
		}
	}()
}

// ClearMarker restores fire eligibility for taskID. Called on disarm so an
// explicit rearm yields a fresh notification.
func (d *Dispatcher) ClearMarker(taskID int64) {
	d.mu.Lock()
	delete(d.fired, taskID)
	d.mu.Unlock()
}

// Rollover clears the whole fired-marker set; run at the local day boundary
// so the dedupe is once-per-day, not permanent.
func (d *Dispatcher) Rollover() int {
	d.mu.Lock()
	n := len(d.fired)
	d.fired = map[int64]struct{}{}
	d.mu.Unlock()
	return n
}

// HasFired reports whether taskID already produced a notification in the
// current armed period.
func (d *Dispatcher) HasFired(taskID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.fired[taskID]
	return ok
}
