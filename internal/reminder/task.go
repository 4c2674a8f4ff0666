package reminder

import (
	"strings"
	"time"
)

// Notification types a task can carry. The type picks the browser-side
// presentation; it does not change how the core dispatches.
const (
	NotifyAlarm  = "alarm"
	NotifyPush   = "push"
	NotifyBanner = "banner"
)

// Repeat rules accepted by the data model. Only daily-at-HH:MM semantics are
// armed; the other values are stored verbatim as placeholders.
const (
	RepeatOneTime = "one-time"
	RepeatDaily   = "daily"
	RepeatWeekly  = "weekly"
	RepeatCustom  = "custom"
)

// Event trigger kinds (stored-but-inert; nothing polls these).
const (
	EventEmail    = "email"
	EventWhatsApp = "whatsapp"
)

// Fallbacks used when a task is created or fired with missing fields.
const (
	DefaultTitle = "Reminder"
	DefaultBody  = "You have a task!"
	DefaultClock = "23:59"
)

// User owns tasks and is the routing key for notification delivery.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Task is the persisted reminder record.
//
// Clock holds a "HH:MM" 24h wall-clock string; EventType and the Event*
// fields describe an email/whatsapp trigger instead. A task may carry both,
// but only the clock path is dispatched.
type Task struct {
	ID     int64
	UserID int64

	Title  string
	Clock  string // "HH:MM", empty for event-only tasks
	Action string

	NotificationType string
	Channels         string // CSV, e.g. "alarm,push"

	EventType    string
	EventSender  string
	EventContact string
	EventKeyword string

	// Optional inclusive date window restricting which calendar days the
	// trigger is active. Zero time means unbounded on that side.
	WindowStart time.Time
	WindowEnd   time.Time

	RepeatRule string

	Enabled       bool
	NotifyEnabled bool

	CreatedAt time.Time
}

// ChannelList returns the CSV channels column as a slice.
func (t *Task) ChannelList() []string {
	if strings.TrimSpace(t.Channels) == "" {
		return nil
	}
	parts := strings.Split(t.Channels, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetChannels stores the given channels as CSV.
func (t *Task) SetChannels(channels []string) {
	out := make([]string, 0, len(channels))
	for _, c := range channels {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	t.Channels = strings.Join(out, ",")
}

// InWindow reports whether day falls inside the task's date window.
// Only the calendar date of day is considered.
func (t *Task) InWindow(day time.Time) bool {
	d := dateOnly(day)
	if !t.WindowStart.IsZero() && d.Before(dateOnly(t.WindowStart)) {
		return false
	}
	if !t.WindowEnd.IsZero() && d.After(dateOnly(t.WindowEnd)) {
		return false
	}
	return true
}

// NotifyTitle returns the title to present, falling back to DefaultTitle.
func (t *Task) NotifyTitle() string {
	if s := strings.TrimSpace(t.Title); s != "" {
		return s
	}
	return DefaultTitle
}

// NotifyBody returns the body to present, falling back to DefaultBody.
func (t *Task) NotifyBody() string {
	if s := strings.TrimSpace(t.Action); s != "" {
		return s
	}
	return DefaultBody
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
