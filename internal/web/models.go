package web

import (
	"strings"
	"time"

	"chime/internal/reminder"
)

const dateLayout = "2006-01-02"

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// taskRequest carries both create and edit payloads. Most fields are
// optional; missing title/time/type are filled from the action text.
type taskRequest struct {
	Title  string `json:"title" validate:"max=200"`
	Time   string `json:"time" validate:"omitempty,len=5"`
	Action string `json:"action" validate:"max=1000"`

	NotificationType string   `json:"notification_type" validate:"omitempty,oneof=alarm push banner"`
	Channels         []string `json:"channels" validate:"dive,oneof=alarm push banner"`

	EventType    string `json:"event_type" validate:"omitempty,oneof=email whatsapp"`
	EventSender  string `json:"event_sender" validate:"max=200"`
	EventContact string `json:"event_contact" validate:"max=200"`
	EventKeyword string `json:"event_keyword" validate:"max=200"`

	WindowStart string `json:"window_start" validate:"omitempty,datetime=2006-01-02"`
	WindowEnd   string `json:"window_end" validate:"omitempty,datetime=2006-01-02"`

	RepeatRule string `json:"repeat_rule" validate:"omitempty,oneof=one-time daily weekly custom"`

	Enabled       *bool `json:"enabled"`
	NotifyEnabled *bool `json:"notify_enabled"`
}

type taskResponse struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Time   string `json:"time"`
	Action string `json:"action"`

	NotificationType string   `json:"notification_type"`
	Channels         []string `json:"channels"`

	EventType    string `json:"event_type,omitempty"`
	EventSender  string `json:"event_sender,omitempty"`
	EventContact string `json:"event_contact,omitempty"`
	EventKeyword string `json:"event_keyword,omitempty"`

	WindowStart string `json:"window_start,omitempty"`
	WindowEnd   string `json:"window_end,omitempty"`

	RepeatRule string `json:"repeat_rule"`

	Enabled       bool `json:"enabled"`
	NotifyEnabled bool `json:"notify_enabled"`

	CreatedAt time.Time `json:"created_at"`
}

// apply copies the request onto t, inferring missing presentation fields
// from the action text the way the trigger parser does.
func (r *taskRequest) apply(t *reminder.Task) {
	inferredType, inferredClock := reminder.Infer(r.Action)

	t.Title = strings.TrimSpace(r.Title)
	if t.Title == "" {
		t.Title = reminder.DefaultTitle
	}
	t.Action = strings.TrimSpace(r.Action)

	t.Clock = strings.TrimSpace(r.Time)
	if t.Clock == "" {
		t.Clock = inferredClock
	}
	if t.Clock == "" {
		t.Clock = reminder.DefaultClock
	}

	t.NotificationType = r.NotificationType
	if t.NotificationType == "" {
		t.NotificationType = inferredType
	}
	if len(r.Channels) > 0 {
		t.SetChannels(r.Channels)
	} else {
		t.Channels = t.NotificationType
	}

	t.EventType = r.EventType
	t.EventSender = strings.TrimSpace(r.EventSender)
	t.EventContact = strings.TrimSpace(r.EventContact)
	t.EventKeyword = strings.TrimSpace(r.EventKeyword)

	t.WindowStart = parseDate(r.WindowStart)
	t.WindowEnd = parseDate(r.WindowEnd)

	t.RepeatRule = r.RepeatRule
	if t.RepeatRule == "" {
		t.RepeatRule = reminder.RepeatDaily
	}

	t.Enabled = true
	if r.Enabled != nil {
		t.Enabled = *r.Enabled
	}
	t.NotifyEnabled = true
	if r.NotifyEnabled != nil {
		t.NotifyEnabled = *r.NotifyEnabled
	}
}

func toTaskResponse(t *reminder.Task) taskResponse {
	return taskResponse{
		ID:               t.ID,
		Title:            t.Title,
		Time:             t.Clock,
		Action:           t.Action,
		NotificationType: t.NotificationType,
		Channels:         t.ChannelList(),
		EventType:        t.EventType,
		EventSender:      t.EventSender,
		EventContact:     t.EventContact,
		EventKeyword:     t.EventKeyword,
		WindowStart:      formatDate(t.WindowStart),
		WindowEnd:        formatDate(t.WindowEnd),
		RepeatRule:       t.RepeatRule,
		Enabled:          t.Enabled,
		NotifyEnabled:    t.NotifyEnabled,
		CreatedAt:        t.CreatedAt,
	}
}

func toTaskList(tasks []reminder.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	return out
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return d
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
