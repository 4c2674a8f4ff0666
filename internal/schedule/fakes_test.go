package schedule

import (
	"context"
	"sync"

	"chime/internal/notify"
	"chime/internal/reminder"
	"chime/internal/store"
)

// memTasks is an in-memory TaskReader.
type memTasks struct {
	mu    sync.Mutex
	tasks map[int64]reminder.Task
}

func newMemTasks(tasks ...reminder.Task) *memTasks {
	m := &memTasks{tasks: map[int64]reminder.Task{}}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *memTasks) Task(_ context.Context, id int64) (*reminder.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := t
	return &cp, nil
}

func (m *memTasks) EnabledTasks(context.Context) ([]reminder.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reminder.Task
	for _, t := range m.tasks {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) put(t reminder.Task) {
	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()
}

func (m *memTasks) remove(id int64) {
	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()
}

// recordSink records outward publishes.
type recordSink struct {
	mu   sync.Mutex
	pubs []notify.Delivery
	err  error
}

func (s *recordSink) Publish(_ context.Context, userID int64, p notify.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubs = append(s.pubs, notify.Delivery{
		RoutingKey: notify.RoutingKey(userID), UserID: userID, Payload: p,
	})
	return s.err
}

func (s *recordSink) published() []notify.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Delivery(nil), s.pubs...)
}

// recordSide records side-channel announcements.
type recordSide struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *recordSide) Name() string { return "record" }

func (s *recordSide) Announce(_ context.Context, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, title+"|"+body)
	return s.err
}

func (s *recordSide) announced() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
