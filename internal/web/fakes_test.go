package web

import (
	"context"
	"net/http"
	"sync"

	"chime/internal/reminder"
	"chime/internal/store"
)

// memStore is an in-memory store.UserStore + store.TaskStore for handler tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*reminder.User
	tasks  map[int64]*reminder.Task
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]*reminder.User),
		tasks: make(map[int64]*reminder.Task),
	}
}

func (m *memStore) CreateUser(_ context.Context, u *reminder.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.users {
		if have.Username == u.Username {
			return store.ErrUsernameTaken
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) UserByName(_ context.Context, username string) (*reminder.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id int64) (*reminder.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateTask(_ context.Context, t *reminder.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) Task(_ context.Context, id int64) (*reminder.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpdateTask(_ context.Context, t *reminder.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memStore) DeleteAllTasks(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tasks {
		if t.UserID == userID {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) TasksByUser(_ context.Context, userID int64) ([]reminder.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reminder.Task
	for _, t := range m.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) EnabledTasks(_ context.Context) ([]reminder.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reminder.Task
	for _, t := range m.tasks {
		if t.Enabled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) TasksDueAt(_ context.Context, userID int64, clock string) ([]reminder.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reminder.Task
	for _, t := range m.tasks {
		if t.UserID == userID && t.Enabled && t.Clock == clock {
			out = append(out, *t)
		}
	}
	return out, nil
}

// fakeScheduler records facade calls.
type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []int64
	cancelled []int64
	ran       []int64
}

func (f *fakeScheduler) ScheduleTask(t *reminder.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t != nil {
		f.scheduled = append(f.scheduled, t.ID)
	}
}

func (f *fakeScheduler) CancelTask(taskID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, taskID)
}

func (f *fakeScheduler) RunNow(taskID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, taskID)
}

type fakeHub struct {
	served []int64
}

func (f *fakeHub) Serve(_ http.ResponseWriter, _ *http.Request, userID int64) error {
	f.served = append(f.served, userID)
	return nil
}
