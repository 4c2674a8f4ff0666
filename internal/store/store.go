package store

import (
	"context"
	"errors"
	"time"

	"chime/internal/reminder"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrUsernameTaken is returned by CreateUser on a duplicate username.
var ErrUsernameTaken = errors.New("store: username taken")

// Config configures the sqlite database file.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// UserStore is the persistence API for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *reminder.User) error
	UserByName(ctx context.Context, username string) (*reminder.User, error)
	UserByID(ctx context.Context, id int64) (*reminder.User, error)
}

// TaskStore is the persistence API for reminder records.
//
// The scheduling core only ever reads (Task, EnabledTasks); all writes happen
// in the web CRUD layer.
type TaskStore interface {
	CreateTask(ctx context.Context, t *reminder.Task) error
	Task(ctx context.Context, id int64) (*reminder.Task, error)
	UpdateTask(ctx context.Context, t *reminder.Task) error
	DeleteTask(ctx context.Context, id, userID int64) error
	DeleteAllTasks(ctx context.Context, userID int64) (int64, error)
	TasksByUser(ctx context.Context, userID int64) ([]reminder.Task, error)
	EnabledTasks(ctx context.Context) ([]reminder.Task, error)
	TasksDueAt(ctx context.Context, userID int64, clock string) ([]reminder.Task, error)
}

// Store bundles both APIs plus lifecycle.
type Store interface {
	UserStore
	TaskStore
	Close() error
}
