package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chime/internal/reminder"
	logx "chime/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const dateLayout = "2006-01-02"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the sqlite database and runs migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- users ----

func (s *sqliteStore) CreateUser(ctx context.Context, u *reminder.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(username, password_hash, created_at) VALUES(?,?,?)`,
		u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUsernameTaken
		}
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (s *sqliteStore) UserByName(ctx context.Context, username string) (*reminder.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username))
}

func (s *sqliteStore) UserByID(ctx context.Context, id int64) (*reminder.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *sqliteStore) scanUser(row *sql.Row) (*reminder.User, error) {
	var u reminder.User
	var created string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &u, nil
}

// ---- tasks ----

const taskCols = `id, user_id, title, clock, action, notification_type, channels,
 event_type, event_sender, event_contact, event_keyword,
 window_start, window_end, repeat_rule, enabled, notify_enabled, created_at`

func (s *sqliteStore) CreateTask(ctx context.Context, t *reminder.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(user_id, title, clock, action, notification_type, channels,
		  event_type, event_sender, event_contact, event_keyword,
		  window_start, window_end, repeat_rule, enabled, notify_enabled, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.UserID, t.Title, nullStr(t.Clock), nullStr(t.Action), t.NotificationType, nullStr(t.Channels),
		nullStr(t.EventType), nullStr(t.EventSender), nullStr(t.EventContact), nullStr(t.EventKeyword),
		nullDate(t.WindowStart), nullDate(t.WindowEnd), t.RepeatRule, t.Enabled, t.NotifyEnabled,
		t.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (s *sqliteStore) Task(ctx context.Context, id int64) (*reminder.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTaskRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *sqliteStore) UpdateTask(ctx context.Context, t *reminder.Task) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title=?, clock=?, action=?, notification_type=?, channels=?,
		  event_type=?, event_sender=?, event_contact=?, event_keyword=?,
		  window_start=?, window_end=?, repeat_rule=?, enabled=?, notify_enabled=?
		 WHERE id=? AND user_id=?`,
		t.Title, nullStr(t.Clock), nullStr(t.Action), t.NotificationType, nullStr(t.Channels),
		nullStr(t.EventType), nullStr(t.EventSender), nullStr(t.EventContact), nullStr(t.EventKeyword),
		nullDate(t.WindowStart), nullDate(t.WindowEnd), t.RepeatRule, t.Enabled, t.NotifyEnabled,
		t.ID, t.UserID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (s *sqliteStore) DeleteTask(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (s *sqliteStore) DeleteAllTasks(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id=?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) TasksByUser(ctx context.Context, userID int64) ([]reminder.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskCols+` FROM tasks WHERE user_id=? ORDER BY id`, userID)
}

func (s *sqliteStore) EnabledTasks(ctx context.Context) ([]reminder.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskCols+` FROM tasks WHERE enabled=1 ORDER BY id`)
}

func (s *sqliteStore) TasksDueAt(ctx context.Context, userID int64, clock string) ([]reminder.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE user_id=? AND clock=? AND enabled=1 ORDER BY id`, userID, clock)
}

func (s *sqliteStore) queryTasks(ctx context.Context, query string, args ...any) ([]reminder.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminder.Task
	for rows.Next() {
		t, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTaskRow(scan func(dest ...any) error) (*reminder.Task, error) {
	var t reminder.Task
	var clock, action, channels, evType, evSender, evContact, evKeyword sql.NullString
	var winStart, winEnd sql.NullString
	var created string
	err := scan(
		&t.ID, &t.UserID, &t.Title, &clock, &action, &t.NotificationType, &channels,
		&evType, &evSender, &evContact, &evKeyword,
		&winStart, &winEnd, &t.RepeatRule, &t.Enabled, &t.NotifyEnabled, &created,
	)
	if err != nil {
		return nil, err
	}
	t.Clock = clock.String
	t.Action = action.String
	t.Channels = channels.String
	t.EventType = evType.String
	t.EventSender = evSender.String
	t.EventContact = evContact.String
	t.EventKeyword = evKeyword.String
	if winStart.Valid {
		t.WindowStart, _ = time.Parse(dateLayout, winStart.String)
	}
	if winEnd.Valid {
		t.WindowEnd, _ = time.Parse(dateLayout, winEnd.String)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &t, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullDate(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v.Format(dateLayout)
}
