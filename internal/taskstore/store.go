// Package taskstore persists task records in a SQLite database so the task
// registry survives daemon restarts. The in-memory machine stays
// authoritative for the session; this store is a durable mirror.
package taskstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tomo-sh/tomo/internal/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	state            TEXT NOT NULL,
	required_minutes INTEGER NOT NULL DEFAULT 0,
	elapsed_minutes  INTEGER NOT NULL DEFAULT 0,
	project          TEXT NOT NULL DEFAULT '',
	tags             TEXT NOT NULL DEFAULT '[]',
	created_at       TEXT NOT NULL,
	started_at       TEXT,
	paused_at        TEXT,
	completed_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
`

// Store is a SQLite-backed task store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, applying the schema. The
// parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := "file:" + url.PathEscape(path) +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent callers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces the task record.
func (s *Store) Put(t *task.Task) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, title, state, required_minutes, elapsed_minutes,
			project, tags, created_at, started_at, paused_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			state = excluded.state,
			required_minutes = excluded.required_minutes,
			elapsed_minutes = excluded.elapsed_minutes,
			project = excluded.project,
			tags = excluded.tags,
			created_at = excluded.created_at,
			started_at = excluded.started_at,
			paused_at = excluded.paused_at,
			completed_at = excluded.completed_at`,
		t.ID, t.Title, string(t.State), t.RequiredMinutes, t.ElapsedMinutes,
		t.Project, string(tags), encodeTime(t.CreatedAt),
		encodeTimePtr(t.StartedAt), encodeTimePtr(t.PausedAt), encodeTimePtr(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("put task %s: %w", t.ID, err)
	}
	return nil
}

// Delete removes the task record. Deleting an absent id is not an error.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// LoadAll returns every stored task ordered by creation time.
func (s *Store) LoadAll() ([]*task.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, title, state, required_minutes, elapsed_minutes,
			project, tags, created_at, started_at, paused_at, completed_at
		FROM tasks
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(rows *sql.Rows) (*task.Task, error) {
	var (
		t                                task.Task
		state, tags, createdAt           string
		startedAt, pausedAt, completedAt sql.NullString
	)
	err := rows.Scan(&t.ID, &t.Title, &state, &t.RequiredMinutes, &t.ElapsedMinutes,
		&t.Project, &tags, &createdAt, &startedAt, &pausedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.State = task.State(state)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for task %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at for task %s: %w", t.ID, err)
	}
	if t.StartedAt, err = decodeTimePtr(startedAt); err != nil {
		return nil, fmt.Errorf("decode started_at for task %s: %w", t.ID, err)
	}
	if t.PausedAt, err = decodeTimePtr(pausedAt); err != nil {
		return nil, fmt.Errorf("decode paused_at for task %s: %w", t.ID, err)
	}
	if t.CompletedAt, err = decodeTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("decode completed_at for task %s: %w", t.ID, err)
	}
	return &t, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
