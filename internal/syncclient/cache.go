package syncclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"couple-notes-backend/internal/models"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNoSession is returned when no profile has been created or logged in on this device
var ErrNoSession = errors.New("no profile on this device, create one or log in first")

const cacheSchema = `
CREATE TABLE IF NOT EXISTS session (
    slot       INTEGER PRIMARY KEY CHECK (slot = 1),
    profile    TEXT NOT NULL,
    token      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notes (
    id         TEXT PRIMARY KEY,
    profile_id TEXT NOT NULL,
    timestamp  INTEGER NOT NULL,
    data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_profile ON notes(profile_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS tasks (
    id         TEXT PRIMARY KEY,
    profile_id TEXT NOT NULL,
    position   INTEGER NOT NULL,
    data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_profile ON tasks(profile_id, position);

CREATE TABLE IF NOT EXISTS outbox (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    kind            TEXT NOT NULL,
    ref             TEXT NOT NULL DEFAULT '',
    payload         TEXT NOT NULL,
    attempts        INTEGER NOT NULL DEFAULT 0,
    next_attempt_at INTEGER NOT NULL,
    last_error      TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL
);
`

var sqlite = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Cache is the on-device store for the session, notes, tasks and the outbox
type Cache struct {
	db   *sql.DB
	path string
}

// OpenCache opens or creates the cache database at path
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	dsn := "file:" + filepath.ToSlash(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	// One connection keeps writers from the outbox worker, the watcher
	// and background refreshes strictly serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Path returns the database file path
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database
func (c *Cache) Close() error {
	return c.db.Close()
}

// SaveSession stores the current profile and its bearer token
func (c *Cache) SaveSession(ctx context.Context, p *models.Profile, token string) error {
	saved := *p
	saved.Token = ""
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO session (slot, profile, token) VALUES (1, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET profile = excluded.profile, token = excluded.token`,
		string(data), token)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Session returns the current profile and token, or ErrNoSession
func (c *Cache) Session(ctx context.Context) (*models.Profile, string, error) {
	var data, token string
	err := c.db.QueryRowContext(ctx, `SELECT profile, token FROM session WHERE slot = 1`).Scan(&data, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNoSession
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read session: %w", err)
	}

	var p models.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, "", fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, token, nil
}

// ClearSession forgets the current profile and drops its cached data
func (c *Cache) ClearSession(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"session", "notes", "tasks", "outbox"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func scanNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		var n models.Note
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return nil, fmt.Errorf("failed to decode note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Notes returns the cached notes of a profile, newest first
func (c *Cache) Notes(ctx context.Context, profileID string) ([]models.Note, error) {
	return listNotes(ctx, c.db, profileID)
}

func listNotes(ctx context.Context, q queryer, profileID string) ([]models.Note, error) {
	query, args, err := sqlite.Select("data").
		From("notes").
		Where(sq.Eq{"profile_id": profileID}).
		OrderBy("timestamp DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached notes: %w", err)
	}
	return scanNotes(rows)
}

// Note returns one cached note
func (c *Cache) Note(ctx context.Context, id string) (*models.Note, error) {
	var data string
	err := c.db.QueryRowContext(ctx, `SELECT data FROM notes WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached note: %w", err)
	}

	var n models.Note
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		return nil, fmt.Errorf("failed to decode note: %w", err)
	}
	return &n, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func putNote(ctx context.Context, e execer, n models.Note) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode note: %w", err)
	}
	_, err = e.ExecContext(ctx, `
		INSERT INTO notes (id, profile_id, timestamp, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			profile_id = excluded.profile_id,
			timestamp = excluded.timestamp,
			data = excluded.data`,
		n.ID, n.ProfileID, n.Timestamp, string(data))
	if err != nil {
		return fmt.Errorf("failed to cache note: %w", err)
	}
	return nil
}

// PutNote inserts or replaces a cached note
func (c *Cache) PutNote(ctx context.Context, n models.Note) error {
	return putNote(ctx, c.db, n)
}

// DeleteNote removes a cached note
func (c *Cache) DeleteNote(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cached note: %w", err)
	}
	return nil
}

// ReplaceNotes swaps the cached notes of a profile for notes
func (c *Cache) ReplaceNotes(ctx context.Context, profileID string, notes []models.Note) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceNotes(ctx, tx, profileID, notes); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceNotes(ctx context.Context, tx *sql.Tx, profileID string, notes []models.Note) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("failed to clear cached notes: %w", err)
	}
	for _, n := range notes {
		if err := putNote(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileNotes merges remote into the cached notes of a profile and stores the result.
// Notes with a queued delete are left out. The read and the write share one transaction.
func (c *Cache) ReconcileNotes(ctx context.Context, profileID string, remote []models.Note) ([]models.Note, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	local, err := listNotes(ctx, tx, profileID)
	if err != nil {
		return nil, err
	}
	deleted, err := pendingDeletes(ctx, tx)
	if err != nil {
		return nil, err
	}

	merged := dropIDs(MergeNotes(remote, local), deleted)
	if err := replaceNotes(ctx, tx, profileID, merged); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit notes: %w", err)
	}
	return merged, nil
}

// Tasks returns the cached task list of a profile in order
func (c *Cache) Tasks(ctx context.Context, profileID string) ([]models.Task, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM tasks WHERE profile_id = ? ORDER BY position`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		var t models.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ReplaceTasks swaps the cached task list of a profile, keeping slice order
func (c *Cache) ReplaceTasks(ctx context.Context, profileID string, tasks []models.Task) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("failed to clear cached tasks: %w", err)
	}

	if len(tasks) > 0 {
		insert := sqlite.Insert("tasks").Columns("id", "profile_id", "position", "data")
		for i, t := range tasks {
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("failed to encode task: %w", err)
			}
			insert = insert.Values(t.ID, profileID, i, string(data))
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to cache tasks: %w", err)
		}
	}
	return tx.Commit()
}

// AddTask appends a task to the cached list
func (c *Cache) AddTask(ctx context.Context, t models.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO tasks (id, profile_id, position, data)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE profile_id = ?), ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
		t.ID, t.ProfileID, t.ProfileID, string(data))
	if err != nil {
		return fmt.Errorf("failed to cache task: %w", err)
	}
	return nil
}
