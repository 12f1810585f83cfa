package syncclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"couple-notes-backend/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
)

// Outbox entry kinds
const (
	KindNoteSave     = "note_save"
	KindNotePatch    = "note_patch"
	KindNoteDelete   = "note_delete"
	KindTaskCreate   = "task_create"
	KindTasksReplace = "tasks_replace"
)

const (
	defaultBaseBackoff = time.Second
	defaultMaxBackoff  = 5 * time.Minute
)

// Sender performs the remote side of queued mutations
type Sender interface {
	SaveNote(ctx context.Context, n *models.Note) error
	PatchNote(ctx context.Context, patch *models.NotePatch) error
	DeleteNote(ctx context.Context, id, profileID string) error
	CreateTask(ctx context.Context, t *models.Task) error
	ReplaceTasks(ctx context.Context, profileID string, tasks []models.Task) error
}

// Entry is one queued remote mutation
type Entry struct {
	ID            int64
	Kind          string
	Ref           string
	Payload       json.RawMessage
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}

type noteRef struct {
	ID        string `json:"id"`
	ProfileID string `json:"profileId"`
}

type taskList struct {
	ProfileID string        `json:"profileId"`
	Tasks     []models.Task `json:"tasks"`
}

// OutboxOptions tunes retry behaviour. Zero values use the defaults.
type OutboxOptions struct {
	Logger      zerolog.Logger
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Now         func() time.Time
}

// Outbox stores remote mutations in the cache and replays them in order
type Outbox struct {
	cache  *Cache
	sender Sender
	log    zerolog.Logger
	base   time.Duration
	max    time.Duration
	now    func() time.Time

	kick chan struct{}
	mu   sync.Mutex
}

// NewOutbox creates an outbox backed by cache that replays through sender
func NewOutbox(cache *Cache, sender Sender, opts OutboxOptions) *Outbox {
	o := &Outbox{
		cache:  cache,
		sender: sender,
		log:    opts.Logger,
		base:   opts.BaseBackoff,
		max:    opts.MaxBackoff,
		now:    opts.Now,
		kick:   make(chan struct{}, 1),
	}
	if o.base <= 0 {
		o.base = defaultBaseBackoff
	}
	if o.max <= 0 {
		o.max = defaultMaxBackoff
	}
	if o.max < o.base {
		o.max = o.base
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Backoff returns the delay before retry number attempts (1-based).
// The delay doubles from base and never exceeds max.
func Backoff(base, max time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Enqueue stores a mutation and wakes the worker
func (o *Outbox) Enqueue(ctx context.Context, kind, ref string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	now := o.now().UnixMilli()
	_, err = o.cache.db.ExecContext(ctx, `
		INSERT INTO outbox (kind, ref, payload, attempts, next_attempt_at, created_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		kind, ref, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}

	select {
	case o.kick <- struct{}{}:
	default:
	}
	return nil
}

func scanEntry(row sq.RowScanner) (*Entry, error) {
	var e Entry
	var payload string
	var next, created int64
	if err := row.Scan(&e.ID, &e.Kind, &e.Ref, &payload, &e.Attempts, &next, &e.LastError, &created); err != nil {
		return nil, err
	}
	e.Payload = json.RawMessage(payload)
	e.NextAttemptAt = time.UnixMilli(next)
	e.CreatedAt = time.UnixMilli(created)
	return &e, nil
}

var entryColumns = []string{"id", "kind", "ref", "payload", "attempts", "next_attempt_at", "last_error", "created_at"}

// Pending lists every queued entry, oldest first
func (o *Outbox) Pending(ctx context.Context) ([]Entry, error) {
	query, args, err := sqlite.Select(entryColumns...).From("outbox").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := o.cache.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// PendingDeletes returns the note ids that still have a queued delete
func (o *Outbox) PendingDeletes(ctx context.Context) (map[string]struct{}, error) {
	return pendingDeletes(ctx, o.cache.db)
}

func pendingDeletes(ctx context.Context, q queryer) (map[string]struct{}, error) {
	query, args, err := sqlite.Select("ref").
		From("outbox").
		Where(sq.Eq{"kind": KindNoteDelete}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletes: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending delete: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// HasPending reports whether any entry of the given kinds is still queued
func (o *Outbox) HasPending(ctx context.Context, kinds ...string) (bool, error) {
	query, args, err := sqlite.Select("COUNT(*)").
		From("outbox").
		Where(sq.Eq{"kind": kinds}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	var n int
	if err := o.cache.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	return n > 0, nil
}

func (o *Outbox) oldest(ctx context.Context) (*Entry, error) {
	query, args, err := sqlite.Select(entryColumns...).From("outbox").OrderBy("id").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	e, err := scanEntry(o.cache.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	return e, nil
}

func (o *Outbox) remove(ctx context.Context, id int64) error {
	if _, err := o.cache.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove outbox entry: %w", err)
	}
	return nil
}

func (o *Outbox) reschedule(ctx context.Context, e *Entry, cause error) error {
	attempts := e.Attempts + 1
	next := o.now().Add(Backoff(o.base, o.max, attempts))
	_, err := o.cache.db.ExecContext(ctx, `
		UPDATE outbox SET attempts = ?, next_attempt_at = ?, last_error = ? WHERE id = ?`,
		attempts, next.UnixMilli(), cause.Error(), e.ID)
	if err != nil {
		return fmt.Errorf("failed to reschedule outbox entry: %w", err)
	}
	return nil
}

func (o *Outbox) send(ctx context.Context, e *Entry) error {
	switch e.Kind {
	case KindNoteSave:
		var n models.Note
		if err := json.Unmarshal(e.Payload, &n); err != nil {
			return fmt.Errorf("failed to decode note: %w", err)
		}
		return o.sender.SaveNote(ctx, &n)
	case KindNotePatch:
		var patch models.NotePatch
		if err := json.Unmarshal(e.Payload, &patch); err != nil {
			return fmt.Errorf("failed to decode note patch: %w", err)
		}
		return o.sender.PatchNote(ctx, &patch)
	case KindNoteDelete:
		var ref noteRef
		if err := json.Unmarshal(e.Payload, &ref); err != nil {
			return fmt.Errorf("failed to decode note ref: %w", err)
		}
		err := o.sender.DeleteNote(ctx, ref.ID, ref.ProfileID)
		if IsNotFound(err) {
			return nil
		}
		return err
	case KindTaskCreate:
		var t models.Task
		if err := json.Unmarshal(e.Payload, &t); err != nil {
			return fmt.Errorf("failed to decode task: %w", err)
		}
		return o.sender.CreateTask(ctx, &t)
	case KindTasksReplace:
		var list taskList
		if err := json.Unmarshal(e.Payload, &list); err != nil {
			return fmt.Errorf("failed to decode task list: %w", err)
		}
		return o.sender.ReplaceTasks(ctx, list.ProfileID, list.Tasks)
	default:
		return fmt.Errorf("unknown outbox kind %q", e.Kind)
	}
}

// Drain replays due entries oldest first and returns how many were sent.
// A transient failure reschedules the entry with backoff and ends the pass
// so later entries never overtake it; that failure is returned. Entries
// rejected permanently are dropped.
func (o *Outbox) Drain(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		e, err := o.oldest(ctx)
		if err != nil {
			return sent, err
		}
		if e == nil || e.NextAttemptAt.After(o.now()) {
			return sent, nil
		}

		err = o.send(ctx, e)
		switch {
		case err == nil:
			if err := o.remove(ctx, e.ID); err != nil {
				return sent, err
			}
			sent++
		case IsTransient(err):
			if rerr := o.reschedule(ctx, e, err); rerr != nil {
				return sent, rerr
			}
			o.log.Debug().
				Err(err).
				Int64("entry_id", e.ID).
				Str("kind", e.Kind).
				Int("attempts", e.Attempts+1).
				Msg("Outbox entry rescheduled")
			return sent, fmt.Errorf("failed to send %s: %w", e.Kind, err)
		default:
			o.log.Warn().
				Err(err).
				Int64("entry_id", e.ID).
				Str("kind", e.Kind).
				Str("ref", e.Ref).
				Msg("Dropping rejected outbox entry")
			if err := o.remove(ctx, e.ID); err != nil {
				return sent, err
			}
		}
	}
}

// Run drains on every tick and whenever an entry is enqueued until ctx is done
func (o *Outbox) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-o.kick:
		}

		if sent, err := o.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			o.log.Debug().Err(err).Int("sent", sent).Msg("Outbox drain stopped")
		} else if sent > 0 {
			o.log.Debug().Int("sent", sent).Msg("Outbox drained")
		}
	}
}
