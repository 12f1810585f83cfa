package syncclient

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"couple-notes-backend/internal/models"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSender records calls and returns queued errors per kind
type fakeSender struct {
	mu    sync.Mutex
	calls []string
	errs  map[string][]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{errs: make(map[string][]error)}
}

func (s *fakeSender) failNext(kind string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[kind] = append(s.errs[kind], err)
}

func (s *fakeSender) record(kind, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, kind+":"+ref)
	if queued := s.errs[kind]; len(queued) > 0 {
		s.errs[kind] = queued[1:]
		return queued[0]
	}
	return nil
}

func (s *fakeSender) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSender) SaveNote(_ context.Context, n *models.Note) error {
	return s.record(KindNoteSave, n.ID)
}

func (s *fakeSender) PatchNote(_ context.Context, patch *models.NotePatch) error {
	return s.record(KindNotePatch, patch.ID)
}

func (s *fakeSender) DeleteNote(_ context.Context, id, _ string) error {
	return s.record(KindNoteDelete, id)
}

func (s *fakeSender) CreateTask(_ context.Context, t *models.Task) error {
	return s.record(KindTaskCreate, t.ID)
}

func (s *fakeSender) ReplaceTasks(_ context.Context, profileID string, _ []models.Task) error {
	return s.record(KindTasksReplace, profileID)
}

func newTestOutbox(t *testing.T) (*Outbox, *fakeSender, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	sender := newFakeSender()
	o := NewOutbox(openTestCache(t), sender, OutboxOptions{Now: clock.Now})
	return o, sender, clock
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{9, 256 * time.Second},
		{10, 5 * time.Minute},
		{100, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := Backoff(time.Second, 5*time.Minute, tt.attempts); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&NetworkError{Err: errors.New("dial tcp: refused")}, true},
		{&APIError{Status: http.StatusServiceUnavailable}, true},
		{&APIError{Status: http.StatusTooManyRequests}, true},
		{&APIError{Status: http.StatusRequestTimeout}, true},
		{&APIError{Status: http.StatusBadRequest}, false},
		{&APIError{Status: http.StatusNotFound}, false},
		{errors.New("decode failure"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDrainSendsInOrder(t *testing.T) {
	o, sender, _ := newTestOutbox(t)
	ctx := context.Background()

	_ = o.Enqueue(ctx, KindNoteSave, "n1", note("n1", 1, ""))
	_ = o.Enqueue(ctx, KindNotePatch, "n1", models.NotePatch{ID: "n1", ProfileID: "p"})
	_ = o.Enqueue(ctx, KindTaskCreate, "t1", models.Task{ID: "t1", ProfileID: "p", Text: "x"})

	sent, err := o.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sent != 3 {
		t.Errorf("sent = %d", sent)
	}

	want := []string{"note_save:n1", "note_patch:n1", "task_create:t1"}
	calls := sender.Calls()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}

	pending, _ := o.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending = %d", len(pending))
	}
}

func TestDrainStopsOnTransientFailure(t *testing.T) {
	o, sender, clock := newTestOutbox(t)
	ctx := context.Background()

	_ = o.Enqueue(ctx, KindNoteSave, "n1", note("n1", 1, ""))
	_ = o.Enqueue(ctx, KindNoteSave, "n2", note("n2", 2, ""))
	sender.failNext(KindNoteSave, &APIError{Status: http.StatusBadGateway, Message: "upstream"})

	sent, err := o.Drain(ctx)
	if err == nil {
		t.Fatal("expected the transient failure to be returned")
	}
	if sent != 0 {
		t.Errorf("sent = %d", sent)
	}
	if calls := sender.Calls(); len(calls) != 1 {
		t.Fatalf("later entry overtook the failed one: %v", calls)
	}

	pending, _ := o.Pending(ctx)
	if len(pending) != 2 {
		t.Fatalf("pending = %d", len(pending))
	}
	first := pending[0]
	if first.Attempts != 1 || first.LastError == "" {
		t.Errorf("first = %+v", first)
	}
	if want := clock.Now().Add(time.Second); !first.NextAttemptAt.Equal(want) {
		t.Errorf("next attempt = %v, want %v", first.NextAttemptAt, want)
	}

	// Not due yet: nothing is sent.
	if sent, err := o.Drain(ctx); err != nil || sent != 0 {
		t.Errorf("early drain sent %d, err %v", sent, err)
	}

	clock.Advance(time.Second)
	sent, err = o.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sent != 2 {
		t.Errorf("sent after backoff = %d", sent)
	}
}

func TestDrainDropsPermanentFailure(t *testing.T) {
	o, sender, _ := newTestOutbox(t)
	ctx := context.Background()

	_ = o.Enqueue(ctx, KindNotePatch, "gone", models.NotePatch{ID: "gone", ProfileID: "p"})
	_ = o.Enqueue(ctx, KindNoteSave, "n2", note("n2", 2, ""))
	sender.failNext(KindNotePatch, &APIError{Status: http.StatusNotFound, Message: "note not found"})

	sent, err := o.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sent != 1 {
		t.Errorf("sent = %d", sent)
	}
	if pending, _ := o.Pending(ctx); len(pending) != 0 {
		t.Errorf("pending = %+v", pending)
	}
}

func TestDrainDeleteNotFoundIsSuccess(t *testing.T) {
	o, sender, _ := newTestOutbox(t)
	ctx := context.Background()

	_ = o.Enqueue(ctx, KindNoteDelete, "n1", noteRef{ID: "n1", ProfileID: "p"})
	sender.failNext(KindNoteDelete, &APIError{Status: http.StatusNotFound})

	sent, err := o.Drain(ctx)
	if err != nil || sent != 1 {
		t.Errorf("sent = %d, err = %v", sent, err)
	}
}

func TestPendingDeletes(t *testing.T) {
	o, _, _ := newTestOutbox(t)
	ctx := context.Background()

	_ = o.Enqueue(ctx, KindNoteSave, "n1", note("n1", 1, ""))
	_ = o.Enqueue(ctx, KindNoteDelete, "n2", noteRef{ID: "n2", ProfileID: "p"})

	ids, err := o.PendingDeletes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ids["n2"]; !ok || len(ids) != 1 {
		t.Errorf("ids = %v", ids)
	}
}

func TestRunDrainsOnEnqueue(t *testing.T) {
	o, sender, _ := newTestOutbox(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.Run(ctx, time.Hour)
		close(done)
	}()

	_ = o.Enqueue(ctx, KindTaskCreate, "t1", models.Task{ID: "t1", ProfileID: "p", Text: "x"})

	deadline := time.Now().Add(2 * time.Second)
	for len(sender.Calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker did not drain the new entry")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}
