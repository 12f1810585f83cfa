package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"couple-notes-backend/internal/handlers"
	"couple-notes-backend/internal/models"
	"couple-notes-backend/internal/repository/memory"
	"couple-notes-backend/internal/services"
)

// testServer runs the real router over the memory store and can fail requests on demand
type testServer struct {
	*httptest.Server

	mu   sync.Mutex
	fail func(r *http.Request) bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	hub := services.NewWSHub()
	router := handlers.NewRouter(handlers.Services{
		Profiles: services.NewProfileService(store.Profiles(), ""),
		Partners: services.NewPartnerService(store.Profiles(), hub),
		Notes:    services.NewNoteService(store.Notes(), store.Profiles(), hub),
		Tasks:    services.NewTaskService(store.Tasks()),
		Widgets:  services.NewWidgetService(store.Widgets(), store.Notes(), store.Profiles(), hub),
		Hub:      hub,
	}, handlers.RouterOptions{})

	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		fail := ts.fail
		ts.mu.Unlock()
		if fail != nil && fail(r) {
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) setFail(fail func(r *http.Request) bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.fail = fail
}

func failAll(*http.Request) bool { return true }

func newTestClient(t *testing.T, ts *testServer) *Client {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "device.db"))
	if err != nil {
		t.Fatal(err)
	}
	api := NewAPI(ts.URL, "", 2*time.Second)
	c := New(api, cache, NewOutbox(cache, api, OutboxOptions{}), Options{})
	t.Cleanup(func() {
		c.Close()
		cache.Close()
	})
	return c
}

func TestSaveThenHistoryHasExactlyOneNote(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := c.CreateProfile(ctx, "Alex", ""); err != nil {
		t.Fatal(err)
	}

	saved, err := c.SaveMyNote(ctx, models.Note{ID: "n1", Type: models.NoteTypeText, Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if saved.Timestamp == 0 || saved.ProfileID == "" {
		t.Errorf("saved = %+v", saved)
	}

	history, err := c.GetMyHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != "n1" {
		t.Fatalf("history = %+v", history)
	}

	merged, err := c.RefreshMyHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 1 || merged[0].ID != "n1" {
		t.Fatalf("merged = %+v", merged)
	}

	remote, err := c.api.ListNotes(ctx, saved.ProfileID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remote) != 1 {
		t.Errorf("server holds %d notes", len(remote))
	}
}

func TestOfflineMutationsReplayInOrder(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts)
	ctx := context.Background()

	me, err := c.CreateProfile(ctx, "Alex", "")
	if err != nil {
		t.Fatal(err)
	}

	ts.setFail(failAll)
	if _, err := c.SaveMyNote(ctx, models.Note{ID: "n1", Type: models.NoteTypeText, Content: "offline"}); err != nil {
		t.Fatal(err)
	}
	pinned, err := c.TogglePinned(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if !pinned.Pinned {
		t.Error("local toggle not applied")
	}

	if _, err := c.Outbox().Drain(ctx); !IsTransient(err) {
		t.Fatalf("drain err = %v, want transient", err)
	}
	if _, err := c.RefreshMyHistory(ctx); err == nil {
		t.Error("refresh should fail while offline")
	}
	local, _ := c.cache.Notes(ctx, me.ID)
	if len(local) != 1 || !local[0].Pinned {
		t.Errorf("cache after failed refresh = %+v", local)
	}

	ts.setFail(nil)
	c.outbox.now = func() time.Time { return time.Now().Add(time.Hour) }
	if sent, err := c.Outbox().Drain(ctx); err != nil || sent != 2 {
		t.Fatalf("sent = %d, err = %v", sent, err)
	}

	remote, err := c.api.ListNotes(ctx, me.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remote) != 1 || !remote[0].Pinned {
		t.Errorf("remote = %+v", remote)
	}
}

func TestPendingDeleteHidesRemoteCopy(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := c.CreateProfile(ctx, "Alex", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SaveMyNote(ctx, models.Note{ID: "n1", Type: models.NoteTypeText}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RefreshMyHistory(ctx); err != nil {
		t.Fatal(err)
	}

	ts.setFail(func(r *http.Request) bool { return r.Method == http.MethodDelete })
	if err := c.DeleteMyNote(ctx, "n1"); err != nil {
		t.Fatal(err)
	}

	merged, err := c.RefreshMyHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 0 {
		t.Errorf("deleted note resurfaced: %+v", merged)
	}
}

func TestPartnerFlow(t *testing.T) {
	ts := newTestServer(t)
	alex := newTestClient(t, ts)
	sam := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := alex.CreateProfile(ctx, "Alex", "ABC123"); err != nil {
		t.Fatal(err)
	}
	samProfile, err := sam.CreateProfile(ctx, "Sam", "")
	if err != nil {
		t.Fatal(err)
	}

	partner, err := sam.Link(ctx, "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if partner.Name != "Alex" {
		t.Errorf("partner = %+v", partner)
	}
	current, _ := sam.CurrentProfile(ctx)
	if !current.HasPartner() || *current.PartnerID != partner.ID {
		t.Errorf("sam session not updated: %+v", current)
	}

	// The other side learns about the link on its next login.
	alexProfile, _ := alex.CurrentProfile(ctx)
	if _, err := alex.Login(ctx, alexProfile.ID, ""); err != nil {
		t.Fatal(err)
	}
	alexProfile, _ = alex.CurrentProfile(ctx)
	if alexProfile.PartnerID == nil || *alexProfile.PartnerID != samProfile.ID {
		t.Errorf("alex partner = %v", alexProfile.PartnerID)
	}

	if _, err := alex.SaveMyNote(ctx, models.Note{ID: "love", Type: models.NoteTypeText, Content: "hi Sam"}); err != nil {
		t.Fatal(err)
	}
	if _, err := alex.Outbox().Drain(ctx); err != nil {
		t.Fatal(err)
	}

	notes, err := sam.GetPartnerNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].ID != "love" {
		t.Fatalf("partner notes = %+v", notes)
	}

	entry, err := alex.SendToWidget(ctx, "love")
	if err != nil {
		t.Fatal(err)
	}
	if entry.ProfileID != samProfile.ID {
		t.Errorf("entry = %+v", entry)
	}
	widget, err := sam.GetWidget(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if widget.Note.Content != "hi Sam" || widget.FromName != "Alex" {
		t.Errorf("widget = %+v", widget)
	}

	ts.setFail(failAll)
	notes, err = sam.GetPartnerNotes(ctx)
	if err != nil {
		t.Fatalf("err = %v, want nil while offline", err)
	}
	if len(notes) != 0 {
		t.Errorf("stale partner notes served: %+v", notes)
	}
	ts.setFail(nil)

	if err := sam.Unlink(ctx); err != nil {
		t.Fatal(err)
	}
	current, _ = sam.CurrentProfile(ctx)
	if current.HasPartner() {
		t.Error("sam still linked after unlink")
	}
}

func TestTasksFallBackToCache(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := c.CreateProfile(ctx, "Alex", ""); err != nil {
		t.Fatal(err)
	}

	if _, err := c.SaveTasks(ctx, []models.Task{{Text: "book dinner"}, {Text: "buy flowers"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddTask(ctx, models.Task{Text: "call mom"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Outbox().Drain(ctx); err != nil {
		t.Fatal(err)
	}

	tasks, err := c.GetTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 || tasks[0].Text != "book dinner" || tasks[2].Text != "call mom" {
		t.Fatalf("remote tasks = %+v", tasks)
	}

	ts.setFail(failAll)
	cached, err := c.GetTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 3 {
		t.Errorf("cached tasks = %+v", cached)
	}

	if _, err := c.AddTask(ctx, models.Task{}); err == nil {
		t.Error("blank task should be rejected")
	}
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts)
	ctx := context.Background()

	created, err := c.CreateProfile(ctx, "Alex", "")
	if err != nil {
		t.Fatal(err)
	}
	anniversary := int64(1_600_000_000_000)
	updated, err := c.UpdateProfile(ctx, "Alexandra", &anniversary)
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != created.ID || updated.Name != "Alexandra" || updated.Code != created.Code {
		t.Errorf("updated = %+v", updated)
	}
}

func TestNoSession(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts)

	if _, err := c.GetMyHistory(context.Background()); err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestGetTasksKeepsQueuedEdits(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := c.CreateProfile(ctx, "Alex", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SaveTasks(ctx, []models.Task{{Text: "old"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Outbox().Drain(ctx); err != nil {
		t.Fatal(err)
	}

	// reads succeed, task writes keep failing
	ts.setFail(func(r *http.Request) bool {
		return r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tasks")
	})
	if _, err := c.SaveTasks(ctx, []models.Task{{Text: "new"}}); err != nil {
		t.Fatal(err)
	}

	tasks, err := c.GetTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Text != "new" {
		t.Fatalf("tasks with queued replace = %+v", tasks)
	}
	cached, _ := c.cache.Tasks(ctx, tasks[0].ProfileID)
	if len(cached) != 1 || cached[0].Text != "new" {
		t.Fatalf("cache overwritten: %+v", cached)
	}

	ts.setFail(nil)
	c.outbox.now = func() time.Time { return time.Now().Add(time.Hour) }
	tasks, err = c.GetTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Text != "new" {
		t.Errorf("tasks after reconnect = %+v", tasks)
	}
	pending, _ := c.Outbox().Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("outbox still holds %d entries", len(pending))
	}
}

func TestCloseCancelsBackgroundRefresh(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	cache := openTestCache(t)
	ctx := context.Background()
	if err := cache.SaveSession(ctx, &models.Profile{ID: "p1", Name: "Alex", Code: "AAAAAA"}, ""); err != nil {
		t.Fatal(err)
	}
	api := NewAPI(ts.URL, "", time.Minute)
	c := New(api, cache, NewOutbox(cache, api, OutboxOptions{}), Options{})

	if _, err := c.GetMyHistory(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a hung refresh")
	}
}
