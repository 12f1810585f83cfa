package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"couple-notes-backend/internal/models"
	"couple-notes-backend/internal/services"
)

var (
	_ services.ProfileStore = (*ProfileRepository)(nil)
	_ services.NoteStore    = (*NoteRepository)(nil)
	_ services.TaskStore    = (*TaskRepository)(nil)
	_ services.WidgetStore  = (*WidgetRepository)(nil)
)

func seed(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for i, id := range ids {
		p := &models.Profile{ID: id, Name: id, Code: string(rune('A'+i)) + "00000", CreatedAt: time.Now()}
		if err := s.Profiles().Create(context.Background(), p); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
}

func TestProfileCodeUnique(t *testing.T) {
	s := NewStore()
	seed(t, s, "a")

	err := s.Profiles().Create(context.Background(), &models.Profile{ID: "b", Name: "b", Code: "A00000"})
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("err = %v", err)
	}
	exists, _ := s.Profiles().CodeExists(context.Background(), "A00000")
	if !exists {
		t.Error("code should exist")
	}
}

func TestLinkUnlink(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a", "b")
	repo := s.Profiles()

	a, _ := repo.GetByID(ctx, "a")
	b, _ := repo.GetByID(ctx, "b")
	if err := repo.Link(ctx, a, b); err != nil {
		t.Fatal(err)
	}

	b, _ = repo.GetByID(ctx, "b")
	if *b.PartnerID != "a" || *b.PartnerName != "a" {
		t.Errorf("b = %+v", b)
	}

	partnerID, err := repo.Unlink(ctx, "b")
	if err != nil || partnerID != "a" {
		t.Fatalf("Unlink = %q, %v", partnerID, err)
	}
	a, _ = repo.GetByID(ctx, "a")
	if a.HasPartner() {
		t.Error("a still linked")
	}
	if _, err := repo.Unlink(ctx, "b"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second unlink err = %v", err)
	}
}

func TestNotesNewestFirstAndCopied(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a")
	notes := s.Notes()

	for _, n := range []models.Note{
		{ID: "n1", ProfileID: "a", Type: models.NoteTypeText, Timestamp: 1},
		{ID: "n3", ProfileID: "a", Type: models.NoteTypeText, Timestamp: 3},
		{ID: "n2", ProfileID: "a", Type: models.NoteTypeCollage, Timestamp: 2, ImageURLs: []string{"x"}},
	} {
		n := n
		if _, err := notes.Save(ctx, &n); err != nil {
			t.Fatal(err)
		}
	}

	list, _ := notes.ListByProfile(ctx, "a")
	if len(list) != 3 || list[0].ID != "n3" || list[1].ID != "n2" || list[2].ID != "n1" {
		t.Fatalf("order = %v %v %v", list[0].ID, list[1].ID, list[2].ID)
	}

	list[1].ImageURLs[0] = "mutated"
	got, _ := notes.GetByID(ctx, "n2")
	if got.ImageURLs[0] != "x" {
		t.Error("listed note shares storage with the store")
	}

	if _, err := notes.Save(ctx, &models.Note{ID: "n1", ProfileID: "ghost"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown owner err = %v", err)
	}
}

func TestTasksReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a")
	tasks := s.Tasks()

	if err := tasks.Create(ctx, &models.Task{ID: "t0", ProfileID: "a", Text: "old"}); err != nil {
		t.Fatal(err)
	}
	if err := tasks.ReplaceAll(ctx, "a", []*models.Task{{ID: "t2", Text: "b"}, {ID: "t1", Text: "a"}}); err != nil {
		t.Fatal(err)
	}
	list, _ := tasks.ListByProfile(ctx, "a")
	if len(list) != 2 || list[0].ID != "t2" || list[1].ProfileID != "a" {
		t.Errorf("list = %+v", list)
	}
	if err := tasks.ReplaceAll(ctx, "ghost", nil); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown profile err = %v", err)
	}
}

func TestWidgetSlot(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a")
	widgets := s.Widgets()

	if _, err := widgets.Get(ctx, "a"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("empty slot err = %v", err)
	}
	for _, content := range []string{"first", "second"} {
		entry := &models.WidgetEntry{ProfileID: "a", FromID: "b", Note: models.Note{ID: content, Content: content}}
		if err := widgets.Put(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}
	got, err := widgets.Get(ctx, "a")
	if err != nil || got.Note.Content != "second" || got.UpdatedAt.IsZero() {
		t.Errorf("got %+v, %v", got, err)
	}
}

func TestLinkRejectsThirdProfile(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a", "b", "c")
	repo := s.Profiles()

	a, _ := repo.GetByID(ctx, "a")
	b, _ := repo.GetByID(ctx, "b")
	c, _ := repo.GetByID(ctx, "c")
	if err := repo.Link(ctx, b, a); err != nil {
		t.Fatal(err)
	}

	// c still holds the stale, unlinked copy of a
	if err := repo.Link(ctx, c, a); !errors.Is(err, models.ErrConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
	gotA, _ := repo.GetByID(ctx, "a")
	gotC, _ := repo.GetByID(ctx, "c")
	if *gotA.PartnerID != "b" || gotC.HasPartner() {
		t.Errorf("a -> %v, c linked = %v", *gotA.PartnerID, gotC.HasPartner())
	}

	if err := repo.Link(ctx, a, b); err != nil {
		t.Errorf("relinking the same pair: %v", err)
	}
}
