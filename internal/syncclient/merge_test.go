package syncclient

import (
	"fmt"
	"math/rand"
	"testing"

	"couple-notes-backend/internal/models"
)

func note(id string, ts int64, content string) models.Note {
	return models.Note{ID: id, ProfileID: "p", Type: models.NoteTypeText, Content: content, Timestamp: ts}
}

func TestMergeNotes(t *testing.T) {
	remote := []models.Note{note("a", 300, "remote"), note("b", 100, "remote")}
	local := []models.Note{note("b", 150, "local"), note("c", 200, "local")}

	merged := MergeNotes(remote, local)
	if len(merged) != 3 {
		t.Fatalf("len = %d, want 3", len(merged))
	}

	wantOrder := []string{"a", "c", "b"}
	for i, id := range wantOrder {
		if merged[i].ID != id {
			t.Errorf("merged[%d] = %s, want %s", i, merged[i].ID, id)
		}
	}
	for _, n := range merged {
		if n.ID == "b" && n.Content != "remote" {
			t.Errorf("shared id kept %q copy", n.Content)
		}
	}
}

func TestMergeNotesEmpty(t *testing.T) {
	if got := MergeNotes(nil, nil); len(got) != 0 {
		t.Errorf("len = %d", len(got))
	}
	local := []models.Note{note("x", 1, "")}
	if got := MergeNotes(nil, local); len(got) != 1 || got[0].ID != "x" {
		t.Errorf("got %+v", got)
	}
}

func TestMergeNotesProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		nRemote, nLocal := rng.Intn(8), rng.Intn(8)
		shared := 0
		if nRemote > 0 && nLocal > 0 {
			shared = rng.Intn(minInt(nRemote, nLocal) + 1)
		}

		var remote, local []models.Note
		for i := 0; i < nRemote; i++ {
			remote = append(remote, note(fmt.Sprintf("r%d", i), rng.Int63n(1000)+1, "remote"))
		}
		for i := 0; i < nLocal; i++ {
			id := fmt.Sprintf("l%d", i)
			if i < shared {
				id = remote[i].ID
			}
			local = append(local, note(id, rng.Int63n(1000)+1, "local"))
		}

		merged := MergeNotes(remote, local)
		if want := nRemote + nLocal - shared; len(merged) != want {
			t.Fatalf("round %d: len = %d, want %d", round, len(merged), want)
		}
		for i := 1; i < len(merged); i++ {
			if merged[i-1].Timestamp < merged[i].Timestamp {
				t.Fatalf("round %d: not sorted descending at %d", round, i)
			}
		}
		for _, n := range merged {
			if n.ID[0] == 'r' && n.Content != "remote" {
				t.Fatalf("round %d: shared id %s took the local copy", round, n.ID)
			}
		}
	}
}

func TestDropIDs(t *testing.T) {
	notes := []models.Note{note("a", 3, ""), note("b", 2, ""), note("c", 1, "")}
	got := dropIDs(notes, map[string]struct{}{"b": {}})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("got %+v", got)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
