package models

import (
	"errors"
	"testing"
)

func TestNoteValidate(t *testing.T) {
	tests := []struct {
		name    string
		note    Note
		wantErr bool
	}{
		{"valid", Note{ID: "n1", ProfileID: "p1", Type: NoteTypeText, Timestamp: 1}, false},
		{"drawing", Note{ID: "n1", ProfileID: "p1", Type: NoteTypeDrawing, Timestamp: 1}, false},
		{"missing id", Note{ProfileID: "p1", Type: NoteTypeText, Timestamp: 1}, true},
		{"missing owner", Note{ID: "n1", Type: NoteTypeText, Timestamp: 1}, true},
		{"unknown type", Note{ID: "n1", ProfileID: "p1", Type: "poem", Timestamp: 1}, true},
		{"no timestamp", Note{ID: "n1", ProfileID: "p1", Type: NoteTypeText}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.note.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNotePatchApply(t *testing.T) {
	color := "#ffcc00"
	n := Note{ID: "n1", ProfileID: "p1", Type: NoteTypeText, Content: "old", Timestamp: 10}

	p := &NotePatch{ID: "n1", ProfileID: "p1"}
	if !p.Empty() {
		t.Fatal("patch without fields should be empty")
	}

	pinned := true
	content := "new"
	urls := []string{"a", "b"}
	p.Pinned = &pinned
	p.Content = &content
	p.Color = &color
	p.ImageURLs = &urls
	if p.Empty() {
		t.Fatal("patch with fields reported empty")
	}
	p.Apply(&n)

	if !n.Pinned || n.Content != "new" || *n.Color != "#ffcc00" || len(n.ImageURLs) != 2 {
		t.Errorf("patched note = %+v", n)
	}
	if n.Bookmarked || n.Timestamp != 10 || n.Type != NoteTypeText {
		t.Errorf("unset fields changed: %+v", n)
	}

	urls[0] = "changed"
	color = "#000000"
	if n.ImageURLs[0] != "a" || *n.Color != "#ffcc00" {
		t.Error("patch values are shared with the note")
	}
}

func TestProfileHasPartner(t *testing.T) {
	empty := ""
	id := "p2"
	if (&Profile{}).HasPartner() || (&Profile{PartnerID: &empty}).HasPartner() {
		t.Error("unlinked profile reported a partner")
	}
	if !(&Profile{PartnerID: &id}).HasPartner() {
		t.Error("linked profile reported no partner")
	}
}

func TestValidationError(t *testing.T) {
	if ValidationError(nil) != nil {
		t.Error("nil should stay nil")
	}
	err := ValidationError(errors.New("name: cannot be blank"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v does not match ErrValidation", err)
	}
}
