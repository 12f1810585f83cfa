package repository

import (
	"errors"
	"testing"

	"couple-notes-backend/internal/models"
)

func TestCheckLinkable(t *testing.T) {
	a, b, c := "a", "b", "c"

	tests := []struct {
		name    string
		current map[string]*string
		want    error
	}{
		{"both free", map[string]*string{"a": nil, "b": nil}, nil},
		{"already linked together", map[string]*string{"a": &b, "b": &a}, nil},
		{"empty partner id counts as free", map[string]*string{"a": new(string), "b": nil}, nil},
		{"requester linked elsewhere", map[string]*string{"a": &c, "b": nil}, models.ErrConflict},
		{"partner linked elsewhere", map[string]*string{"a": nil, "b": &c}, models.ErrConflict},
		{"requester missing", map[string]*string{"b": nil}, models.ErrNotFound},
		{"partner missing", map[string]*string{"a": nil}, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkLinkable(tt.current, "a", "b")
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
