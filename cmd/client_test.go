package cmd

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("2021-06-15")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got == nil || *got != want {
		t.Errorf("parseDate = %v, want %d", got, want)
	}

	if got, err := parseDate(""); err != nil || got != nil {
		t.Errorf("empty = %v, %v", got, err)
	}
	if _, err := parseDate("15/06/2021"); err == nil {
		t.Error("expected an error for a non ISO date")
	}
}
