package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// NoteType is the kind of content a note carries
type NoteType string

const (
	NoteTypeText    NoteType = "text"
	NoteTypeDrawing NoteType = "drawing"
	NoteTypeCollage NoteType = "collage"
)

// Profile represents one side of a couple
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	PartnerID   *string   `json:"partnerId,omitempty"`
	PartnerName *string   `json:"partnerName,omitempty"`
	Anniversary *int64    `json:"anniversary,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`

	// Token is only returned from profile creation, never stored
	Token string `json:"token,omitempty"`
}

// HasPartner reports whether the profile is linked
func (p *Profile) HasPartner() bool {
	return p.PartnerID != nil && *p.PartnerID != ""
}

// Validate checks the user-supplied profile fields
func (p *Profile) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 100)),
	)
}

// Note represents a single shared message
type Note struct {
	ID         string   `json:"id"`
	ProfileID  string   `json:"profileId"`
	Type       NoteType `json:"type"`
	Content    string   `json:"content"`
	Color      *string  `json:"color,omitempty"`
	ImageURLs  []string `json:"imageUrls,omitempty"`
	Timestamp  int64    `json:"timestamp"`
	Pinned     bool     `json:"pinned"`
	Bookmarked bool     `json:"bookmarked"`
}

// Validate checks the required note fields
func (n *Note) Validate() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.ID, validation.Required),
		validation.Field(&n.ProfileID, validation.Required),
		validation.Field(&n.Type, validation.Required,
			validation.In(NoteTypeText, NoteTypeDrawing, NoteTypeCollage)),
		validation.Field(&n.Timestamp, validation.Required, validation.Min(int64(1))),
	)
}

// NotePatch is a partial note update; nil fields are left untouched
type NotePatch struct {
	ID         string    `json:"id"`
	ProfileID  string    `json:"profileId"`
	Type       *NoteType `json:"type,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Color      *string   `json:"color,omitempty"`
	ImageURLs  *[]string `json:"imageUrls,omitempty"`
	Timestamp  *int64    `json:"timestamp,omitempty"`
	Pinned     *bool     `json:"pinned,omitempty"`
	Bookmarked *bool     `json:"bookmarked,omitempty"`
}

// Validate checks the patch keys and the new type if one is given
func (p *NotePatch) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.ProfileID, validation.Required),
		validation.Field(&p.Type, validation.NilOrNotEmpty,
			validation.In(NoteTypeText, NoteTypeDrawing, NoteTypeCollage)),
	)
}

// Empty reports whether the patch changes nothing
func (p *NotePatch) Empty() bool {
	return p.Type == nil && p.Content == nil && p.Color == nil && p.ImageURLs == nil &&
		p.Timestamp == nil && p.Pinned == nil && p.Bookmarked == nil
}

// Apply copies the set fields of the patch onto the note
func (p *NotePatch) Apply(n *Note) {
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Color != nil {
		c := *p.Color
		n.Color = &c
	}
	if p.ImageURLs != nil {
		n.ImageURLs = append([]string(nil), (*p.ImageURLs)...)
	}
	if p.Timestamp != nil {
		n.Timestamp = *p.Timestamp
	}
	if p.Pinned != nil {
		n.Pinned = *p.Pinned
	}
	if p.Bookmarked != nil {
		n.Bookmarked = *p.Bookmarked
	}
}

// Task represents a shared to-do item
type Task struct {
	ID        string `json:"id"`
	ProfileID string `json:"profileId"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Validate checks the required task fields
func (t *Task) Validate() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.ProfileID, validation.Required),
		validation.Field(&t.Text, validation.Required),
	)
}

// WidgetEntry is the latest note relayed to a profile's display surface
type WidgetEntry struct {
	ProfileID string    `json:"profileId"`
	FromID    string    `json:"fromId"`
	FromName  string    `json:"fromName"`
	Note      Note      `json:"note"`
	UpdatedAt time.Time `json:"updatedAt"`
}
