package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"couple-notes-backend/internal/models"
	"couple-notes-backend/internal/services"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RemoteAPI is the API layer as seen by the client
type RemoteAPI interface {
	Sender

	SetToken(token string)
	CreateProfile(ctx context.Context, req services.CreateProfileRequest) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	Connect(ctx context.Context, myID, partnerCode string) (*services.ConnectResponse, error)
	Disconnect(ctx context.Context, myID string) error
	ListNotes(ctx context.Context, profileID string) ([]models.Note, error)
	ListPartnerNotes(ctx context.Context, profileID string) ([]models.Note, error)
	ListTasks(ctx context.Context, profileID string) ([]models.Task, error)
	SendWidget(ctx context.Context, req services.SendWidgetRequest) (*models.WidgetEntry, error)
	GetWidget(ctx context.Context, profileID string) (*models.WidgetEntry, error)
}

// Options configures a Client. The zero Logger discards output.
type Options struct {
	Logger         zerolog.Logger
	PollInterval   time.Duration
	OutboxInterval time.Duration
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Client is the local-first note store of one device
type Client struct {
	api    RemoteAPI
	cache  *Cache
	outbox *Outbox
	log    zerolog.Logger
	opts   Options

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New creates a Client. A token stored with the cached session is applied to api.
func New(api RemoteAPI, cache *Cache, outbox *Outbox, opts Options) *Client {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	c := &Client{
		api:      api,
		cache:    cache,
		outbox:   outbox,
		log:      opts.Logger,
		opts:     opts,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	if _, token, err := cache.Session(context.Background()); err == nil && token != "" {
		api.SetToken(token)
	}
	return c
}

// Outbox returns the client's outbox
func (c *Client) Outbox() *Outbox {
	return c.outbox
}

// RunOutbox delivers queued mutations in the background until ctx is done
func (c *Client) RunOutbox(ctx context.Context) {
	c.outbox.Run(ctx, c.opts.OutboxInterval)
}

// Close stops background refreshes and waits for them to return
func (c *Client) Close() {
	c.bgCancel()
	c.bg.Wait()
}

func (c *Client) me(ctx context.Context) (*models.Profile, error) {
	p, _, err := c.cache.Session(ctx)
	return p, err
}

func (c *Client) nowMillis() int64 {
	return c.opts.Now().UnixMilli()
}

// CreateProfile registers a new profile on the server and makes it current
func (c *Client) CreateProfile(ctx context.Context, name, code string) (*models.Profile, error) {
	p, err := c.api.CreateProfile(ctx, services.CreateProfileRequest{
		ID:   uuid.New().String(),
		Name: name,
		Code: code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if err := c.cache.ClearSession(ctx); err != nil {
		return nil, err
	}
	if err := c.cache.SaveSession(ctx, p, p.Token); err != nil {
		return nil, err
	}
	if p.Token != "" {
		c.api.SetToken(p.Token)
	}

	c.log.Info().Str("profile_id", p.ID).Str("code", p.Code).Msg("Profile created")
	return p, nil
}

// Login fetches an existing profile and makes it current
func (c *Client) Login(ctx context.Context, id, token string) (*models.Profile, error) {
	if token != "" {
		c.api.SetToken(token)
	}
	p, err := c.api.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	if current, currentToken, err := c.cache.Session(ctx); err == nil && current.ID == p.ID {
		if token == "" {
			token = currentToken
		}
	} else if err := c.cache.ClearSession(ctx); err != nil {
		return nil, err
	}

	if err := c.cache.SaveSession(ctx, p, token); err != nil {
		return nil, err
	}
	return p, nil
}

// CurrentProfile returns the cached profile of this device
func (c *Client) CurrentProfile(ctx context.Context) (*models.Profile, error) {
	return c.me(ctx)
}

// UpdateProfile changes the name and anniversary of the current profile
func (c *Client) UpdateProfile(ctx context.Context, name string, anniversary *int64) (*models.Profile, error) {
	me, token, err := c.cache.Session(ctx)
	if err != nil {
		return nil, err
	}

	update := *me
	if name != "" {
		update.Name = name
	}
	if anniversary != nil {
		update.Anniversary = anniversary
	}

	p, err := c.api.UpsertProfile(ctx, &update)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if err := c.cache.SaveSession(ctx, p, token); err != nil {
		return nil, err
	}
	return p, nil
}

// Link connects the current profile with the owner of partnerCode
func (c *Client) Link(ctx context.Context, partnerCode string) (*models.Profile, error) {
	me, token, err := c.cache.Session(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.Connect(ctx, me.ID, partnerCode)
	if err != nil {
		return nil, fmt.Errorf("failed to link with %s: %w", partnerCode, err)
	}
	if err := c.cache.SaveSession(ctx, resp.Profile, token); err != nil {
		return nil, err
	}

	c.log.Info().Str("profile_id", me.ID).Str("partner_id", resp.Partner.ID).Msg("Linked with partner")
	return resp.Partner, nil
}

// Unlink clears the partnership of the current profile
func (c *Client) Unlink(ctx context.Context) error {
	me, token, err := c.cache.Session(ctx)
	if err != nil {
		return err
	}

	if err := c.api.Disconnect(ctx, me.ID); err != nil {
		return fmt.Errorf("failed to unlink: %w", err)
	}

	p, err := c.api.GetProfile(ctx, me.ID)
	if err != nil {
		p = me
		p.PartnerID, p.PartnerName = nil, nil
	}
	return c.cache.SaveSession(ctx, p, token)
}

// GetMyHistory returns the cached notes at once and refreshes them in the background.
// The returned slice may be stale or empty.
func (c *Client) GetMyHistory(ctx context.Context) ([]models.Note, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	local, err := c.cache.Notes(ctx, me.ID)
	if err != nil {
		return nil, err
	}

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if _, err := c.refresh(c.bgCtx, me.ID); err != nil {
			c.log.Debug().Err(err).Str("profile_id", me.ID).Msg("Background history refresh failed")
		}
	}()

	return local, nil
}

// RefreshMyHistory reconciles the cache with the server and returns the merged notes
func (c *Client) RefreshMyHistory(ctx context.Context) ([]models.Note, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	return c.refresh(ctx, me.ID)
}

func (c *Client) refresh(ctx context.Context, profileID string) ([]models.Note, error) {
	if _, err := c.outbox.Drain(ctx); err != nil {
		c.log.Debug().Err(err).Msg("Outbox not fully drained before refresh")
	}

	remote, err := c.api.ListNotes(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notes: %w", err)
	}
	return c.cache.ReconcileNotes(ctx, profileID, remote)
}

// SaveMyNote stores a note locally and queues it for the server.
// Missing id, owner and timestamp are filled in.
func (c *Client) SaveMyNote(ctx context.Context, n models.Note) (*models.Note, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.ProfileID = me.ID
	if n.Timestamp == 0 {
		n.Timestamp = c.nowMillis()
	}
	if err := n.Validate(); err != nil {
		return nil, models.ValidationError(err)
	}

	if err := c.cache.PutNote(ctx, n); err != nil {
		return nil, err
	}
	if err := c.outbox.Enqueue(ctx, KindNoteSave, n.ID, n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateMyNote patches a cached note and queues the patch for the server
func (c *Client) UpdateMyNote(ctx context.Context, patch models.NotePatch) (*models.Note, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}

	patch.ProfileID = me.ID
	if err := patch.Validate(); err != nil {
		return nil, models.ValidationError(err)
	}

	n, err := c.cache.Note(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	if n.ProfileID != me.ID {
		return nil, fmt.Errorf("note %s %w", patch.ID, models.ErrNotFound)
	}
	patch.Apply(n)

	if err := c.cache.PutNote(ctx, *n); err != nil {
		return nil, err
	}
	if err := c.outbox.Enqueue(ctx, KindNotePatch, n.ID, patch); err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteMyNote removes a note locally and queues the delete for the server
func (c *Client) DeleteMyNote(ctx context.Context, id string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return models.ValidationError(errors.New("id: cannot be blank"))
	}

	// the delete is queued before the cached row goes
	if err := c.outbox.Enqueue(ctx, KindNoteDelete, id, noteRef{ID: id, ProfileID: me.ID}); err != nil {
		return err
	}
	return c.cache.DeleteNote(ctx, id)
}

// TogglePinned flips the pinned flag of a cached note
func (c *Client) TogglePinned(ctx context.Context, id string) (*models.Note, error) {
	n, err := c.cache.Note(ctx, id)
	if err != nil {
		return nil, err
	}
	pinned := !n.Pinned
	return c.UpdateMyNote(ctx, models.NotePatch{ID: id, Pinned: &pinned})
}

// ToggleBookmarked flips the bookmarked flag of a cached note
func (c *Client) ToggleBookmarked(ctx context.Context, id string) (*models.Note, error) {
	n, err := c.cache.Note(ctx, id)
	if err != nil {
		return nil, err
	}
	bookmarked := !n.Bookmarked
	return c.UpdateMyNote(ctx, models.NotePatch{ID: id, Bookmarked: &bookmarked})
}

// GetPartnerNotes fetches the partner's notes from the server.
// Any failure yields an empty list; partner notes are never served from cache.
func (c *Client) GetPartnerNotes(ctx context.Context) ([]models.Note, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	if !me.HasPartner() {
		return []models.Note{}, nil
	}

	notes, err := c.api.ListPartnerNotes(ctx, me.ID)
	if err != nil {
		c.log.Debug().Err(err).Str("profile_id", me.ID).Msg("Partner notes unavailable")
		return []models.Note{}, nil
	}
	return notes, nil
}

// WatchPartner polls the partner's notes and calls fn with each new latest note.
// Only notes newer than the start of the watch are reported.
func (c *Client) WatchPartner(ctx context.Context, fn NoteFunc) (*Subscription, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) ([]models.Note, error) {
		return c.api.ListPartnerNotes(ctx, me.ID)
	}
	return startWatcher(ctx, fetch, fn, watchOptions{
		interval: c.opts.PollInterval,
		timeout:  c.opts.RequestTimeout,
		start:    c.opts.Now(),
		log:      c.log,
	}), nil
}

// GetTasks fetches the task list, falling back to the cache when the server is
// unreachable or local task changes are still queued
func (c *Client) GetTasks(ctx context.Context) ([]models.Task, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := c.outbox.Drain(ctx); err != nil {
		c.log.Debug().Err(err).Msg("Outbox not fully drained before task fetch")
	}
	pending, err := c.outbox.HasPending(ctx, KindTaskCreate, KindTasksReplace)
	if err != nil {
		return nil, err
	}
	if pending {
		return c.cache.Tasks(ctx, me.ID)
	}

	tasks, err := c.api.ListTasks(ctx, me.ID)
	if err != nil {
		c.log.Debug().Err(err).Str("profile_id", me.ID).Msg("Serving cached tasks")
		return c.cache.Tasks(ctx, me.ID)
	}
	if err := c.cache.ReplaceTasks(ctx, me.ID, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveTasks replaces the whole task list locally and queues the replace
func (c *Client) SaveTasks(ctx context.Context, tasks []models.Task) ([]models.Task, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]models.Task, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.ProfileID = me.ID
		if err := t.Validate(); err != nil {
			return nil, models.ValidationError(fmt.Errorf("tasks[%d]: %v", i, err))
		}
		list[i] = t
	}

	if err := c.cache.ReplaceTasks(ctx, me.ID, list); err != nil {
		return nil, err
	}
	if err := c.outbox.Enqueue(ctx, KindTasksReplace, me.ID, taskList{ProfileID: me.ID, Tasks: list}); err != nil {
		return nil, err
	}
	return list, nil
}

// AddTask appends a task locally and queues its creation
func (c *Client) AddTask(ctx context.Context, t models.Task) (*models.Task, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.ProfileID = me.ID
	if err := t.Validate(); err != nil {
		return nil, models.ValidationError(err)
	}

	if err := c.cache.AddTask(ctx, t); err != nil {
		return nil, err
	}
	if err := c.outbox.Enqueue(ctx, KindTaskCreate, t.ID, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SendToWidget relays a cached note to the partner's widget
func (c *Client) SendToWidget(ctx context.Context, noteID string) (*models.WidgetEntry, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	n, err := c.cache.Note(ctx, noteID)
	if err != nil {
		return nil, err
	}

	entry, err := c.api.SendWidget(ctx, services.SendWidgetRequest{FromID: me.ID, Note: n})
	if err != nil {
		return nil, fmt.Errorf("failed to send to widget: %w", err)
	}
	return entry, nil
}

// GetWidget returns the note the partner last sent to this device's widget
func (c *Client) GetWidget(ctx context.Context) (*models.WidgetEntry, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	return c.api.GetWidget(ctx, me.ID)
}
