// Package syncclient is the device-side half of the system: a local SQLite
// cache, a durable outbox for remote mutations and partner polling, all on
// top of a small HTTP client for the API layer.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"couple-notes-backend/internal/models"
	"couple-notes-backend/internal/services"
)

const defaultRequestTimeout = 15 * time.Second

// APIError is a non-2xx response from the API layer
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// NetworkError is a failure to reach the API layer at all
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a failed request may succeed when retried.
// Network failures, 5xx, 408 and 429 are transient; other statuses are not.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 ||
			apiErr.Status == http.StatusRequestTimeout ||
			apiErr.Status == http.StatusTooManyRequests
	}
	return false
}

// IsNotFound reports whether err is a 404 from the API layer
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// API talks JSON to the HTTP API layer
type API struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPI creates an API client for baseURL. A zero timeout uses 15s.
func NewAPI(baseURL, token string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

// SetToken sets the bearer token sent with every request
func (a *API) SetToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
}

func (a *API) bearer() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := a.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// CreateProfile calls POST /profile
func (a *API) CreateProfile(ctx context.Context, req services.CreateProfileRequest) (*models.Profile, error) {
	var p models.Profile
	if err := a.do(ctx, http.MethodPost, "/profile", nil, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile calls PUT /profile
func (a *API) UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	var out models.Profile
	if err := a.do(ctx, http.MethodPut, "/profile", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProfile calls GET /profile?id=
func (a *API) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := a.do(ctx, http.MethodGet, "/profile", url.Values{"id": {id}}, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Connect calls POST /connect
func (a *API) Connect(ctx context.Context, myID, partnerCode string) (*services.ConnectResponse, error) {
	var out services.ConnectResponse
	req := services.ConnectRequest{MyID: myID, PartnerCode: partnerCode}
	if err := a.do(ctx, http.MethodPost, "/connect", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Disconnect calls DELETE /connect?myId=
func (a *API) Disconnect(ctx context.Context, myID string) error {
	return a.do(ctx, http.MethodDelete, "/connect", url.Values{"myId": {myID}}, nil, nil)
}

// ListNotes calls GET /notes?profileId=
func (a *API) ListNotes(ctx context.Context, profileID string) ([]models.Note, error) {
	notes := []models.Note{}
	if err := a.do(ctx, http.MethodGet, "/notes", url.Values{"profileId": {profileID}}, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// ListPartnerNotes calls GET /notes/partner?profileId=
func (a *API) ListPartnerNotes(ctx context.Context, profileID string) ([]models.Note, error) {
	notes := []models.Note{}
	if err := a.do(ctx, http.MethodGet, "/notes/partner", url.Values{"profileId": {profileID}}, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// SaveNote calls POST /notes
func (a *API) SaveNote(ctx context.Context, n *models.Note) error {
	return a.do(ctx, http.MethodPost, "/notes", nil, n, nil)
}

// PatchNote calls PATCH /notes
func (a *API) PatchNote(ctx context.Context, patch *models.NotePatch) error {
	return a.do(ctx, http.MethodPatch, "/notes", nil, patch, nil)
}

// DeleteNote calls DELETE /notes?id=&profileId=
func (a *API) DeleteNote(ctx context.Context, id, profileID string) error {
	return a.do(ctx, http.MethodDelete, "/notes", url.Values{"id": {id}, "profileId": {profileID}}, nil, nil)
}

// ListTasks calls GET /tasks?profileId=
func (a *API) ListTasks(ctx context.Context, profileID string) ([]models.Task, error) {
	tasks := []models.Task{}
	if err := a.do(ctx, http.MethodGet, "/tasks", url.Values{"profileId": {profileID}}, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask calls POST /tasks with a single task
func (a *API) CreateTask(ctx context.Context, t *models.Task) error {
	return a.do(ctx, http.MethodPost, "/tasks", nil, t, nil)
}

// ReplaceTasks calls POST /tasks?profileId= with the whole list
func (a *API) ReplaceTasks(ctx context.Context, profileID string, tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}
	return a.do(ctx, http.MethodPost, "/tasks", url.Values{"profileId": {profileID}}, tasks, nil)
}

// SendWidget calls POST /widget
func (a *API) SendWidget(ctx context.Context, req services.SendWidgetRequest) (*models.WidgetEntry, error) {
	var entry models.WidgetEntry
	if err := a.do(ctx, http.MethodPost, "/widget", nil, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetWidget calls GET /widget?profileId=
func (a *API) GetWidget(ctx context.Context, profileID string) (*models.WidgetEntry, error) {
	var entry models.WidgetEntry
	if err := a.do(ctx, http.MethodGet, "/widget", url.Values{"profileId": {profileID}}, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
