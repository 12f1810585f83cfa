package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticValidator map[string]string

func (v staticValidator) ValidateJWT(token string) (string, error) {
	id, ok := v[token]
	if !ok {
		return "", errors.New("bad token")
	}
	return id, nil
}

func TestAuthMiddleware(t *testing.T) {
	validator := staticValidator{"good": "profile-1"}
	var gotID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetProfileID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		enabled bool
		header  string
		want    int
		wantID  string
	}{
		{"disabled passes through", false, "", http.StatusOK, ""},
		{"missing header", true, "", http.StatusUnauthorized, ""},
		{"wrong scheme", true, "Basic good", http.StatusUnauthorized, ""},
		{"invalid token", true, "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", true, "Bearer good", http.StatusOK, "profile-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tt.enabled, validator)(next).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if gotID != tt.wantID {
				t.Errorf("profile id = %q, want %q", gotID, tt.wantID)
			}
		})
	}
}
