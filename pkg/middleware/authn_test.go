package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/middleware"
)

func TestAuth(t *testing.T) {
	t.Parallel()

	tokens := middleware.Tokens{Grader: "grader-secret", Viewer: "viewer-secret"}

	tests := []struct {
		name        string
		tokens      middleware.Tokens
		authHeader  string
		wantStatus  int
		wantRole    middleware.Role
		wantCanEdit bool
	}{
		{name: "grader_token", tokens: tokens, authHeader: "Bearer grader-secret", wantStatus: http.StatusOK, wantRole: middleware.RoleGrader, wantCanEdit: true},
		{name: "viewer_token", tokens: tokens, authHeader: "Bearer viewer-secret", wantStatus: http.StatusOK, wantRole: middleware.RoleViewer},
		{name: "special_chars", tokens: middleware.Tokens{Grader: "t-!@#$%"}, authHeader: "Bearer t-!@#$%", wantStatus: http.StatusOK, wantRole: middleware.RoleGrader, wantCanEdit: true},
		{name: "mismatched_token", tokens: tokens, authHeader: "Bearer wrong", wantStatus: http.StatusUnauthorized},
		{name: "missing_header", tokens: tokens, authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "basic_scheme", tokens: tokens, authHeader: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "bearer_without_token", tokens: tokens, authHeader: "Bearer", wantStatus: http.StatusUnauthorized},
		{name: "empty_token", tokens: tokens, authHeader: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "lowercase_bearer", tokens: tokens, authHeader: "bearer grader-secret", wantStatus: http.StatusUnauthorized},
		{name: "viewer_disabled", tokens: middleware.Tokens{Grader: "g"}, authHeader: "Bearer ", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/rubricscore.v1.RubricService/PatchResult", http.NoBody)
			req = req.WithContext(contextlog.With(req.Context(), contextlog.DiscardLogger()))
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			var (
				called  bool
				role    middleware.Role
				canEdit bool
			)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				role, _ = middleware.RoleFrom(r.Context())
				canEdit = middleware.CanEdit(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rr := httptest.NewRecorder()
			middleware.Auth(tt.tokens)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
			assert.Equal(t, tt.wantRole, role)
			assert.Equal(t, tt.wantCanEdit, canEdit)
		})
	}
}

func TestAuthErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		authHeader string
		wantBody   string
	}{
		{name: "missing", authHeader: "", wantBody: "missing authorization header\n"},
		{name: "format", authHeader: "Token abc", wantBody: "invalid authorization header format\n"},
		{name: "token", authHeader: "Bearer abc", wantBody: "invalid token\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			middleware.Auth(middleware.Tokens{Grader: "secret"})(http.NotFoundHandler()).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestRoleFromUnauthenticated(t *testing.T) {
	t.Parallel()

	_, ok := middleware.RoleFrom(t.Context())
	assert.False(t, ok)
	assert.False(t, middleware.CanEdit(t.Context()))
}
