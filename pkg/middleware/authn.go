package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jh125486/rubricscore/pkg/contextlog"
)

// Role is what an authenticated caller may do with rubric results.
type Role string

const (
	// RoleGrader may read and edit results.
	RoleGrader Role = "grader"
	// RoleViewer may only read.
	RoleViewer Role = "viewer"
)

// RoleKey is the context key for storing the caller's Role
const RoleKey contextKey = "role"

// Tokens maps bearer tokens to roles. An empty viewer token disables
// read-only access.
type Tokens struct {
	Grader string
	Viewer string
}

// role returns the role bearer authenticates as.
func (t Tokens) role(bearer string) (Role, bool) {
	if t.Grader != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(t.Grader)) == 1 {
		return RoleGrader, true
	}
	if t.Viewer != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(t.Viewer)) == 1 {
		return RoleViewer, true
	}
	return "", false
}

// Auth returns a middleware that validates Bearer token authentication and
// stores the caller's Role in the request context.
// Returns 401 Unauthorized if the token is missing or matches no role.
func Auth(tokens Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := contextlog.From(ctx)

			authHeader := r.Header.Get("authorization")
			if authHeader == "" {
				logger.WarnContext(ctx, "Authentication failed: missing authorization header")
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				logger.WarnContext(ctx, "Authentication failed: invalid header format")
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			role, ok := tokens.role(authHeader[len(bearerPrefix):])
			if !ok {
				logger.WarnContext(ctx, "Authentication failed: invalid token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, RoleKey, role)
			ctx = contextlog.With(ctx, logger.With(slog.String("role", string(role))))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleFrom returns the role stored by Auth, or false if the request was not
// authenticated.
func RoleFrom(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(RoleKey).(Role)
	return role, ok && role != ""
}

// CanEdit reports whether the caller may change rubric results.
func CanEdit(ctx context.Context) bool {
	role, _ := RoleFrom(ctx)
	return role == RoleGrader
}
