package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	tokenKey  contextKey = "token"
)

// TokenValidator resolves a bearer token to a uid.
type TokenValidator interface {
	CurrentUserID(ctx context.Context, token string) (string, error)
}

// RequireAuth rejects requests without a live session.
func RequireAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				respondError(w, http.StatusUnauthorized, errs.ErrUnauthorized, "Authorization header required")
				return
			}
			uid, err := v.CurrentUserID(r.Context(), token)
			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, errs.ErrUnauthorized) {
					status = http.StatusInternalServerError
				}
				respondError(w, status, err, "Invalid or expired session")
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), uid, token)))
		})
	}
}

// OptionalAuth attaches the uid when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := BearerToken(r); token != "" {
				if uid, err := v.CurrentUserID(r.Context(), token); err == nil {
					r = r.WithContext(withSession(r.Context(), uid, token))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken returns the token of an "Authorization: Bearer" header, falling
// back to the token query parameter for WebSocket clients.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func withSession(ctx context.Context, uid, token string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, uid)
	return context.WithValue(ctx, tokenKey, token)
}

// UserID returns the authenticated uid, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(userIDKey).(string)
	return uid
}

// Token returns the bearer token the request was authenticated with.
func Token(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
