package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
)

type staticTokens map[string]string

func (s staticTokens) CurrentUserID(_ context.Context, token string) (string, error) {
	if token == "broken" {
		return "", errors.New("redis down")
	}
	uid, ok := s[token]
	if !ok {
		return "", errs.ErrUnauthorized
	}
	return uid, nil
}

func echoUID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserID(r.Context()) + "|" + Token(r.Context())))
	})
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(staticTokens{"good": "u1"})(echoUID())

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"Bearer good", http.StatusOK, "u1|good"},
		{"bearer good", http.StatusOK, "u1|good"},
		{"", http.StatusUnauthorized, ""},
		{"Basic good", http.StatusUnauthorized, ""},
		{"Bearer nope", http.StatusUnauthorized, ""},
		{"Bearer broken", http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, tc.header)
		if tc.body != "" {
			assert.Equal(t, tc.body, rec.Body.String())
		} else {
			assert.Contains(t, rec.Body.String(), `"state":"error"`)
		}
	}
}

func TestOptionalAuth(t *testing.T) {
	h := OptionalAuth(staticTokens{"good": "u1"})(echoUID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	assert.Equal(t, "|", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/items?token=good", nil))
	assert.Equal(t, "u1|good", rec.Body.String())
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedisLimiter(rdb, "otp", 2, time.Minute, time.Hour)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/otp/send", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send().Code)
	rec := send()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, send().Code)
	assert.True(t, mr.Exists("blocked_ip:otp:10.0.0.1"))

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusTooManyRequests, send().Code, "still blocked after the window")

	require.NoError(t, l.Unblock(context.Background(), "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, send().Code)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	h := NewRedisLimiter(rdb, "otp", 1, time.Minute, 0).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(rate.Every(time.Hour), 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per ip")

	l.sweep(time.Now().Add(limiterTTL + time.Minute))
	assert.True(t, l.Allow("a"), "idle bucket was dropped")
}

func TestIPLimiter_Middleware(t *testing.T) {
	h := SecurityHeaders(NewIPLimiter(rate.Every(time.Hour), 1).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
