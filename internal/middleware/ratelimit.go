package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/pkg/clientip"
)

const (
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
)

// RedisLimiter is a fixed-window per-IP counter shared by every instance.
// An IP that goes over the limit is blocked for BlockFor.
type RedisLimiter struct {
	rdb      redis.Cmdable
	name     string
	limit    int
	window   time.Duration
	blockFor time.Duration
}

// NewRedisLimiter allows limit requests per window. A zero blockFor only
// rejects until the window ends.
func NewRedisLimiter(rdb redis.Cmdable, name string, limit int, window, blockFor time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, name: name, limit: limit, window: window, blockFor: blockFor}
}

// Allow counts one request from ip and reports whether it may proceed along
// with the requests left in the window.
func (l *RedisLimiter) Allow(ctx context.Context, ip string) (bool, int, error) {
	blockedKey := BlockedIPKeyPrefix + l.name + ":" + ip
	if l.blockFor > 0 {
		n, err := l.rdb.Exists(ctx, blockedKey).Result()
		if err != nil {
			return false, 0, err
		}
		if n > 0 {
			return false, 0, nil
		}
	}

	key := RateLimitKeyPrefix + l.name + ":" + ip
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	count := int(n)
	if count <= l.limit {
		return true, l.limit - count, nil
	}
	if l.blockFor > 0 {
		if err := l.rdb.Set(ctx, blockedKey, "1", l.blockFor).Err(); err != nil {
			return false, 0, err
		}
		log.Warn().Str("ip", ip).Str("limiter", l.name).Msg("ip blocked")
	}
	return false, 0, nil
}

// Middleware rejects requests over the limit with 429. Redis failures let the
// request through.
func (l *RedisLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r)
		ok, remaining, err := l.Allow(r.Context(), ip)
		if err != nil {
			log.Warn().Err(err).Str("limiter", l.name).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(max(l.window, l.blockFor).Seconds())))
			respondError(w, http.StatusTooManyRequests, errs.ErrRateLimited, "Too many requests. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Unblock lifts a block on ip.
func (l *RedisLimiter) Unblock(ctx context.Context, ip string) error {
	return l.rdb.Del(ctx, BlockedIPKeyPrefix+l.name+":"+ip).Err()
}
