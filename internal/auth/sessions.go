package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
)

const (
	// DefaultSessionTTL is 7 days
	DefaultSessionTTL = 7 * 24 * time.Hour

	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// Sessions issues HS256 tokens whose id is kept in Redis, so a token stops
// working as soon as its key is deleted.
type Sessions struct {
	rdb    redis.Cmdable
	secret []byte
	ttl    time.Duration
}

func NewSessions(rdb redis.Cmdable, secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{rdb: rdb, secret: []byte(secret), ttl: ttl}
}

// Issue creates a session for uid.
func (s *Sessions) Issue(ctx context.Context, uid string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	jti := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   uid,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	userKey := userSessionKeyPrefix + uid
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKeyPrefix+jti, uid, s.ttl)
		pipe.SAdd(ctx, userKey, jti)
		pipe.Expire(ctx, userKey, s.ttl)
		return nil
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store session: %w", err)
	}
	return token, exp, nil
}

// Validate returns the uid of a live session.
func (s *Sessions) Validate(ctx context.Context, token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	uid, err := s.rdb.Get(ctx, sessionKeyPrefix+claims.ID).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("session revoked: %w", errs.ErrUnauthorized)
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if uid != claims.Subject {
		return "", fmt.Errorf("session subject mismatch: %w", errs.ErrUnauthorized)
	}
	return uid, nil
}

// Revoke ends the session of token.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeyPrefix+claims.ID)
		pipe.SRem(ctx, userSessionKeyPrefix+claims.Subject, claims.ID)
		return nil
	})
	return err
}

// RevokeAll ends every session of uid.
func (s *Sessions) RevokeAll(ctx context.Context, uid string) error {
	userKey := userSessionKeyPrefix + uid
	ids, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, userKey)
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *Sessions) parse(token string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", errs.ErrUnauthorized)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("incomplete token: %w", errs.ErrUnauthorized)
	}
	return &claims, nil
}
