// Package auth verifies phone numbers with one-time codes and issues session
// tokens to verified users.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/pkg/utils"
)

const (
	// DefaultCodeTTL matches the verification timeout shown to users.
	DefaultCodeTTL     = 60 * time.Second
	DefaultMaxAttempts = 5
	codeDigits         = 6

	otpKeyPrefix      = "otp:"
	phoneUIDKeyPrefix = "phone_uid:"
	uidPhoneKeyPrefix = "uid_phone:"
)

// Identity is a verified phone-number account.
type Identity struct {
	UID         string
	PhoneNumber string
}

// Provider is the phone authentication boundary.
type Provider interface {
	// SendCode delivers a code to phone and returns the verification id to
	// verify it against.
	SendCode(ctx context.Context, phone string) (string, error)
	VerifyCode(ctx context.Context, verificationID, code string) (Identity, error)
	// Revoke forgets the account so the phone number signs up afresh.
	Revoke(ctx context.Context, uid string) error
}

// SMSSender delivers a text message.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender writes codes to the log instead of sending them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, phone, message string) error {
	log.Info().Str("phone", phone).Str("message", message).Msg("sms not sent, no gateway configured")
	return nil
}

// RedisProvider keeps hashed codes and the phone to uid mapping in Redis.
type RedisProvider struct {
	rdb         redis.Cmdable
	sender      SMSSender
	ttl         time.Duration
	maxAttempts int
	hashParams  utils.HashParams
}

type ProviderOption func(*RedisProvider)

func WithCodeTTL(ttl time.Duration) ProviderOption {
	return func(p *RedisProvider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

func WithMaxAttempts(n int) ProviderOption {
	return func(p *RedisProvider) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithHashParams(params utils.HashParams) ProviderOption {
	return func(p *RedisProvider) { p.hashParams = params }
}

func NewRedisProvider(rdb redis.Cmdable, sender SMSSender, opts ...ProviderOption) *RedisProvider {
	if sender == nil {
		sender = LogSender{}
	}
	p := &RedisProvider{
		rdb:         rdb,
		sender:      sender,
		ttl:         DefaultCodeTTL,
		maxAttempts: DefaultMaxAttempts,
		hashParams:  utils.DefaultHashParams,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RedisProvider) SendCode(ctx context.Context, phone string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := utils.HashSecret(code, p.hashParams)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	verificationID := uuid.NewString()
	key := otpKeyPrefix + verificationID
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "phone", phone, "code_hash", hash, "attempts", 0)
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	msg := fmt.Sprintf("Your ThriftIt verification code is %s", code)
	if err := p.sender.Send(ctx, phone, msg); err != nil {
		p.rdb.Del(ctx, key)
		return "", fmt.Errorf("send code: %w", err)
	}
	return verificationID, nil
}

// attemptScript counts a verification attempt only while the code is live, so
// an expired key is never recreated without its TTL.
var attemptScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// countAttempt returns the attempt number for key, or ErrUnauthorized once
// the code has expired.
func (p *RedisProvider) countAttempt(ctx context.Context, key string) (int64, error) {
	n, err := attemptScript.Run(ctx, p.rdb, []string{key}).Int64()
	if err != nil {
		return 0, fmt.Errorf("count attempt: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("verification expired: %w", errs.ErrUnauthorized)
	}
	return n, nil
}

func (p *RedisProvider) VerifyCode(ctx context.Context, verificationID, code string) (Identity, error) {
	key := otpKeyPrefix + verificationID
	fields, err := p.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Identity{}, fmt.Errorf("load code: %w", err)
	}
	if len(fields) == 0 {
		return Identity{}, fmt.Errorf("verification expired: %w", errs.ErrUnauthorized)
	}

	attempts, err := p.countAttempt(ctx, key)
	if err != nil {
		return Identity{}, err
	}
	if attempts > int64(p.maxAttempts) {
		p.rdb.Del(ctx, key)
		return Identity{}, fmt.Errorf("too many attempts: %w", errs.ErrRateLimited)
	}

	ok, err := utils.VerifySecret(code, fields["code_hash"])
	if err != nil {
		return Identity{}, fmt.Errorf("check code: %w", err)
	}
	if !ok {
		return Identity{}, fmt.Errorf("wrong code: %w", errs.ErrUnauthorized)
	}
	p.rdb.Del(ctx, key)

	phone := fields["phone"]
	uid, err := p.uidFor(ctx, phone)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UID: uid, PhoneNumber: phone}, nil
}

// uidFor returns the uid mapped to phone, assigning a new one on first sign-in.
func (p *RedisProvider) uidFor(ctx context.Context, phone string) (string, error) {
	candidate := uuid.NewString()
	created, err := p.rdb.SetNX(ctx, phoneUIDKeyPrefix+phone, candidate, 0).Result()
	if err != nil {
		return "", fmt.Errorf("assign uid: %w", err)
	}
	if created {
		if err := p.rdb.Set(ctx, uidPhoneKeyPrefix+candidate, phone, 0).Err(); err != nil {
			return "", fmt.Errorf("assign uid: %w", err)
		}
		return candidate, nil
	}
	uid, err := p.rdb.Get(ctx, phoneUIDKeyPrefix+phone).Result()
	if err != nil {
		return "", fmt.Errorf("load uid: %w", err)
	}
	return uid, nil
}

func (p *RedisProvider) Revoke(ctx context.Context, uid string) error {
	phone, err := p.rdb.Get(ctx, uidPhoneKeyPrefix+uid).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load phone: %w", err)
	}
	return p.rdb.Del(ctx, uidPhoneKeyPrefix+uid, phoneUIDKeyPrefix+phone).Err()
}

func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
