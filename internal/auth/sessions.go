package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aidarkhanov/nanoid/v2"
	"github.com/go-redis/redis/v8"
)

// RefreshTokenDuration determines the length of a refresh session (60 days).
const RefreshTokenDuration = time.Hour * 24 * 60

const refreshTokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ErrSessionNotFound is returned when a refresh token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists refresh-token sessions. Tokens are opaque ids; the
// store maps them back to the owning user until they expire or are revoked.
type SessionStore interface {
	Create(ctx context.Context, userID uint) (string, error)
	Resolve(ctx context.Context, token string) (uint, error)
	Revoke(ctx context.Context, token string) error
}

// RedisSessionStore keeps refresh sessions in Redis with a TTL.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore wraps an existing Redis client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(token string) string {
	return "refreshtokens:" + token
}

// Create mints a new refresh token for userID.
func (s *RedisSessionStore) Create(ctx context.Context, userID uint) (string, error) {
	token, err := nanoid.GenerateString(refreshTokenAlphabet, 32)
	if err != nil {
		return "", err
	}

	err = s.client.Set(ctx, sessionKey(token), strconv.FormatUint(uint64(userID), 10), RefreshTokenDuration).Err()
	if err != nil {
		return "", err
	}

	return token, nil
}

// Resolve returns the user that owns token, or ErrSessionNotFound.
func (s *RedisSessionStore) Resolve(ctx context.Context, token string) (uint, error) {
	val, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, ErrSessionNotFound
	}

	return uint(userID), nil
}

// Revoke deletes the session for token. Revoking an unknown token is a no-op.
func (s *RedisSessionStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}
