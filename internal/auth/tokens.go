package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinistock/clinistock/internal/shared"
)

// TokenStore keeps bearer tokens in Redis so every API instance sees the
// same sessions.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore with the given token lifetime.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenStore{client: client, ttl: ttl}
}

type tokenPayload struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
}

func tokenKey(token string) string {
	return "token:" + token
}

// Issue creates a fresh token for the actor.
func (s *TokenStore) Issue(ctx context.Context, actor shared.Actor) (string, error) {
	token := uuid.NewString()
	raw, err := json.Marshal(tokenPayload{UserID: actor.UserID, Login: actor.Login})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, tokenKey(token), raw, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the actor behind a token and refreshes its lifetime.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	raw, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Actor{}, shared.ErrInvalidCredentials
		}
		return shared.Actor{}, err
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return shared.Actor{}, err
	}
	// Sliding expiry: active sessions stay alive.
	_ = s.client.Expire(ctx, tokenKey(token), s.ttl).Err()
	return shared.Actor{UserID: payload.UserID, Login: payload.Login}, nil
}

// Revoke invalidates a token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKey(token)).Err()
}
