package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("not found")

type TokenInfo struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenStore holds the host's Spotify tokens per room. Entries expire with
// the room's 24h lifetime so closed rooms do not pin credentials forever.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func tokenKey(roomID string) string {
	return fmt.Sprintf("token:%s", roomID)
}

func (s *TokenStore) StoreTokens(ctx context.Context, roomID string, token *TokenInfo) error {
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := s.client.Set(ctx, tokenKey(roomID), tokenJSON, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (s *TokenStore) GetTokens(ctx context.Context, roomID string) (*TokenInfo, error) {
	tokenJSON, err := s.client.Get(ctx, tokenKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var token TokenInfo
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

func (s *TokenStore) DeleteTokens(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, tokenKey(roomID)).Err()
}

// RefreshTokens updates the access token and its expiry.
func (s *TokenStore) RefreshTokens(ctx context.Context, roomID string, accessToken string, expiresAt time.Time) error {
	token, err := s.GetTokens(ctx, roomID)
	if err != nil {
		return err
	}

	token.AccessToken = accessToken
	token.ExpiresAt = expiresAt
	return s.StoreTokens(ctx, roomID, token)
}
