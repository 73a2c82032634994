package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// stateTTL bounds how long an OAuth flow may stay pending. Abandoned flows
// evict themselves instead of accumulating.
const stateTTL = 10 * time.Minute

// StateStore keeps transient OAuth state values for in-flight authorization
// flows, keyed by the state string sent to the provider.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

func stateKey(state string) string {
	return fmt.Sprintf("oauth_state:%s", state)
}

// Put records the room awaiting the callback for this state value.
func (s *StateStore) Put(ctx context.Context, state, roomID string) error {
	if err := s.client.Set(ctx, stateKey(state), roomID, stateTTL).Err(); err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

// Take consumes the state value, returning the room it belongs to. A state
// can be taken once; replays and expired states return ErrNotFound.
func (s *StateStore) Take(ctx context.Context, state string) (string, error) {
	roomID, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to take oauth state: %w", err)
	}
	return roomID, nil
}
