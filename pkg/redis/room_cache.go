package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/party-queue-system/pkg/models"
)

const roomCacheTTL = 24 * time.Hour

// RoomCache is a read-through cache for room lookups by code, so the join
// path does not hit the database for every status poll.
type RoomCache struct {
	client *redis.Client
}

func NewRoomCache(client *redis.Client) *RoomCache {
	return &RoomCache{client: client}
}

func roomKey(code string) string {
	return fmt.Sprintf("room:%s", code)
}

func (c *RoomCache) Get(ctx context.Context, code string) (*models.Room, error) {
	roomJSON, err := c.client.Get(ctx, roomKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached room: %w", err)
	}

	var room models.Room
	if err := json.Unmarshal(roomJSON, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached room: %w", err)
	}
	return &room, nil
}

func (c *RoomCache) Put(ctx context.Context, room *models.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	return c.client.Set(ctx, roomKey(room.Code), roomJSON, roomCacheTTL).Err()
}

func (c *RoomCache) Invalidate(ctx context.Context, code string) error {
	return c.client.Del(ctx, roomKey(code)).Err()
}
