package display

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"esperanza/internal/platform/redis"
	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

const boardKeyPrefix = "kiosk:display:"

// Snapshots outlive the day they describe so late-evening screens keep
// rendering, then expire on their own.
const boardTTL = 48 * time.Hour

// RedisBoard keeps one JSON snapshot per day in redis, shared across
// kiosk instances.
type RedisBoard struct {
	client *redis.Client
}

func NewRedisBoard(client *redis.Client) *RedisBoard {
	return &RedisBoard{client: client}
}

func (b *RedisBoard) Publish(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode board snapshot: %w", err)
	}
	if err := b.client.Set(ctx, boardKey(snap.Day), payload, boardTTL).Err(); err != nil {
		return fmt.Errorf("publish board snapshot: %w", sentinel.ErrUnavailable)
	}
	return nil
}

func (b *RedisBoard) Current(ctx context.Context, day domain.Day) (*Snapshot, error) {
	payload, err := b.client.Get(ctx, boardKey(day)).Bytes()
	if err == goredis.Nil {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read board snapshot: %w", sentinel.ErrUnavailable)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode board snapshot: %w", err)
	}
	return &snap, nil
}

func boardKey(day domain.Day) string { return boardKeyPrefix + string(day) }
