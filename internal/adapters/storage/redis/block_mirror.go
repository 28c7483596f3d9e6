// Package redis mirrors active blocks into Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/drullandev/trust-engine/internal/core/domain"
	"github.com/drullandev/trust-engine/internal/core/ports"
)

const DefaultPrefix = "trust:block:"

// BlockMirror writes active blocks to Redis as keys that expire with the
// block, so edge proxies can refuse traffic without calling the engine.
type BlockMirror struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ ports.BlockPublisher = (*BlockMirror)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func New(cfg Config) (*BlockMirror, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client, cfg.Prefix), nil
}

func NewWithClient(client *redis.Client, prefix string) *BlockMirror {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &BlockMirror{client: client, prefix: prefix, now: time.Now}
}

func (m *BlockMirror) Close() error {
	return m.client.Close()
}

// Publish sets or removes the mirrored block. Blocks that already expired
// are removed.
func (m *BlockMirror) Publish(ctx context.Context, event domain.BlockEvent) error {
	key := m.prefix + event.Identity
	remaining := event.Until.Sub(m.now())
	if event.Until.IsZero() || remaining <= 0 {
		return m.client.Del(ctx, key).Err()
	}
	until := event.Until.UTC().Format(time.RFC3339Nano)
	return m.client.Set(ctx, key, until, remaining).Err()
}

func (m *BlockMirror) IsBlocked(ctx context.Context, identity string) (bool, error) {
	exists, err := m.client.Exists(ctx, m.prefix+identity).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// BlockedUntil returns the mirrored expiry, or false when no block is stored.
func (m *BlockMirror) BlockedUntil(ctx context.Context, identity string) (time.Time, bool, error) {
	raw, err := m.client.Get(ctx, m.prefix+identity).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt block entry for %s: %w", identity, err)
	}
	return until, true, nil
}
