package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/wacrm-dispatch/internal/config"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Connect builds a client from cfg and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCache(rdb, cfg.TTL), nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

type sentValue struct {
	MessageID int64     `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}

func key(providerMessageID string) string {
	return "wamsg:" + providerMessageID
}

func (c *RedisCache) StoreSent(ctx context.Context, messageID int64, providerMessageID string, sentAt time.Time) error {
	if providerMessageID == "" {
		return nil
	}
	val := sentValue{
		MessageID: messageID,
		SentAt:    sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key(providerMessageID), b, c.ttl).Err()
}

func (c *RedisCache) LookupMessageID(ctx context.Context, providerMessageID string) (int64, bool, error) {
	raw, err := c.rdb.Get(ctx, key(providerMessageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var val sentValue
	if err := json.Unmarshal(raw, &val); err != nil {
		return 0, false, fmt.Errorf("decode cached value: %w", err)
	}
	return val.MessageID, true, nil
}

var _ MessageCache = (*RedisCache)(nil)
