package config

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

type CacheService struct {
	Connection *redis.Client
}

func NewCacheService(ctx context.Context, cfg RedisConfig) (*CacheService, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &CacheService{Connection: c}, nil
}

// GetKey decodes the JSON value stored at key into src. It returns redis.Nil
// when the key does not exist.
func (c *CacheService) GetKey(ctx context.Context, key string, src interface{}) error {
	val, err := c.Connection.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), src)
}

// SetKey stores value at key as JSON.
func (c *CacheService) SetKey(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	cacheEntry, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.Connection.Set(ctx, key, cacheEntry, expiration).Err()
}

func (c *CacheService) IsMember(ctx context.Context, key string, member string) (bool, error) {
	return c.Connection.SIsMember(ctx, key, member).Result()
}

func (c *CacheService) Close() error {
	return c.Connection.Close()
}
