package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kinds of per-collection lists the console caches.
var listKinds = []string{"files", "filesets"}

// ListCache stores per-collection string lists such as file names and
// fileset names.
type ListCache interface {
	GetList(ctx context.Context, collection, kind string) ([]string, bool, error)
	SetList(ctx context.Context, collection, kind string, values []string) error
	Invalidate(ctx context.Context, collection string) error
	Close() error
}

type redisListCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisListCache builds a cache with the given addr/password/db.
func NewRedisListCache(addr, password string, db int, ttl time.Duration, prefix string) (ListCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if prefix == "" {
		prefix = "chroma-auditor"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisListCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func listKey(prefix, collection, kind string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, collection, kind)
}

func (c *redisListCache) GetList(ctx context.Context, collection, kind string) ([]string, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, listKey(c.prefix, collection, kind)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (c *redisListCache) SetList(ctx context.Context, collection, kind string, values []string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listKey(c.prefix, collection, kind), data, c.ttl).Err()
}

func (c *redisListCache) Invalidate(ctx context.Context, collection string) error {
	if c == nil || c.client == nil {
		return nil
	}
	keys := make([]string, 0, len(listKinds))
	for _, kind := range listKinds {
		keys = append(keys, listKey(c.prefix, collection, kind))
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisListCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
