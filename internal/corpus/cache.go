package corpus

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/komiyamma/imageplan/internal/refscan"
)

// Cache stores extracted references by content digest.
type Cache interface {
	Get(ctx context.Context, digest string) ([]refscan.Reference, bool, error)
	Put(ctx context.Context, digest string, refs []refscan.Reference) error
}

// Digest is the hex BLAKE2b-256 of content.
func Digest(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

const defaultCacheTTL = 7 * 24 * time.Hour

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient creates a cache from an existing Redis client
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{
		client: client,
		prefix: "imageplan:refs:",
		ttl:    ttl,
	}
}

func (c *RedisCache) key(digest string) string {
	return c.prefix + digest
}

func (c *RedisCache) Get(ctx context.Context, digest string) ([]refscan.Reference, bool, error) {
	payload, err := c.client.Get(ctx, c.key(digest)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup refs: %w", err)
	}
	var refs []refscan.Reference
	if err := json.Unmarshal([]byte(payload), &refs); err != nil {
		return nil, false, fmt.Errorf("unmarshal refs: %w", err)
	}
	return refs, true, nil
}

func (c *RedisCache) Put(ctx context.Context, digest string, refs []refscan.Reference) error {
	if refs == nil {
		refs = []refscan.Reference{}
	}
	payload, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("marshal refs: %w", err)
	}
	if err := c.client.Set(ctx, c.key(digest), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("save refs: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
