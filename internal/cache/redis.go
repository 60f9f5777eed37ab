package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperifyio/goenrich/internal/enrich"
)

// DefaultKeyPrefix namespaces result keys in a shared Redis database.
const DefaultKeyPrefix = "goenrich:result:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps results in Redis as JSON entries. Redis expires keys
// after the freshness window and Get checks the age again on read.
type RedisStore struct {
	client *redis.Client
	Prefix string
	TTL    time.Duration
	Now    func() time.Time
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, Prefix: DefaultKeyPrefix, TTL: DefaultTTL}
}

func (s *RedisStore) key(url string) string { return s.Prefix + url }

func (s *RedisStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *RedisStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

func (s *RedisStore) Get(ctx context.Context, url string) (enrich.Result, bool, error) {
	b, err := s.client.Get(ctx, s.key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		recordOp("redis", "get", "miss")
		return enrich.Result{}, false, nil
	}
	if err != nil {
		recordOp("redis", "get", "error")
		return enrich.Result{}, false, fmt.Errorf("failed to get from cache: %w", err)
	}
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		recordOp("redis", "get", "error")
		return enrich.Result{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	if !e.fresh(s.now(), s.ttl()) {
		recordOp("redis", "get", "miss")
		return enrich.Result{}, false, nil
	}
	recordOp("redis", "get", "hit")
	e.Result.Normalize()
	return e.Result, true, nil
}

func (s *RedisStore) Put(ctx context.Context, url string, result enrich.Result) error {
	b, err := json.Marshal(entry{Result: result, CreatedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(url), b, s.ttl()).Err(); err != nil {
		recordOp("redis", "put", "error")
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	recordOp("redis", "put", "ok")
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, url string) error {
	if err := s.client.Del(ctx, s.key(url)).Err(); err != nil {
		recordOp("redis", "invalidate", "error")
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	recordOp("redis", "invalidate", "ok")
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
