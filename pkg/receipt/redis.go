package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "missivehub:receipts:"
	redisIndexKey  = "missivehub:receipts:index"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultRedisConfig returns the default connection settings with a
// 30-day retention.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr: "localhost:6379",
		TTL:  30 * 24 * time.Hour,
	}
}

// RedisStore persists receipts as JSON values with a sorted-set index
// on update time, so listing stays cheap.
type RedisStore struct {
	client         *redis.Client
	ttl            time.Duration
	externalClient bool
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisStore{client: client, ttl: config.TTL}, nil
}

// NewRedisStoreWithClient wraps an externally managed client; Close
// leaves it open.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, externalClient: true}
}

// Save stores or replaces the receipt for its missive ID.
func (s *RedisStore) Save(ctx context.Context, r *Receipt) error {
	clone := *r
	clone.UpdatedAt = time.Now()
	payload, err := json.Marshal(&clone)
	if err != nil {
		return fmt.Errorf("encode receipt %s: %w", r.MissiveID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+r.MissiveID, payload, s.ttl)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{
		Score:  float64(clone.UpdatedAt.UnixMilli()),
		Member: r.MissiveID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store receipt %s: %w", r.MissiveID, err)
	}
	return nil
}

// Get returns the receipt for a missive ID, ErrNotFound when absent.
func (s *RedisStore) Get(ctx context.Context, missiveID string) (*Receipt, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+missiveID).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load receipt %s: %w", missiveID, err)
	}
	var r Receipt
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", missiveID, err)
	}
	return &r, nil
}

// List returns up to limit receipts, most recently updated first.
// Entries whose value expired but whose index entry survived are
// dropped from the result and cleaned up.
func (s *RedisStore) List(ctx context.Context, limit int) ([]*Receipt, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.ZRevRange(ctx, redisIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}

	out := make([]*Receipt, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if err == ErrNotFound {
			s.client.ZRem(ctx, redisIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete removes the receipt for a missive ID; unknown IDs are a no-op.
func (s *RedisStore) Delete(ctx context.Context, missiveID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+missiveID)
	pipe.ZRem(ctx, redisIndexKey, missiveID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete receipt %s: %w", missiveID, err)
	}
	return nil
}

// Close closes the connection unless the client is managed externally.
func (s *RedisStore) Close() error {
	if s.externalClient {
		return nil
	}
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
