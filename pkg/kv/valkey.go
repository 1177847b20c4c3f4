package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "qtube:"
	pingTimeout      = 5 * time.Second
)

// ValkeyStore keeps short-lived session state (login throttle counters and
// lockouts) in Valkey so every API replica sees the same values. All keys
// are namespaced under a prefix so the instance can be shared.
type ValkeyStore struct {
	client *redis.Client
	prefix string
}

type ValkeyConfig struct {
	Addr     string // host:port
	Password string
	DB       int
	// KeyPrefix namespaces every key. Empty means DefaultKeyPrefix.
	KeyPrefix string
}

// NewValkeyStore connects and pings the server.
func NewValkeyStore(ctx context.Context, cfg ValkeyConfig) (*ValkeyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping valkey at %s: %w", cfg.Addr, err)
	}

	return NewValkeyStoreFromClient(client, cfg.KeyPrefix), nil
}

func NewValkeyStoreFromClient(client *redis.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) key(k string) string {
	return s.prefix + k
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *ValkeyStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.client.Del(ctx, full...).Err()
}

func (s *ValkeyStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.key(key), value, ttl).Result()
}

// Incr runs INCR and, for a freshly created counter, EXPIRE in one
// MULTI/EXEC so the counter can never be left without a TTL.
func (s *ValkeyStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	full := s.key(key)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, full)
		if ttl > 0 {
			pipe.ExpireNX(ctx, full, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *ValkeyStore) Close() error {
	return s.client.Close()
}

var _ Store = (*ValkeyStore)(nil)
