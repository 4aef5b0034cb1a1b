package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps every record as a plain string value under "<prefix>:<name>_<scope>".
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreWithClient(rdb, opts.Prefix), nil
}

func NewRedisStoreWithClient(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "mike"
	}
	return &RedisStore{redis: rdb, prefix: prefix}
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func (s *RedisStore) redisKey(scope, key string) string {
	return s.prefix + ":" + Key{Scope: scope, Name: key}.String()
}

func (s *RedisStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	value, err := s.redis.Get(ctx, s.redisKey(scope, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Put(ctx context.Context, scope, key string, value []byte) error {
	if err := s.redis.Set(ctx, s.redisKey(scope, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, scope, key string) error {
	if err := s.redis.Del(ctx, s.redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// ListKeysWithPrefix scans the keyspace. Key names must not contain "_" for the scope split to be
// unambiguous; every name in this module is camelCase.
func (s *RedisStore) ListKeysWithPrefix(ctx context.Context, prefix string) ([]Key, error) {
	match := s.prefix + ":" + globEscape(prefix) + "*"
	var (
		cursor uint64
		keys   []Key
	)
	for {
		batch, next, err := s.redis.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, raw := range batch {
			flat := strings.TrimPrefix(raw, s.prefix+":")
			name, scope, ok := strings.Cut(flat, "_")
			if !ok {
				continue
			}
			keys = append(keys, Key{Scope: scope, Name: name})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func globEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`).Replace(s)
}
