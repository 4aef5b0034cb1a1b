package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

// GlobalScope holds deployment-wide records such as the admin instruction and the announcement.
const GlobalScope = "global"

// Key identifies one record: a key name inside a scope (user id, client id, identity or GlobalScope).
type Key struct {
	Scope string
	Name  string
}

// String renders the key in the flattened "name_scope" form.
func (k Key) String() string {
	return k.Name + "_" + k.Scope
}

// KV is the keyed store every backend implements. Writes are whole-value overwrites; concurrent
// writers race and the last one wins.
type KV interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Put(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
	ListKeysWithPrefix(ctx context.Context, prefix string) ([]Key, error)
	Close() error
}

// Open picks a backend by driver name.
func Open(ctx context.Context, driver string, opts Options) (KV, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return NewSQLiteStore(opts.DatabaseURL)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			Prefix:   opts.RedisPrefix,
		})
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

type Options struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}
