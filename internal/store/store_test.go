package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rs := NewRedisStoreWithClient(rdb, "test")
	t.Cleanup(func() { _ = rs.Close() })

	return map[string]KV{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
		"redis":  rs,
	}
}

func TestKVConformance(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "alice", "userProfile")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Put(ctx, "alice", "userProfile", []byte(`{"age":30}`)))
			require.NoError(t, kv.Put(ctx, "alice", "userProfile", []byte(`{"age":31}`)))
			got, err := kv.Get(ctx, "alice", "userProfile")
			require.NoError(t, err)
			assert.Equal(t, `{"age":31}`, string(got))

			require.NoError(t, kv.Put(ctx, "bob_smith", "dismissedAnnouncements", []byte(`[]`)))
			require.NoError(t, kv.Put(ctx, "alice", "dismissedAnnouncements", []byte(`[]`)))
			require.NoError(t, kv.Put(ctx, GlobalScope, "globalAnnouncement", []byte(`{}`)))

			keys, err := kv.ListKeysWithPrefix(ctx, "dismissed")
			require.NoError(t, err)
			assert.ElementsMatch(t, []Key{
				{Scope: "alice", Name: "dismissedAnnouncements"},
				{Scope: "bob_smith", Name: "dismissedAnnouncements"},
			}, keys)

			require.NoError(t, kv.Delete(ctx, "alice", "userProfile"))
			require.NoError(t, kv.Delete(ctx, "alice", "userProfile"))
			_, err = kv.Get(ctx, "alice", "userProfile")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLiteListEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "x", "a%b", []byte("1")))
	require.NoError(t, s.Put(ctx, "x", "axb", []byte("2")))

	keys, err := s.ListKeysWithPrefix(ctx, "a%")
	require.NoError(t, err)
	assert.Equal(t, []Key{{Scope: "x", Name: "a%b"}}, keys)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "cassandra", Options{})
	assert.Error(t, err)
}
