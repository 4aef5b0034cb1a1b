package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A7-pro/mikerobot/internal/store"
)

// slowProfileKV holds the first profile read for one user until release is closed.
type slowProfileKV struct {
	store.KV
	userID  string
	reads   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (k *slowProfileKV) Get(ctx context.Context, scope, key string) ([]byte, error) {
	if key == "userProfile" && scope == k.userID {
		if k.reads.Add(1) == 1 {
			close(k.entered)
		}
		<-k.release
	}
	return k.KV.Get(ctx, scope, key)
}

func TestSessionHydratesOncePerUser(t *testing.T) {
	ctx := context.Background()
	kv := &slowProfileKV{
		KV:      store.NewMemoryStore(),
		userID:  testUser.ID,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newHarnessWithKV(t, &fakeGateway{}, kv)

	var wg sync.WaitGroup
	got := make([]*Session, 3)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := h.chats.Session(ctx, testUser)
			assert.NoError(t, err)
			got[i] = sess
		}()
	}
	<-kv.entered

	other, err := h.chats.Session(ctx, store.User{ID: "omar@example.com", Username: "Omar"})
	require.NoError(t, err)
	assert.Equal(t, "omar@example.com", other.User().ID)

	close(kv.release)
	wg.Wait()

	require.NotNil(t, got[0])
	for _, sess := range got[1:] {
		assert.Same(t, got[0], sess)
	}
	assert.Equal(t, int32(1), kv.reads.Load())
	live, ok := h.chats.Lookup(testUser.ID)
	require.True(t, ok)
	assert.Same(t, got[0], live)
}
