package core

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/A7-pro/mikerobot/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGateway scripts the assistant. When release is set, StreamText signals started and then blocks
// until release is closed.
type fakeGateway struct {
	mu           sync.Mutex
	instructions []string
	prompts      []string
	imagePrompts []string

	chunks    []StreamChunk
	streamErr error
	imageURL  string
	imageErr  error

	started chan struct{}
	release chan struct{}
}

func (g *fakeGateway) NewChatSession(instruction string) ChatSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.instructions = append(g.instructions, instruction)
	return &fakeChat{g: g}
}

func (g *fakeGateway) GenerateImage(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.imagePrompts = append(g.imagePrompts, prompt)
	return g.imageURL, g.imageErr
}

func (g *fakeGateway) lastInstruction() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.instructions) == 0 {
		return ""
	}
	return g.instructions[len(g.instructions)-1]
}

func (g *fakeGateway) streamCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type fakeChat struct {
	g *fakeGateway
}

func (c *fakeChat) StreamText(_ context.Context, prompt string) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		c.g.mu.Lock()
		c.g.prompts = append(c.g.prompts, prompt)
		chunks, streamErr := c.g.chunks, c.g.streamErr
		started, release := c.g.started, c.g.release
		c.g.mu.Unlock()

		if release != nil {
			started <- struct{}{}
			<-release
		}
		for _, ch := range chunks {
			if !yield(ch, nil) {
				return
			}
		}
		if streamErr != nil {
			yield(StreamChunk{}, streamErr)
			return
		}
		yield(StreamChunk{Final: true}, nil)
	}
}

// testClock advances one second per reading so timestamps are strictly ordered.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type idSeq struct {
	mu sync.Mutex
	n  int
}

func (s *idSeq) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%04d", s.n)
}

type harness struct {
	repo  *store.Repository
	chats *ChatService
	clock *testClock
}

func newHarness(t *testing.T, gw Gateway) *harness {
	t.Helper()
	return newHarnessWithKV(t, gw, store.NewMemoryStore())
}

func newHarnessWithKV(t *testing.T, gw Gateway, kv store.KV) *harness {
	t.Helper()
	repo := store.NewRepository(kv)
	clock := newTestClock()
	ids := &idSeq{}
	return &harness{
		repo:  repo,
		chats: NewChatService(repo, gw, WithClock(clock.Now), WithIDGenerator(ids.Next)),
		clock: clock,
	}
}

var testUser = store.User{ID: "sara@example.com", Username: "Sara", Email: "sara@example.com"}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	sess, err := h.chats.Session(context.Background(), testUser)
	require.NoError(t, err)
	return sess
}

func (h *harness) storedConversations(t *testing.T) []store.Conversation {
	t.Helper()
	convs, err := h.repo.Conversations(context.Background(), testUser.ID)
	require.NoError(t, err)
	return convs
}

func lastMessage(sess *Session) store.ChatMessage {
	msgs := sess.Messages()
	return msgs[len(msgs)-1]
}
