package core

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A7-pro/mikerobot/internal/store"
)

func assertNothingLoading(t *testing.T, h *harness) {
	t.Helper()
	for _, c := range h.storedConversations(t) {
		for _, m := range c.Messages {
			assert.NotEqual(t, store.MessageLoading, m.Type, "message %s left loading in %s", m.ID, c.ID)
		}
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	h := newHarness(t, &fakeGateway{})
	sess := h.session(t)
	before := sess.Messages()

	assert.ErrorIs(t, sess.Send(context.Background(), "   "), ErrEmptyMessage)
	assert.Equal(t, before, sess.Messages())
}

func TestSendCreatorQuestion(t *testing.T) {
	gw := &fakeGateway{}
	h := newHarness(t, gw)
	sess := h.session(t)

	require.NoError(t, sess.Send(context.Background(), "مين سواك؟"))

	reply := lastMessage(sess)
	assert.Equal(t, store.SenderAI, reply.Sender)
	assert.Equal(t, store.MessageText, reply.Type)
	assert.Equal(t, creatorResponse, reply.Text)
	assert.Zero(t, gw.streamCalls())
	assert.Equal(t, StateIdle, sess.State())
	assertNothingLoading(t, h)
}

func TestSendImageRequest(t *testing.T) {
	gw := &fakeGateway{imageURL: "data:image/jpeg;base64,AAAA"}
	h := newHarness(t, gw)
	sess := h.session(t)

	require.NoError(t, sess.Send(context.Background(), "ارسم لي قطة"))

	assert.Equal(t, []string{"قطة"}, gw.imagePrompts)
	reply := lastMessage(sess)
	assert.Equal(t, store.MessageImage, reply.Type)
	assert.Equal(t, gw.imageURL, reply.ImageURL)
	assert.Equal(t, imageReadyText("قطة"), reply.Text)
	assert.Zero(t, gw.streamCalls())
	assertNothingLoading(t, h)
}

func TestSendImageWithoutPromptUsesDefault(t *testing.T) {
	gw := &fakeGateway{imageURL: "https://img.example/1.jpg"}
	h := newHarness(t, gw)
	sess := h.session(t)

	require.NoError(t, sess.Send(context.Background(), "ارسم"))
	assert.Equal(t, []string{defaultImagePrompt}, gw.imagePrompts)
	assert.Equal(t, store.MessageImage, lastMessage(sess).Type)
}

func TestSendImageFailures(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		err      error
		wantText string
	}{
		{name: "no image", err: ErrNoImage, wantText: imageEmptyText},
		{name: "empty reference", wantText: imageEmptyText},
		{name: "provider error", err: errors.New("quota exceeded"), wantText: imageErrorPrefix + "quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{imageURL: tt.url, imageErr: tt.err}
			h := newHarness(t, gw)
			sess := h.session(t)

			require.NoError(t, sess.Send(context.Background(), "draw a boat"))

			reply := lastMessage(sess)
			assert.Equal(t, store.MessageError, reply.Type)
			assert.Equal(t, tt.wantText, reply.Text)
			assert.Equal(t, StateIdle, sess.State())
		})
	}
}

func TestSendClearStartsNewConversation(t *testing.T) {
	gw := &fakeGateway{}
	h := newHarness(t, gw)
	sess := h.session(t)
	old := sess.ActiveConversationID()

	require.NoError(t, sess.Send(context.Background(), "امسح الشات"))

	assert.NotEqual(t, old, sess.ActiveConversationID())
	msgs := sess.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, InitialGreeting, msgs[0].Text)
	assert.Zero(t, gw.streamCalls())
	assert.Empty(t, gw.imagePrompts)
	assertNothingLoading(t, h)

	convs := h.storedConversations(t)
	require.Len(t, convs, 2)
	assert.Equal(t, sess.ActiveConversationID(), convs[0].ID)
}

func TestSendStreamsAccumulatedText(t *testing.T) {
	gw := &fakeGateway{chunks: []StreamChunk{{Text: "مرحبا"}, {Text: " بك"}}}
	h := newHarness(t, gw)
	sess := h.session(t)

	var (
		mu   sync.Mutex
		seen []string
	)
	unsubscribe := sess.Subscribe(func(ev Event) {
		if ev.Kind != EventUpsert || ev.Message.Sender != store.SenderAI {
			return
		}
		mu.Lock()
		seen = append(seen, ev.Message.Text)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, sess.Send(context.Background(), "هلا"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{thinkingText, "مرحبا", "مرحبا بك", "مرحبا بك"}, seen)
	reply := lastMessage(sess)
	assert.Equal(t, store.MessageText, reply.Type)
	assert.Equal(t, "مرحبا بك", reply.Text)
	assertNothingLoading(t, h)
}

func TestSendStreamFinalFallbacks(t *testing.T) {
	ref := []store.GroundingChunk{{Web: store.GroundingChunkWeb{URI: "https://example.com", Title: "Example"}}}

	t.Run("empty", func(t *testing.T) {
		h := newHarness(t, &fakeGateway{})
		sess := h.session(t)
		require.NoError(t, sess.Send(context.Background(), "?"))
		assert.Equal(t, noAnswerText, lastMessage(sess).Text)
	})

	t.Run("grounding only", func(t *testing.T) {
		h := newHarness(t, &fakeGateway{chunks: []StreamChunk{{Grounding: ref}}})
		sess := h.session(t)
		require.NoError(t, sess.Send(context.Background(), "?"))
		reply := lastMessage(sess)
		assert.Equal(t, " ", reply.Text)
		assert.Equal(t, ref, reply.GroundingChunks)
	})

	t.Run("grounding retained", func(t *testing.T) {
		h := newHarness(t, &fakeGateway{chunks: []StreamChunk{{Text: "a", Grounding: ref}, {Text: "b"}}})
		sess := h.session(t)
		require.NoError(t, sess.Send(context.Background(), "?"))
		reply := lastMessage(sess)
		assert.Equal(t, "ab", reply.Text)
		assert.Equal(t, ref, reply.GroundingChunks)
	})
}

func TestSendStreamError(t *testing.T) {
	gw := &fakeGateway{chunks: []StreamChunk{{Text: "نص"}}, streamErr: errors.New("connection reset")}
	h := newHarness(t, gw)
	sess := h.session(t)

	require.NoError(t, sess.Send(context.Background(), "سؤال"))

	reply := lastMessage(sess)
	assert.Equal(t, store.MessageError, reply.Type)
	assert.Equal(t, textErrorPrefix+"connection reset", reply.Text)
	assert.Equal(t, StateIdle, sess.State())
	assertNothingLoading(t, h)
}

func TestProfileSaveRecomposesInstruction(t *testing.T) {
	gw := &fakeGateway{}
	h := newHarness(t, gw)
	sess := h.session(t)

	profile := store.UserProfile{DisplayName: " سارة ", Age: 27}
	require.NoError(t, sess.SaveProfile(context.Background(), profile))

	want := ComposeInstruction(BaseInstruction, "", &store.UserProfile{DisplayName: "سارة", Age: 27})
	assert.Equal(t, want, sess.Instruction())
	assert.Equal(t, want, gw.lastInstruction())

	stored, err := h.repo.Profile(context.Background(), testUser.ID)
	require.NoError(t, err)
	assert.Equal(t, "سارة", stored.DisplayName)
}

func TestAdminInstructionReachesLiveSessions(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	h := newHarness(t, gw)
	sess := h.session(t)
	require.NoError(t, sess.SaveProfile(ctx, store.UserProfile{Nationality: "Omani"}))
	admin := NewAdminService(h.repo, h.chats, "")

	require.NoError(t, admin.SaveInstruction(ctx, "Be terse.\n"+ProfilePlaceholder))
	block := ProfileBlock(&store.UserProfile{Nationality: "Omani"})
	assert.Equal(t, "Be terse.\n"+block, sess.Instruction())
	assert.Equal(t, sess.Instruction(), gw.lastInstruction())

	require.NoError(t, admin.ClearInstruction(ctx))
	assert.Equal(t, ComposeInstruction(BaseInstruction, "", &store.UserProfile{Nationality: "Omani"}), sess.Instruction())
}

// cancellingGateway stands in for a client that disconnects while the reply is streaming.
type cancellingGateway struct {
	cancel context.CancelFunc
}

func (g *cancellingGateway) NewChatSession(string) ChatSession { return g }

func (g *cancellingGateway) GenerateImage(ctx context.Context, _ string) (string, error) {
	g.cancel()
	return "", ctx.Err()
}

func (g *cancellingGateway) StreamText(ctx context.Context, _ string) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		if !yield(StreamChunk{Text: "مرحبا"}, nil) {
			return
		}
		g.cancel()
		yield(StreamChunk{}, ctx.Err())
	}
}

func newSQLiteKV(t *testing.T) store.KV {
	t.Helper()
	kv, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestCancelledRequestStillResolvesStoredPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"stream", "كيف حالك"},
		{"image", "ارسم لي قطة"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			h := newHarnessWithKV(t, &cancellingGateway{cancel: cancel}, newSQLiteKV(t))
			sess := h.session(t)

			require.NoError(t, sess.Send(ctx, tt.text))
			require.Error(t, ctx.Err())

			assert.Equal(t, store.MessageError, lastMessage(sess).Type)
			assert.Equal(t, StateIdle, sess.State())

			convs := h.storedConversations(t)
			require.Len(t, convs, 1)
			stored := convs[0].Messages[len(convs[0].Messages)-1]
			assert.Equal(t, store.SenderAI, stored.Sender)
			assert.Equal(t, store.MessageError, stored.Type)
			assertNothingLoading(t, h)
		})
	}
}

func TestHydrateRepairsInterruptedPlaceholder(t *testing.T) {
	ctx := context.Background()
	h := newHarnessWithKV(t, &fakeGateway{}, newSQLiteKV(t))
	updated := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, h.repo.SaveConversations(ctx, testUser.ID, []store.Conversation{{
		ID:   "conv-stale",
		Name: "سؤال",
		Messages: []store.ChatMessage{
			{ID: "user-1", Sender: store.SenderUser, Type: store.MessageText, Text: "سؤال"},
			{ID: "ai-1", Sender: store.SenderAI, Type: store.MessageLoading, Text: thinkingText},
		},
		LastUpdated: updated,
	}}))
	require.NoError(t, h.repo.SaveLastActiveConversation(ctx, testUser.ID, "conv-stale"))

	sess := h.session(t)
	assert.Equal(t, "conv-stale", sess.ActiveConversationID())
	reply := lastMessage(sess)
	assert.Equal(t, store.MessageError, reply.Type)
	assert.Equal(t, interruptedText, reply.Text)

	assertNothingLoading(t, h)
	convs := h.storedConversations(t)
	require.Len(t, convs, 1)
	assert.True(t, updated.Equal(convs[0].LastUpdated))
}
