package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A7-pro/mikerobot/internal/store"
)

func TestVoiceCapture(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &fakeGateway{})
	sess := h.session(t)

	assert.ErrorIs(t, sess.CompleteCapture(ctx, "هلا"), ErrNoCapture)

	require.NoError(t, sess.BeginCapture(ctx))
	assert.True(t, sess.Capturing())
	assert.Equal(t, VoiceCommandStart, lastMessage(sess).Text)
	assert.ErrorIs(t, sess.BeginCapture(ctx), ErrCaptureActive)

	require.NoError(t, sess.CompleteCapture(ctx, "مين سواك"))
	assert.False(t, sess.Capturing())
	assert.Equal(t, creatorResponse, lastMessage(sess).Text)
}

func TestVoiceCaptureFailureCodes(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{CaptureNoSpeech, captureNoSpeech},
		{CaptureAudioFailure, captureAudioError},
		{CaptureNotAllowed, captureNotAllowed},
		{"network", captureGenericError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, &fakeGateway{})
			sess := h.session(t)

			require.NoError(t, sess.BeginCapture(ctx))
			require.NoError(t, sess.FailCapture(ctx, tt.code, "recognizer stopped"))

			msg := lastMessage(sess)
			assert.Equal(t, store.SenderSystem, msg.Sender)
			assert.Equal(t, store.MessageError, msg.Type)
			assert.Equal(t, tt.want, msg.Text)
			assert.False(t, sess.Capturing())
			assert.ErrorIs(t, sess.FailCapture(ctx, tt.code, ""), ErrNoCapture)
		})
	}
}

func TestTTSPreferencePersists(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &fakeGateway{})
	sess := h.session(t)

	require.NoError(t, sess.SetTTS(ctx, true))
	assert.True(t, sess.TTSEnabled())

	enabled, err := h.repo.TTSEnabled(ctx, testUser.ID)
	require.NoError(t, err)
	assert.True(t, enabled)

	h.chats.CloseSession(testUser.ID)
	assert.True(t, h.session(t).TTSEnabled())
}
