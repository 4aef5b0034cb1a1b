package core

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/A7-pro/mikerobot/internal/store"
)

// Capture failure codes reported by the client's speech recognizer.
const (
	CaptureNoSpeech     = "no-speech"
	CaptureAudioFailure = "audio-capture"
	CaptureNotAllowed   = "not-allowed"
)

// BeginCapture marks a voice capture as active. Only one capture may run at a time.
func (s *Session) BeginCapture(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()
	if s.gateway == nil {
		s.systemMessageLocked(ctx, store.MessageError, captureUnavailableText)
		return ErrAssistantUnavailable
	}
	if s.capturing {
		return ErrCaptureActive
	}
	s.capturing = true
	s.systemMessageLocked(ctx, store.MessageText, VoiceCommandStart)
	return nil
}

// CompleteCapture ends the capture and sends the transcript as a regular user message.
func (s *Session) CompleteCapture(ctx context.Context, transcript string) error {
	s.mu.Lock()
	if !s.capturing {
		s.unlock()
		return ErrNoCapture
	}
	s.capturing = false
	s.unlock()
	return s.Send(ctx, transcript)
}

// FailCapture ends the capture and reports the recognizer error to the user.
func (s *Session) FailCapture(ctx context.Context, code, detail string) error {
	s.mu.Lock()
	defer s.unlock()
	if !s.capturing {
		return ErrNoCapture
	}
	s.capturing = false

	text := captureGenericError
	switch code {
	case CaptureNoSpeech:
		text = captureNoSpeech
	case CaptureAudioFailure:
		text = captureAudioError
	case CaptureNotAllowed:
		text = captureNotAllowed
	}
	log.Warn().Str("user_id", s.user.ID).Str("code", code).Str("detail", detail).Msg("voice capture failed")
	s.systemMessageLocked(ctx, store.MessageError, text)
	return nil
}

// CancelCapture drops an active capture without a message.
func (s *Session) CancelCapture() {
	s.mu.Lock()
	defer s.unlock()
	s.capturing = false
}

func (s *Session) systemMessageLocked(ctx context.Context, typ store.MessageType, text string) {
	if err := s.upsertLocked(ctx, store.ChatMessage{Sender: store.SenderSystem, Type: typ, Text: text}); err != nil {
		log.Error().Err(err).Str("user_id", s.user.ID).Msg("failed to persist system message")
	}
}
