package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/A7-pro/mikerobot/internal/store"
)

// Send dispatches one user message. It appends the user message and a loading placeholder, routes by
// intent and resolves the placeholder before returning. Exactly one dispatch runs per session.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.gateway == nil {
		s.unlock()
		return ErrAssistantUnavailable
	}
	if s.state != StateIdle {
		s.unlock()
		return ErrBusy
	}
	s.state = StateDispatched

	if err := s.upsertLocked(ctx, store.ChatMessage{
		Sender: store.SenderUser,
		Type:   store.MessageText,
		Text:   text,
	}); err != nil {
		log.Error().Err(err).Str("user_id", s.user.ID).Msg("failed to persist user message")
	}
	placeholderID := string(store.SenderAI) + "-" + s.newID()
	if err := s.upsertLocked(ctx, store.ChatMessage{
		ID:     placeholderID,
		Sender: store.SenderAI,
		Type:   store.MessageLoading,
		Text:   thinkingText,
	}); err != nil {
		log.Error().Err(err).Str("user_id", s.user.ID).Msg("failed to persist placeholder")
	}
	if s.chat == nil {
		s.chat = s.gateway.NewChatSession(s.instruction)
	}
	chat := s.chat
	s.unlock()

	intent, prompt := ClassifyIntent(text)
	s.metrics.Dispatches.WithLabelValues(intent.String()).Inc()
	log.Debug().Str("user_id", s.user.ID).Stringer("intent", intent).Msg("dispatching message")

	// Reply writes outlive the request; a cancelled client still gets its placeholder resolved in the store.
	writeCtx := context.WithoutCancel(ctx)
	defer s.resolve(writeCtx, placeholderID)

	switch intent {
	case IntentCreator:
		s.updateReply(writeCtx, placeholderID, store.MessageText, creatorResponse, "", nil)
	case IntentClear:
		return s.clearFromDispatch(writeCtx, placeholderID)
	case IntentImage:
		s.runImage(ctx, writeCtx, placeholderID, prompt)
	default:
		s.runStream(ctx, writeCtx, chat, placeholderID, text)
	}
	return nil
}

// resolve finishes a dispatch. A placeholder still loading at this point is turned into an error.
func (s *Session) resolve(ctx context.Context, placeholderID string) {
	s.mu.Lock()
	defer s.unlock()
	s.state = StateResolved
	if i := s.indexOfLocked(placeholderID); i >= 0 && s.messages[i].Type == store.MessageLoading {
		if err := s.upsertLocked(ctx, store.ChatMessage{
			ID:     placeholderID,
			Sender: store.SenderAI,
			Type:   store.MessageError,
			Text:   interruptedText,
		}); err != nil {
			log.Error().Err(err).Str("user_id", s.user.ID).Msg("failed to persist interrupted reply")
		}
	}
	s.state = StateIdle
}

func (s *Session) setState(state DispatchState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) updateReply(ctx context.Context, id string, typ store.MessageType, text, imageURL string, grounding []store.GroundingChunk) {
	s.mu.Lock()
	defer s.unlock()
	err := s.upsertLocked(ctx, store.ChatMessage{
		ID:              id,
		Sender:          store.SenderAI,
		Type:            typ,
		Text:            text,
		ImageURL:        imageURL,
		GroundingChunks: grounding,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", s.user.ID).Str("message_id", id).Msg("failed to persist reply")
	}
}

// clearFromDispatch drops the placeholder from the old conversation and starts a new one.
func (s *Session) clearFromDispatch(ctx context.Context, placeholderID string) error {
	s.mu.Lock()
	defer s.unlock()
	if s.removeMessageLocked(placeholderID) {
		if err := s.persistLocked(ctx); err != nil {
			log.Error().Err(err).Str("user_id", s.user.ID).Msg("failed to persist conversation before clearing")
		}
	}
	return s.startNewLocked(ctx)
}

func (s *Session) runImage(ctx, writeCtx context.Context, placeholderID, prompt string) {
	s.setState(StateImagePending)
	s.updateReply(writeCtx, placeholderID, store.MessageLoading, imageLoadingText(prompt), "", nil)

	request := prompt
	if request == "" {
		request = defaultImagePrompt
	}
	url, err := s.gateway.GenerateImage(ctx, request)
	switch {
	case errors.Is(err, ErrNoImage) || (err == nil && url == ""):
		s.metrics.GatewayErrors.WithLabelValues("image").Inc()
		s.updateReply(writeCtx, placeholderID, store.MessageError, imageEmptyText, "", nil)
	case err != nil:
		s.metrics.GatewayErrors.WithLabelValues("image").Inc()
		log.Error().Err(err).Str("user_id", s.user.ID).Msg("image generation failed")
		s.updateReply(writeCtx, placeholderID, store.MessageError, imageErrorPrefix+err.Error(), "", nil)
	default:
		s.updateReply(writeCtx, placeholderID, store.MessageImage, imageReadyText(prompt), url, nil)
	}
}

func (s *Session) runStream(ctx, writeCtx context.Context, chat ChatSession, placeholderID, text string) {
	s.setState(StateStreamPending)

	var (
		acc       strings.Builder
		grounding []store.GroundingChunk
	)
	for chunk, err := range chat.StreamText(ctx, text) {
		if err != nil {
			s.metrics.GatewayErrors.WithLabelValues("text").Inc()
			log.Error().Err(err).Str("user_id", s.user.ID).Msg("text stream failed")
			s.updateReply(writeCtx, placeholderID, store.MessageError, textErrorPrefix+err.Error(), "", nil)
			return
		}
		if len(chunk.Grounding) > 0 {
			grounding = chunk.Grounding
		}
		if chunk.Final {
			break
		}
		if chunk.Text == "" {
			continue
		}
		acc.WriteString(chunk.Text)
		s.updateReply(writeCtx, placeholderID, store.MessageText, acc.String(), "", grounding)
	}

	final := acc.String()
	if strings.TrimSpace(final) == "" {
		if len(grounding) > 0 {
			final = " "
		} else {
			final = noAnswerText
		}
	}
	s.updateReply(writeCtx, placeholderID, store.MessageText, final, "", grounding)
}
