package core

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/A7-pro/mikerobot/internal/store"
	"github.com/A7-pro/mikerobot/internal/utils"
)

// StartNew opens a fresh conversation seeded with the greeting and makes it active.
func (s *Session) StartNew(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()
	if s.state != StateIdle {
		return ErrBusy
	}
	return s.startNewLocked(ctx)
}

func (s *Session) startNewLocked(ctx context.Context) error {
	s.resetChatLocked(ctx)

	now := s.now()
	greeting := store.ChatMessage{
		ID:        "initial-" + s.newID(),
		Sender:    store.SenderAI,
		Type:      store.MessageText,
		Text:      InitialGreeting,
		Timestamp: now,
	}
	conv := store.Conversation{
		ID:          "conv-" + s.newID(),
		Name:        NewConversationName,
		Messages:    []store.ChatMessage{greeting},
		LastUpdated: now,
	}

	s.activeID = conv.ID
	s.messages = []store.ChatMessage{greeting}
	s.showAnnouncementLocked()
	s.conversations = append([]store.Conversation{conv}, s.conversations...)
	s.capLocked()

	if err := s.repo.SaveConversations(ctx, s.user.ID, s.conversations); err != nil {
		return err
	}
	if err := s.repo.SaveLastActiveConversation(ctx, s.user.ID, conv.ID); err != nil {
		return err
	}
	s.queueResetLocked()
	log.Debug().Str("user_id", s.user.ID).Str("conversation_id", conv.ID).Msg("started new conversation")
	return nil
}

// Select loads a stored conversation and rebinds the assistant chat. An unknown id falls back to a new
// conversation.
func (s *Session) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.unlock()
	if s.state != StateIdle {
		return ErrBusy
	}
	return s.selectLocked(ctx, id)
}

func (s *Session) selectLocked(ctx context.Context, id string) error {
	conv, ok := s.findConversationLocked(id)
	if !ok {
		stored, err := s.repo.Conversations(ctx, s.user.ID)
		if err != nil {
			return err
		}
		s.conversations = stored
		sortConversations(s.conversations)
		conv, ok = s.findConversationLocked(id)
	}
	if !ok {
		log.Warn().Str("user_id", s.user.ID).Str("conversation_id", id).Msg("conversation not found, starting a new one")
		return s.startNewLocked(ctx)
	}

	if err := s.repairInterruptedLocked(ctx, conv.ID); err != nil {
		return err
	}
	conv, _ = s.findConversationLocked(conv.ID)

	s.resetChatLocked(ctx)
	s.activeID = conv.ID
	s.messages = cloneMessages(conv.Messages)
	s.showAnnouncementLocked()

	if err := s.repo.SaveLastActiveConversation(ctx, s.user.ID, conv.ID); err != nil {
		return err
	}
	s.queueResetLocked()
	return nil
}

// repairInterruptedLocked turns placeholders a previous process left loading into errors. A selected
// conversation is never mid-dispatch, so any stored loading message is stale. lastUpdated is kept.
func (s *Session) repairInterruptedLocked(ctx context.Context, id string) error {
	conv, ok := s.conversationRefLocked(id)
	if !ok {
		return nil
	}
	repaired := 0
	for i, m := range conv.Messages {
		if m.Type != store.MessageLoading {
			continue
		}
		conv.Messages[i].Type = store.MessageError
		conv.Messages[i].Text = interruptedText
		repaired++
	}
	if repaired == 0 {
		return nil
	}
	log.Warn().Str("user_id", s.user.ID).Str("conversation_id", id).Int("messages", repaired).Msg("repaired interrupted replies")
	return s.repo.SaveConversations(ctx, s.user.ID, s.conversations)
}

// Delete removes a conversation. Deleting the active one starts a new conversation.
func (s *Session) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.unlock()
	if s.state != StateIdle {
		return ErrBusy
	}

	kept := s.conversations[:0:0]
	found := false
	for _, c := range s.conversations {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return ErrConversationNotFound
	}
	s.conversations = kept
	if err := s.repo.SaveConversations(ctx, s.user.ID, s.conversations); err != nil {
		return err
	}

	if id == s.activeID {
		if err := s.repo.ClearLastActiveConversation(ctx, s.user.ID); err != nil {
			return err
		}
		return s.startNewLocked(ctx)
	}
	return nil
}

// AppendOrUpdateMessage replaces the mutable fields of the message with the same id, or appends it.
// Announcement messages are prepended once and never persisted.
func (s *Session) AppendOrUpdateMessage(ctx context.Context, msg store.ChatMessage) error {
	s.mu.Lock()
	defer s.unlock()
	return s.upsertLocked(ctx, msg)
}

func (s *Session) upsertLocked(ctx context.Context, msg store.ChatMessage) error {
	now := s.now()
	if strings.HasPrefix(msg.ID, announcementIDPrefix) {
		if s.indexOfLocked(msg.ID) < 0 {
			if msg.Timestamp.IsZero() {
				msg.Timestamp = now
			}
			s.messages = append([]store.ChatMessage{msg}, s.messages...)
			s.queueUpsertLocked(msg)
		}
		return nil
	}

	if msg.ID == "" {
		msg.ID = string(msg.Sender) + "-" + s.newID()
	}

	var out store.ChatMessage
	if i := s.indexOfLocked(msg.ID); i >= 0 {
		cur := &s.messages[i]
		cur.Type = msg.Type
		cur.Text = msg.Text
		cur.ImageURL = msg.ImageURL
		if msg.GroundingChunks != nil {
			cur.GroundingChunks = msg.GroundingChunks
		}
		cur.Timestamp = now
		out = *cur
	} else {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		s.messages = append(s.messages, msg)
		out = msg
	}
	s.queueUpsertLocked(out)
	return s.persistLocked(ctx)
}

// persistLocked writes the displayed messages back into the active conversation and stores the list.
func (s *Session) persistLocked(ctx context.Context) error {
	if s.activeID == "" {
		return nil
	}
	msgs := make([]store.ChatMessage, 0, len(s.messages))
	for _, m := range s.messages {
		if !isTransient(m.ID) {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	now := s.now()
	if c, ok := s.conversationRefLocked(s.activeID); ok {
		c.Messages = msgs
		c.LastUpdated = now
		if c.Name == "" || c.Name == NewConversationName {
			if name := conversationName(msgs); name != "" {
				c.Name = name
			}
		}
	} else {
		name := conversationName(msgs)
		if name == "" {
			name = NewConversationName
		}
		s.conversations = append(s.conversations, store.Conversation{
			ID:          s.activeID,
			Name:        name,
			Messages:    msgs,
			LastUpdated: now,
		})
	}
	s.capLocked()
	return s.repo.SaveConversations(ctx, s.user.ID, s.conversations)
}

// capLocked orders conversations newest first and drops the oldest beyond the retention limit.
func (s *Session) capLocked() {
	sortConversations(s.conversations)
	if n := len(s.conversations) - store.MaxConversationsToKeep; n > 0 {
		s.conversations = s.conversations[:store.MaxConversationsToKeep]
		s.metrics.ConversationsEvicted.Add(float64(n))
		log.Debug().Str("user_id", s.user.ID).Int("evicted", n).Msg("conversation retention cap reached")
	}
}

func (s *Session) findConversationLocked(id string) (store.Conversation, bool) {
	if c, ok := s.conversationRefLocked(id); ok {
		return *c, true
	}
	return store.Conversation{}, false
}

func (s *Session) conversationRefLocked(id string) (*store.Conversation, bool) {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return &s.conversations[i], true
		}
	}
	return nil, false
}

// conversationName derives a title from the first user text, falling back to the first real assistant reply.
func conversationName(msgs []store.ChatMessage) string {
	for _, m := range msgs {
		if m.Sender == store.SenderUser && strings.TrimSpace(m.Text) != "" {
			return utils.Ellipsize(strings.TrimSpace(m.Text), conversationNameLen)
		}
	}
	for _, m := range msgs {
		if m.Sender != store.SenderAI || m.Type == store.MessageLoading || m.Type == store.MessageError {
			continue
		}
		if text := strings.TrimSpace(m.Text); text != "" && m.Text != InitialGreeting {
			return utils.Ellipsize(text, conversationNameLen)
		}
	}
	return ""
}
