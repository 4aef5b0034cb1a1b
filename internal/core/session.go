package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/A7-pro/mikerobot/internal/metrics"
	"github.com/A7-pro/mikerobot/internal/store"
)

var (
	ErrEmptyMessage         = errors.New("message is empty")
	ErrBusy                 = errors.New("a request is already in flight")
	ErrAssistantUnavailable = errors.New("assistant is not configured")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrCaptureActive        = errors.New("voice capture already active")
	ErrNoCapture            = errors.New("no voice capture in progress")
)

// DispatchState tracks one outgoing user message from send to resolution.
type DispatchState int

const (
	StateIdle DispatchState = iota
	StateDispatched
	StateImagePending
	StateStreamPending
	StateResolved
)

func (s DispatchState) String() string {
	switch s {
	case StateDispatched:
		return "dispatched"
	case StateImagePending:
		return "image_pending"
	case StateStreamPending:
		return "stream_pending"
	case StateResolved:
		return "resolved"
	default:
		return "idle"
	}
}

type EventKind string

const (
	// EventUpsert carries one added or updated message.
	EventUpsert EventKind = "upsert"
	// EventReset carries the whole displayed list after a conversation switch.
	EventReset EventKind = "reset"
)

type Event struct {
	Kind           EventKind           `json:"kind"`
	ConversationID string              `json:"conversation_id"`
	Message        *store.ChatMessage  `json:"message,omitempty"`
	Messages       []store.ChatMessage `json:"messages,omitempty"`
}

// Session is the checked-out state of one signed-in user: the active conversation, its displayed
// messages and the assistant chat bound to the current instruction. Every mutation of the message list
// is flushed to the store before the call returns.
type Session struct {
	mu sync.Mutex

	repo    *store.Repository
	gateway Gateway
	now     func() time.Time
	newID   func() string
	metrics *metrics.Metrics

	user          store.User
	profile       *store.UserProfile
	conversations []store.Conversation
	activeID      string
	messages      []store.ChatMessage
	announcement  *store.GlobalAnnouncement

	chat        ChatSession
	instruction string

	state      DispatchState
	capturing  bool
	ttsEnabled bool

	observers    map[int]func(Event)
	nextObserver int
	pending      []Event
}

func newSession(user store.User, repo *store.Repository, gateway Gateway, now func() time.Time, newID func() string) *Session {
	return &Session{
		repo:      repo,
		gateway:   gateway,
		now:       now,
		newID:     newID,
		metrics:   metrics.Global(),
		user:      user,
		observers: make(map[int]func(Event)),
	}
}

// unlock releases the mutex and then delivers queued events, so observers never run under the lock.
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	var observers []func(Event)
	if len(pending) > 0 {
		observers = make([]func(Event), 0, len(s.observers))
		for _, fn := range s.observers {
			observers = append(observers, fn)
		}
	}
	s.mu.Unlock()

	for _, ev := range pending {
		for _, fn := range observers {
			fn(ev)
		}
	}
}

// Subscribe registers fn for every message event; the returned func unsubscribes.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Session) hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()

	userID := s.user.ID
	profile, err := s.repo.Profile(ctx, userID)
	if err != nil {
		return err
	}
	s.profile = profile

	convs, err := s.repo.Conversations(ctx, userID)
	if err != nil {
		return err
	}
	s.conversations = convs
	sortConversations(s.conversations)

	if s.ttsEnabled, err = s.repo.TTSEnabled(ctx, userID); err != nil {
		return err
	}
	if err := s.loadAnnouncementLocked(ctx); err != nil {
		return err
	}

	lastID, err := s.repo.LastActiveConversation(ctx, userID)
	if err != nil {
		return err
	}
	if lastID != "" {
		err = s.selectLocked(ctx, lastID)
	} else {
		err = s.startNewLocked(ctx)
	}
	if err != nil {
		return err
	}

	if s.gateway == nil {
		banner := store.ChatMessage{
			ID:        apiKeyErrorIDPrefix + "-" + s.newID(),
			Sender:    store.SenderSystem,
			Type:      store.MessageError,
			Text:      apiKeyMissingText,
			Timestamp: s.now(),
		}
		s.messages = append([]store.ChatMessage{banner}, s.messages...)
		s.queueResetLocked()
	}

	if s.profile.Empty() && s.chatEssentiallyEmptyLocked() {
		prompt := ProfilePromptMessage(s.user.Username)
		if !s.hasTextLocked(prompt) {
			s.systemMessageLocked(ctx, store.MessageText, prompt)
		}
	}

	log.Info().
		Str("user_id", userID).
		Str("conversation_id", s.activeID).
		Int("conversations", len(s.conversations)).
		Bool("assistant_configured", s.gateway != nil).
		Msg("session hydrated")
	return nil
}

func (s *Session) loadAnnouncementLocked(ctx context.Context) error {
	ann, err := s.repo.Announcement(ctx)
	if err != nil {
		return err
	}
	s.announcement = nil
	if ann == nil || ann.ID == "" {
		return nil
	}
	dismissed, err := s.repo.DismissedAnnouncements(ctx, s.user.ID)
	if err != nil {
		return err
	}
	for _, id := range dismissed {
		if id == ann.ID {
			return nil
		}
	}
	s.announcement = ann
	return nil
}

func (s *Session) chatEssentiallyEmptyLocked() bool {
	for _, m := range s.messages {
		if isTransient(m.ID) {
			continue
		}
		if m.Sender == store.SenderAI && m.Text == InitialGreeting {
			continue
		}
		return false
	}
	return true
}

func (s *Session) hasTextLocked(text string) bool {
	for _, m := range s.messages {
		if m.Text == text {
			return true
		}
	}
	return false
}

// resetChatLocked recomposes the instruction from its current sources and binds a fresh assistant chat.
func (s *Session) resetChatLocked(ctx context.Context) {
	s.instruction = s.composeLocked(ctx)
	if s.gateway != nil {
		s.chat = s.gateway.NewChatSession(s.instruction)
	}
	s.metrics.SessionResets.Inc()
}

func (s *Session) composeLocked(ctx context.Context) string {
	override, err := s.repo.AdminInstruction(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read admin instruction, using base personality")
		override = ""
	}
	return ComposeInstruction(BaseInstruction, override, s.profile)
}

// RefreshInstruction recomposes the instruction and rebinds the assistant chat if it changed.
func (s *Session) RefreshInstruction(ctx context.Context) bool {
	s.mu.Lock()
	defer s.unlock()
	return s.refreshInstructionLocked(ctx)
}

func (s *Session) refreshInstructionLocked(ctx context.Context) bool {
	next := s.composeLocked(ctx)
	if next == s.instruction {
		return false
	}
	s.instruction = next
	if s.gateway != nil {
		s.chat = s.gateway.NewChatSession(next)
	}
	s.metrics.SessionResets.Inc()
	log.Debug().Str("user_id", s.user.ID).Msg("assistant instruction changed, chat session rebound")
	return true
}

func (s *Session) queueResetLocked() {
	s.pending = append(s.pending, Event{
		Kind:           EventReset,
		ConversationID: s.activeID,
		Messages:       cloneMessages(s.messages),
	})
}

func (s *Session) queueUpsertLocked(m store.ChatMessage) {
	s.pending = append(s.pending, Event{Kind: EventUpsert, ConversationID: s.activeID, Message: &m})
}

// Accessors

func (s *Session) User() store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Profile() store.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return store.UserProfile{}
	}
	return *s.profile
}

func (s *Session) Messages() []store.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

func (s *Session) Conversations() []store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		c.Messages = cloneMessages(c.Messages)
		out[i] = c
	}
	return out
}

func (s *Session) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *Session) State() DispatchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Instruction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instruction
}

func (s *Session) Announcement() *store.GlobalAnnouncement {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.announcement == nil {
		return nil
	}
	a := *s.announcement
	return &a
}

func (s *Session) TTSEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttsEnabled
}

func (s *Session) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// Profile and preferences

// SaveProfile overwrites the profile and rebinds the assistant chat to the recomposed instruction.
func (s *Session) SaveProfile(ctx context.Context, p store.UserProfile) error {
	s.mu.Lock()
	defer s.unlock()
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Nationality = strings.TrimSpace(p.Nationality)
	if p.Age < 0 {
		p.Age = 0
	}
	if err := s.repo.SaveProfile(ctx, s.user.ID, p); err != nil {
		return err
	}
	s.profile = &p
	s.refreshInstructionLocked(ctx)
	return nil
}

func (s *Session) SetTTS(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.unlock()
	if s.gateway == nil {
		s.systemMessageLocked(ctx, store.MessageError, apiKeyMissingText)
		return ErrAssistantUnavailable
	}
	if err := s.repo.SaveTTSEnabled(ctx, s.user.ID, enabled); err != nil {
		return err
	}
	s.ttsEnabled = enabled
	return nil
}

// Announcements

// DismissAnnouncement hides the current announcement for this user. Repeating it is a no-op.
func (s *Session) DismissAnnouncement(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()
	if s.announcement == nil {
		return nil
	}
	if err := s.repo.DismissAnnouncement(ctx, s.user.ID, s.announcement.ID); err != nil {
		return err
	}
	s.removeMessageLocked(announcementIDPrefix + s.announcement.ID)
	s.announcement = nil
	s.queueResetLocked()
	return nil
}

// RefreshAnnouncement re-reads the singleton announcement, e.g. after an admin published a new one.
func (s *Session) RefreshAnnouncement(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()
	if s.announcement != nil {
		s.removeMessageLocked(announcementIDPrefix + s.announcement.ID)
	}
	if err := s.loadAnnouncementLocked(ctx); err != nil {
		return err
	}
	s.showAnnouncementLocked()
	s.queueResetLocked()
	return nil
}

func (s *Session) showAnnouncementLocked() {
	if s.announcement == nil {
		return
	}
	id := announcementIDPrefix + s.announcement.ID
	if s.indexOfLocked(id) >= 0 {
		return
	}
	msg := store.ChatMessage{
		ID:        id,
		Sender:    store.SenderSystem,
		Type:      store.MessageText,
		Text:      announcementText(s.announcement.Message),
		Timestamp: s.announcement.Timestamp,
	}
	s.messages = append([]store.ChatMessage{msg}, s.messages...)
}

// Helpers

func (s *Session) indexOfLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) removeMessageLocked(id string) bool {
	i := s.indexOfLocked(id)
	if i < 0 {
		return false
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	return true
}

// isTransient marks display-only messages that are never written to a conversation.
func isTransient(id string) bool {
	return strings.HasPrefix(id, announcementIDPrefix) || strings.HasPrefix(id, apiKeyErrorIDPrefix)
}

func sortConversations(convs []store.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastUpdated.After(convs[j].LastUpdated)
	})
}

func cloneMessages(in []store.ChatMessage) []store.ChatMessage {
	if in == nil {
		return nil
	}
	out := make([]store.ChatMessage, len(in))
	copy(out, in)
	return out
}
