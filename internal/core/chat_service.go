package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/A7-pro/mikerobot/internal/store"
)

type Option func(*ChatService)

// WithClock replaces the wall clock used for message and conversation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ChatService) { s.now = now }
}

// WithIDGenerator replaces the random id source used for messages and conversations.
func WithIDGenerator(newID func() string) Option {
	return func(s *ChatService) { s.newID = newID }
}

// ChatService owns the live sessions of signed-in users and fans admin changes out to them.
type ChatService struct {
	repo    *store.Repository
	gateway Gateway
	now     func() time.Time
	newID   func() string

	mu        sync.Mutex
	sessions  map[string]*Session
	hydrating singleflight.Group
}

// NewChatService builds the hub. A nil gateway means the assistant is not configured: sessions still
// hydrate but refuse to dispatch.
func NewChatService(repo *store.Repository, gateway Gateway, opts ...Option) *ChatService {
	s := &ChatService{
		repo:     repo,
		gateway:  gateway,
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChatService) Repository() *store.Repository {
	return s.repo
}

func (s *ChatService) AssistantConfigured() bool {
	return s.gateway != nil
}

// Session returns the user's live session, hydrating it from the store on first use. Concurrent first
// requests for one user share a single hydration; other users are not held up by it.
func (s *ChatService) Session(ctx context.Context, user store.User) (*Session, error) {
	if sess, ok := s.Lookup(user.ID); ok {
		return sess, nil
	}

	v, err, _ := s.hydrating.Do(user.ID, func() (any, error) {
		if sess, ok := s.Lookup(user.ID); ok {
			return sess, nil
		}
		sess := newSession(user, s.repo, s.gateway, s.now, s.newID)
		if err := sess.hydrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to hydrate session for %s: %w", user.ID, err)
		}
		s.mu.Lock()
		s.sessions[user.ID] = sess
		s.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Lookup returns the session only if it is already live.
func (s *ChatService) Lookup(userID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// CloseSession drops the in-memory session. Its conversations stay in the store.
func (s *ChatService) CloseSession(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	if ok {
		sess.CancelCapture()
		log.Debug().Str("user_id", userID).Msg("session closed")
	}
}

func (s *ChatService) live() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// InstructionChanged rebinds every live session to the recomposed instruction.
func (s *ChatService) InstructionChanged(ctx context.Context) {
	rebound := 0
	for _, sess := range s.live() {
		if sess.RefreshInstruction(ctx) {
			rebound++
		}
	}
	log.Info().Int("sessions", rebound).Msg("admin instruction changed")
}

// AnnouncementChanged shows the newly published announcement in every live session.
func (s *ChatService) AnnouncementChanged(ctx context.Context) {
	for _, sess := range s.live() {
		if err := sess.RefreshAnnouncement(ctx); err != nil {
			log.Error().Err(err).Str("user_id", sess.User().ID).Msg("failed to refresh announcement")
		}
	}
}
