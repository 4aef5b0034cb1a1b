package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/A7-pro/mikerobot/internal/auth"
	"github.com/A7-pro/mikerobot/internal/store"
)

var (
	ErrMissingCredentials = errors.New("identity and password are required")
	ErrMissingDisplayName = errors.New("display name is required")
	ErrIdentityTaken      = errors.New("identity is already registered")
	ErrUnknownIdentity    = errors.New("identity is not registered")
	ErrWrongPassword      = errors.New("wrong password")
)

// AuthState is what a client sees after login or restore.
type AuthState struct {
	User *store.User `json:"user,omitempty"`
	View ViewState   `json:"view"`
}

type AuthService struct {
	repo       *store.Repository
	chats      *ChatService
	adminEmail string
}

func NewAuthService(chats *ChatService, adminEmail string) *AuthService {
	return &AuthService{
		repo:       chats.Repository(),
		chats:      chats,
		adminEmail: normalizeIdentity(adminEmail),
	}
}

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func (a *AuthService) isAdmin(id string) bool {
	return a.adminEmail != "" && id == a.adminEmail
}

func (a *AuthService) userFromCredential(c store.Credential) store.User {
	return store.User{
		ID:       c.ID,
		Username: c.Username,
		Email:    c.Email,
		IsAdmin:  a.isAdmin(c.ID),
	}
}

// Register creates a credential and signs the client in. Nothing is written when validation fails.
func (a *AuthService) Register(ctx context.Context, clientID, identity, displayName, password string) (*AuthState, error) {
	id := normalizeIdentity(identity)
	displayName = strings.TrimSpace(displayName)
	if id == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if displayName == "" {
		return nil, ErrMissingDisplayName
	}

	existing, err := a.repo.Credential(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrIdentityTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	cred := store.Credential{ID: id, Username: displayName, PasswordHash: hash}
	if strings.Contains(id, "@") {
		cred.Email = id
	}
	if err := a.repo.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", id).Msg("user registered")
	return a.signIn(ctx, clientID, cred)
}

func (a *AuthService) Login(ctx context.Context, clientID, identity, password string) (*AuthState, error) {
	id := normalizeIdentity(identity)
	if id == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	cred, err := a.repo.Credential(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrUnknownIdentity
	}
	if !auth.CheckPasswordHash(password, cred.PasswordHash) {
		return nil, ErrWrongPassword
	}
	return a.signIn(ctx, clientID, *cred)
}

func (a *AuthService) signIn(ctx context.Context, clientID string, cred store.Credential) (*AuthState, error) {
	user := a.userFromCredential(cred)
	if err := a.repo.SaveCurrentUser(ctx, clientID, user); err != nil {
		return nil, err
	}
	if err := a.repo.ClearAdminChoice(ctx, clientID); err != nil {
		return nil, err
	}
	view, err := NextView(ViewLoggedOut, ViewEventLogin, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", user.ID).Str("client_id", clientID).Str("view", string(view)).Msg("user signed in")
	return &AuthState{User: &user, View: view}, nil
}

// Restore returns the client's persisted sign-in, or the logged-out state.
func (a *AuthService) Restore(ctx context.Context, clientID string) (*AuthState, error) {
	user, err := a.repo.CurrentUser(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &AuthState{View: ViewLoggedOut}, nil
	}
	user.IsAdmin = a.isAdmin(user.ID)
	choice, err := a.repo.AdminChoice(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &AuthState{User: user, View: restoredView(user.IsAdmin, choice)}, nil
}

// ChooseView moves an admin between the admin panel and the chat. Entering the panel drops the live chat
// session.
func (a *AuthService) ChooseView(ctx context.Context, clientID string, user store.User, choice string) (ViewState, error) {
	stored, err := a.repo.AdminChoice(ctx, clientID)
	if err != nil {
		return "", err
	}
	current := restoredView(user.IsAdmin, stored)

	var ev ViewEvent
	switch {
	case choice == choiceAdmin:
		ev = ViewEventChooseAdmin
	case choice == choiceUser && current == ViewAdmin:
		ev = ViewEventSwitchToUser
	case choice == choiceUser:
		ev = ViewEventChooseUser
	default:
		return current, ErrInvalidTransition
	}

	next, err := NextView(current, ev, user.IsAdmin)
	if err != nil {
		return current, err
	}
	// Entering the panel drops the session below, which must not happen mid-reply.
	if sess, ok := a.chats.Lookup(user.ID); ok && next == ViewAdmin && sess.State() != StateIdle {
		return current, ErrBusy
	}
	if err := a.repo.SaveAdminChoice(ctx, clientID, choice); err != nil {
		return current, err
	}
	if next == ViewAdmin {
		a.chats.CloseSession(user.ID)
	}
	return next, nil
}

// Logout forgets the client's sign-in and the user's active conversation, then closes the live session.
func (a *AuthService) Logout(ctx context.Context, clientID, userID string) error {
	if err := a.repo.ClearCurrentUser(ctx, clientID); err != nil {
		return err
	}
	if err := a.repo.ClearAdminChoice(ctx, clientID); err != nil {
		return err
	}
	if err := a.repo.ClearLastActiveConversation(ctx, userID); err != nil {
		return err
	}
	a.chats.CloseSession(userID)
	log.Info().Str("user_id", userID).Str("client_id", clientID).Msg("user signed out")
	return nil
}

// UserByID resolves a token subject to its user.
func (a *AuthService) UserByID(ctx context.Context, id string) (*store.User, error) {
	cred, err := a.repo.Credential(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrUnknownIdentity
	}
	user := a.userFromCredential(*cred)
	return &user, nil
}
