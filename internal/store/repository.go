package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Record names. Names are camelCase so that the flattened "name_scope" form splits on the first "_".
const (
	keyCurrentUser            = "currentUser"
	keyAdminChoice            = "adminChoice"
	keyUserProfile            = "userProfile"
	keyConversations          = "conversations"
	keyLastActiveConversation = "lastActiveConversation"
	keyTTSEnabled             = "ttsEnabled"
	keyDismissedAnnouncements = "dismissedAnnouncements"
	keyAdminInstruction       = "adminSystemInstruction"
	keyPersonalityTemplates   = "personalityTemplates"
	keyGlobalAnnouncement     = "globalAnnouncement"
	keyCredentials            = "credentials"
)

// Repository gives typed, JSON-encoded access to every record the service keeps.
type Repository struct {
	kv KV
}

func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

func (r *Repository) KV() KV {
	return r.kv
}

func (r *Repository) getJSON(ctx context.Context, scope, key string, dst any) (bool, error) {
	raw, err := r.kv.Get(ctx, scope, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", Key{Scope: scope, Name: key}, err)
	}
	return true, nil
}

func (r *Repository) putJSON(ctx context.Context, scope, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", Key{Scope: scope, Name: key}, err)
	}
	return r.kv.Put(ctx, scope, key, raw)
}

// Client-scoped records

func (r *Repository) CurrentUser(ctx context.Context, clientID string) (*User, error) {
	var u User
	ok, err := r.getJSON(ctx, clientID, keyCurrentUser, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) SaveCurrentUser(ctx context.Context, clientID string, u User) error {
	return r.putJSON(ctx, clientID, keyCurrentUser, u)
}

func (r *Repository) ClearCurrentUser(ctx context.Context, clientID string) error {
	return r.kv.Delete(ctx, clientID, keyCurrentUser)
}

func (r *Repository) AdminChoice(ctx context.Context, clientID string) (string, error) {
	var choice string
	_, err := r.getJSON(ctx, clientID, keyAdminChoice, &choice)
	return choice, err
}

func (r *Repository) SaveAdminChoice(ctx context.Context, clientID, choice string) error {
	return r.putJSON(ctx, clientID, keyAdminChoice, choice)
}

func (r *Repository) ClearAdminChoice(ctx context.Context, clientID string) error {
	return r.kv.Delete(ctx, clientID, keyAdminChoice)
}

// User-scoped records

func (r *Repository) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	ok, err := r.getJSON(ctx, userID, keyUserProfile, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SaveProfile overwrites the whole profile; there is no field-level merge.
func (r *Repository) SaveProfile(ctx context.Context, userID string, p UserProfile) error {
	return r.putJSON(ctx, userID, keyUserProfile, p)
}

func (r *Repository) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	var convs []Conversation
	if _, err := r.getJSON(ctx, userID, keyConversations, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// SaveConversations writes the user's whole conversation list as one blob.
func (r *Repository) SaveConversations(ctx context.Context, userID string, convs []Conversation) error {
	if convs == nil {
		convs = []Conversation{}
	}
	return r.putJSON(ctx, userID, keyConversations, convs)
}

func (r *Repository) LastActiveConversation(ctx context.Context, userID string) (string, error) {
	var id string
	_, err := r.getJSON(ctx, userID, keyLastActiveConversation, &id)
	return id, err
}

func (r *Repository) SaveLastActiveConversation(ctx context.Context, userID, convID string) error {
	return r.putJSON(ctx, userID, keyLastActiveConversation, convID)
}

func (r *Repository) ClearLastActiveConversation(ctx context.Context, userID string) error {
	return r.kv.Delete(ctx, userID, keyLastActiveConversation)
}

func (r *Repository) TTSEnabled(ctx context.Context, userID string) (bool, error) {
	var enabled bool
	_, err := r.getJSON(ctx, userID, keyTTSEnabled, &enabled)
	return enabled, err
}

func (r *Repository) SaveTTSEnabled(ctx context.Context, userID string, enabled bool) error {
	return r.putJSON(ctx, userID, keyTTSEnabled, enabled)
}

func (r *Repository) DismissedAnnouncements(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	_, err := r.getJSON(ctx, userID, keyDismissedAnnouncements, &ids)
	return ids, err
}

// DismissAnnouncement records the dismissal once; repeating it leaves the list unchanged.
func (r *Repository) DismissAnnouncement(ctx context.Context, userID, announcementID string) error {
	ids, err := r.DismissedAnnouncements(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == announcementID {
			return nil
		}
	}
	return r.putJSON(ctx, userID, keyDismissedAnnouncements, append(ids, announcementID))
}

// ClearAllDismissals removes every user's dismissed list.
func (r *Repository) ClearAllDismissals(ctx context.Context) (int, error) {
	keys, err := r.kv.ListKeysWithPrefix(ctx, keyDismissedAnnouncements)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, k := range keys {
		if k.Name != keyDismissedAnnouncements {
			continue
		}
		if err := r.kv.Delete(ctx, k.Scope, k.Name); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}

// Global records

func (r *Repository) AdminInstruction(ctx context.Context) (string, error) {
	var s string
	_, err := r.getJSON(ctx, GlobalScope, keyAdminInstruction, &s)
	return s, err
}

func (r *Repository) SaveAdminInstruction(ctx context.Context, instruction string) error {
	return r.putJSON(ctx, GlobalScope, keyAdminInstruction, instruction)
}

func (r *Repository) ClearAdminInstruction(ctx context.Context) error {
	return r.kv.Delete(ctx, GlobalScope, keyAdminInstruction)
}

func (r *Repository) Templates(ctx context.Context) ([]PersonalityTemplate, error) {
	var ts []PersonalityTemplate
	_, err := r.getJSON(ctx, GlobalScope, keyPersonalityTemplates, &ts)
	return ts, err
}

func (r *Repository) SaveTemplates(ctx context.Context, ts []PersonalityTemplate) error {
	if ts == nil {
		ts = []PersonalityTemplate{}
	}
	return r.putJSON(ctx, GlobalScope, keyPersonalityTemplates, ts)
}

func (r *Repository) Announcement(ctx context.Context) (*GlobalAnnouncement, error) {
	var a GlobalAnnouncement
	ok, err := r.getJSON(ctx, GlobalScope, keyGlobalAnnouncement, &a)
	if err != nil || !ok {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) SaveAnnouncement(ctx context.Context, a GlobalAnnouncement) error {
	return r.putJSON(ctx, GlobalScope, keyGlobalAnnouncement, a)
}

// Identity-scoped records

func (r *Repository) Credential(ctx context.Context, identity string) (*Credential, error) {
	var c Credential
	ok, err := r.getJSON(ctx, identity, keyCredentials, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) SaveCredential(ctx context.Context, c Credential) error {
	return r.putJSON(ctx, c.ID, keyCredentials, c)
}

func (r *Repository) Credentials(ctx context.Context) ([]Credential, error) {
	keys, err := r.kv.ListKeysWithPrefix(ctx, keyCredentials)
	if err != nil {
		return nil, err
	}
	var out []Credential
	for _, k := range keys {
		if k.Name != keyCredentials {
			continue
		}
		c, err := r.Credential(ctx, k.Scope)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}
