package store

import (
	"strings"
	"time"
)

// MaxConversationsToKeep is the per-user retention cap. Older conversations are dropped, not archived.
const MaxConversationsToKeep = 10

type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

type MessageType string

const (
	MessageText    MessageType = "text"
	MessageImage   MessageType = "image"
	MessageError   MessageType = "error"
	MessageLoading MessageType = "loading"
)

type User struct {
	ID       string `json:"id"` // lower-cased email or username
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

// Credential is the registration record kept per identity.
type Credential struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"password_hash"`
}

type UserProfile struct {
	DisplayName string `json:"display_name,omitempty"`
	Age         int    `json:"age,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

// Empty reports whether no profile field is populated.
func (p *UserProfile) Empty() bool {
	return p == nil || (strings.TrimSpace(p.DisplayName) == "" && p.Age <= 0 && strings.TrimSpace(p.Nationality) == "")
}

type GroundingChunkWeb struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title"`
}

type GroundingChunk struct {
	Web GroundingChunkWeb `json:"web"`
}

type ChatMessage struct {
	ID              string           `json:"id"`
	Sender          Sender           `json:"sender"`
	Type            MessageType      `json:"type"`
	Text            string           `json:"text,omitempty"`
	ImageURL        string           `json:"image_url,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	GroundingChunks []GroundingChunk `json:"grounding_chunks,omitempty"`
}

type Conversation struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Messages    []ChatMessage `json:"messages"`
	LastUpdated time.Time     `json:"last_updated"`
}

type GlobalAnnouncement struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type PersonalityTemplate struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	Prompt          string `json:"prompt" yaml:"prompt"`
	IsSystemDefault bool   `json:"is_system_default,omitempty" yaml:"-"`
}
