package core

import (
	"context"
	"errors"
	"iter"

	"github.com/A7-pro/mikerobot/internal/store"
)

// ErrNoImage is returned by a gateway that completed the call but produced no image.
var ErrNoImage = errors.New("no image generated")

// StreamChunk is one element of a text stream. The last element has Final set and may carry no text.
type StreamChunk struct {
	Text      string
	Final     bool
	Grounding []store.GroundingChunk
}

// ChatSession is provider-side conversational context bound to one system instruction. It is not safe
// for concurrent use; the session's dispatch state keeps calls serial.
type ChatSession interface {
	// StreamText yields chunks lazily. The sequence is finite and cannot be restarted.
	StreamText(ctx context.Context, prompt string) iter.Seq2[StreamChunk, error]
}

// Gateway is the assistant provider as seen by the core.
type Gateway interface {
	// NewChatSession discards any previous context and binds a fresh one to the instruction.
	NewChatSession(systemInstruction string) ChatSession
	// GenerateImage returns an image reference (URL or data URL).
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
