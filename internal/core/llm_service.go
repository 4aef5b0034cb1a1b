package core

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/A7-pro/mikerobot/internal/store"
)

const (
	defaultChatModelName  = "gemini-2.5-flash"
	defaultImageModelName = "imagen-3.0-generate-002"
)

type LLMServiceConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
}

// LLMService is the Gemini-backed Gateway: chat streaming through generative-ai-go, images through
// the genai SDK.
type LLMService struct {
	client     *genai.Client
	images     imageClient
	textModel  string
	imageModel string
}

func NewLLMService(ctx context.Context, cfg LLMServiceConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	images, err := newImageClient(ctx, cfg.APIKey)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	s := &LLMService{
		client:     client,
		images:     images,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
	}
	if s.textModel == "" {
		s.textModel = defaultChatModelName
	}
	if s.imageModel == "" {
		s.imageModel = defaultImageModelName
	}
	return s, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Error().Err(err).Msg("error closing GenAI client")
		} else {
			log.Info().Msg("GenAI client closed")
		}
	}
}

func (s *LLMService) NewChatSession(systemInstruction string) ChatSession {
	model := s.client.GenerativeModel(s.textModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	return &geminiChat{session: model.StartChat()}
}

func (s *LLMService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return s.images.generate(ctx, s.imageModel, prompt)
}

type geminiChat struct {
	session *genai.ChatSession
}

func (c *geminiChat) StreamText(ctx context.Context, prompt string) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		it := c.session.SendMessageStream(ctx, genai.Text(prompt))

		var grounding []store.GroundingChunk
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				yield(StreamChunk{}, fmt.Errorf("gemini chat stream failed: %w", err))
				return
			}

			text, refs := readResponse(resp)
			if len(refs) > 0 {
				grounding = refs
			}
			if text == "" && len(refs) == 0 {
				continue
			}
			if !yield(StreamChunk{Text: text, Grounding: refs}, nil) {
				return
			}
		}
		yield(StreamChunk{Final: true, Grounding: grounding}, nil)
	}
}

// readResponse flattens the first candidate's text parts and maps its citation sources to grounding
// references.
func readResponse(resp *genai.GenerateContentResponse) (string, []store.GroundingChunk) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", nil
	}
	cand := resp.Candidates[0]

	var text string
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text += string(txt)
			} else {
				log.Debug().Str("part_type", fmt.Sprintf("%T", part)).Msg("skipping non-text response part")
			}
		}
	}

	var refs []store.GroundingChunk
	if cand.CitationMetadata != nil {
		for _, src := range cand.CitationMetadata.CitationSources {
			if src == nil || src.URI == nil || *src.URI == "" {
				continue
			}
			title := src.License
			if title == "" {
				title = *src.URI
			}
			refs = append(refs, store.GroundingChunk{Web: store.GroundingChunkWeb{URI: *src.URI, Title: title}})
		}
	}
	return text, refs
}
