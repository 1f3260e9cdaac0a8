package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/generative-ai-go/genai"
	"github.com/rensmac/sparq-chat/internal/config"
	"github.com/rensmac/sparq-chat/internal/domain"
	"github.com/rensmac/sparq-chat/internal/llm"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Client implements llm.GenerationClient on the Gemini API.
type Client struct {
	apiKey string
	model  string
}

func NewClient(cfg config.GeminiConfig) *Client {
	return &Client{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *Client) modelName() string {
	if c.model != "" {
		return c.model
	}
	return "gemini-2.0-flash-exp"
}

// StartStream opens a chat with the prior history as context and streams
// the reply to text.
func (c *Client) StartStream(ctx context.Context, history []domain.Turn, text string) (llm.Stream, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("gemini client is not configured (missing API key)")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(c.modelName())
	chat := model.StartChat()
	chat.History = toContents(history)

	iter := chat.SendMessageStream(ctx, genai.Text(text))

	return &stream{client: client, iter: iter}, nil
}

// toContents converts the neutral turn history into the genai wire shape.
// Turn roles map one-to-one: "user" and "model" are the values the API
// expects.
func toContents(history []domain.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		contents = append(contents, &genai.Content{
			Role:  string(t.Role),
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return contents
}

type stream struct {
	client *genai.Client
	iter   *genai.GenerateContentResponseIterator
}

// Recv returns the next non-empty text chunk, io.EOF at end of stream.
func (s *stream) Recv() (string, error) {
	for {
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}

		if text := collectText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *stream) Close() {
	s.client.Close()
}

func collectText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	return out
}
