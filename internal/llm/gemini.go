package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// Gemini opens chats on the Gemini API.
type Gemini struct {
	client *genai.Client
	params Params
}

// NewGemini creates the genai client for apiKey.
func NewGemini(ctx context.Context, apiKey string, params Params) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if params.Model == "" {
		params.Model = DefaultParams().Model
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}

	return &Gemini{client: client, params: params}, nil
}

func (g *Gemini) config(instructions string) *genai.GenerateContentConfig {
	temperature, topP, topK := g.params.Temperature, g.params.TopP, g.params.TopK
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instructions}}},
		Temperature:       &temperature,
		TopP:              &topP,
		TopK:              &topK,
	}
}

func (g *Gemini) StartSession(ctx context.Context, spec Spec) (Session, error) {
	chat, err := g.client.Chats.Create(ctx, g.params.Model, g.config(spec.Instructions), nil)
	if err != nil {
		return nil, fmt.Errorf("llm: create chat: %w", err)
	}
	return &geminiSession{chat: chat}, nil
}

type geminiSession struct {
	chat *genai.Chat
}

func (s *geminiSession) SendStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range s.chat.SendStream(ctx, &genai.Part{Text: text}) {
			if err != nil {
				yield("", fmt.Errorf("llm: stream: %w", err))
				return
			}
			chunk := resp.Text()
			if chunk == "" {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
