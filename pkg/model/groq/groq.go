// Package groq implements model.Provider against Groq's OpenAI-compatible
// chat completions API.
package groq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
	"github.com/openai/openai-go/v2/shared"

	"github.com/nstogner/searchchat/pkg/config"
	"github.com/nstogner/searchchat/pkg/domain"
	"github.com/nstogner/searchchat/pkg/model"
)

const providerName = "groq"

// Provider implements model.Provider with the OpenAI client pointed at Groq.
type Provider struct {
	client openai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a Groq provider. An empty baseURL uses the public endpoint.
func New(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = config.DefaultGroqBaseURL
	}
	httpClient := &http.Client{
		Transport: model.NewTraceTransport(providerName, nil, "Authorization"),
	}
	return &Provider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
			option.WithHTTPClient(httpClient),
		),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// groqModelFields are the Groq extensions to the OpenAI model object.
type groqModelFields struct {
	Active        *bool `json:"active"`
	ContextWindow int   `json:"context_window"`
}

// List returns the chat models available to the credential.
func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", convertError(err))
	}

	var models []domain.Model
	for _, m := range page.Data {
		var extra groqModelFields
		if raw := m.RawJSON(); raw != "" {
			_ = json.Unmarshal([]byte(raw), &extra)
		}
		if extra.Active != nil && !*extra.Active {
			continue
		}
		// Speech-to-text models share the listing but cannot chat.
		if strings.Contains(m.ID, "whisper") {
			continue
		}
		models = append(models, domain.Model{
			ID:        m.ID,
			Name:      m.ID,
			Provider:  providerName,
			MaxTokens: extra.ContextWindow,
		})
	}
	return models, nil
}

// Stream starts a streaming chat completion.
func (p *Provider) Stream(ctx context.Context, r model.Request) (model.Stream, error) {
	slog.Debug("Groq.Stream", "model", r.Model, "messageCount", len(r.Messages), "stop", len(r.Stop))

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.Model),
	}
	if r.Instructions != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(r.Instructions))
	}
	for _, m := range r.Messages {
		switch m.Role {
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if len(r.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: r.Stop}
	}
	if r.Temperature != nil {
		params.Temperature = openai.Float(*r.Temperature)
	}

	s := p.client.Chat.Completions.NewStreaming(ctx, params)
	// Request failures surface on the stream before the first chunk.
	if err := s.Err(); err != nil {
		s.Close()
		return nil, convertError(err)
	}
	return &chunkStream{stream: s}, nil
}

// convertError maps OpenAI client errors onto model.APIError.
func convertError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	msg := apiErr.Message
	if msg == "" {
		msg = errorMessage(apiErr.RawJSON())
	}
	return &model.APIError{Provider: providerName, StatusCode: apiErr.StatusCode, Body: msg}
}

// errorMessage pulls the message out of either a bare or an enveloped
// OpenAI error object.
func errorMessage(raw string) string {
	var e struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(raw), &e) == nil {
		if e.Error.Message != "" {
			return e.Error.Message
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(raw)
}

// chunkStream adapts the SDK's chunk stream to model.Stream.
type chunkStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *chunkStream) Recv() (string, error) {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
	if err := s.stream.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", convertError(err))
	}
	return "", io.EOF
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}
