package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/nstogner/searchchat/pkg/domain"
	"github.com/nstogner/searchchat/pkg/model"
)

const providerName = "gemini"

// Provider implements model.Provider using the Google Gen AI SDK.
type Provider struct {
	client *genai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Transport: model.NewTraceTransport(providerName, nil, "x-goog-api-key"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// List returns available Gemini models.
func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}

		// Filter for models that support generateContent.
		supportsGenerate := false
		if !strings.Contains(strings.ToLower(m.Name), "gemma") {
			for _, action := range m.SupportedActions {
				if action == "generateContent" {
					supportsGenerate = true
					break
				}
			}
		}
		if !supportsGenerate {
			continue
		}
		models = append(models, domain.Model{
			ID:        strings.TrimPrefix(m.Name, "models/"),
			Name:      m.DisplayName,
			Provider:  providerName,
			MaxTokens: int(m.InputTokenLimit),
		})
	}
	return models, nil
}

// Stream sends the request to the model and returns a stream of text deltas.
func (p *Provider) Stream(ctx context.Context, r model.Request) (model.Stream, error) {
	slog.Debug("Gemini.Stream", "model", r.Model, "messageCount", len(r.Messages))

	var contents []*genai.Content
	for _, msg := range r.Messages {
		var role genai.Role = genai.RoleUser
		if msg.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{
		StopSequences: r.Stop,
	}
	if r.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(r.Instructions, genai.RoleUser)
	}
	if r.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*r.Temperature))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	next, stop := iter.Pull2(p.client.Models.GenerateContentStream(streamCtx, r.Model, contents, config))

	return &geminiStream{
		next:   next,
		stop:   stop,
		cancel: cancel,
	}, nil
}

// geminiStream adapts the SDK's push iterator to model.Stream.
type geminiStream struct {
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", convertError(err)
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.stop()
	s.cancel()
	return nil
}

func convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &model.APIError{Provider: providerName, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &model.APIError{Provider: providerName, StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return err
}
