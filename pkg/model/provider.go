package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nstogner/searchchat/pkg/domain"
)

// Message represents a message in the model's conversation context.
type Message struct {
	// Role indicates the sender (user or assistant).
	Role domain.Role
	// Content is the plain-text body.
	Content string
}

// Request describes a single completion call.
type Request struct {
	// Model identifies which model to use (e.g. "llama3-8b-8192").
	Model string
	// Instructions is the system prompt. May be empty.
	Instructions string
	// Messages is the conversation history.
	Messages []Message
	// Stop lists sequences at which generation halts. The stop sequence
	// itself is not included in the output.
	Stop []string
	// Temperature is left to the provider default when nil.
	Temperature *float64
}

// Provider represents a service that provides LLMs (e.g. Groq, Gemini).
type Provider interface {
	// Name returns the provider's identifier (e.g. "groq", "gemini").
	Name() string

	// List returns the available models from this provider.
	List(ctx context.Context) ([]domain.Model, error)

	// Stream sends a request to the LLM and returns a stream of text deltas.
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Stream abstracts the incremental response from the model.
type Stream interface {
	// Recv returns the next text delta. It returns io.EOF once the response
	// is complete.
	Recv() (string, error)

	// Close releases resources associated with this stream.
	Close() error
}

// Factory builds a provider for the given credential. Providers are built
// per request because the credential may change between requests.
type Factory func(ctx context.Context, credential string) (Provider, error)

// Collect drains the stream and returns the concatenated text. onDelta, when
// non-nil, is called for every non-empty delta as it arrives.
func Collect(s Stream, onDelta func(string)) (string, error) {
	var b strings.Builder
	for {
		delta, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
}

// APIError is returned when a provider answers with a non-2xx status.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}
