// Package tools implements the fixed set of lookup tools the agent can call.
//
// Every tool takes a plain-text query and returns plain text. Failures are
// reported as *Error so callers can treat them as "no result" instead of
// aborting the conversation.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nstogner/searchchat/pkg/domain"
)

// userAgent identifies outbound lookup requests.
const userAgent = "searchchat/1.0 (+https://github.com/nstogner/searchchat)"

// maxQueryChars bounds the query forwarded to the knowledge-base APIs.
const maxQueryChars = 300

// Tool defines the interface that all lookup tools implement.
type Tool interface {
	Descriptor() domain.ToolDescriptor
	Invoke(ctx context.Context, query string) (string, error)
}

// ErrorKind classifies tool failures.
type ErrorKind string

const (
	// KindNetwork is a transport failure (DNS, connection reset, timeout).
	KindNetwork ErrorKind = "network"
	// KindProvider is a bad response from the remote service.
	KindProvider ErrorKind = "provider"
)

// Error is returned by Tool.Invoke when the lookup fails.
type Error struct {
	Tool string
	Kind ErrorKind
	// StatusCode is the HTTP status for provider errors, when known.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Tool, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func networkError(tool string, err error) error {
	return &Error{Tool: tool, Kind: KindNetwork, Err: err}
}

func providerError(tool string, format string, args ...any) error {
	return &Error{Tool: tool, Kind: KindProvider, Err: fmt.Errorf(format, args...)}
}

// Truncate cuts s to at most max characters. A non-positive max disables
// truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Options configures the default tool set.
type Options struct {
	// HTTPClient is shared by all tools. When nil a client with Timeout is used.
	HTTPClient *http.Client
	// Timeout applies to the default client.
	Timeout time.Duration

	// Endpoint overrides, mainly for tests.
	DuckDuckGoURL string
	ArxivURL      string
	WikipediaURL  string
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// NewDefaultRegistry returns the three standard tools in prompt order:
// web search, arXiv, Wikipedia.
func NewDefaultRegistry(opts Options) *Registry {
	client := opts.client()
	r := NewRegistry()
	r.Register(NewDuckDuckGo(client, opts.DuckDuckGoURL))
	r.Register(NewArxiv(client, opts.ArxivURL))
	r.Register(NewWikipedia(client, opts.WikipediaURL))
	return r
}

// Registry manages the available tools. Registration order is preserved.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new, empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	name := t.Descriptor().Name
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	list := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Descriptors returns the descriptor of every tool in registration order.
func (r *Registry) Descriptors() []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, 0, len(r.order))
	for _, t := range r.List() {
		out = append(out, t.Descriptor())
	}
	return out
}

// do executes req and returns the body of a 200 response. Transport errors
// become KindNetwork, any other status KindProvider.
func do(client *http.Client, tool string, req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, networkError(tool, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(tool, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		slog.Debug("Tool request failed", "tool", tool, "status", resp.StatusCode)
		return nil, &Error{
			Tool:       tool,
			Kind:       KindProvider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("http %d: %s", resp.StatusCode, Truncate(string(body), 200)),
		}
	}
	return body, nil
}

// IsToolError reports whether err came from a tool invocation.
func IsToolError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}
