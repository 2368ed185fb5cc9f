package model

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/nstogner/searchchat/pkg/config"
)

// traceTransport dumps HTTP traffic at config.LevelTrace.
type traceTransport struct {
	provider string
	base     http.RoundTripper
	secrets  []string
}

// NewTraceTransport wraps base (http.DefaultTransport when nil) so that
// requests and responses are logged at trace level. The named headers are
// masked in the dump.
func NewTraceTransport(provider string, base http.RoundTripper, secretHeaders ...string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &traceTransport{provider: provider, base: base, secrets: secretHeaders}
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !slog.Default().Enabled(req.Context(), config.LevelTrace) {
		return t.base.RoundTrip(req)
	}

	masked := req.Clone(req.Context())
	for _, h := range t.secrets {
		if masked.Header.Get(h) != "" {
			masked.Header.Set(h, "redacted")
		}
	}
	if q := masked.URL.Query(); q.Has("key") {
		q.Set("key", "redacted")
		masked.URL.RawQuery = q.Encode()
	}
	masked.Body = nil
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			masked.Body = body
		}
	}
	reqDump, err := httputil.DumpRequestOut(masked, masked.Body != nil)
	if err != nil {
		slog.Debug("Failed to dump request", "provider", t.provider, "error", err)
	} else {
		slog.Log(req.Context(), config.LevelTrace, "Model REST Request", "provider", t.provider, "url", masked.URL.String(), "dump", string(reqDump))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Streaming bodies are not dumped so the caller can still read them.
	isStream := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream")
	respDump, err := httputil.DumpResponse(resp, !isStream)
	if err != nil {
		slog.Debug("Failed to dump response", "provider", t.provider, "error", err)
	} else {
		slog.Log(req.Context(), config.LevelTrace, "Model REST Response", "provider", t.provider, "isStream", isStream, "dump", string(respDump))
	}
	return resp, nil
}
