package tools

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/nstogner/searchchat/pkg/domain"
)

const (
	duckDuckGoName        = "Search"
	duckDuckGoDescription = "A wrapper around DuckDuckGo Search. Useful for when you need to answer questions about current events. Input should be a search query."
	duckDuckGoEndpoint    = "https://lite.duckduckgo.com/lite/"
	duckDuckGoNoResult    = "No good DuckDuckGo Search Result was found"
	duckDuckGoMaxResults  = 5
	duckDuckGoMaxBackoff  = 30 * time.Second
)

// ddgLimiter allows one query per second across all sessions.
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

// DuckDuckGo is the general web search tool. It scrapes the DuckDuckGo lite
// HTML page and returns the result snippets joined by spaces.
type DuckDuckGo struct {
	client   *http.Client
	endpoint string
	limiter  *rate.Limiter
	backoff  time.Duration
}

var _ Tool = (*DuckDuckGo)(nil)

// NewDuckDuckGo creates the search tool. An empty endpoint uses DuckDuckGo lite.
func NewDuckDuckGo(client *http.Client, endpoint string) *DuckDuckGo {
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	return &DuckDuckGo{
		client:   client,
		endpoint: endpoint,
		limiter:  ddgLimiter,
		backoff:  time.Second,
	}
}

func (d *DuckDuckGo) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Kind:        domain.ToolKindSearch,
		Name:        duckDuckGoName,
		Description: duckDuckGoDescription,
	}
}

// Invoke runs the search. Result text is not truncated.
func (d *DuckDuckGo) Invoke(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", providerError(duckDuckGoName, "query is empty")
	}

	body, err := d.fetch(ctx, query)
	if err != nil {
		return "", err
	}

	snippets, err := parseDuckDuckGo(body)
	if err != nil {
		return "", providerError(duckDuckGoName, "parsing results: %v", err)
	}
	slog.Debug("DuckDuckGo search", "query", query, "results", len(snippets))
	if len(snippets) == 0 {
		return duckDuckGoNoResult, nil
	}
	return strings.Join(snippets, " "), nil
}

func (d *DuckDuckGo) fetch(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{}
	form.Set("q", query)

	delay := d.backoff
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, networkError(duckDuckGoName, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, providerError(duckDuckGoName, "building request: %v", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		body, err := do(d.client, duckDuckGoName, req)
		if err == nil {
			return body, nil
		}
		if !isTooManyRequests(err) {
			return nil, err
		}

		// Back off and retry on 429, doubling the delay up to the cap.
		slog.Debug("DuckDuckGo rate limited", "retryIn", delay)
		select {
		case <-ctx.Done():
			return nil, networkError(duckDuckGoName, ctx.Err())
		case <-time.After(delay):
		}
		if delay < duckDuckGoMaxBackoff {
			delay *= 2
		}
	}
}

func isTooManyRequests(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests
}

// parseDuckDuckGo extracts the text of result-snippet cells from the lite page.
func parseDuckDuckGo(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var snippets []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(snippets) >= duckDuckGoMaxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "td" && hasClass(n, "result-snippet") {
			if text := nodeText(n); text != "" {
				snippets = append(snippets, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return snippets, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// nodeText concatenates descendant text nodes and collapses whitespace.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
