package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nstogner/searchchat/pkg/domain"
)

const (
	wikipediaName        = "wikipedia"
	wikipediaDescription = "A wrapper around Wikipedia. Useful for when you need to answer general questions about people, places, companies, facts, historical events, or other subjects. Input should be a search query."
	wikipediaEndpoint    = "https://en.wikipedia.org/w/api.php"
	wikipediaNoResult    = "No good Wikipedia Search Result was found"
	wikipediaTopK        = 1
	wikipediaMaxChars    = 250
)

// Wikipedia is the encyclopedia lookup tool backed by the MediaWiki API.
type Wikipedia struct {
	client   *http.Client
	endpoint string
}

var _ Tool = (*Wikipedia)(nil)

// NewWikipedia creates the encyclopedia tool. An empty endpoint uses en.wikipedia.org.
func NewWikipedia(client *http.Client, endpoint string) *Wikipedia {
	if endpoint == "" {
		endpoint = wikipediaEndpoint
	}
	return &Wikipedia{client: client, endpoint: endpoint}
}

func (w *Wikipedia) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Kind:        domain.ToolKindEncyclopediaLookup,
		Name:        wikipediaName,
		Description: wikipediaDescription,
		MaxChars:    wikipediaMaxChars,
	}
}

// Invoke finds the best matching article and returns its introduction,
// capped at 250 characters.
func (w *Wikipedia) Invoke(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(Truncate(strings.TrimSpace(query), maxQueryChars))
	if query == "" {
		return "", providerError(wikipediaName, "query is empty")
	}

	titles, err := w.search(ctx, query)
	if err != nil {
		return "", err
	}

	var docs []string
	for _, title := range titles {
		summary, err := w.summary(ctx, title)
		if err != nil {
			return "", err
		}
		if summary == "" {
			// Missing or empty pages are skipped, not reported.
			continue
		}
		docs = append(docs, fmt.Sprintf("Page: %s\nSummary: %s", title, summary))
	}
	slog.Debug("Wikipedia lookup", "query", query, "results", len(docs))
	if len(docs) == 0 {
		return wikipediaNoResult, nil
	}
	return Truncate(strings.Join(docs, "\n\n"), wikipediaMaxChars), nil
}

func (w *Wikipedia) search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", fmt.Sprint(wikipediaTopK))
	params.Set("srprop", "")
	params.Set("format", "json")
	params.Set("utf8", "1")

	var root struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := w.get(ctx, params, &root); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(root.Query.Search))
	for _, s := range root.Query.Search {
		titles = append(titles, s.Title)
	}
	return titles, nil
}

func (w *Wikipedia) summary(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("titles", title)
	params.Set("format", "json")

	var root struct {
		Query struct {
			Pages map[string]struct {
				Title   string  `json:"title"`
				Extract string  `json:"extract"`
				Missing *string `json:"missing"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := w.get(ctx, params, &root); err != nil {
		return "", err
	}
	for _, p := range root.Query.Pages {
		if p.Missing != nil {
			continue
		}
		return strings.TrimSpace(p.Extract), nil
	}
	return "", nil
}

func (w *Wikipedia) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return providerError(wikipediaName, "building request: %v", err)
	}
	body, err := do(w.client, wikipediaName, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return providerError(wikipediaName, "decoding response: %v", err)
	}
	return nil
}
