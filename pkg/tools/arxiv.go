package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/nstogner/searchchat/pkg/domain"
)

const (
	arxivName        = "arxiv"
	arxivDescription = "A wrapper around Arxiv.org. Useful for when you need to answer questions about Physics, Mathematics, Computer Science, Quantitative Biology, Quantitative Finance, Statistics, Electrical Engineering, and Economics from scientific articles on arxiv.org. Input should be a search query."
	arxivEndpoint    = "https://export.arxiv.org/api/query"
	arxivNoResult    = "No good Arxiv Result was found"
	arxivTopK        = 1
	arxivMaxChars    = 250
)

// arxivIDPattern matches new-style (2101.00001v2) and old-style
// (hep-th/9901001) identifiers.
var arxivIDPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5}(v\d+)?|[a-z\-]+(\.[A-Z]{2})?/\d{7}(v\d+)?)$`)

// Arxiv is the paper lookup tool backed by the arXiv export API.
type Arxiv struct {
	client   *http.Client
	endpoint string
}

var _ Tool = (*Arxiv)(nil)

// NewArxiv creates the paper lookup tool. An empty endpoint uses export.arxiv.org.
func NewArxiv(client *http.Client, endpoint string) *Arxiv {
	if endpoint == "" {
		endpoint = arxivEndpoint
	}
	return &Arxiv{client: client, endpoint: endpoint}
}

func (a *Arxiv) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Kind:        domain.ToolKindPaperLookup,
		Name:        arxivName,
		Description: arxivDescription,
		MaxChars:    arxivMaxChars,
	}
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// Invoke searches arXiv and returns the top entry, capped at 250 characters.
func (a *Arxiv) Invoke(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(Truncate(strings.TrimSpace(query), maxQueryChars))
	if query == "" {
		return "", providerError(arxivName, "query is empty")
	}

	params := url.Values{}
	if arxivIDPattern.MatchString(query) {
		params.Set("id_list", query)
	} else {
		params.Set("search_query", query)
	}
	params.Set("max_results", fmt.Sprint(arxivTopK))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", providerError(arxivName, "building request: %v", err)
	}
	body, err := do(a.client, arxivName, req)
	if err != nil {
		return "", err
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", providerError(arxivName, "decoding feed: %v", err)
	}

	var docs []string
	for _, e := range feed.Entries {
		// The API reports bad queries as a single entry titled "Error".
		if strings.Contains(e.ID, "/api/errors") || collapse(e.Title) == "Error" {
			return "", providerError(arxivName, "api error: %s", collapse(e.Summary))
		}
		docs = append(docs, formatArxivEntry(e))
		if len(docs) == arxivTopK {
			break
		}
	}
	slog.Debug("Arxiv lookup", "query", query, "results", len(docs))
	if len(docs) == 0 {
		return arxivNoResult, nil
	}
	return Truncate(strings.Join(docs, "\n\n"), arxivMaxChars), nil
}

func formatArxivEntry(e arxivEntry) string {
	published := e.Published
	if len(published) >= 10 {
		published = published[:10]
	}
	names := make([]string, 0, len(e.Authors))
	for _, au := range e.Authors {
		names = append(names, collapse(au.Name))
	}
	return fmt.Sprintf("Published: %s\nTitle: %s\nAuthors: %s\nSummary: %s",
		published, collapse(e.Title), strings.Join(names, ", "), collapse(e.Summary))
}

// collapse folds runs of whitespace, including the hard line breaks the
// arXiv feed puts inside titles and abstracts.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
