package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/nstogner/searchchat/pkg/domain"
)

func newTestDuckDuckGo(t *testing.T, url string) *DuckDuckGo {
	t.Helper()
	d := NewDuckDuckGo(http.DefaultClient, url)
	d.limiter = rate.NewLimiter(rate.Inf, 1)
	d.backoff = time.Millisecond
	return d
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 0, "hello"},
		{"hello", -1, "hello"},
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo wörld", 4, "héll"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(Options{})

	names := r.Names()
	want := []string{"Search", "arxiv", "wikipedia"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	caps := map[domain.ToolKind]int{
		domain.ToolKindSearch:             0,
		domain.ToolKindPaperLookup:        250,
		domain.ToolKindEncyclopediaLookup: 250,
	}
	for _, d := range r.Descriptors() {
		if d.MaxChars != caps[d.Kind] {
			t.Errorf("%s MaxChars = %d, want %d", d.Name, d.MaxChars, caps[d.Kind])
		}
		if d.Description == "" {
			t.Errorf("%s has empty description", d.Name)
		}
	}

	if _, ok := r.Get("arxiv"); !ok {
		t.Error("Get(arxiv) not found")
	}
	if _, ok := r.Get("calculator"); ok {
		t.Error("Get(calculator) found, want missing")
	}
}

func TestRegistryReplaceKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(NewArxiv(http.DefaultClient, ""))
	r.Register(NewWikipedia(http.DefaultClient, ""))
	r.Register(NewArxiv(http.DefaultClient, "http://example.invalid"))

	if got := strings.Join(r.Names(), ","); got != "arxiv,wikipedia" {
		t.Errorf("Names() = %q, want %q", got, "arxiv,wikipedia")
	}
}

const ddgPage = `<html><body><table>
<tr><td><a class="result-link" href="https://example.com">Example</a></td></tr>
<tr><td class="result-snippet">Machine learning is a field of
  study in artificial intelligence.</td></tr>
<tr><td class="result-snippet">It builds <b>statistical</b> models.</td></tr>
</table></body></html>`

func TestDuckDuckGoInvoke(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotQuery = r.FormValue("q")
		gotUA = r.UserAgent()
		fmt.Fprint(w, ddgPage)
	}))
	defer srv.Close()

	d := newTestDuckDuckGo(t, srv.URL)
	got, err := d.Invoke(context.Background(), "  machine learning ")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := "Machine learning is a field of study in artificial intelligence. It builds statistical models."
	if got != want {
		t.Errorf("Invoke = %q, want %q", got, want)
	}
	if gotQuery != "machine learning" {
		t.Errorf("query = %q, want %q", gotQuery, "machine learning")
	}
	if gotUA != userAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, userAgent)
	}
}

func TestDuckDuckGoIsUncapped(t *testing.T) {
	long := strings.Repeat("word ", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<table><tr><td class="result-snippet">%s</td></tr></table>`, long)
	}))
	defer srv.Close()

	got, err := newTestDuckDuckGo(t, srv.URL).Invoke(context.Background(), "q")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(got) != len(strings.TrimSpace(long)) {
		t.Errorf("len = %d, want %d", len(got), len(strings.TrimSpace(long)))
	}
}

func TestDuckDuckGoNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>nothing here</body></html>`)
	}))
	defer srv.Close()

	got, err := newTestDuckDuckGo(t, srv.URL).Invoke(context.Background(), "zzzz")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != duckDuckGoNoResult {
		t.Errorf("Invoke = %q, want %q", got, duckDuckGoNoResult)
	}
}

func TestDuckDuckGoRetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, ddgPage)
	}))
	defer srv.Close()

	got, err := newTestDuckDuckGo(t, srv.URL).Invoke(context.Background(), "q")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got == "" || got == duckDuckGoNoResult {
		t.Errorf("Invoke = %q, want snippets", got)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestDuckDuckGoRetryStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := newTestDuckDuckGo(t, srv.URL)
	d.backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Invoke(ctx, "q")
	var te *Error
	if !errors.As(err, &te) || te.Kind != KindNetwork {
		t.Fatalf("err = %v, want network *Error", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want wrapped DeadlineExceeded", err)
	}
}

func TestProviderAndNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		tool Tool
		kind ErrorKind
	}{
		{"ddg 500", newTestDuckDuckGo(t, srv.URL), KindProvider},
		{"arxiv 500", NewArxiv(http.DefaultClient, srv.URL), KindProvider},
		{"wikipedia 500", NewWikipedia(http.DefaultClient, srv.URL), KindProvider},
		{"ddg down", newTestDuckDuckGo(t, closedURL), KindNetwork},
		{"arxiv down", NewArxiv(http.DefaultClient, closedURL), KindNetwork},
		{"wikipedia down", NewWikipedia(http.DefaultClient, closedURL), KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tool.Invoke(context.Background(), "query")
			var te *Error
			if !errors.As(err, &te) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if te.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", te.Kind, tt.kind)
			}
			if te.Tool != tt.tool.Descriptor().Name {
				t.Errorf("Tool = %q, want %q", te.Tool, tt.tool.Descriptor().Name)
			}
			if !IsToolError(err) {
				t.Error("IsToolError = false")
			}
		})
	}
}

func TestEmptyQuery(t *testing.T) {
	for _, tool := range NewDefaultRegistry(Options{}).List() {
		if _, err := tool.Invoke(context.Background(), "   "); !IsToolError(err) {
			t.Errorf("%s: err = %v, want *Error", tool.Descriptor().Name, err)
		}
	}
}

const arxivFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on complex recurrent or
  convolutional neural networks in an encoder-decoder configuration. The best performing
  models also connect the encoder and decoder through an attention mechanism.</summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
  </entry>
</feed>`

func TestArxivInvoke(t *testing.T) {
	var gotSearch, gotIDList, gotMax string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query().Get("search_query")
		gotIDList = r.URL.Query().Get("id_list")
		gotMax = r.URL.Query().Get("max_results")
		fmt.Fprint(w, arxivFeedXML)
	}))
	defer srv.Close()

	a := NewArxiv(http.DefaultClient, srv.URL)
	got, err := a.Invoke(context.Background(), "attention transformers")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotSearch != "attention transformers" || gotIDList != "" {
		t.Errorf("search_query = %q, id_list = %q", gotSearch, gotIDList)
	}
	if gotMax != "1" {
		t.Errorf("max_results = %q, want 1", gotMax)
	}
	wantPrefix := "Published: 2017-06-12\nTitle: Attention Is All You Need\nAuthors: Ashish Vaswani, Noam Shazeer\nSummary: The dominant"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("Invoke = %q, want prefix %q", got, wantPrefix)
	}
	if n := utf8.RuneCountInString(got); n != arxivMaxChars {
		t.Errorf("length = %d, want %d", n, arxivMaxChars)
	}
}

func TestArxivIdentifierQuery(t *testing.T) {
	for _, id := range []string{"1706.03762", "1706.03762v7", "hep-th/9901001"} {
		var gotIDList string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotIDList = r.URL.Query().Get("id_list")
			fmt.Fprint(w, arxivFeedXML)
		}))
		if _, err := NewArxiv(http.DefaultClient, srv.URL).Invoke(context.Background(), id); err != nil {
			t.Errorf("%s: Invoke: %v", id, err)
		}
		if gotIDList != id {
			t.Errorf("id_list = %q, want %q", gotIDList, id)
		}
		srv.Close()
	}
}

func TestArxivNoResultsAndAPIError(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	}))
	defer empty.Close()

	got, err := NewArxiv(http.DefaultClient, empty.URL).Invoke(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != arxivNoResult {
		t.Errorf("Invoke = %q, want %q", got, arxivNoResult)
	}

	apiErr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"><entry>
<id>http://arxiv.org/api/errors#incorrect_id_format_for_1234.5678</id>
<title>Error</title><summary>incorrect id format for 1234.5678</summary></entry></feed>`)
	}))
	defer apiErr.Close()

	_, err = NewArxiv(http.DefaultClient, apiErr.URL).Invoke(context.Background(), "1234.5678")
	var te *Error
	if !errors.As(err, &te) || te.Kind != KindProvider {
		t.Errorf("err = %v, want provider *Error", err)
	}
}

func TestArxivQueryTruncated(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("search_query")
		fmt.Fprint(w, arxivFeedXML)
	}))
	defer srv.Close()

	if _, err := NewArxiv(http.DefaultClient, srv.URL).Invoke(context.Background(), strings.Repeat("a", 400)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(got) != maxQueryChars {
		t.Errorf("query length = %d, want %d", len(got), maxQueryChars)
	}
}

func newWikipediaServer(t *testing.T, extract string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search":
			if q.Get("srlimit") != "1" {
				t.Errorf("srlimit = %q, want 1", q.Get("srlimit"))
			}
			if q.Get("srsearch") == "nothing" {
				fmt.Fprint(w, `{"query":{"search":[]}}`)
				return
			}
			fmt.Fprint(w, `{"query":{"search":[{"title":"Machine learning"}]}}`)
		case q.Get("prop") == "extracts":
			if q.Get("titles") != "Machine learning" {
				t.Errorf("titles = %q", q.Get("titles"))
			}
			fmt.Fprintf(w, `{"query":{"pages":{"233488":{"pageid":233488,"title":"Machine learning","extract":%q}}}}`, extract)
		default:
			http.Error(w, "unexpected", http.StatusBadRequest)
		}
	}))
}

func TestWikipediaInvoke(t *testing.T) {
	srv := newWikipediaServer(t, "Machine learning (ML) is a field of study in artificial intelligence.")
	defer srv.Close()

	got, err := NewWikipedia(http.DefaultClient, srv.URL).Invoke(context.Background(), "machine learning")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := "Page: Machine learning\nSummary: Machine learning (ML) is a field of study in artificial intelligence."
	if got != want {
		t.Errorf("Invoke = %q, want %q", got, want)
	}
}

func TestWikipediaCapped(t *testing.T) {
	srv := newWikipediaServer(t, strings.Repeat("Long summary text. ", 100))
	defer srv.Close()

	got, err := NewWikipedia(http.DefaultClient, srv.URL).Invoke(context.Background(), "machine learning")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if n := utf8.RuneCountInString(got); n > wikipediaMaxChars {
		t.Errorf("length = %d, want <= %d", n, wikipediaMaxChars)
	}
}

func TestWikipediaNoResults(t *testing.T) {
	srv := newWikipediaServer(t, "")
	defer srv.Close()

	got, err := NewWikipedia(http.DefaultClient, srv.URL).Invoke(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != wikipediaNoResult {
		t.Errorf("Invoke = %q, want %q", got, wikipediaNoResult)
	}
}

func TestWikipediaBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	_, err := NewWikipedia(http.DefaultClient, srv.URL).Invoke(context.Background(), "q")
	var te *Error
	if !errors.As(err, &te) || te.Kind != KindProvider {
		t.Errorf("err = %v, want provider *Error", err)
	}
}
