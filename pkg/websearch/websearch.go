// Package websearch pulls fresh context from a local SearxNG instance.
//
// Results feed the model prompt only. Failures degrade to no context,
// never to a failed request.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mfalcao/phantasma/internal/httpc"
	"github.com/mfalcao/phantasma/internal/log"
)

// DefaultMaxResults caps how many results go into the prompt.
const DefaultMaxResults = 3

// Searcher retrieves web context for a prompt. The SearxNG client
// implements it; tests script it.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// Searx queries a SearxNG instance's JSON API.
type Searx struct {
	base       string
	maxResults int
	client     *http.Client
}

var _ Searcher = (*Searx)(nil)

// NewSearx creates a client for the given SearxNG base URL.
func NewSearx(base string, maxResults int) *Searx {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Searx{
		base:       strings.TrimRight(base, "/"),
		maxResults: maxResults,
		client:     httpc.NewClient(8 * time.Second),
	}
}

// Search returns result titles and snippets as prompt context, empty on
// any failure.
func (s *Searx) Search(ctx context.Context, query string) string {
	if s.base == "" || strings.TrimSpace(query) == "" {
		return ""
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&language=pt-PT",
		s.base, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	resp, err := s.client.Do(req)
	if err != nil {
		log.Component("websearch").Debug("search failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Component("websearch").Debug("search failed", "status", resp.StatusCode)
		return ""
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}

	var b strings.Builder
	count := 0
	for _, r := range payload.Results {
		if count >= s.maxResults {
			break
		}
		title := strings.TrimSpace(r.Title)
		content := strings.TrimSpace(r.Content)
		if title == "" && content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", title, content)
		count++
	}
	return b.String()
}

// MockSearcher returns a fixed context string. Test use only.
type MockSearcher struct {
	Context string

	queries []string
}

var _ Searcher = (*MockSearcher)(nil)

func (m *MockSearcher) Search(_ context.Context, query string) string {
	m.queries = append(m.queries, query)
	return m.Context
}

// Queries reports what was searched.
func (m *MockSearcher) Queries() []string {
	return m.queries
}
