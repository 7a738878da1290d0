package tools

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/policyscan/policyscan/internal/policy"
)

const duckduckgoEndpoint = "https://html.duckduckgo.com/html/"

var (
	ddgResultRe  = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

// WebSearchTool searches the web via the DuckDuckGo HTML endpoint.
type WebSearchTool struct {
	endpoint   string
	maxResults int
	httpClient *http.Client
}

// NewWebSearchTool creates a new web search tool.
func NewWebSearchTool(maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{
		endpoint:   duckduckgoEndpoint,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWebSearchToolWithEndpoint creates a web search tool against a custom
// endpoint. Used by tests.
func NewWebSearchToolWithEndpoint(endpoint string, maxResults int) *WebSearchTool {
	t := NewWebSearchTool(maxResults)
	t.endpoint = endpoint
	return t
}

// Name returns the tool identifier.
func (t *WebSearchTool) Name() string { return "web_search" }

// Description returns the tool description for the LLM.
func (t *WebSearchTool) Description() string {
	return "Search the web for information about medical billing rules and CPT codes."
}

// Parameters returns the JSON Schema for tool parameters.
func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query for finding medical billing information.",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return.",
			},
		},
		"required": []any{"query"},
	}
}

// Execute searches the web and returns title/url/snippet triples.
func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	query := GetString(params, "query", "")
	if query == "" {
		return Failure(t.Name(), "missing required parameter: query"), nil
	}
	maxResults := GetInt(params, "max_results", t.maxResults)

	results, err := t.Search(ctx, query, maxResults)
	if err != nil {
		return Failure(t.Name(), fmt.Sprintf("web search failed: %v", err)), nil
	}
	return Success(t.Name(), map[string]any{
		"query":   query,
		"results": results,
		"count":   len(results),
	}), nil
}

// Search performs the HTTP search and parses the result list.
func (t *WebSearchTool) Search(ctx context.Context, query string, maxResults int) ([]policy.SearchSource, error) {
	form := url.Values{"q": {query}}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", "policyscan/1.0")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search error (status %d)", resp.StatusCode)
	}

	return parseSearchResults(string(body), maxResults), nil
}

func parseSearchResults(page string, maxResults int) []policy.SearchSource {
	links := ddgResultRe.FindAllStringSubmatch(page, -1)
	snippets := ddgSnippetRe.FindAllStringSubmatch(page, -1)

	results := make([]policy.SearchSource, 0, maxResults)
	for i, link := range links {
		if len(results) >= maxResults {
			break
		}
		snippet := ""
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}
		results = append(results, policy.SearchSource{
			Title:     cleanHTML(link[2]),
			URL:       resolveDDGLink(link[1]),
			Snippet:   snippet,
			Relevance: 0.5,
		})
	}
	return results
}

func cleanHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, "")))
}

// resolveDDGLink unwraps DuckDuckGo's redirect URLs (//duckduckgo.com/l/?uddg=...).
func resolveDDGLink(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	return raw
}
