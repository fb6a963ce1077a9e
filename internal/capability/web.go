package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"factotum/internal/tool"
)

const (
	searchTimeout  = 15 * time.Second
	fetchMaxBytes  = 100 * 1024
	fetchMaxOutput = 10000
	userAgent      = "Factotum/0.1"
)

// NewWeb builds the web agent: DuckDuckGo instant-answer search plus a page
// fetcher that strips HTML.
func NewWeb() *Agent {
	w := &webClient{client: &http.Client{Timeout: searchTimeout}}

	search := tool.New("web_search",
		"Search the web for information. Returns a summary of results. Use for current events, facts, or anything you're unsure about.",
		tool.NewSchema(
			tool.Field{Name: "query", Type: tool.TypeString, Description: "Search query to look up on the web", Required: true},
		),
		w.search,
	)

	fetch := tool.New("web_fetch",
		"Fetch the text content of a web page by URL (HTML stripped). Useful for reading articles and documentation.",
		tool.NewSchema(
			tool.Field{Name: "url", Type: tool.TypeString, Description: "Full URL to fetch (must start with http:// or https://)", Required: true},
		),
		w.fetch,
	)

	return New("web",
		"Web search and page fetching.",
		"Use web_search for anything you are unsure about or that may have changed recently; use web_fetch to read a specific page. Cite the source URL when you quote fetched content.",
		search, fetch,
	)
}

type webClient struct {
	client *http.Client
}

type searchArgs struct {
	Query string `json:"query"`
}

type fetchArgs struct {
	URL string `json:"url"`
}

type ddgResponse struct {
	Abstract      string     `json:"Abstract"`
	AbstractURL   string     `json:"AbstractURL"`
	Heading       string     `json:"Heading"`
	Answer        string     `json:"Answer"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

func (w *webClient) search(ctx context.Context, args searchArgs) (string, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	endpoint := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1&skip_disambig=1",
		url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	var ddg ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&ddg); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	var results []string
	if ddg.Abstract != "" {
		results = append(results, fmt.Sprintf("## %s\n%s\nSource: %s", ddg.Heading, ddg.Abstract, ddg.AbstractURL))
	}
	if ddg.Answer != "" {
		results = append(results, "Answer: "+ddg.Answer)
	}
	for i, topic := range ddg.RelatedTopics {
		if i >= 5 {
			break
		}
		if topic.Text != "" {
			results = append(results, "- "+topic.Text)
		}
	}

	if len(results) == 0 {
		return fmt.Sprintf("No instant results found for: %s. Try a more specific query.", query), nil
	}
	return strings.Join(results, "\n\n"), nil
}

func (w *webClient) fetch(ctx context.Context, args fetchArgs) (string, error) {
	parsed, err := url.Parse(args.URL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	// Scheme allow-list to prevent SSRF into file:// and friends.
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", args.URL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, args.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text := stripHTMLTags(string(body))
	if len(text) > fetchMaxOutput {
		text = text[:fetchMaxOutput] + "\n... (truncated)"
	}
	return text, nil
}

func stripHTMLTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	var cleaned []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
