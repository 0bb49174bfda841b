package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"evalbot/internal/logger"
)

const (
	tavilySearchURL = "https://api.tavily.com/search"
	duckDuckGoURL   = "https://lite.duckduckgo.com/lite/"

	maxRateLimitRetries = 4
)

// SearchProvider runs a web query and returns at most max documents.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, max int) ([]Document, error)
}

// WebSearchTool exposes a SearchProvider to the model.
type WebSearchTool struct {
	BaseTool
	provider   SearchProvider
	maxResults int
}

func NewWebSearchTool(provider SearchProvider, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &WebSearchTool{
		BaseTool: BaseTool{
			ToolName:        "web_search",
			ToolDescription: "Search the web for a query and return maximum " + strconv.Itoa(maxResults) + " results.",
			ToolParameters:  queryParams("The search query."),
		},
		provider:   provider,
		maxResults: maxResults,
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args string) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}

	logger.Infof("[WebSearch] Searching %s for: %s", t.provider.Name(), query)
	docs, err := t.provider.Search(ctx, query, t.maxResults)
	if err != nil {
		return "", fmt.Errorf("%s search: %w", t.provider.Name(), err)
	}
	if len(docs) > t.maxResults {
		docs = docs[:t.maxResults]
	}
	logger.Debugf("[WebSearch] Found %d results", len(docs))

	return wrapResults("web_results", docs)
}

// doWithBackoff retries a request on 429, doubling the delay each time.
func doWithBackoff(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	delay := time.Second
	for attempt := 0; ; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRateLimitRetries {
			return resp, nil
		}
		resp.Body.Close()

		logger.Warnf("[WebSearch] Rate limited, retrying in %s", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

// TavilyProvider calls the Tavily search API.
type TavilyProvider struct {
	apiKey   string
	depth    string
	endpoint string
	client   *http.Client
}

func NewTavilyProvider(apiKey, depth string, client *http.Client) *TavilyProvider {
	if depth == "" {
		depth = "basic"
	}
	if client == nil {
		client = CreateHTTPClient(0)
	}
	return &TavilyProvider{apiKey: apiKey, depth: depth, endpoint: tavilySearchURL, client: client}
}

func (p *TavilyProvider) Name() string { return "tavily" }

func (p *TavilyProvider) Search(ctx context.Context, query string, max int) ([]Document, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, errors.New("TAVILY_API_KEY not set")
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"api_key":      p.apiKey,
		"search_depth": p.depth,
		"max_results":  max,
	})
	if err != nil {
		return nil, err
	}

	resp, err := doWithBackoff(ctx, p.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(response.Results))
	for _, r := range response.Results {
		docs = append(docs, Document{Source: r.URL, Title: r.Title, Content: r.Content})
		if len(docs) >= max {
			break
		}
	}
	return docs, nil
}

// DuckDuckGoProvider scrapes the DuckDuckGo lite HTML page. It needs no key
// and is used when Tavily is not configured.
type DuckDuckGoProvider struct {
	endpoint string
	client   *http.Client
}

func NewDuckDuckGoProvider(client *http.Client) *DuckDuckGoProvider {
	if client == nil {
		client = CreateHTTPClient(15 * time.Second)
	}
	return &DuckDuckGoProvider{endpoint: duckDuckGoURL, client: client}
}

func (p *DuckDuckGoProvider) Name() string { return "duckduckgo" }

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, max int) ([]Document, error) {
	form := url.Values{}
	form.Set("q", query)

	resp, err := doWithBackoff(ctx, p.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", GetRandomUserAgent())
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	snippets := doc.Find("td.result-snippet").Map(func(_ int, s *goquery.Selection) string {
		return CleanString(s.Text())
	})

	var docs []Document
	doc.Find("a.result-link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		d := Document{
			Source: resolveDuckDuckGoLink(href),
			Title:  CleanString(s.Text()),
		}
		if i < len(snippets) {
			d.Content = snippets[i]
		}
		if d.Content == "" {
			d.Content = d.Title
		}
		docs = append(docs, d)
		return len(docs) < max
	})
	return docs, nil
}

// resolveDuckDuckGoLink unwraps //duckduckgo.com/l/?uddg=<target> redirects.
func resolveDuckDuckGoLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
