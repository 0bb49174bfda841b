package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"evalbot/internal/logger"
)

const wikipediaAPIURL = "https://en.wikipedia.org/w/api.php"

type WikiOptions struct {
	Endpoint string
	MaxDocs  int
	MaxChars int
	Client   *http.Client
}

// WikiSearchTool searches Wikipedia and returns the plain-text body of the
// best matching pages.
type WikiSearchTool struct {
	BaseTool
	endpoint string
	maxDocs  int
	maxChars int
	client   *http.Client
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title  string `json:"title"`
			PageID int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type wikiPageResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
		} `json:"pages"`
	} `json:"query"`
}

func NewWikiSearchTool(opts WikiOptions) *WikiSearchTool {
	if opts.Endpoint == "" {
		opts.Endpoint = wikipediaAPIURL
	}
	if opts.MaxDocs <= 0 {
		opts.MaxDocs = 2
	}
	if opts.Client == nil {
		opts.Client = CreateHTTPClient(0)
	}

	return &WikiSearchTool{
		BaseTool: BaseTool{
			ToolName:        "wiki_search",
			ToolDescription: "Search Wikipedia for a query and return maximum " + strconv.Itoa(opts.MaxDocs) + " results.",
			ToolParameters:  queryParams("The search query."),
		},
		endpoint: opts.Endpoint,
		maxDocs:  opts.MaxDocs,
		maxChars: opts.MaxChars,
		client:   opts.Client,
	}
}

func (t *WikiSearchTool) Execute(ctx context.Context, args string) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}

	logger.Infof("[WikiSearch] Searching Wikipedia for: %s", query)
	titles, err := t.searchTitles(ctx, query)
	if err != nil {
		return "", fmt.Errorf("wikipedia search: %w", err)
	}

	docs := make([]Document, 0, len(titles))
	for _, title := range titles {
		doc, err := t.fetchPage(ctx, title)
		if err != nil {
			logger.Warnf("[WikiSearch] Failed to load page %q: %v", title, err)
			continue
		}
		docs = append(docs, doc)
	}
	logger.Debugf("[WikiSearch] Loaded %d of %d pages", len(docs), len(titles))

	return wrapResults("wiki_results", docs)
}

func (t *WikiSearchTool) searchTitles(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(t.maxDocs))
	params.Set("format", "json")

	body, err := getBody(ctx, t.client, t.endpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp wikiSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		titles = append(titles, hit.Title)
		if len(titles) >= t.maxDocs {
			break
		}
	}
	return titles, nil
}

func (t *WikiSearchTool) fetchPage(ctx context.Context, title string) (Document, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|info")
	params.Set("explaintext", "1")
	params.Set("inprop", "url")
	params.Set("redirects", "1")
	params.Set("titles", title)
	params.Set("format", "json")

	body, err := getBody(ctx, t.client, t.endpoint+"?"+params.Encode())
	if err != nil {
		return Document{}, err
	}

	var resp wikiPageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Document{}, fmt.Errorf("decode page response: %w", err)
	}

	for _, page := range resp.Query.Pages {
		if page.Extract == "" {
			continue
		}
		return Document{
			Source:  page.FullURL,
			Title:   page.Title,
			Content: TruncateString(CleanString(page.Extract), t.maxChars),
		}, nil
	}
	return Document{}, fmt.Errorf("page %q has no text", title)
}
