package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"evalbot/internal/logger"
)

const arxivAPIURL = "http://export.arxiv.org/api/query"

type ArxivOptions struct {
	Endpoint string
	MaxDocs  int
	MaxChars int
	Client   *http.Client
}

// ArxivSearchTool queries the arXiv Atom API and returns paper abstracts.
type ArxivSearchTool struct {
	BaseTool
	endpoint string
	maxDocs  int
	maxChars int
	client   *http.Client
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

func NewArxivSearchTool(opts ArxivOptions) *ArxivSearchTool {
	if opts.Endpoint == "" {
		opts.Endpoint = arxivAPIURL
	}
	if opts.MaxDocs <= 0 {
		opts.MaxDocs = 3
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 1000
	}
	if opts.Client == nil {
		opts.Client = CreateHTTPClient(0)
	}

	return &ArxivSearchTool{
		BaseTool: BaseTool{
			ToolName:        "arxiv_search",
			ToolDescription: "Search Arxiv for a query and return maximum " + strconv.Itoa(opts.MaxDocs) + " results.",
			ToolParameters:  queryParams("The search query."),
		},
		endpoint: opts.Endpoint,
		maxDocs:  opts.MaxDocs,
		maxChars: opts.MaxChars,
		client:   opts.Client,
	}
}

func (t *ArxivSearchTool) Execute(ctx context.Context, args string) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(t.maxDocs))

	logger.Infof("[ArxivSearch] Searching arXiv for: %s", query)
	body, err := getBody(ctx, t.client, t.endpoint+"?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("arxiv search: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", fmt.Errorf("decode arxiv feed: %w", err)
	}

	docs := make([]Document, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		authors := make([]string, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			authors = append(authors, a.Name)
		}
		content := fmt.Sprintf("Title: %s\nAuthors: %s\nPublished: %s\n\n%s",
			collapseSpaces(entry.Title), strings.Join(authors, ", "), entry.Published, collapseSpaces(entry.Summary))
		docs = append(docs, Document{
			Source:  strings.TrimSpace(entry.ID),
			Title:   collapseSpaces(entry.Title),
			Content: TruncateString(content, t.maxChars),
		})
		if len(docs) >= t.maxDocs {
			break
		}
	}
	logger.Debugf("[ArxivSearch] Found %d papers", len(docs))

	return wrapResults("arxiv_results", docs)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
