package tools

import (
	"time"

	"evalbot/internal/logger"
)

// Options configures the default tool set.
type Options struct {
	Timeout       time.Duration
	TavilyAPIKey  string
	TavilyDepth   string
	WebMaxResults int
	WikiMaxDocs   int
	WikiMaxChars  int
	ArxivMaxDocs  int
	ArxivMaxChars int
}

// NewDefaultRegistry builds the registry with the arithmetic tools and the
// three search tools. Web search goes through Tavily when a key is
// configured and falls back to DuckDuckGo otherwise.
func NewDefaultRegistry(opts Options) (*ToolRegistry, error) {
	client := CreateHTTPClient(opts.Timeout)

	var provider SearchProvider
	if opts.TavilyAPIKey != "" {
		provider = NewTavilyProvider(opts.TavilyAPIKey, opts.TavilyDepth, client)
	} else {
		logger.Warnf("TAVILY_API_KEY not set, web_search falls back to DuckDuckGo")
		provider = NewDuckDuckGoProvider(client)
	}

	defaultTools := append(ArithmeticTools(),
		NewWebSearchTool(provider, opts.WebMaxResults),
		NewWikiSearchTool(WikiOptions{MaxDocs: opts.WikiMaxDocs, MaxChars: opts.WikiMaxChars, Client: client}),
		NewArxivSearchTool(ArxivOptions{MaxDocs: opts.ArxivMaxDocs, MaxChars: opts.ArxivMaxChars, Client: client}),
	)

	registry, err := NewToolRegistry(defaultTools...)
	if err != nil {
		return nil, err
	}

	logger.Successf("Initialized tool registry with %d tools", len(defaultTools))
	return registry, nil
}
