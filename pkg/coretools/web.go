package coretools

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/harun/reactor/pkg/toolexecutor"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultSearchURL    = "https://html.duckduckgo.com/html/"
	defaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117 Safari/537.36"
	defaultWebTimeout   = 10 * time.Second
	defaultSearchK      = 5
	maxScrapedTextBytes = 64 * 1024
)

// SearchResult is one web_search hit.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type webClient struct {
	http      *resty.Client
	policy    URLPolicy
	searchURL string
	renderer  Renderer
}

func newWebClient(opts WebOptions) *webClient {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWebTimeout
	}
	if opts.SearchURL == "" {
		opts.SearchURL = defaultSearchURL
	}
	if opts.Renderer == nil {
		opts.Renderer = ChromeRenderer{}
	}

	return &webClient{
		http: newRestyClient(opts),
		policy: URLPolicy{
			BlockedDomains: opts.BlockedDomains,
			AllowLocalhost: opts.AllowLocalhost,
		},
		searchURL: opts.SearchURL,
		renderer:  opts.Renderer,
	}
}

func (w *webClient) get(ctx context.Context, rawURL string, query map[string]string) ([]byte, error) {
	resp, err := w.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch URL %s: status %d", rawURL, resp.StatusCode())
	}
	return resp.Body(), nil
}

// Search queries DuckDuckGo's HTML endpoint and returns up to k results.
func (w *webClient) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if k <= 0 {
		k = defaultSearchK
	}

	body, err := w.get(ctx, w.searchURL, map[string]string{"q": query})
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	return parseSearchResults(doc, k), nil
}

// parseSearchResults collects anchors with the result__a class.
func parseSearchResults(doc *html.Node, k int) []SearchResult {
	results := []SearchResult{}

	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.A && hasClass(n, "result__a") {
			results = append(results, SearchResult{
				Title: strings.Join(strings.Fields(nodeText(n)), " "),
				URL:   resolveResultURL(attr(n, "href")),
			})
			return len(results) < k
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)

	return results
}

// resolveResultURL unwraps DuckDuckGo redirect links ("/l/?uddg=<target>").
func resolveResultURL(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// Scrape fetches rawURL and returns its visible text. With render set the
// page is loaded in a headless browser first.
func (w *webClient) Scrape(ctx context.Context, rawURL string, render bool) (string, error) {
	if err := w.policy.Validate(rawURL); err != nil {
		return "", err
	}

	var page []byte
	if render {
		rendered, err := w.renderer.Render(ctx, rawURL)
		if err != nil {
			return "", err
		}
		page = []byte(rendered)
	} else {
		body, err := w.get(ctx, rawURL, nil)
		if err != nil {
			return "", err
		}
		page = body
	}

	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	text := VisibleText(doc)
	if len(text) > maxScrapedTextBytes {
		text = strings.ToValidUTF8(text[:maxScrapedTextBytes], "")
	}
	return text, nil
}

// VisibleText joins the trimmed text nodes of doc with single spaces,
// skipping script, style and noscript content.
func VisibleText(doc *html.Node) string {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(parts, " ")
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

type webSearchParams struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func webSearchTool(w *webClient) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "web_search",
		Description: "Search the web via DuckDuckGo (no API key); returns titles and URLs",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "query", Type: "string", Description: "Search terms", Required: true},
			{Name: "k", Type: "integer", Description: "How many results", Default: defaultSearchK},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			var p webSearchParams
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
			return w.Search(ctx, p.Query, p.K)
		},
	}
}

type webScrapeParams struct {
	URL    string `json:"url"`
	Render bool   `json:"render"`
}

func webScrapeTool(w *webClient) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "web_scrape",
		Description: "Fetch the text content of a web page URL. Does not work for local file paths",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "url", Type: "string", Description: "The full URL of the page", Required: true},
			{Name: "render", Type: "boolean", Description: "Render JavaScript in a headless browser first", Default: false},
		},
		Timeout: time.Minute,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			var p webScrapeParams
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
			return w.Scrape(ctx, p.URL, p.Render)
		},
	}
}
